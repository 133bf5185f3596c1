package domain

import "github.com/cskr/pubsub"

// Topic is a typed topic identifier over the untyped *pubsub.PubSub hub.
// The type parameter documents, and enforces at compile time, what Go
// type is published on this topic — a publisher passing the wrong type
// fails to compile rather than surprising a subscriber at runtime.
type Topic[T any] struct {
	Name string
}

// NewTopic creates a typed topic with the given event-bus topic name.
func NewTopic[T any](name string) Topic[T] {
	return Topic[T]{Name: name}
}

// Publish sends typed data to all subscribers of topic.
func Publish[T any](hub *pubsub.PubSub, topic Topic[T], data T) {
	hub.Pub(data, topic.Name)
}

// topicNamer is satisfied by any Topic[T], allowing mixed generic topics
// in one variadic subscription call.
type topicNamer interface{ TopicName() string }

// TopicName returns the topic's string name (implements topicNamer).
func (t Topic[T]) TopicName() string { return t.Name }

// SubTopics subscribes to one or more typed topics, extracting the string
// name from each Topic[T] automatically.
func SubTopics(hub *pubsub.PubSub, topics ...topicNamer) chan interface{} {
	names := make([]string, len(topics))
	for i, t := range topics {
		names[i] = t.TopicName()
	}
	return hub.Sub(names...)
}
