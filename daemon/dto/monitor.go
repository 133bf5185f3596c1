package dto

import "time"

// ResourceStats is the Monitor task's periodic resource snapshot, the Go
// stand-in for the original firmware's free-heap/task-stack telemetry.
type ResourceStats struct {
	Goroutines     int       `json:"goroutines"`
	HeapAllocBytes uint64    `json:"heapAllocBytes"`
	Timestamp      time.Time `json:"timestamp"`
}
