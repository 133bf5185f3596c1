// Package mqtt publishes the controller's state and alerts to an MQTT broker
// and, when Home Assistant discovery is enabled, advertises the chamber's
// sensors and controls so they show up automatically in HA.
package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/cskr/pubsub"

	"github.com/kdys14/smokehouse-controller/daemon/domain"
	"github.com/kdys14/smokehouse-controller/daemon/dto"
	"github.com/kdys14/smokehouse-controller/daemon/logger"
	"github.com/kdys14/smokehouse-controller/daemon/services/process"
	"github.com/kdys14/smokehouse-controller/daemon/services/storage"
)

// Client publishes ControllerStateSnapshot and Alert updates to an MQTT
// broker and, optionally, accepts control commands back.
type Client struct {
	config   *domain.MQTTConfig
	hub      *pubsub.PubSub
	ctrl     *process.Controller
	profiles *storage.ProfileLoader

	client      pahomqtt.Client
	mu          sync.RWMutex
	connected   atomic.Bool
	startTime   time.Time
	lastConnect *time.Time
	lastDisconn *time.Time
	lastError   string
	msgSent     atomic.Int64
	msgErrors   atomic.Int64

	deviceInfo *haDeviceInfo

	cancelPump context.CancelFunc
}

// NewClient builds an MQTT client wired to hub for snapshot/alert updates
// and ctrl for incoming commands. Connect is a no-op if cfg.Enabled is false.
func NewClient(cfg domain.MQTTConfig, hub *pubsub.PubSub, ctrl *process.Controller) *Client {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "smokehouse-controller"
	}
	return &Client{
		config: &cfg,
		hub:    hub,
		ctrl:   ctrl,
		deviceInfo: &haDeviceInfo{
			Identifiers:  []string{fmt.Sprintf("smokehouse_%s", strings.ReplaceAll(clientID, " ", "_"))},
			Name:         "Smokehouse Controller",
			Manufacturer: "smokehouse-controller",
			Model:        "Curing Chamber Controller",
			SWVersion:    "dev",
		},
	}
}

// SetProfileLoader wires the profile loader used by the start_auto command.
// Left nil, start_auto requests fail with a clear error instead of panicking.
func (c *Client) SetProfileLoader(loader *storage.ProfileLoader) {
	c.profiles = loader
}

func (c *Client) brokerURL() string {
	scheme := "tcp"
	if c.config.UseTLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.config.Broker, c.config.Port)
}

// Connect establishes the broker connection and, once connected, starts the
// snapshot/alert publish pump and (if enabled) subscribes to command topics.
func (c *Client) Connect() error {
	if !c.config.Enabled {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(c.brokerURL())
	opts.SetClientID(c.config.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetKeepAlive(30 * time.Second)

	if c.config.Username != "" {
		opts.SetUsername(c.config.Username)
	}
	if c.config.Password != "" {
		opts.SetPassword(c.config.Password)
	}
	if c.config.UseTLS {
		opts.SetTLSConfig(&tls.Config{InsecureSkipVerify: c.config.InsecureSkipVerify}) //nolint:gosec
	}

	availabilityTopic := c.buildTopic("availability")
	opts.SetWill(availabilityTopic, "offline", byte(c.config.QoS), true)

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) { c.handleConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.handleDisconnect(err) })
	opts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		logger.Debug("MQTT: attempting to reconnect...")
	})

	c.client = pahomqtt.NewClient(opts)
	c.startTime = time.Now()

	logger.Info("MQTT: connecting to broker %s...", c.brokerURL())
	token := c.client.Connect()
	token.Wait()
	if token.Error() != nil {
		c.lastError = token.Error().Error()
		return fmt.Errorf("MQTT connect: %w", token.Error())
	}

	return nil
}

func (c *Client) handleConnect() {
	c.mu.Lock()
	if c.cancelPump != nil {
		c.cancelPump()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelPump = cancel
	c.mu.Unlock()

	c.connected.Store(true)
	now := time.Now()
	c.lastConnect = &now
	c.lastError = ""

	logger.Success("MQTT: connected to broker %s", c.brokerURL())
	_ = c.publish(c.buildTopic("availability"), "online", true)

	if c.config.HomeAssistantMode {
		c.publishHADiscovery()
	}

	go c.pumpEvents(ctx)
	c.subscribeCommandTopics()
}

func (c *Client) handleDisconnect(err error) {
	c.connected.Store(false)
	now := time.Now()
	c.lastDisconn = &now

	c.mu.Lock()
	if c.cancelPump != nil {
		c.cancelPump()
		c.cancelPump = nil
	}
	c.mu.Unlock()

	if err != nil {
		c.lastError = err.Error()
		logger.Warning("MQTT: connection lost: %v", err)
	} else {
		logger.Info("MQTT: disconnected from broker")
	}
}

// pumpEvents forwards the Controller's published snapshots and alerts to
// MQTT for as long as the connection established by handleConnect lives.
func (c *Client) pumpEvents(ctx context.Context) {
	sub := domain.SubTopics(c.hub, process.TopicControllerState, process.TopicAlert)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub:
			if !ok {
				return
			}
			switch v := msg.(type) {
			case dto.ControllerStateSnapshot:
				c.publishSnapshot(v)
			case dto.Alert:
				c.publishAlert(v)
			}
		}
	}
}

func (c *Client) publishSnapshot(snap dto.ControllerStateSnapshot) {
	if err := c.publishJSON(c.buildTopic("state"), snap); err != nil {
		logger.Debug("MQTT: publishing state snapshot: %v", err)
	}
}

func (c *Client) publishAlert(alert dto.Alert) {
	if err := c.publishJSON(c.buildTopic("alert"), alert); err != nil {
		logger.Debug("MQTT: publishing alert: %v", err)
	}
}

// Disconnect closes the MQTT connection gracefully, publishing an offline
// availability message first.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancelPump != nil {
		c.cancelPump()
		c.cancelPump = nil
	}

	if c.client != nil && c.client.IsConnected() {
		_ = c.publish(c.buildTopic("availability"), "offline", true)
		c.client.Disconnect(250)
		c.connected.Store(false)
		logger.Info("MQTT: disconnected from broker")
	}
}

// IsConnected reports whether the client currently holds a broker connection.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Status summarizes the client's connection health for /status-style
// reporting.
type Status struct {
	Connected      bool      `json:"connected"`
	Enabled        bool      `json:"enabled"`
	Broker         string    `json:"broker"`
	ClientID       string    `json:"clientId"`
	TopicPrefix    string    `json:"topicPrefix"`
	LastError      string    `json:"lastError,omitempty"`
	MessagesSent   int64     `json:"messagesSent"`
	MessagesErrors int64     `json:"messagesErrors"`
	UptimeSec      int64     `json:"uptimeSec"`
	Timestamp      time.Time `json:"timestamp"`
}

// GetStatus returns the current MQTT client status.
func (c *Client) GetStatus() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var uptime int64
	if !c.startTime.IsZero() && c.connected.Load() {
		uptime = int64(time.Since(c.startTime).Seconds())
	}

	return Status{
		Connected:      c.connected.Load(),
		Enabled:        c.config.Enabled,
		Broker:         c.brokerURL(),
		ClientID:       c.config.ClientID,
		TopicPrefix:    c.config.TopicPrefix,
		LastError:      c.lastError,
		MessagesSent:   c.msgSent.Load(),
		MessagesErrors: c.msgErrors.Load(),
		UptimeSec:      uptime,
		Timestamp:      time.Now(),
	}
}

func (c *Client) shouldPublish() bool {
	return c.config.Enabled && c.connected.Load() && c.client != nil
}

func (c *Client) publish(topic, payload string, retained bool) error {
	if c.client == nil {
		return fmt.Errorf("MQTT client not initialized")
	}

	token := c.client.Publish(topic, byte(c.config.QoS), retained, payload)
	token.Wait()
	if token.Error() != nil {
		c.msgErrors.Add(1)
		logger.Debug("MQTT: failed to publish to %s: %v", topic, token.Error())
		return token.Error()
	}

	c.msgSent.Add(1)
	return nil
}

func (c *Client) publishJSON(topic string, payload any) error {
	if !c.shouldPublish() {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		c.msgErrors.Add(1)
		return fmt.Errorf("marshal MQTT payload: %w", err)
	}
	return c.publish(topic, string(data), c.config.RetainMessages)
}

func (c *Client) buildTopic(suffix string) string {
	if c.config.TopicPrefix == "" {
		return suffix
	}
	return fmt.Sprintf("%s/%s", c.config.TopicPrefix, suffix)
}
