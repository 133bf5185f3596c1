package mqtt

import (
	"testing"

	"github.com/cskr/pubsub"

	"github.com/kdys14/smokehouse-controller/daemon/domain"
	"github.com/kdys14/smokehouse-controller/daemon/dto"
	"github.com/kdys14/smokehouse-controller/daemon/services/outputs"
	"github.com/kdys14/smokehouse-controller/daemon/services/process"
)

func newTestClient(t *testing.T, cfg domain.MQTTConfig) *Client {
	t.Helper()
	hub := pubsub.New(8)
	ctrl := process.New(outputs.New(outputs.LoggingDriver{}), hub)
	return NewClient(cfg, hub, ctrl)
}

func TestNewClientDefaults(t *testing.T) {
	c := newTestClient(t, domain.MQTTConfig{})

	if c.config == nil {
		t.Fatal("config is nil")
	}
	if c.deviceInfo == nil {
		t.Fatal("deviceInfo is nil")
	}
	if c.deviceInfo.Manufacturer != "smokehouse-controller" {
		t.Errorf("deviceInfo.Manufacturer = %q", c.deviceInfo.Manufacturer)
	}
}

func TestBuildTopic(t *testing.T) {
	c := newTestClient(t, domain.MQTTConfig{TopicPrefix: "smokehouse"})

	if got := c.buildTopic("state"); got != "smokehouse/state" {
		t.Errorf("buildTopic(state) = %q, want smokehouse/state", got)
	}

	c2 := newTestClient(t, domain.MQTTConfig{})
	if got := c2.buildTopic("state"); got != "state" {
		t.Errorf("buildTopic with no prefix = %q, want state", got)
	}
}

func TestBrokerURL(t *testing.T) {
	c := newTestClient(t, domain.MQTTConfig{Broker: "broker.local", Port: 1883})
	if got := c.brokerURL(); got != "tcp://broker.local:1883" {
		t.Errorf("brokerURL() = %q", got)
	}

	c.config.UseTLS = true
	if got := c.brokerURL(); got != "ssl://broker.local:1883" {
		t.Errorf("brokerURL() with TLS = %q", got)
	}
}

func TestConnectDisabledIsNoop(t *testing.T) {
	c := newTestClient(t, domain.MQTTConfig{Enabled: false})
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() on disabled client returned %v, want nil", err)
	}
	if c.IsConnected() {
		t.Error("disabled client reports connected")
	}
}

func TestGetStatusWhenDisabled(t *testing.T) {
	c := newTestClient(t, domain.MQTTConfig{Enabled: false, Broker: "broker.local", Port: 1883})
	status := c.GetStatus()
	if status.Enabled {
		t.Error("status.Enabled should be false")
	}
	if status.Connected {
		t.Error("status.Connected should be false")
	}
}

func TestParseFanMode(t *testing.T) {
	cases := []struct {
		in   string
		want dto.FanMode
	}{
		{"off", dto.FanOff},
		{"On", dto.FanOn},
		{"CYCLIC", dto.FanCyclic},
		{"1", dto.FanOn},
	}
	for _, tc := range cases {
		got, err := parseFanMode(tc.in)
		if err != nil {
			t.Errorf("parseFanMode(%q) error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseFanMode(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	if _, err := parseFanMode("bogus"); err == nil {
		t.Error("parseFanMode(bogus) should return an error")
	}
}

func TestSanitizeID(t *testing.T) {
	if got := sanitizeID("Smokehouse Controller-1"); got != "smokehouse_controller_1" {
		t.Errorf("sanitizeID() = %q", got)
	}
}
