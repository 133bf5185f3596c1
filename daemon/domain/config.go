// Package domain provides core domain models and the runtime application
// context shared across every task of the smokehouse controller.
package domain

// Config holds top-level application configuration resolved from
// compiled-in defaults, the config file, environment variables, and CLI
// flags (in ascending priority).
type Config struct {
	Version    string `json:"version"`
	Port       int    `json:"port"`
	CORSOrigin string `json:"corsOrigin"`

	// NVSPath is the path to the key/value blob store backing Storage/NVS.
	NVSPath string `json:"nvsPath"`
	// FlashImagePath is the backing file standing in for the raw 16MB SPI
	// NOR chip that FlashFS allocates sectors from.
	FlashImagePath string `json:"flashImagePath"`

	MQTT MQTTConfig `json:"mqtt"`
}

// MQTTConfig holds the optional MQTT telemetry publisher settings.
type MQTTConfig struct {
	Enabled             bool   `json:"enabled"`
	Broker              string `json:"broker"`
	Port                int    `json:"port"`
	Username            string `json:"username"`
	Password            string `json:"password"`
	ClientID            string `json:"clientId"`
	TopicPrefix         string `json:"topicPrefix"`
	UseTLS              bool   `json:"useTLS"`
	InsecureSkipVerify  bool   `json:"insecureSkipVerify"`
	QoS                 int    `json:"qos"`
	RetainMessages      bool   `json:"retainMessages"`
	HomeAssistantMode   bool   `json:"homeAssistantMode"`
	HomeAssistantPrefix string `json:"homeAssistantPrefix"`
}
