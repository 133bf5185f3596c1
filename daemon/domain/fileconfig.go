package domain

import (
	"os"

	"gopkg.in/ini.v1"
)

// DefaultConfigPath is the standard location of the controller's config file.
const DefaultConfigPath = "/etc/smokehouse/smokehouse.ini"

// FileConfig mirrors the subset of Config that may be supplied via the
// config file. Pointer fields distinguish "absent" from "explicit zero
// value" so CLI/env precedence (CLI > env > file > compiled default) is
// preserved.
type FileConfig struct {
	Port       *int
	LogLevel   *string
	LogsDir    *string
	Debug      *bool
	CORSOrigin *string
	NVSPath    *string
	FlashImage *string

	MQTT *FileConfigMQTT
}

// FileConfigMQTT holds MQTT settings loadable from the config file.
type FileConfigMQTT struct {
	Enabled       *bool
	Broker        *string
	Port          *int
	Username      *string
	Password      *string
	ClientID      *string
	TopicPrefix   *string
	UseTLS        *bool
	QoS           *int
	Retain        *bool
	HomeAssistant *bool
	HAPrefix      *string
}

// LoadConfigFile reads and parses an ini config file. Returns nil without
// error if the file does not exist, so callers fall back to compiled-in
// defaults and CLI/env values.
func LoadConfigFile(path string) (*FileConfig, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	f, err := ini.Load(path)
	if err != nil {
		return nil, err
	}

	cfg := &FileConfig{}
	server := f.Section("server")
	cfg.Port = optInt(server, "port")
	cfg.LogLevel = optString(server, "log_level")
	cfg.LogsDir = optString(server, "logs_dir")
	cfg.Debug = optBool(server, "debug")
	cfg.CORSOrigin = optString(server, "cors_origin")
	cfg.NVSPath = optString(server, "nvs_path")
	cfg.FlashImage = optString(server, "flash_image")

	if f.HasSection("mqtt") {
		m := f.Section("mqtt")
		cfg.MQTT = &FileConfigMQTT{
			Enabled:       optBool(m, "enabled"),
			Broker:        optString(m, "broker"),
			Port:          optInt(m, "port"),
			Username:      optString(m, "username"),
			Password:      optString(m, "password"),
			ClientID:      optString(m, "client_id"),
			TopicPrefix:   optString(m, "topic_prefix"),
			UseTLS:        optBool(m, "use_tls"),
			QoS:           optInt(m, "qos"),
			Retain:        optBool(m, "retain"),
			HomeAssistant: optBool(m, "home_assistant"),
			HAPrefix:      optString(m, "ha_prefix"),
		}
	}

	return cfg, nil
}

func optString(s *ini.Section, key string) *string {
	if !s.HasKey(key) {
		return nil
	}
	v := s.Key(key).String()
	return &v
}

func optInt(s *ini.Section, key string) *int {
	if !s.HasKey(key) {
		return nil
	}
	v, err := s.Key(key).Int()
	if err != nil {
		return nil
	}
	return &v
}

func optBool(s *ini.Section, key string) *bool {
	if !s.HasKey(key) {
		return nil
	}
	v, err := s.Key(key).Bool()
	if err != nil {
		return nil
	}
	return &v
}
