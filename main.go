// Package main is the entry point for the smokehouse/curing-chamber
// controller firmware: it parses boot flags, opens the log sink, builds the
// runtime domain.Context, and hands off to cmd.Boot.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/cskr/pubsub"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kdys14/smokehouse-controller/daemon/cmd"
	"github.com/kdys14/smokehouse-controller/daemon/constants"
	"github.com/kdys14/smokehouse-controller/daemon/domain"
	"github.com/kdys14/smokehouse-controller/daemon/logger"
)

// Version is the application version, set at build time via ldflags.
var Version = "dev"

var cli struct {
	LogsDir  string `default:"/var/log" help:"directory to store logs"`
	Port     int    `default:"8043" help:"HTTP server port"`
	Debug    bool   `default:"false" help:"enable debug mode with stdout logging"`
	LogLevel string `default:"info" help:"log level: debug, info, warning, error"`

	// CORS
	CORSOrigin string `default:"*" env:"CORS_ORIGIN" help:"Access-Control-Allow-Origin value (default: *)"`

	// NVSPath is the key/value blob store backing Storage/NVS: wifi
	// credentials, web auth credentials, the last-selected profile path.
	NVSPath string `default:"/etc/smokehouse/nvs.json" env:"SMOKEHOUSE_NVS_PATH" help:"path to the NVS key/value store"`

	// FlashImagePath is the backing file standing in for the raw SPI NOR
	// chip. Its size is fixed at constants.FlashTotalBytes; the file is
	// created and truncated to that size on first boot if missing.
	FlashImagePath string `default:"/var/lib/smokehouse/flash.img" env:"SMOKEHOUSE_FLASH_IMAGE" help:"path to the flash filesystem backing file"`

	// MQTT Configuration
	MQTTEnabled            bool   `default:"false" env:"MQTT_ENABLED" help:"enable MQTT publishing"`
	MQTTBroker             string `default:"" env:"MQTT_BROKER" help:"MQTT broker hostname or IP"`
	MQTTPort               int    `default:"1883" env:"MQTT_PORT" help:"MQTT broker port"`
	MQTTUsername           string `default:"" env:"MQTT_USERNAME" help:"MQTT username"`
	MQTTPassword           string `default:"" env:"MQTT_PASSWORD" help:"MQTT password"`
	MQTTClientID           string `default:"smokehouse-controller" env:"MQTT_CLIENT_ID" help:"MQTT client ID"`
	MQTTTopicPrefix        string `default:"smokehouse" env:"MQTT_TOPIC_PREFIX" help:"MQTT topic prefix"`
	MQTTUseTLS             bool   `default:"false" env:"MQTT_USE_TLS" help:"use TLS for MQTT connection"`
	MQTTInsecureSkipVerify bool   `default:"false" env:"MQTT_INSECURE_SKIP_VERIFY" help:"skip TLS certificate verification"`
	MQTTQoS                int    `default:"0" env:"MQTT_QOS" help:"MQTT QoS level (0, 1, or 2)"`
	MQTTRetain             bool   `default:"true" env:"MQTT_RETAIN" help:"retain MQTT messages"`
	MQTTHomeAssistant      bool   `default:"false" env:"MQTT_HOME_ASSISTANT" help:"enable Home Assistant MQTT discovery"`
	MQTTHAPrefix           string `default:"homeassistant" env:"MQTT_HA_PREFIX" help:"Home Assistant discovery prefix"`

	Boot cmd.Boot `cmd:"" default:"1" help:"start the smokehouse controller"`
}

// cleanupOldLogs removes old rotated log files from previous versions.
// Needed because lumberjack's MaxBackups only prevents new backups, it
// doesn't clean up existing ones from before the setting was changed.
func cleanupOldLogs(logsDir, baseName string) {
	pattern := filepath.Join(logsDir, baseName+"-*.log")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return
	}
	for _, f := range files {
		_ = os.Remove(f)
	}
}

func main() {
	ctx := kong.Parse(&cli)

	fileCfg, err := domain.LoadConfigFile(domain.DefaultConfigPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "WARNING: Failed to load config file: %v\n", err)
	}
	applyFileConfig(fileCfg)

	switch strings.ToLower(cli.LogLevel) {
	case "debug":
		logger.SetLevel(logger.LevelDebug)
	case "info":
		logger.SetLevel(logger.LevelInfo)
	case "warning", "warn":
		logger.SetLevel(logger.LevelWarning)
	case "error":
		logger.SetLevel(logger.LevelError)
	default:
		logger.SetLevel(logger.LevelInfo)
	}

	if cli.Debug {
		// Debug mode: direct stdout/stderr with no buffering.
		log.SetOutput(os.Stdout)
		log.SetFlags(log.LstdFlags | log.Lshortfile)
		logger.SetLevel(logger.LevelDebug)
		log.Println("Debug mode enabled - logging to stdout")
	} else {
		cleanupOldLogs(cli.LogsDir, "smokehouse-controller")

		fileLogger := &lumberjack.Logger{
			Filename:   filepath.Join(cli.LogsDir, "smokehouse-controller.log"),
			MaxSize:    5,     // 5 MB max file size
			MaxBackups: 1,     // Keep only 1 backup file
			MaxAge:     1,     // Delete backups older than 1 day
			Compress:   false, // No compression
		}
		multiWriter := io.MultiWriter(fileLogger, os.Stdout)
		log.SetOutput(multiWriter)
	}

	log.Printf("Starting smokehouse controller v%s (log level: %s)", Version, cli.LogLevel)

	appCtx := &domain.Context{
		Hub: pubsub.New(constants.EventBusBufferSize),
		Config: domain.Config{
			Version:        Version,
			Port:           cli.Port,
			CORSOrigin:     cli.CORSOrigin,
			NVSPath:        cli.NVSPath,
			FlashImagePath: cli.FlashImagePath,
			MQTT: domain.MQTTConfig{
				Enabled:             cli.MQTTEnabled,
				Broker:              cli.MQTTBroker,
				Port:                cli.MQTTPort,
				Username:            cli.MQTTUsername,
				Password:            cli.MQTTPassword,
				ClientID:            cli.MQTTClientID,
				TopicPrefix:         cli.MQTTTopicPrefix,
				UseTLS:              cli.MQTTUseTLS,
				InsecureSkipVerify:  cli.MQTTInsecureSkipVerify,
				QoS:                 cli.MQTTQoS,
				RetainMessages:      cli.MQTTRetain,
				HomeAssistantMode:   cli.MQTTHomeAssistant,
				HomeAssistantPrefix: cli.MQTTHAPrefix,
			},
		},
	}

	err = ctx.Run(appCtx)
	ctx.FatalIfErrorf(err)
}

// applyFileConfig merges config file values into the CLI struct. Only
// fields not explicitly set via CLI/env are overridden. Kong sets fields to
// their declared defaults before parsing, so file config values are
// applied after kong.Parse to fill in non-defaulted values. In practice
// this means file config acts as a "second default layer": CLI flag > env
// var > config file > struct default.
func applyFileConfig(cfg *domain.FileConfig) {
	if cfg == nil {
		return
	}

	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setStr := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}

	setInt(&cli.Port, cfg.Port)
	setStr(&cli.LogLevel, cfg.LogLevel)
	setStr(&cli.LogsDir, cfg.LogsDir)
	setBool(&cli.Debug, cfg.Debug)
	setStr(&cli.CORSOrigin, cfg.CORSOrigin)
	setStr(&cli.NVSPath, cfg.NVSPath)
	setStr(&cli.FlashImagePath, cfg.FlashImage)

	if m := cfg.MQTT; m != nil {
		setBool(&cli.MQTTEnabled, m.Enabled)
		setStr(&cli.MQTTBroker, m.Broker)
		setInt(&cli.MQTTPort, m.Port)
		setStr(&cli.MQTTUsername, m.Username)
		setStr(&cli.MQTTPassword, m.Password)
		setStr(&cli.MQTTClientID, m.ClientID)
		setStr(&cli.MQTTTopicPrefix, m.TopicPrefix)
		setBool(&cli.MQTTUseTLS, m.UseTLS)
		setInt(&cli.MQTTQoS, m.QoS)
		setBool(&cli.MQTTRetain, m.Retain)
		setBool(&cli.MQTTHomeAssistant, m.HomeAssistant)
		setStr(&cli.MQTTHAPrefix, m.HAPrefix)
	}
}
