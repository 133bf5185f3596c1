// Package storage provides the profile loader (flash-backed or fetched
// over HTTPS from an external collaborator) and the NVS key/value store
// that persists WiFi credentials, the active profile path, web-auth
// credentials, and the last manual-mode settings.
package storage

import (
	"os"
	"strconv"
	"sync"

	"github.com/kdys14/smokehouse-controller/daemon/logger"
	"gopkg.in/ini.v1"
)

// NVS keys.
const (
	KeyWiFiSSID   = "wifi_ssid"
	KeyWiFiPass   = "wifi_pass"
	KeyProfile    = "profile"
	KeyAuthUser   = "auth_user"
	KeyAuthPass   = "auth_pass"
	KeyManualTSet  = "manual_tset"
	KeyManualPow   = "manual_pow"
	KeyManualSmoke = "manual_smoke"
	KeyManualFan   = "manual_fan"
)

// Defaults used when a key is absent, matching the firmware's compiled-in
// fallbacks.
var defaultValues = map[string]string{
	KeyAuthUser:    "admin",
	KeyAuthPass:    "smokehouse",
	KeyManualTSet:  "70",
	KeyManualPow:   "2",
	KeyManualSmoke: "0",
	KeyManualFan:   "1",
}

const nvsSection = "nvs"

// NVS is an ini.v1-backed key/value blob store standing in for the
// firmware's NVS flash partition.
type NVS struct {
	path string

	mu   sync.RWMutex
	file *ini.File
}

// Open loads (or creates) the NVS store at path.
func Open(path string) (*NVS, error) {
	n := &NVS{path: path}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		n.file = ini.Empty()
		if _, serr := n.file.NewSection(nvsSection); serr != nil {
			return nil, serr
		}
		return n, n.saveLocked()
	}

	f, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	n.file = f
	return n, nil
}

// Get returns the value for key, or the compiled-in default if absent.
func (n *NVS) Get(key string) string {
	n.mu.RLock()
	defer n.mu.RUnlock()

	sec := n.file.Section(nvsSection)
	if sec.HasKey(key) {
		return sec.Key(key).String()
	}
	return defaultValues[key]
}

// GetFloat parses key as a float64, falling back to def on error/absence.
func (n *NVS) GetFloat(key string, def float64) float64 {
	v := n.Get(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

// GetInt parses key as an int, falling back to def on error/absence.
func (n *NVS) GetInt(key string, def int) int {
	v := n.Get(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// Set writes key=value and persists to disk.
func (n *NVS) Set(key, value string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.file.Section(nvsSection).Key(key).SetValue(value)
	return n.saveLocked()
}

// ResetAuth wipes the auth_user and auth_pass keys; subsequent Get calls
// return the compiled-in defaults.
func (n *NVS) ResetAuth() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	sec := n.file.Section(nvsSection)
	sec.DeleteKey(KeyAuthUser)
	sec.DeleteKey(KeyAuthPass)
	logger.Info("nvs: auth credentials reset to compiled-in defaults")
	return n.saveLocked()
}

func (n *NVS) saveLocked() error {
	return n.file.SaveTo(n.path)
}

// Reload re-reads the backing file from disk, discarding in-memory
// changes that weren't persisted. Used by the fsnotify hot-reload watcher
// when the NVS file is edited externally.
func (n *NVS) Reload() error {
	f, err := ini.Load(n.path)
	if err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.file = f
	return nil
}
