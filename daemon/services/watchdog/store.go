// Package watchdog monitors external connectivity (WiFi gateway, MQTT
// broker, GitHub profile source) via user-configured probes, distinct from
// scheduler.Supervisor's internal task liveness and scheduler.HardwareWatchdog's
// MCU watchdog-timer simulation.
package watchdog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kdys14/smokehouse-controller/daemon/dto"
	"github.com/kdys14/smokehouse-controller/daemon/logger"
)

const (
	// DefaultConfigDir is the default directory for connectivity check configuration.
	DefaultConfigDir = "/data/config"

	// ConnChecksConfigFile is the filename for connectivity check configuration.
	ConnChecksConfigFile = "conn_checks.json"

	// MaxConnChecks is the maximum number of connectivity checks allowed.
	MaxConnChecks = 50

	// DefaultIntervalSeconds is the default check interval.
	DefaultIntervalSeconds = 30

	// MinIntervalSeconds is the minimum allowed check interval.
	MinIntervalSeconds = 10

	// DefaultTimeoutSeconds is the default probe timeout.
	DefaultTimeoutSeconds = 5

	// DefaultSuccessCode is the default expected HTTP status code.
	DefaultSuccessCode = 200
)

// Store manages persistent storage of connectivity check configurations in a JSON file.
type Store struct {
	mu       sync.RWMutex
	checks   []dto.ConnCheck
	filePath string
}

// NewStore creates a new connectivity check store. If configDir is empty, DefaultConfigDir is used.
func NewStore(configDir string) *Store {
	if configDir == "" {
		configDir = DefaultConfigDir
	}
	return &Store{
		filePath: filepath.Join(configDir, ConnChecksConfigFile),
		checks:   make([]dto.ConnCheck, 0),
	}
}

// Load reads connectivity check configuration from the JSON config file.
// If the file doesn't exist, starts with an empty set.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("Watchdog: conn check config not found, starting with empty set")
			return nil
		}
		return fmt.Errorf("reading conn check config: %w", err)
	}

	var config dto.ConnChecksConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("parsing conn check config: %w", err)
	}

	s.checks = config.Checks
	if s.checks == nil {
		s.checks = make([]dto.ConnCheck, 0)
	}

	logger.Info("Watchdog: loaded %d conn checks from %s", len(s.checks), s.filePath)
	return nil
}

// save writes the current checks to the JSON config file. Caller must hold the write lock.
func (s *Store) save() error {
	config := dto.ConnChecksConfig{Checks: s.checks}
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling conn check config: %w", err)
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(s.filePath, data, 0o600); err != nil {
		return fmt.Errorf("writing conn check config: %w", err)
	}

	return nil
}

// GetChecks returns a copy of all connectivity checks.
func (s *Store) GetChecks() []dto.ConnCheck {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]dto.ConnCheck, len(s.checks))
	copy(result, s.checks)
	return result
}

// GetEnabledChecks returns only enabled connectivity checks.
func (s *Store) GetEnabledChecks() []dto.ConnCheck {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]dto.ConnCheck, 0)
	for _, c := range s.checks {
		if c.Enabled {
			result = append(result, c)
		}
	}
	return result
}

// GetCheck returns a connectivity check by ID.
func (s *Store) GetCheck(id string) (*dto.ConnCheck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.checks {
		if s.checks[i].ID == id {
			check := s.checks[i]
			return &check, nil
		}
	}
	return nil, fmt.Errorf("conn check '%s' not found", id)
}

// CreateCheck adds a new connectivity check and persists to disk.
func (s *Store) CreateCheck(check dto.ConnCheck) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.checks) >= MaxConnChecks {
		return fmt.Errorf("maximum of %d conn checks reached", MaxConnChecks)
	}

	for _, existing := range s.checks {
		if existing.ID == check.ID {
			return fmt.Errorf("conn check with ID '%s' already exists", check.ID)
		}
	}

	if check.IntervalSeconds < MinIntervalSeconds {
		check.IntervalSeconds = DefaultIntervalSeconds
	}
	if check.TimeoutSeconds < 1 {
		check.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if check.Type == dto.ConnCheckHTTP && check.SuccessCode == 0 {
		check.SuccessCode = DefaultSuccessCode
	}

	s.checks = append(s.checks, check)

	if err := s.save(); err != nil {
		s.checks = s.checks[:len(s.checks)-1]
		return fmt.Errorf("saving after create: %w", err)
	}

	logger.Info("Watchdog: created conn check '%s' (%s)", check.ID, check.Type)
	return nil
}

// UpdateCheck updates an existing connectivity check and persists to disk.
func (s *Store) UpdateCheck(check dto.ConnCheck) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.checks {
		if s.checks[i].ID == check.ID {
			old := s.checks[i]
			s.checks[i] = check

			if err := s.save(); err != nil {
				s.checks[i] = old
				return fmt.Errorf("saving after update: %w", err)
			}

			logger.Info("Watchdog: updated conn check '%s'", check.ID)
			return nil
		}
	}

	return fmt.Errorf("conn check '%s' not found", check.ID)
}

// DeleteCheck removes a connectivity check by ID and persists to disk.
func (s *Store) DeleteCheck(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.checks {
		if s.checks[i].ID == id {
			old := s.checks[i]
			oldIdx := i
			s.checks = append(s.checks[:i], s.checks[i+1:]...)

			if err := s.save(); err != nil {
				s.checks = append(s.checks[:oldIdx], append([]dto.ConnCheck{old}, s.checks[oldIdx:]...)...)
				return fmt.Errorf("saving after delete: %w", err)
			}

			logger.Info("Watchdog: deleted conn check '%s'", id)
			return nil
		}
	}

	return fmt.Errorf("conn check '%s' not found", id)
}
