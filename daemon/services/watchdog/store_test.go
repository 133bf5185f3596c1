package watchdog

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/kdys14/smokehouse-controller/daemon/dto"
)

func TestNewStore(t *testing.T) {
	t.Run("default config dir", func(t *testing.T) {
		store := NewStore("")
		if store.filePath != filepath.Join(DefaultConfigDir, ConnChecksConfigFile) {
			t.Errorf("expected default path, got %s", store.filePath)
		}
	})

	t.Run("custom config dir", func(t *testing.T) {
		store := NewStore("/tmp/test-cc")
		if store.filePath != "/tmp/test-cc/conn_checks.json" {
			t.Errorf("expected custom path, got %s", store.filePath)
		}
	})
}

func TestStoreLoadMissing(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	if err := store.Load(); err != nil {
		t.Fatalf("Load should not error on missing file: %v", err)
	}
	if len(store.GetChecks()) != 0 {
		t.Error("expected 0 checks")
	}
}

func TestStoreLoadInvalid(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	if err := os.WriteFile(filepath.Join(dir, ConnChecksConfigFile), []byte("bad json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := store.Load(); err == nil {
		t.Error("expected error on invalid JSON")
	}
}

func TestStoreCRUD(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	check := dto.ConnCheck{
		ID:      "wifi-gateway",
		Name:    "WiFi Gateway",
		Type:    dto.ConnCheckHTTP,
		Target:  "http://192.168.1.1/",
		OnFail:  "notify",
		Enabled: true,
	}

	if err := store.CreateCheck(check); err != nil {
		t.Fatalf("CreateCheck failed: %v", err)
	}

	got, err := store.GetCheck("wifi-gateway")
	if err != nil {
		t.Fatalf("GetCheck failed: %v", err)
	}
	if got.IntervalSeconds != DefaultIntervalSeconds {
		t.Errorf("expected default interval %d, got %d", DefaultIntervalSeconds, got.IntervalSeconds)
	}
	if got.TimeoutSeconds != DefaultTimeoutSeconds {
		t.Errorf("expected default timeout %d, got %d", DefaultTimeoutSeconds, got.TimeoutSeconds)
	}
	if got.SuccessCode != DefaultSuccessCode {
		t.Errorf("expected default success code %d, got %d", DefaultSuccessCode, got.SuccessCode)
	}

	checks := store.GetChecks()
	if len(checks) != 1 {
		t.Errorf("expected 1 check, got %d", len(checks))
	}

	check.Name = "Home Gateway"
	check.IntervalSeconds = 60
	if err := store.UpdateCheck(check); err != nil {
		t.Fatalf("UpdateCheck failed: %v", err)
	}
	got, _ = store.GetCheck("wifi-gateway")
	if got.Name != "Home Gateway" {
		t.Errorf("expected updated name, got '%s'", got.Name)
	}

	if err := store.DeleteCheck("wifi-gateway"); err != nil {
		t.Fatalf("DeleteCheck failed: %v", err)
	}
	if len(store.GetChecks()) != 0 {
		t.Error("expected 0 checks after delete")
	}
}

func TestStoreDuplicateID(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	check := dto.ConnCheck{ID: "dup", Name: "Test", Type: dto.ConnCheckTCP, Target: "localhost:1883", Enabled: true}
	if err := store.CreateCheck(check); err != nil {
		t.Fatal(err)
	}
	if err := store.CreateCheck(check); err == nil {
		t.Error("expected error for duplicate ID")
	}
}

func TestStoreMaxChecks(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	for i := range MaxConnChecks {
		check := dto.ConnCheck{
			ID:      fmt.Sprintf("check-%d", i),
			Name:    fmt.Sprintf("Check %d", i),
			Type:    dto.ConnCheckTCP,
			Target:  "localhost:1883",
			Enabled: true,
		}
		if err := store.CreateCheck(check); err != nil {
			t.Fatalf("CreateCheck %d failed: %v", i, err)
		}
	}
	err := store.CreateCheck(dto.ConnCheck{ID: "overflow", Name: "Too Many", Type: dto.ConnCheckTCP, Target: "localhost:1883"})
	if err == nil {
		t.Error("expected error when exceeding max checks")
	}
}

func TestStoreNotFound(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	if _, err := store.GetCheck("nope"); err == nil {
		t.Error("expected error for nonexistent check")
	}
	if err := store.UpdateCheck(dto.ConnCheck{ID: "nope"}); err == nil {
		t.Error("expected error for update nonexistent")
	}
	if err := store.DeleteCheck("nope"); err == nil {
		t.Error("expected error for delete nonexistent")
	}
}

func TestStoreGetEnabledChecks(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	store.CreateCheck(dto.ConnCheck{ID: "a", Name: "A", Type: dto.ConnCheckTCP, Target: "localhost:1883", Enabled: true})
	store.CreateCheck(dto.ConnCheck{ID: "b", Name: "B", Type: dto.ConnCheckTCP, Target: "localhost:1883", Enabled: false})
	store.CreateCheck(dto.ConnCheck{ID: "c", Name: "C", Type: dto.ConnCheckTCP, Target: "localhost:1883", Enabled: true})
	enabled := store.GetEnabledChecks()
	if len(enabled) != 2 {
		t.Errorf("expected 2 enabled, got %d", len(enabled))
	}
}

func TestStorePersistence(t *testing.T) {
	dir := t.TempDir()
	store1 := NewStore(dir)
	store1.CreateCheck(dto.ConnCheck{ID: "persist", Name: "Persistent", Type: dto.ConnCheckHTTP, Target: "http://localhost", Enabled: true})

	store2 := NewStore(dir)
	if err := store2.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	checks := store2.GetChecks()
	if len(checks) != 1 {
		t.Fatalf("expected 1 check after reload, got %d", len(checks))
	}
	if checks[0].ID != "persist" {
		t.Errorf("expected ID 'persist', got '%s'", checks[0].ID)
	}
}

func TestStoreDefaultsNotAppliedForTCP(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	store.CreateCheck(dto.ConnCheck{
		ID:      "tcp-test",
		Name:    "TCP Test",
		Type:    dto.ConnCheckTCP,
		Target:  "localhost:1883",
		Enabled: true,
	})
	got, _ := store.GetCheck("tcp-test")
	if got.SuccessCode != 0 {
		t.Errorf("TCP check should not have SuccessCode set, got %d", got.SuccessCode)
	}
}
