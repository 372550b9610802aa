package infofile

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestCheck_CreatesMissingInfo(t *testing.T) {
	dir := t.TempDir()
	if err := Check(dir); err != nil {
		t.Fatalf("Check() error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, ".decsync-info"))
	if err != nil {
		t.Fatalf("info file not created: %v", err)
	}
	var info struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(data, &info); err != nil {
		t.Fatalf("created info not JSON: %v", err)
	}
	if info.Version != SupportedVersion {
		t.Errorf("version = %d, want %d", info.Version, SupportedVersion)
	}

	// Idempotent on a valid directory.
	if err := Check(dir); err != nil {
		t.Errorf("second Check() error: %v", err)
	}
}

func TestCheck_Gate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"valid", `{"version": 1}`, nil},
		{"unknown fields tolerated", `{"version": 1, "custom": {"a": 1}}`, nil},
		{"future version", `{"version": 2}`, ErrUnsupportedVersion},
		{"not json", `version one`, ErrInvalidInfo},
		{"wrong shape", `[1, 2]`, ErrInvalidInfo},
		{"missing version", `{"owner": "x"}`, ErrInvalidInfo},
		{"non-numeric version", `{"version": "1"}`, ErrInvalidInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeInfoFile(t, dir, tt.content)
			err := Check(dir)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Check() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTouchLastActive(t *testing.T) {
	dir := t.TempDir()
	writeInfoFile(t, dir, `{"version": 1, "custom": true}`)

	if err := TouchLastActive(dir, "app-a"); err != nil {
		t.Fatalf("TouchLastActive() error: %v", err)
	}
	if err := TouchLastActive(dir, "app-b"); err != nil {
		t.Fatalf("TouchLastActive() error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, ".decsync-info"))
	if err != nil {
		t.Fatalf("read info: %v", err)
	}
	var info struct {
		Version    int               `json:"version"`
		Custom     bool              `json:"custom"`
		LastActive map[string]string `json:"last-active"`
	}
	if err := json.Unmarshal(data, &info); err != nil {
		t.Fatalf("info not JSON: %v", err)
	}
	if info.Version != 1 || !info.Custom {
		t.Errorf("existing fields not preserved: %+v", info)
	}
	if info.LastActive["app-a"] == "" || info.LastActive["app-b"] == "" {
		t.Errorf("last-active = %v, want entries for both apps", info.LastActive)
	}
}

func TestTouchLastActive_InvalidInfo(t *testing.T) {
	dir := t.TempDir()
	writeInfoFile(t, dir, `garbage`)
	if err := TouchLastActive(dir, "app-a"); !errors.Is(err, ErrInvalidInfo) {
		t.Errorf("TouchLastActive() error = %v, want ErrInvalidInfo", err)
	}
}

func writeInfoFile(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, ".decsync-info"), []byte(content), 0o600); err != nil {
		t.Fatalf("write info: %v", err)
	}
}
