// Package deviceid manages the persistent device identifier used to build
// app ids. The identifier lives outside the DecSync tree so every DecSync
// directory on the device sees the same value.
package deviceid

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/klauern/decsync/internal/util"
)

const fileName = "device-id"

// File returns the location of the device-id file,
// $XDG_DATA_HOME/decsync/device-id by default.
func File() string {
	return filepath.Join(util.DataDir(), fileName)
}

// Get returns the device identifier, generating and persisting one on first
// use. The id is written to a temp file and renamed into place, so the file
// never holds a partial id, and the value returned is the one read back after
// the rename. Two processes creating the id at the same moment can each
// return their own value; the last rename is the one that persists.
func Get() (string, error) {
	file := File()
	if id, err := read(file); err == nil {
		return id, nil
	}

	u := uuid.New()
	id := hex.EncodeToString(u[:8])

	if err := os.MkdirAll(filepath.Dir(file), 0o750); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	tmp := file + ".tmp"
	if err := os.WriteFile(tmp, []byte(id), 0o600); err != nil {
		return "", fmt.Errorf("write device id: %w", err)
	}
	if err := os.Rename(tmp, file); err != nil {
		return "", fmt.Errorf("commit device id: %w", err)
	}
	return read(file)
}

func read(file string) (string, error) {
	// #nosec G304 - file lives under the decsync data directory
	data, err := os.ReadFile(file)
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(string(data))
	if len(id) < 8 {
		return "", fmt.Errorf("device id file %s too short", file)
	}
	return id, nil
}
