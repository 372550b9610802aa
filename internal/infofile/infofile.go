// Package infofile manages the .decsync-info metadata file at the root of a
// DecSync directory: version gating on open, and the advisory last-active
// record writers leave behind.
package infofile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/klauern/decsync/internal/layout"
)

// SupportedVersion is the only DecSync directory version this library
// understands.
const SupportedVersion = 1

var (
	// ErrInvalidInfo reports a .decsync-info file that exists but does not
	// parse as the expected JSON shape.
	ErrInvalidInfo = errors.New("invalid .decsync-info")

	// ErrUnsupportedVersion reports a .decsync-info file with a version
	// outside the supported set.
	ErrUnsupportedVersion = errors.New("unsupported DecSync version")
)

const lastActiveKey = "last-active"

// Check validates the .decsync-info file in dir, creating one with the
// supported version if it does not exist. Unknown fields are tolerated.
func Check(dir string) error {
	file := filepath.Join(dir, layout.InfoFileName)
	// #nosec G304 - file is derived from the DecSync layout
	data, err := os.ReadFile(file)
	if os.IsNotExist(err) {
		return writeInfo(file, map[string]json.RawMessage{
			"version": json.RawMessage(fmt.Sprintf("%d", SupportedVersion)),
		})
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", layout.InfoFileName, err)
	}
	_, err = parse(data)
	return err
}

// parse validates the JSON shape and version, returning the raw field map.
func parse(data []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, ErrInvalidInfo
	}
	raw, ok := fields["version"]
	if !ok {
		return nil, ErrInvalidInfo
	}
	var version int
	if err := json.Unmarshal(raw, &version); err != nil {
		return nil, ErrInvalidInfo
	}
	if version != SupportedVersion {
		return nil, ErrUnsupportedVersion
	}
	return fields, nil
}

// TouchLastActive records the current date for appID in the shared info
// file. The field is advisory and last-writer-wins: the read-modify-write
// races with other processes, so it retries a few times on failure and the
// caller treats any remaining error as non-fatal.
func TouchLastActive(dir, appID string) error {
	file := filepath.Join(dir, layout.InfoFileName)
	backoff := retry.WithMaxRetries(3, retry.NewConstant(50*time.Millisecond))
	return retry.Do(context.Background(), backoff, func(_ context.Context) error {
		// #nosec G304 - file is derived from the DecSync layout
		data, err := os.ReadFile(file)
		if err != nil {
			return retry.RetryableError(err)
		}
		fields, err := parse(data)
		if err != nil {
			return err // malformed info is not retryable
		}

		active := make(map[string]string)
		if raw, ok := fields[lastActiveKey]; ok {
			// Ignore a malformed last-active field and start over.
			_ = json.Unmarshal(raw, &active)
		}
		today := time.Now().UTC().Format("2006-01-02")
		if active[appID] == today {
			return nil
		}
		active[appID] = today

		raw, err := json.Marshal(active)
		if err != nil {
			return err
		}
		fields[lastActiveKey] = raw
		if err := writeInfo(file, fields); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

// writeInfo writes the info file atomically via a sibling temp file.
func writeInfo(file string, fields map[string]json.RawMessage) error {
	if err := os.MkdirAll(filepath.Dir(file), 0o750); err != nil {
		return fmt.Errorf("create DecSync directory: %w", err)
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	tmp := file + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", layout.InfoFileName, err)
	}
	if err := os.Rename(tmp, file); err != nil {
		return fmt.Errorf("commit %s: %w", layout.InfoFileName, err)
	}
	return nil
}
