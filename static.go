package decsync

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauern/decsync/internal/codec"
	"github.com/klauern/decsync/internal/infofile"
	"github.com/klauern/decsync/internal/layout"
	"github.com/klauern/decsync/internal/logfile"
	"github.com/klauern/decsync/internal/util"
)

// DefaultDir returns the default DecSync directory: $DECSYNC_DIR when set,
// $XDG_DATA_HOME/decsync otherwise.
func DefaultDir() string {
	return util.DefaultDecsyncDir()
}

// CheckDecsyncInfo runs the .decsync-info gate on dir without opening any
// logs: a missing info file is created with the supported version, a
// malformed one fails with ErrInvalidInfo, an unsupported version with
// ErrUnsupportedVersion.
func CheckDecsyncInfo(dir string) error {
	if dir == "" {
		dir = util.DefaultDecsyncDir()
	}
	return infofile.Check(dir)
}

// infoPath is the conventional entry path holding collection metadata such
// as names, colors and the deleted flag.
var infoPath = []string{"info"}

// GetStaticInfo returns the most recent value stored at the path ["info"]
// with the given key, scanning every writer's log without constructing a
// full instance. When no such value exists, the JSON literal "null" is
// returned.
func GetStaticInfo(dir, syncType, collection, key string) (string, error) {
	if dir == "" {
		dir = util.DefaultDecsyncDir()
	}
	l := layout.New(dir, syncType, collection, "")
	ids, err := l.ListAppIDs()
	if err != nil {
		return "", fmt.Errorf("decsync: list writers: %w", err)
	}

	value, bestDt, bestApp := "null", "", ""
	for _, id := range ids {
		lines, err := logfile.ReadFrom(l.LogFile(id, infoPath), 0)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", fmt.Errorf("decsync: read info log: %w", err)
		}
		for _, ln := range lines {
			parsed, err := codec.Parse(ln.Text)
			if err != nil || parsed.Key != key {
				continue
			}
			if bestDt == "" || dominates(parsed.Datetime, id, bestDt, bestApp) ||
				(parsed.Datetime == bestDt && id == bestApp) {
				value, bestDt, bestApp = parsed.Value, parsed.Datetime, id
			}
		}
	}
	return value, nil
}

// maxCollectionName is the longest collection name returned by
// ListCollections, in bytes.
const maxCollectionName = 255

// ListCollections enumerates the collections of a sync type: the immediate
// subdirectories of dir/syncType that hold a non-empty new-entries tree.
// Hidden directories and names longer than the filesystem limit are
// skipped.
func ListCollections(dir, syncType string) ([]string, error) {
	if dir == "" {
		dir = util.DefaultDecsyncDir()
	}
	entries, err := os.ReadDir(filepath.Join(dir, syncType))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("decsync: list collections: %w", err)
	}

	var collections []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || name[0] == '.' || len(name) > maxCollectionName {
			continue
		}
		l := layout.New(dir, syncType, name, "")
		refs, err := l.EnumerateLogs()
		if err != nil || len(refs) == 0 {
			continue
		}
		collections = append(collections, name)
	}
	return collections, nil
}
