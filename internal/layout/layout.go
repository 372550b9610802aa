// Package layout maps DecSync entries onto the shared directory tree.
//
// Given a root directory, sync type and optional collection, the tree is:
//
//	<root>/.decsync-info
//	<base>/new-entries/<app-id>/<encoded path...>     per-writer logs
//	<base>/stored-entries/<app-id>/<encoded path...>  materialized views
//	<base>/read-bytes/<reader>/<writer>/<encoded path...>  sequence cursors
//
// where <base> is <root>/<sync-type> or <root>/<sync-type>/<collection>.
// Path segments are percent-encoded so enumeration recovers the original
// paths exactly.
package layout

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	newEntriesName    = "new-entries"
	storedEntriesName = "stored-entries"
	readBytesName     = "read-bytes"

	// InfoFileName is the shared metadata file at the DecSync root.
	InfoFileName = ".decsync-info"
)

// EncodeSegment encodes one path segment into a filesystem name.
//
// Bytes outside [A-Za-z0-9._-] are percent-encoded with upper-case hex.
// Three extra rules keep the encoding total and injective on real
// filesystems: the empty segment becomes "_", a literal "_" becomes "%5F",
// and "." / ".." are fully encoded.
func EncodeSegment(segment string) string {
	switch segment {
	case "":
		return "_"
	case "_":
		return "%5F"
	case ".":
		return "%2E"
	case "..":
		return "%2E%2E"
	}
	var b strings.Builder
	for i := 0; i < len(segment); i++ {
		c := segment[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c == '.' || c == '_' || c == '-':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// DecodeSegment inverts EncodeSegment.
func DecodeSegment(name string) (string, error) {
	if name == "_" {
		return "", nil
	}
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if i+2 >= len(name) {
			return "", fmt.Errorf("truncated escape in segment %q", name)
		}
		hi, ok1 := unhex(name[i+1])
		lo, ok2 := unhex(name[i+2])
		if !ok1 || !ok2 {
			return "", fmt.Errorf("invalid escape in segment %q", name)
		}
		b.WriteByte(hi<<4 | lo)
		i += 2
	}
	return b.String(), nil
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}

// EncodePath encodes every segment of a path.
func EncodePath(path []string) []string {
	encoded := make([]string, len(path))
	for i, segment := range path {
		encoded[i] = EncodeSegment(segment)
	}
	return encoded
}

// PathKey returns a canonical string key for a path, usable as a map key.
// Encoded segments never contain '/', so the join is injective.
func PathKey(path []string) string {
	return strings.Join(EncodePath(path), "/")
}

// Layout resolves the on-disk locations for one DecSync instance.
type Layout struct {
	Root       string
	SyncType   string
	Collection string
	AppID      string
}

// New creates a layout rooted at dir. The collection may be empty.
func New(dir, syncType, collection, appID string) Layout {
	return Layout{Root: dir, SyncType: syncType, Collection: collection, AppID: appID}
}

// Base returns the directory holding this sync type (and collection).
func (l Layout) Base() string {
	if l.Collection == "" {
		return filepath.Join(l.Root, l.SyncType)
	}
	return filepath.Join(l.Root, l.SyncType, l.Collection)
}

// InfoFile returns the path of the shared .decsync-info file.
func (l Layout) InfoFile() string {
	return filepath.Join(l.Root, InfoFileName)
}

// NewEntriesDir returns the directory holding all writers' logs.
func (l Layout) NewEntriesDir() string {
	return filepath.Join(l.Base(), newEntriesName)
}

// LogFile returns the log file of the given writer for the given entry path.
func (l Layout) LogFile(appID string, path []string) string {
	parts := append([]string{l.NewEntriesDir(), appID}, EncodePath(path)...)
	return filepath.Join(parts...)
}

// OwnLogFile returns this instance's own log file for the given entry path.
func (l Layout) OwnLogFile(path []string) string {
	return l.LogFile(l.AppID, path)
}

// StoredDir returns this instance's stored-entries directory.
func (l Layout) StoredDir() string {
	return filepath.Join(l.Base(), storedEntriesName, l.AppID)
}

// StoredFile returns this instance's stored-entries file for the given path.
func (l Layout) StoredFile(path []string) string {
	parts := append([]string{l.StoredDir()}, EncodePath(path)...)
	return filepath.Join(parts...)
}

// CursorFile returns the cursor file tracking the given writer's log for the
// given path. The subtree under read-bytes/<own app id> is private to this
// reader.
func (l Layout) CursorFile(writerAppID string, path []string) string {
	parts := append([]string{l.Base(), readBytesName, l.AppID, writerAppID}, EncodePath(path)...)
	return filepath.Join(parts...)
}

// LogRef identifies one log file discovered in the tree.
type LogRef struct {
	AppID string
	Path  []string
	File  string
}

// EnumerateLogs walks new-entries and returns every log file across all
// writers. The order is stable within a call (lexical walk order). Files
// whose names do not decode are skipped.
func (l Layout) EnumerateLogs() ([]LogRef, error) {
	return enumerateEntryFiles(l.NewEntriesDir())
}

// EnumerateStored walks this instance's stored-entries subtree rooted at the
// given path prefix and returns every stored file below it. If the prefix
// itself names a file, only that file is returned.
func (l Layout) EnumerateStored(prefix []string) ([]LogRef, error) {
	target := l.StoredFile(prefix)
	fi, err := os.Stat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if !fi.IsDir() {
		return []LogRef{{AppID: l.AppID, Path: append([]string(nil), prefix...), File: target}}, nil
	}

	var refs []LogRef
	err = filepath.WalkDir(target, func(file string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if strings.HasSuffix(d.Name(), ".tmp") {
			return nil // leftover from an interrupted atomic write
		}
		rel, err := filepath.Rel(target, file)
		if err != nil {
			return err
		}
		suffix, err := decodeRel(rel)
		if err != nil {
			return nil // undecodable name, not ours
		}
		path := append(append([]string(nil), prefix...), suffix...)
		refs = append(refs, LogRef{AppID: l.AppID, Path: path, File: file})
		return nil
	})
	return refs, err
}

// enumerateEntryFiles walks a per-writer tree (<dir>/<app-id>/<encoded...>).
func enumerateEntryFiles(dir string) ([]LogRef, error) {
	appDirs, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var refs []LogRef
	for _, appDir := range appDirs {
		if !appDir.IsDir() {
			continue
		}
		appID := appDir.Name()
		root := filepath.Join(dir, appID)
		err := filepath.WalkDir(root, func(file string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			if strings.HasSuffix(d.Name(), ".tmp") {
				return nil // leftover from an interrupted atomic write
			}
			rel, err := filepath.Rel(root, file)
			if err != nil {
				return err
			}
			path, err := decodeRel(rel)
			if err != nil {
				return nil // undecodable name, not ours
			}
			refs = append(refs, LogRef{AppID: appID, Path: path, File: file})
			return nil
		})
		if err != nil {
			return refs, err
		}
	}
	return refs, nil
}

func decodeRel(rel string) ([]string, error) {
	names := strings.Split(filepath.ToSlash(rel), "/")
	path := make([]string, len(names))
	for i, name := range names {
		segment, err := DecodeSegment(name)
		if err != nil {
			return nil, err
		}
		path[i] = segment
	}
	return path, nil
}

// ListAppIDs returns the writer identifiers present under new-entries.
func (l Layout) ListAppIDs() ([]string, error) {
	entries, err := os.ReadDir(l.NewEntriesDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}
