package decsync

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauern/decsync/internal/codec"
	"github.com/klauern/decsync/internal/layout"
	"github.com/klauern/decsync/internal/logfile"
	"github.com/klauern/decsync/internal/logging"
)

// The stored-entries view materializes, per (path, key), the winning value
// observed so far. Its files reuse the log-line format but hold each key at
// most once and are rewritten in place; the tree is private to the owning
// app id, so rewrites are safe.
//
// The format has no app-id column. A record loaded from disk therefore
// compares with an empty app id, the lexicographic minimum: an incoming
// entry with an equal datetime from any real writer replaces it.

// readStoredFile loads a stored file into a key-indexed map. A missing file
// reads as empty.
func readStoredFile(file string) (map[string]codec.Line, error) {
	lines, err := logfile.ReadFrom(file, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]codec.Line{}, nil
		}
		return nil, err
	}
	m := make(map[string]codec.Line, len(lines))
	for _, ln := range lines {
		parsed, err := codec.Parse(ln.Text)
		if err != nil {
			logging.Warn("skipping corrupt stored line",
				logging.Path(file),
				logging.Line(ln.N),
			)
			continue
		}
		m[parsed.Key] = parsed
	}
	return m, nil
}

// writeStoredFile rewrites a stored file atomically, keys in sorted order.
func writeStoredFile(file string, m map[string]codec.Line) error {
	if err := os.MkdirAll(filepath.Dir(file), 0o750); err != nil {
		return fmt.Errorf("create stored directory: %w", err)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(codec.Format(m[k]))
	}
	tmp := file + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write stored file: %w", err)
	}
	if err := os.Rename(tmp, file); err != nil {
		return fmt.Errorf("commit stored file: %w", err)
	}
	return nil
}

// updateStoredView folds applied entries into the stored files, path by
// path. Failures are logged and swallowed: the view is a cache that
// InitStoredEntries can always rebuild.
func (d *Decsync) updateStoredView(applied []winner) {
	var order []string
	groups := make(map[string][]winner)
	for _, w := range applied {
		pk := layout.PathKey(w.path)
		if _, ok := groups[pk]; !ok {
			order = append(order, pk)
		}
		groups[pk] = append(groups[pk], w)
	}

	for _, pk := range order {
		group := groups[pk]
		file := d.layout.StoredFile(group[0].path)
		m, err := readStoredFile(file)
		if err != nil {
			logging.Warn("could not read stored file",
				logging.Path(file),
				logging.Err(err),
			)
			continue
		}
		changed := false
		for _, w := range group {
			cur, ok := m[w.line.Key]
			if ok && !dominates(w.line.Datetime, w.appID, cur.Datetime, "") {
				continue
			}
			m[w.line.Key] = w.line
			changed = true
		}
		if !changed {
			continue
		}
		if err := writeStoredFile(file, m); err != nil {
			logging.Warn("could not update stored file",
				logging.Path(file),
				logging.Err(err),
			)
		}
	}
}

// InitStoredEntries rebuilds the stored-entries view from the union of all
// log files, without invoking any listener and without touching the
// sequence cursors. This is the one operation that can shrink the view:
// entries whose source logs have disappeared are dropped.
func (d *Decsync) InitStoredEntries() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer logging.Timer("init-stored-entries")()

	if err := os.RemoveAll(d.layout.StoredDir()); err != nil {
		return fmt.Errorf("decsync: clear stored view: %w", err)
	}

	refs, err := d.layout.EnumerateLogs()
	if err != nil {
		return fmt.Errorf("decsync: enumerate logs: %w", err)
	}

	winners := make(map[mergeKey]winner)
	var order []string
	paths := make(map[string][]string)
	for _, ref := range refs {
		lines, err := logfile.ReadFrom(ref.File, 0)
		if err != nil {
			logging.Warn("skipping unreadable log",
				logging.Path(ref.File),
				logging.Err(err),
			)
			continue
		}
		pk := layout.PathKey(ref.Path)
		for _, ln := range lines {
			parsed, err := codec.Parse(ln.Text)
			if err != nil {
				logging.Warn("skipping corrupt log line",
					logging.Path(ref.File),
					logging.Line(ln.N),
				)
				continue
			}
			k := mergeKey{pathKey: pk, key: parsed.Key}
			w, ok := winners[k]
			if ok && !dominates(parsed.Datetime, ref.AppID, w.line.Datetime, w.appID) {
				if parsed.Datetime != w.line.Datetime || ref.AppID != w.appID {
					continue
				}
				// Same writer, same datetime: append order decides.
			}
			if _, ok := paths[pk]; !ok {
				order = append(order, pk)
				paths[pk] = ref.Path
			}
			winners[k] = winner{tagged: tagged{line: parsed, appID: ref.AppID}, path: ref.Path}
		}
	}

	for _, pk := range order {
		m := make(map[string]codec.Line)
		for k, w := range winners {
			if k.pathKey == pk {
				m[k.key] = w.line
			}
		}
		if err := writeStoredFile(d.layout.StoredFile(paths[pk]), m); err != nil {
			return fmt.Errorf("decsync: %w", err)
		}
	}
	return nil
}

// ExecuteStoredEntry looks up (path, key) in the stored view and dispatches
// it to the matching listeners with its stored datetime. Absent entries are
// ignored.
func (d *Decsync) ExecuteStoredEntry(path []string, key string, extra any) error {
	return d.ExecuteStoredEntriesForPathExact(path, []string{key}, extra)
}

// ExecuteStoredEntries dispatches a batch of stored entries. Entries sharing
// a path are read together.
func (d *Decsync) ExecuteStoredEntries(storedEntries []StoredEntry, extra any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var order []string
	groups := make(map[string][]StoredEntry)
	for _, se := range storedEntries {
		pk := layout.PathKey(se.Path)
		if _, ok := groups[pk]; !ok {
			order = append(order, pk)
		}
		groups[pk] = append(groups[pk], se)
	}
	for _, pk := range order {
		group := groups[pk]
		keys := make([]string, len(group))
		for i, se := range group {
			keys[i] = se.Key
		}
		if err := d.executeStoredFile(group[0].Path, keys, extra); err != nil {
			return err
		}
	}
	return nil
}

// ExecuteStoredEntriesForPathExact dispatches the stored entries at exactly
// path whose key is in keys.
func (d *Decsync) ExecuteStoredEntriesForPathExact(path []string, keys []string, extra any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.executeStoredFile(path, keys, extra)
}

// ExecuteAllStoredEntriesForPathExact dispatches every stored entry at
// exactly path.
func (d *Decsync) ExecuteAllStoredEntriesForPathExact(path []string, extra any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.executeStoredFile(path, nil, extra)
}

// ExecuteStoredEntriesForPathPrefix dispatches stored entries whose path has
// the given prefix and whose key is in keys.
func (d *Decsync) ExecuteStoredEntriesForPathPrefix(path []string, keys []string, extra any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.executeStoredPrefix(path, keys, extra)
}

// ExecuteAllStoredEntriesForPathPrefix dispatches every stored entry whose
// path has the given prefix.
func (d *Decsync) ExecuteAllStoredEntriesForPathPrefix(path []string, extra any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.executeStoredPrefix(path, nil, extra)
}

// executeStoredPrefix walks the stored subtree under prefix. Callers hold
// the lock.
func (d *Decsync) executeStoredPrefix(prefix []string, keys []string, extra any) error {
	refs, err := d.layout.EnumerateStored(prefix)
	if err != nil {
		return fmt.Errorf("decsync: enumerate stored entries: %w", err)
	}
	for _, ref := range refs {
		if err := d.executeStoredFile(ref.Path, keys, extra); err != nil {
			return err
		}
	}
	return nil
}

// executeStoredFile dispatches entries from one stored file. A nil keys
// slice dispatches all of them. Callers hold the lock.
func (d *Decsync) executeStoredFile(path []string, keys []string, extra any) error {
	m, err := readStoredFile(d.layout.StoredFile(path))
	if err != nil {
		return fmt.Errorf("decsync: read stored entries: %w", err)
	}
	if len(m) == 0 {
		return nil
	}

	var selected []string
	if keys == nil {
		for k := range m {
			selected = append(selected, k)
		}
		sort.Strings(selected)
	} else {
		for _, k := range keys {
			if _, ok := m[k]; ok {
				selected = append(selected, k)
			}
		}
	}
	for _, k := range selected {
		ln := m[k]
		// Success reporting has no cursor to freeze here; a stored replay
		// can simply be issued again.
		d.notifyListeners(path, ln.Datetime, ln.Key, ln.Value, extra)
	}
	return nil
}
