// Package decsync synchronizes key/value mappings over a shared directory
// tree, typically one replicated by an external file synchronization
// service. There is no server and no network: every writer appends to its
// own log files, every reader merges all logs, and concurrent updates to the
// same key resolve conflict-free to the most recent value.
//
// Every entry consists of a path, a key and a value. The path is a list of
// strings locating the mapping the entry belongs to; it is also used to
// construct a path in the file system. To update an entry, use SetEntry, or
// SetEntriesForPath / SetEntries when updating several keys at once.
//
// To get notified about updated entries, register listeners with AddListener
// and drive them with ExecuteAllNewEntries. Updates that cannot be applied
// immediately can be replayed later from the stored-entries view with
// ExecuteStoredEntry and its variants; InitStoredEntries rebuilds that view,
// which is mostly useful when an application is (re)installed.
package decsync

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klauern/decsync/internal/codec"
	"github.com/klauern/decsync/internal/infofile"
	"github.com/klauern/decsync/internal/layout"
	"github.com/klauern/decsync/internal/logfile"
	"github.com/klauern/decsync/internal/logging"
	"github.com/klauern/decsync/internal/util"
)

var (
	// ErrInvalidInfo reports a .decsync-info file that exists but does not
	// parse as the expected JSON shape.
	ErrInvalidInfo = infofile.ErrInvalidInfo

	// ErrUnsupportedVersion reports a DecSync directory of a version this
	// library does not support.
	ErrUnsupportedVersion = infofile.ErrUnsupportedVersion
)

// Decsync is one reader/writer instance bound to a DecSync directory, sync
// type, optional collection and app id. A single instance may be shared
// between goroutines; all operations serialize on an internal lock. Two live
// instances must never share an app id against the same directory.
type Decsync struct {
	mu        sync.Mutex
	layout    layout.Layout
	listeners []listener
}

// New creates a Decsync instance.
//
// decsyncDir is the shared directory; when empty, DefaultDir() is used.
// collection is an optional sub-namespace of syncType and may be empty.
// ownAppID identifies this application instance; use GetAppID or
// GetAppIDWithID for the conventional value.
//
// The .decsync-info version gate runs here: a missing info file is created,
// a malformed one fails with ErrInvalidInfo, an unsupported version with
// ErrUnsupportedVersion.
func New(decsyncDir, syncType, collection, ownAppID string) (*Decsync, error) {
	if decsyncDir == "" {
		decsyncDir = util.DefaultDecsyncDir()
	}
	if syncType == "" {
		return nil, errors.New("decsync: sync type must not be empty")
	}
	if ownAppID == "" {
		return nil, errors.New("decsync: app id must not be empty")
	}
	if err := infofile.Check(decsyncDir); err != nil {
		return nil, err
	}
	// Advisory only; failure to record activity never blocks opening.
	if err := infofile.TouchLastActive(decsyncDir, ownAppID); err != nil {
		logging.Warn("could not record last-active",
			logging.AppID(ownAppID),
			logging.Err(err),
		)
	}
	return &Decsync{
		layout: layout.New(decsyncDir, syncType, collection, ownAppID),
	}, nil
}

// AppID returns the app id this instance writes under.
func (d *Decsync) AppID() string {
	return d.layout.AppID
}

// SetEntry associates value with key in the map at path and stamps the
// current datetime. The update is picked up by other instances when they
// execute new entries.
func (d *Decsync) SetEntry(path []string, key, value string) error {
	return d.SetEntriesForPath(path, []Entry{NewEntry(key, value)})
}

// SetEntriesForPath writes several entries sharing one path as a single
// appended batch. This is more efficient than repeated SetEntry calls.
func (d *Decsync) SetEntriesForPath(path []string, entries []Entry) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.appendEntries(path, entries)
}

// SetEntries writes entries that may have different paths. Entries sharing a
// path are batched together.
func (d *Decsync) SetEntries(entries []EntryWithPath) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Group by path, preserving first-seen order.
	var order []string
	groups := make(map[string][]EntryWithPath)
	for _, e := range entries {
		pk := layout.PathKey(e.Path)
		if _, ok := groups[pk]; !ok {
			order = append(order, pk)
		}
		groups[pk] = append(groups[pk], e)
	}
	for _, pk := range order {
		group := groups[pk]
		batch := make([]Entry, len(group))
		for i, e := range group {
			batch[i] = e.Entry
		}
		if err := d.appendEntries(group[0].Path, batch); err != nil {
			return err
		}
	}
	return nil
}

// appendEntries appends one batch to the instance's own log for path.
// Callers hold the lock.
func (d *Decsync) appendEntries(path []string, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = codec.Format(codec.Line{Datetime: e.Datetime, Key: e.Key, Value: e.Value})
	}
	file := d.layout.OwnLogFile(path)
	if err := logfile.Append(file, lines); err != nil {
		return fmt.Errorf("decsync: append entries: %w", err)
	}
	logging.Debug("appended entries",
		logging.AppID(d.layout.AppID),
		logging.Path(file),
		logging.Count(len(entries)),
	)
	return nil
}

// mergeKey identifies one (path, key) slot during a merge.
type mergeKey struct {
	pathKey string
	key     string
}

// tagged is an entry together with the writer it came from.
type tagged struct {
	line  codec.Line
	appID string
}

// winner is the currently dominating entry for a merge slot, remembering
// which scanned file and line it came from.
type winner struct {
	tagged
	stateIdx int
	lineN    int
	path     []string
}

// logState tracks one log file across a single execute pass.
type logState struct {
	ref        layout.LogRef
	cursorFile string
	start      int
	newCursor  int
	lines      []logfile.Line
	parsed     []codec.Line
}

// ExecuteAllNewEntries scans every log file in the tree for lines past this
// reader's cursors, merges them per (path, key) keeping the most recent
// entry, dispatches each winning entry to the matching listeners exactly
// once, updates the stored-entries view, and finally persists the advanced
// cursors.
//
// extra is passed through to the listeners unchanged.
func (d *Decsync) ExecuteAllNewEntries(extra any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer logging.Timer("execute-all-new-entries")()

	refs, err := d.layout.EnumerateLogs()
	if err != nil {
		return fmt.Errorf("decsync: enumerate logs: %w", err)
	}

	var states []*logState
	winners := make(map[mergeKey]winner)

	for _, ref := range refs {
		cursorFile := d.layout.CursorFile(ref.AppID, ref.Path)
		start := logfile.LoadCursor(cursorFile)
		lines, err := logfile.ReadFrom(ref.File, start)
		if err != nil {
			logging.Warn("skipping unreadable log",
				logging.Path(ref.File),
				logging.Err(err),
			)
			continue
		}
		if len(lines) == 0 {
			continue
		}

		st := &logState{ref: ref, cursorFile: cursorFile, start: start}
		idx := len(states)
		pk := layout.PathKey(ref.Path)
		for _, ln := range lines {
			parsed, err := codec.Parse(ln.Text)
			if err != nil {
				// Counted toward the cursor, but never delivered.
				logging.Warn("skipping corrupt log line",
					logging.Path(ref.File),
					logging.Line(ln.N),
				)
				continue
			}
			st.lines = append(st.lines, ln)
			st.parsed = append(st.parsed, parsed)

			k := mergeKey{pathKey: pk, key: parsed.Key}
			w, ok := winners[k]
			switch {
			case !ok,
				dominates(parsed.Datetime, ref.AppID, w.line.Datetime, w.appID):
				winners[k] = winner{
					tagged:   tagged{line: parsed, appID: ref.AppID},
					stateIdx: idx,
					lineN:    ln.N,
					path:     ref.Path,
				}
			case parsed.Datetime == w.line.Datetime && ref.AppID == w.appID:
				// Same writer, same datetime: append order decides.
				winners[k] = winner{
					tagged:   tagged{line: parsed, appID: ref.AppID},
					stateIdx: idx,
					lineN:    ln.N,
					path:     ref.Path,
				}
			}
		}
		st.newCursor = lines[len(lines)-1].N
		states = append(states, st)
	}

	// Dispatch winning entries file by file in scan order. Losing lines are
	// suppressed intermediates: they count as consumed without a callback.
	var applied []winner
	for idx, st := range states {
		pk := layout.PathKey(st.ref.Path)
		for i, parsed := range st.parsed {
			w, ok := winners[mergeKey{pathKey: pk, key: parsed.Key}]
			if !ok || w.stateIdx != idx || w.lineN != st.lines[i].N {
				continue
			}
			if !d.notifyListeners(st.ref.Path, parsed.Datetime, parsed.Key, parsed.Value, extra) {
				// Freeze before the failed line; later lines in this file
				// stay pending for the next call.
				st.newCursor = st.lines[i].N - 1
				logging.Debug("listener deferred entry",
					logging.Path(st.ref.File),
					logging.Line(st.lines[i].N),
				)
				break
			}
			applied = append(applied, w)
		}
	}

	d.updateStoredView(applied)

	// Cursors move only after the listeners returned.
	for _, st := range states {
		if st.newCursor == st.start {
			continue
		}
		if err := logfile.StoreCursor(st.cursorFile, st.newCursor); err != nil {
			logging.Warn("could not persist cursor",
				logging.Path(st.cursorFile),
				logging.Err(err),
			)
		}
	}
	return nil
}

// LatestAppID returns the app id that stored the most recent entry anywhere
// in the tree, preferring this instance's own app id on a tie. Unreadable
// files are skipped; with no entries at all, the own app id is returned.
func (d *Decsync) LatestAppID() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	own := d.layout.AppID
	refs, err := d.layout.EnumerateLogs()
	if err != nil {
		logging.Warn("could not enumerate logs", logging.Err(err))
		return own
	}

	best, bestDt := own, ""
	for _, ref := range refs {
		lines, err := logfile.ReadFrom(ref.File, 0)
		if err != nil {
			continue
		}
		for _, ln := range lines {
			parsed, err := codec.Parse(ln.Text)
			if err != nil {
				continue
			}
			switch {
			case parsed.Datetime > bestDt:
				best, bestDt = ref.AppID, parsed.Datetime
			case parsed.Datetime == bestDt && best != own:
				if ref.AppID == own || ref.AppID > best {
					best = ref.AppID
				}
			}
		}
	}
	return best
}

// InitDone marks every log line currently in the tree as consumed without
// dispatching any listener. Call it after an install-time InitStoredEntries
// plus ExecuteStoredEntries sequence, so the history already materialized
// through the stored view is not delivered a second time.
func (d *Decsync) InitDone() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	refs, err := d.layout.EnumerateLogs()
	if err != nil {
		return fmt.Errorf("decsync: enumerate logs: %w", err)
	}
	for _, ref := range refs {
		n, err := logfile.CountLines(ref.File)
		if err != nil {
			logging.Warn("skipping unreadable log",
				logging.Path(ref.File),
				logging.Err(err),
			)
			continue
		}
		cursorFile := d.layout.CursorFile(ref.AppID, ref.Path)
		if err := logfile.StoreCursor(cursorFile, n); err != nil {
			return fmt.Errorf("decsync: persist cursor: %w", err)
		}
	}
	return nil
}
