package decsync

import "github.com/klauern/decsync/internal/codec"

// Entry is a key/value pair stored by DecSync together with the datetime it
// was written. Key and value are opaque strings, canonical JSON by
// convention; the engine only ever compares them for equality. An entry does
// not store its path, see EntryWithPath.
type Entry struct {
	Datetime string
	Key      string
	Value    string
}

// NewEntry creates an entry stamped with the current UTC datetime.
func NewEntry(key, value string) Entry {
	return Entry{Datetime: codec.Now(), Key: key, Value: value}
}

// EntryWithPath is an Entry together with the path of the map it belongs to.
type EntryWithPath struct {
	Path []string
	Entry
}

// NewEntryWithPath creates an entry for the given path stamped with the
// current UTC datetime.
func NewEntryWithPath(path []string, key, value string) EntryWithPath {
	return EntryWithPath{Path: path, Entry: NewEntry(key, value)}
}

// StoredEntry identifies an entry in the stored view by path and key. It
// does not hold a value, as the value is unknown until retrieval.
type StoredEntry struct {
	Path []string
	Key  string
}

// NewStoredEntry creates a stored-entry reference.
func NewStoredEntry(path []string, key string) StoredEntry {
	return StoredEntry{Path: path, Key: key}
}

// dominates reports whether entry (datetime, appID) beats (otherDatetime,
// otherAppID) under the total order used for merging: later datetime wins,
// equal datetimes fall back to the lexicographically greater app id.
func dominates(datetime, appID, otherDatetime, otherAppID string) bool {
	if datetime != otherDatetime {
		return datetime > otherDatetime
	}
	return appID > otherAppID
}
