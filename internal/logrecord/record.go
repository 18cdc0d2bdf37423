// Package logrecord defines the canonical log record, its wire codec, and
// the UTF-8-safe truncation rule applied before persistence.
package logrecord

import (
	"encoding/json"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// Record is the unit of ingestion and persistence.
//
// ID is the storage-assigned row key; it is never part of the wire
// format (producers never send it, the API never returns it).
type Record struct {
	ID         int64   `json:"-"`
	Level      string  `json:"level"`
	Message    string  `json:"message"`
	Target     string  `json:"target"`
	ModulePath *string `json:"module_path,omitempty"`
	File       *string `json:"file,omitempty"`
	Line       *int64  `json:"line,omitempty"`
	Hash       string  `json:"hash"`
	Timestamp  string  `json:"timestamp"`
}

// Decode parses one JSON object from line into a Record.
//
// Before paying for a full json.Unmarshal, it uses gjson to cheaply
// reject lines that are not a JSON object or carry no hash — the
// overwhelmingly common case for a malformed or partial line on a
// busy ingestion socket. Missing timestamp is defaulted to the
// current UTC instant in RFC3339Nano. A malformed line or one with
// no hash returns ok=false; the caller drops it silently and keeps
// reading the connection.
func Decode(line []byte) (rec Record, ok bool) {
	if !gjson.ValidBytes(line) {
		return Record{}, false
	}
	if hash := gjson.GetBytes(line, "hash"); !hash.Exists() || hash.String() == "" {
		return Record{}, false
	}

	if err := json.Unmarshal(line, &rec); err != nil {
		return Record{}, false
	}
	if rec.Hash == "" {
		return Record{}, false
	}

	if rec.Timestamp == "" {
		rec.Timestamp = nowUTC()
	} else if normalized, ok := normalizeUTC(rec.Timestamp); ok {
		rec.Timestamp = normalized
	} else {
		rec.Timestamp = nowUTC()
	}

	return rec, true
}

// nowUTC returns the current instant formatted as RFC3339Nano in UTC.
var nowUTC = func() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// normalizeUTC parses an RFC3339 timestamp and re-renders it in UTC so
// that lexicographic string comparison against other stored timestamps
// matches chronological order. Range queries only compare correctly
// when every stored timestamp shares this fixed offset.
func normalizeUTC(ts string) (string, bool) {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		t, err = time.Parse(time.RFC3339, ts)
		if err != nil {
			return "", false
		}
	}
	return t.UTC().Format(time.RFC3339Nano), true
}

// Truncate returns the longest UTF-8-valid prefix of s whose byte
// length is <= maxBytes, walking backward from the cap to the nearest
// rune boundary so no partial code point is ever persisted.
func Truncate(s string, maxBytes int) string {
	if maxBytes <= 0 {
		return ""
	}
	if len(s) <= maxBytes {
		return s
	}

	end := maxBytes
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	return s[:end]
}
