// Package audit keeps Process Decision Records (PDRs) of tool invocations.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCapacity is the number of records kept when none is configured.
const DefaultCapacity = 500

// PDREntry is one recorded decision.
type PDREntry struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	InputsHash string    `json:"inputs_hash"`
	Outcome    string    `json:"outcome"`
	Code       string    `json:"code,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// PDRWriter keeps the most recent records in memory, oldest evicted first.
// Records never reach the database, so a rejected call leaves no trace in
// persisted state. It is safe for concurrent use.
type PDRWriter struct {
	mu      sync.Mutex
	entries []PDREntry
	next    int
	full    bool
	now     func() time.Time
}

// NewPDRWriter creates a writer holding up to capacity records.
func NewPDRWriter(capacity int) *PDRWriter {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &PDRWriter{entries: make([]PDREntry, capacity), now: time.Now}
}

// Record stores a PDR entry for an action.
func (w *PDRWriter) Record(action string, inputs any, outcome, code string) {
	entry := PDREntry{
		ID:         uuid.New().String(),
		Action:     action,
		InputsHash: hashInputs(inputs),
		Outcome:    outcome,
		Code:       code,
		Timestamp:  w.now().UTC(),
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries[w.next] = entry
	w.next = (w.next + 1) % len(w.entries)
	if w.next == 0 {
		w.full = true
	}
}

// Recent returns up to limit records, newest first. A limit of zero or less
// returns everything held.
func (w *PDRWriter) Recent(limit int) []PDREntry {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := w.next
	if w.full {
		n = len(w.entries)
	}
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]PDREntry, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (w.next - 1 - i + len(w.entries)) % len(w.entries)
		out = append(out, w.entries[idx])
	}
	return out
}

// Len returns the number of records held.
func (w *PDRWriter) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.full {
		return len(w.entries)
	}
	return w.next
}

// hashInputs creates a SHA256 hash of the inputs for reproducibility.
func hashInputs(inputs any) string {
	data, err := json.Marshal(inputs)
	if err != nil {
		return "hash_error"
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
