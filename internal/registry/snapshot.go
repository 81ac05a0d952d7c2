package registry

import (
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/match"
)

// Entry is one active identity in the working set.
type Entry struct {
	ID          uuid.UUID
	DisplayName string
	Embedding   domain.Embedding
}

// Snapshot is an immutable working set. A new Snapshot is built for every
// change, so a reader holding one never observes a partial update.
type Snapshot struct {
	entries    []Entry
	candidates []match.Candidate
	index      map[uuid.UUID]int
	version    uint64
	builtAt    time.Time
}

func newSnapshot(entries []Entry, version uint64, builtAt time.Time) *Snapshot {
	s := &Snapshot{
		entries:    entries,
		candidates: make([]match.Candidate, len(entries)),
		index:      make(map[uuid.UUID]int, len(entries)),
		version:    version,
		builtAt:    builtAt,
	}
	for i, e := range entries {
		s.candidates[i] = match.Candidate{IdentityID: e.ID, DisplayName: e.DisplayName, Embedding: e.Embedding}
		s.index[e.ID] = i
	}
	return s
}

// NewSnapshot builds a standalone working set from entries, in order.
func NewSnapshot(entries ...Entry) *Snapshot {
	return newSnapshot(append([]Entry(nil), entries...), 0, time.Now())
}

func (s *Snapshot) Len() int {
	return len(s.entries)
}

// Entries returns the working set in iteration order. The slice is shared
// and must not be modified.
func (s *Snapshot) Entries() []Entry {
	return s.entries
}

// Candidates is the working set in the form the match engine consumes,
// in the same order as Entries.
func (s *Snapshot) Candidates() []match.Candidate {
	return s.candidates
}

func (s *Snapshot) Get(id uuid.UUID) (Entry, bool) {
	i, ok := s.index[id]
	if !ok {
		return Entry{}, false
	}
	return s.entries[i], true
}

// Version increases with every published snapshot.
func (s *Snapshot) Version() uint64 {
	return s.version
}

func (s *Snapshot) BuiltAt() time.Time {
	return s.builtAt
}

// Equal reports whether both snapshots hold the same entries in the same order.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s.Len() != other.Len() {
		return false
	}
	for i, e := range s.entries {
		o := other.entries[i]
		if e.ID != o.ID || e.DisplayName != o.DisplayName || !e.Embedding.Equal(o.Embedding) {
			return false
		}
	}
	return true
}

// with returns a copy with entry replaced in place, or appended when new.
func (s *Snapshot) with(entry Entry, version uint64, at time.Time) *Snapshot {
	entries := make([]Entry, len(s.entries), len(s.entries)+1)
	copy(entries, s.entries)
	if i, ok := s.index[entry.ID]; ok {
		entries[i] = entry
	} else {
		entries = append(entries, entry)
	}
	return newSnapshot(entries, version, at)
}

// without returns a copy without id.
func (s *Snapshot) without(id uuid.UUID, version uint64, at time.Time) *Snapshot {
	entries := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.ID != id {
			entries = append(entries, e)
		}
	}
	return newSnapshot(entries, version, at)
}
