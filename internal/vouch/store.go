package vouch

import (
	"encoding/json"
	"math/rand"
	"os"
	"sync"
	"time"
)

// refAlphabet skips easily confused characters (0/O, 1/I/L).
const refAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const refLen = 4

// Record is one anonymous review. Ref is an opaque code shown alongside the
// review; it carries no link back to the buyer.
type Record struct {
	Stars   int       `json:"stars"`
	Comment string    `json:"comment,omitempty"`
	At      time.Time `json:"at"`
	Ref     string    `json:"ref"`
}

// NewRef returns a short opaque reference code.
func NewRef() string {
	b := make([]byte, refLen)
	for i := range b {
		b[i] = refAlphabet[rand.Intn(len(refAlphabet))]
	}
	return string(b)
}

// Store persists reviews as a JSON file, newest first. Every append reads the
// full list and rewrites the file. A missing or corrupt file reads as empty.
type Store struct {
	mu   sync.Mutex
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) readAll() []Record {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil
	}
	return records
}

// Append prepends the record and rewrites the file.
func (s *Store) Append(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := append([]Record{r}, s.readAll()...)
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}

// List returns up to limit reviews, newest first. limit <= 0 means all.
func (s *Store) List(limit int) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.readAll()
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records
}
