package profile

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-eyedid/pkg/engine"
)

// JSONStore implements Store using a JSON file for persistence.
type JSONStore struct {
	path     string
	profiles map[string]*Profile
	mu       sync.RWMutex
}

// storeData is the JSON structure for the store file.
type storeData struct {
	Version   int       `json:"version"`
	UpdatedAt string    `json:"updated_at"`
	Profiles  []*record `json:"profiles"`
}

// record is a profile as written to disk. Version 1 files carry the blob as
// JSON numbers in Data, which cannot hold NaN or Inf. Version 2 writes the
// IEEE 754 bits of each value so any blob round-trips exactly.
type record struct {
	ID        string                     `json:"id"`
	Name      string                     `json:"name"`
	Points    engine.CalibrationPoints   `json:"points"`
	Accuracy  engine.CalibrationAccuracy `json:"accuracy"`
	Data      []float32                  `json:"data,omitempty"`
	Bits      []uint32                   `json:"bits"`
	CreatedAt time.Time                  `json:"created_at"`
}

const currentVersion = 2

func toRecord(p *Profile) *record {
	bits := make([]uint32, len(p.Data))
	for i, v := range p.Data {
		bits[i] = math.Float32bits(v)
	}
	return &record{
		ID:        p.ID,
		Name:      p.Name,
		Points:    p.Points,
		Accuracy:  p.Accuracy,
		Bits:      bits,
		CreatedAt: p.CreatedAt,
	}
}

func (r *record) profile(version int) *Profile {
	data := make([]float32, 0, len(r.Bits))
	if version < 2 {
		data = append(data, r.Data...)
	} else {
		for _, b := range r.Bits {
			data = append(data, math.Float32frombits(b))
		}
	}
	return &Profile{
		ID:        r.ID,
		Name:      r.Name,
		Points:    r.Points,
		Accuracy:  r.Accuracy,
		Data:      data,
		CreatedAt: r.CreatedAt,
	}
}

// NewJSONStore opens the store at path. The file is created on first save.
func NewJSONStore(path string) (*JSONStore, error) {
	store := &JSONStore{
		path:     path,
		profiles: make(map[string]*Profile),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		if err := store.load(); err != nil {
			return nil, fmt.Errorf("failed to load store: %w", err)
		}
	}

	return store, nil
}

func (s *JSONStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var stored storeData
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	if stored.Version > currentVersion {
		return fmt.Errorf("unsupported store version %d", stored.Version)
	}

	s.profiles = make(map[string]*Profile, len(stored.Profiles))
	for _, r := range stored.Profiles {
		s.profiles[r.ID] = r.profile(stored.Version)
	}
	return nil
}

// save writes the store to disk. Caller holds the write lock.
func (s *JSONStore) save() error {
	sorted := s.sortedLocked()
	stored := storeData{
		Version:   currentVersion,
		UpdatedAt: time.Now().Format(time.RFC3339),
		Profiles:  make([]*record, len(sorted)),
	}
	for i, p := range sorted {
		stored.Profiles[i] = toRecord(p)
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	// Write to temp file first, then rename
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func (s *JSONStore) sortedLocked() []*Profile {
	out := make([]*Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func clone(p *Profile) *Profile {
	c := *p
	c.Data = append([]float32{}, p.Data...)
	return &c
}

// Save creates or replaces a profile. If the file cannot be written the
// store is left as it was.
func (s *JSONStore) Save(p *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.Name == "" {
		p.Name = p.CreatedAt.Format("2006-01-02 15:04:05")
	}

	prev, existed := s.profiles[p.ID]
	s.profiles[p.ID] = clone(p)
	if err := s.save(); err != nil {
		if existed {
			s.profiles[p.ID] = prev
		} else {
			delete(s.profiles, p.ID)
		}
		return err
	}
	return nil
}

// Get retrieves a profile by ID.
func (s *JSONStore) Get(id string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return clone(p), nil
}

// Latest returns the newest profile.
func (s *JSONStore) Latest() (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sorted := s.sortedLocked()
	if len(sorted) == 0 {
		return nil, ErrNotFound
	}
	return clone(sorted[0]), nil
}

// List returns all profiles, newest first.
func (s *JSONStore) List() ([]*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sorted := s.sortedLocked()
	out := make([]*Profile, len(sorted))
	for i, p := range sorted {
		out[i] = clone(p)
	}
	return out, nil
}

// Delete removes a profile by ID.
func (s *JSONStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.profiles[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.profiles, id)
	if err := s.save(); err != nil {
		s.profiles[id] = prev
		return err
	}
	return nil
}

// Count returns the number of profiles.
func (s *JSONStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles)
}

// Path returns the file path of the store.
func (s *JSONStore) Path() string {
	return s.path
}
