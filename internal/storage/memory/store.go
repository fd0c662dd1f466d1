package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/yndnr/canvasvault/internal/core/domain"
	"github.com/yndnr/canvasvault/pkg/cmap"
)

// Store is the in-memory implementation of the store primitives.
type Store struct {
	collections map[domain.Collection]*cmap.Map[string, domain.Record]

	// rootMu serialises the root seed check so two concurrent first reads
	// cannot both seed.
	rootMu     sync.Mutex
	rootSeeded bool
}

// New creates an empty store with the default theme already seeded.
func New() *Store {
	s := &Store{
		collections: make(map[domain.Collection]*cmap.Map[string, domain.Record]),
	}
	for _, c := range domain.Collections() {
		s.collections[c] = cmap.New[string, domain.Record]()
	}
	s.seedTheme()
	return s
}

func (s *Store) seedTheme() {
	if rec, ok := domain.DefaultRecord(domain.CollectionTheme, domain.ThemeID); ok {
		s.collections[domain.CollectionTheme].Set(domain.ThemeID, rec)
	}
}

// Get returns the record stored under id, or nil if there is none.
//
// Reading the root node while it has never existed seeds the default root.
func (s *Store) Get(_ context.Context, c domain.Collection, id string) (domain.Record, error) {
	m, ok := s.collections[c]
	if !ok {
		return nil, nil
	}

	if rec, ok := m.Get(id); ok {
		return rec.Clone(), nil
	}

	if c == domain.CollectionNodes && id == domain.RootNodeID {
		return s.seedRoot(m), nil
	}
	return nil, nil
}

func (s *Store) seedRoot(m *cmap.Map[string, domain.Record]) domain.Record {
	s.rootMu.Lock()
	defer s.rootMu.Unlock()

	if rec, ok := m.Get(domain.RootNodeID); ok {
		return rec.Clone()
	}
	if s.rootSeeded {
		return nil
	}

	rec, ok := domain.DefaultRecord(domain.CollectionNodes, domain.RootNodeID)
	if !ok {
		return nil
	}
	m.Set(domain.RootNodeID, rec)
	s.rootSeeded = true
	return rec.Clone()
}

// Put stores rec under its id, replacing any existing record.
func (s *Store) Put(_ context.Context, c domain.Collection, rec domain.Record) error {
	m, ok := s.collections[c]
	if !ok {
		return domain.ErrUnknownCollection.WithDetails(string(c))
	}

	id, err := rec.ID()
	if err != nil {
		return err
	}

	if c == domain.CollectionNodes && id == domain.RootNodeID {
		s.rootMu.Lock()
		s.rootSeeded = true
		m.Set(id, rec.Clone())
		s.rootMu.Unlock()
		return nil
	}

	m.Set(id, rec.Clone())
	return nil
}

// Delete removes the record stored under id. Deleting a missing record
// or using an unknown collection is a no-op.
func (s *Store) Delete(_ context.Context, c domain.Collection, id string) error {
	if m, ok := s.collections[c]; ok {
		m.Delete(id)
	}
	return nil
}

// ListKeys returns the ids stored in c in ascending order. Unknown
// collections yield an empty slice.
func (s *Store) ListKeys(_ context.Context, c domain.Collection) ([]string, error) {
	m, ok := s.collections[c]
	if !ok {
		return []string{}, nil
	}
	keys := m.Keys()
	sort.Strings(keys)
	return keys, nil
}

// Clear removes every record in c. Clearing the theme restores the
// default theme; clearing nodes re-arms root seeding.
func (s *Store) Clear(_ context.Context, c domain.Collection) error {
	m, ok := s.collections[c]
	if !ok {
		return nil
	}

	switch c {
	case domain.CollectionTheme:
		m.Clear()
		s.seedTheme()
	case domain.CollectionNodes:
		s.rootMu.Lock()
		m.Clear()
		s.rootSeeded = false
		s.rootMu.Unlock()
	default:
		m.Clear()
	}
	return nil
}

// Count returns the number of records in c.
func (s *Store) Count(c domain.Collection) int {
	if m, ok := s.collections[c]; ok {
		return m.Count()
	}
	return 0
}

// GetTheme returns the stored theme. The theme is always present.
func (s *Store) GetTheme(ctx context.Context) (*domain.Theme, error) {
	rec, _ := s.Get(ctx, domain.CollectionTheme, domain.ThemeID)
	if rec == nil {
		return domain.DefaultTheme(), nil
	}
	var theme domain.Theme
	if err := rec.Decode(&theme); err != nil {
		return nil, err
	}
	return &theme, nil
}

// SaveTheme stores the theme record.
func (s *Store) SaveTheme(ctx context.Context, theme *domain.Theme) error {
	t := *theme
	t.ID = domain.ThemeID
	rec, err := domain.NewRecord(&t)
	if err != nil {
		return err
	}
	return s.Put(ctx, domain.CollectionTheme, rec)
}

// GetImage returns the image payload stored under id.
// The boolean is false when no image exists.
func (s *Store) GetImage(ctx context.Context, id string) (string, bool, error) {
	rec, _ := s.Get(ctx, domain.CollectionImages, id)
	if rec == nil {
		return "", false, nil
	}
	var img domain.Image
	if err := rec.Decode(&img); err != nil {
		return "", false, err
	}
	return img.Data, true, nil
}

// SaveImage stores an image payload under id.
func (s *Store) SaveImage(ctx context.Context, id, data string) error {
	rec, err := domain.NewRecord(&domain.Image{ID: id, Data: data})
	if err != nil {
		return err
	}
	return s.Put(ctx, domain.CollectionImages, rec)
}

// DeleteImage removes the image stored under id.
func (s *Store) DeleteImage(ctx context.Context, id string) error {
	return s.Delete(ctx, domain.CollectionImages, id)
}
