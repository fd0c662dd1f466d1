package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/canvasvault/internal/core/domain"
)

const (
	filePrefix    = "snapshot-"
	fileExtension = ".json"

	DefaultRetentionCount = 5
	DefaultRetentionDays  = 7
)

// Config configures the snapshot manager.
type Config struct {
	Dir string

	// RetentionCount keeps the newest N files. Zero uses the default,
	// a negative value disables count-based retention.
	RetentionCount int

	// RetentionDays keeps files younger than N days. Zero uses the
	// default, a negative value disables age-based retention.
	RetentionDays int
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:            dir,
		RetentionCount: DefaultRetentionCount,
		RetentionDays:  DefaultRetentionDays,
	}
}

// Manager stores encoded documents as files in one directory.
type Manager struct {
	cfg Config
}

// NewManager creates the directory if needed.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("snapshot: dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("snapshot: create dir: %w", err)
	}
	if cfg.RetentionCount == 0 {
		cfg.RetentionCount = DefaultRetentionCount
	}
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = DefaultRetentionDays
	}
	return &Manager{cfg: cfg}, nil
}

// Info contains metadata about a stored snapshot.
type Info struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Size      int64     `json:"size" table:"bytes"`
	Path      string    `json:"path" table:"wide"`

	// Checksum is the hex SHA-256 of the file. It is empty in List results.
	Checksum string `json:"checksum,omitempty" table:"wide"`
}

// Save encodes doc and writes it atomically to a new file.
func (m *Manager) Save(doc *Document) (*Info, error) {
	data, err := Encode(doc)
	if err != nil {
		return nil, err
	}
	return m.SaveRaw(data)
}

// SaveRaw writes an already encoded document atomically to a new file.
func (m *Manager) SaveRaw(data []byte) (*Info, error) {
	id := ulid.Make()
	name := filePrefix + id.String() + fileExtension

	tempPath := filepath.Join(m.cfg.Dir, name+".tmp")
	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("snapshot: create temp file: %w", err)
	}
	defer os.Remove(tempPath)

	hash := sha256.New()
	writer := io.MultiWriter(file, hash)

	if _, err := writer.Write(data); err != nil {
		file.Close()
		return nil, fmt.Errorf("snapshot: write: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return nil, fmt.Errorf("snapshot: sync: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("snapshot: close: %w", err)
	}

	finalPath := filepath.Join(m.cfg.Dir, name)
	if err := os.Rename(tempPath, finalPath); err != nil {
		return nil, fmt.Errorf("snapshot: rename: %w", err)
	}

	return &Info{
		ID:        id.String(),
		CreatedAt: ulid.Time(id.Time()),
		Size:      int64(len(data)),
		Path:      finalPath,
		Checksum:  hex.EncodeToString(hash.Sum(nil)),
	}, nil
}

// List returns stored snapshots, newest first.
func (m *Manager) List() ([]*Info, error) {
	entries, err := os.ReadDir(m.cfg.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var infos []*Info
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileExtension) {
			continue
		}
		id, err := ulid.ParseStrict(strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileExtension))
		if err != nil {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, &Info{
			ID:        id.String(),
			CreatedAt: ulid.Time(id.Time()),
			Size:      fi.Size(),
			Path:      filepath.Join(m.cfg.Dir, name),
		})
	}

	// ULIDs sort by creation time.
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID > infos[j].ID })
	return infos, nil
}

// Latest returns the newest snapshot.
func (m *Manager) Latest() (*Info, error) {
	infos, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, domain.ErrSnapshotNotFound.WithDetails("no snapshots available")
	}
	return infos[0], nil
}

// Read returns the contents of the snapshot with the given id along with
// its checksum.
func (m *Manager) Read(id string) ([]byte, *Info, error) {
	parsed, err := ulid.ParseStrict(id)
	if err != nil {
		return nil, nil, domain.ErrSnapshotNotFound.WithDetails(id)
	}

	path := filepath.Join(m.cfg.Dir, filePrefix+parsed.String()+fileExtension)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, domain.ErrSnapshotNotFound.WithDetails(id)
		}
		return nil, nil, fmt.Errorf("snapshot: read %s: %w", id, err)
	}

	sum := sha256.Sum256(data)
	return data, &Info{
		ID:        parsed.String(),
		CreatedAt: ulid.Time(parsed.Time()),
		Size:      int64(len(data)),
		Path:      path,
		Checksum:  hex.EncodeToString(sum[:]),
	}, nil
}

// Prune applies the retention policy and returns the removed ids. The
// newest snapshot is always kept.
func (m *Manager) Prune() ([]string, error) {
	infos, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(infos) <= 1 {
		return nil, nil
	}

	keep := make(map[string]struct{}, len(infos))
	keep[infos[0].ID] = struct{}{}

	if m.cfg.RetentionCount > 0 {
		for i := 0; i < len(infos) && i < m.cfg.RetentionCount; i++ {
			keep[infos[i].ID] = struct{}{}
		}
	}

	if m.cfg.RetentionDays > 0 {
		cutoff := time.Now().Add(-time.Duration(m.cfg.RetentionDays) * 24 * time.Hour)
		for _, info := range infos {
			if info.CreatedAt.After(cutoff) {
				keep[info.ID] = struct{}{}
			}
		}
	}

	var removed []string
	for _, info := range infos {
		if _, ok := keep[info.ID]; ok {
			continue
		}
		if err := os.Remove(info.Path); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("snapshot: remove %s: %w", info.ID, err)
		}
		removed = append(removed, info.ID)
	}
	return removed, nil
}
