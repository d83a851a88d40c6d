package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	namePrefix = "vidtube-"
	nameSuffix = ".db"
	timeLayout = "20060102-150405"
)

var ErrInvalidName = errors.New("invalid backup name")

// Storage holds backup files under flat names.
type Storage interface {
	Save(ctx context.Context, name string, data io.Reader) error
	Load(ctx context.Context, name string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, name string) error
}

// Snapshotter writes a consistent copy of a database to path.
type Snapshotter interface {
	Snapshot(ctx context.Context, path string) error
}

// Info describes one stored backup.
type Info struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Service takes database snapshots and manages them in a Storage.
type Service struct {
	storage Storage
	source  Snapshotter
	now     func() time.Time
}

// NewService builds a backup service. source may be nil for a service that
// only lists, prunes and restores.
func NewService(storage Storage, source Snapshotter) *Service {
	return &Service{
		storage: storage,
		source:  source,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Name returns the backup name for a snapshot taken at t.
func Name(t time.Time) string {
	return namePrefix + t.UTC().Format(timeLayout) + nameSuffix
}

// ParseName extracts the snapshot time from a backup name.
func ParseName(name string) (time.Time, error) {
	if !strings.HasPrefix(name, namePrefix) || !strings.HasSuffix(name, nameSuffix) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, namePrefix), nameSuffix)
	t, err := time.Parse(timeLayout, stamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return t, nil
}

// Create snapshots the source and stores the result.
func (s *Service) Create(ctx context.Context) (string, error) {
	if s.source == nil {
		return "", errors.New("backup service has no snapshot source")
	}

	dir, err := os.MkdirTemp("", "vidtube-backup-*")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(dir)

	name := Name(s.now())
	staged := filepath.Join(dir, name)
	if err := s.source.Snapshot(ctx, staged); err != nil {
		return "", fmt.Errorf("failed to snapshot database: %w", err)
	}

	f, err := os.Open(staged)
	if err != nil {
		return "", fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	if err := s.storage.Save(ctx, name, f); err != nil {
		return "", fmt.Errorf("failed to save backup: %w", err)
	}
	return name, nil
}

// List returns stored backups, newest first. Foreign files are ignored.
func (s *Service) List(ctx context.Context) ([]Info, error) {
	names, err := s.storage.List(ctx, namePrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	infos := make([]Info, 0, len(names))
	for _, name := range names {
		t, err := ParseName(name)
		if err != nil {
			continue
		}
		infos = append(infos, Info{Name: name, CreatedAt: t})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].CreatedAt.After(infos[j].CreatedAt) })
	return infos, nil
}

// Prune deletes backups older than retention but always keeps the newest
// one. It returns the names it deleted.
func (s *Service) Prune(ctx context.Context, retention time.Duration) ([]string, error) {
	infos, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := s.now().Add(-retention)

	var deleted []string
	for i, info := range infos {
		if i == 0 || !info.CreatedAt.Before(cutoff) {
			continue
		}
		if err := s.storage.Delete(ctx, info.Name); err != nil {
			return deleted, fmt.Errorf("failed to delete %s: %w", info.Name, err)
		}
		deleted = append(deleted, info.Name)
	}
	return deleted, nil
}

// Restore copies a stored backup to dest. dest must not exist; the server
// has to be stopped before the copy is moved over the live database.
func (s *Service) Restore(ctx context.Context, name, dest string) error {
	if _, err := ParseName(name); err != nil {
		return err
	}
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("refusing to overwrite %s", dest)
	}

	r, err := s.storage.Load(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to load backup: %w", err)
	}
	defer r.Close()

	return writeFileAtomic(dest, r)
}

// writeFileAtomic writes to a sibling temp file and renames it into place.
func writeFileAtomic(path string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}
