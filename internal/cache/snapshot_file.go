package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/GTDGit/passport_api/internal/models"
)

const (
	slotOriginal   = "original"
	slotTranslated = "translated"
)

// FileSnapshotStore keeps passport snapshots as JSON files in one directory:
// passport_{id}.json and passport_{id}_translated.json
type FileSnapshotStore struct {
	dir string
}

// NewFileSnapshotStore creates the directory if needed.
func NewFileSnapshotStore(dir string) (*FileSnapshotStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &FileSnapshotStore{dir: dir}, nil
}

func (s *FileSnapshotStore) path(id int64, slot string) string {
	if slot == slotTranslated {
		return filepath.Join(s.dir, fmt.Sprintf("passport_%d_translated.json", id))
	}
	return filepath.Join(s.dir, fmt.Sprintf("passport_%d.json", id))
}

// WriteOriginal stores the original payload.
func (s *FileSnapshotStore) WriteOriginal(_ context.Context, id int64, p *models.Payload) error {
	return s.write(s.path(id, slotOriginal), p)
}

// WriteTranslated stores the translated payload.
func (s *FileSnapshotStore) WriteTranslated(_ context.Context, id int64, p *models.Payload) error {
	return s.write(s.path(id, slotTranslated), p)
}

// ReadOriginal returns the original payload or nil.
func (s *FileSnapshotStore) ReadOriginal(_ context.Context, id int64) (*models.Payload, error) {
	return s.read(s.path(id, slotOriginal))
}

// ReadTranslated returns the translated payload or nil.
func (s *FileSnapshotStore) ReadTranslated(_ context.Context, id int64) (*models.Payload, error) {
	return s.read(s.path(id, slotTranslated))
}

// InvalidateTranslated removes the translated file.
func (s *FileSnapshotStore) InvalidateTranslated(_ context.Context, id int64) error {
	return removeIfExists(s.path(id, slotTranslated))
}

// Delete removes both files.
func (s *FileSnapshotStore) Delete(_ context.Context, id int64) error {
	return errors.Join(
		removeIfExists(s.path(id, slotOriginal)),
		removeIfExists(s.path(id, slotTranslated)),
	)
}

// write replaces the file atomically through a temp file and rename.
func (s *FileSnapshotStore) write(path string, p *models.Payload) error {
	raw, err := encodeSnapshot(p)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func (s *FileSnapshotStore) read(path string) (*models.Payload, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return decodeSnapshot(raw)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func encodeSnapshot(p *models.Payload) ([]byte, error) {
	if p == nil {
		return nil, errors.New("nil snapshot payload")
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeSnapshot(raw []byte) (*models.Payload, error) {
	var p models.Payload
	if err := p.Scan(raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &p, nil
}
