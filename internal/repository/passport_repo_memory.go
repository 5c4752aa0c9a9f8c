package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/GTDGit/passport_api/internal/models"
)

// MemoryPassportRepository keeps passport records in process memory.
// Records are copied on the way in and out.
type MemoryPassportRepository struct {
	mu      sync.RWMutex
	nextID  int64
	records map[int64]*models.PassportRecord
	byHash  map[string]int64
	now     func() time.Time
}

// NewMemoryPassportRepository creates an empty in-memory repository
func NewMemoryPassportRepository() *MemoryPassportRepository {
	return &MemoryPassportRepository{
		records: make(map[int64]*models.PassportRecord),
		byHash:  make(map[string]int64),
		now:     time.Now,
	}
}

// Create inserts the record unless its file hash is already stored.
func (r *MemoryPassportRepository) Create(_ context.Context, rec *models.PassportRecord) (*models.PassportRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byHash[rec.FileHash]; ok {
		existing, err := copyRecord(r.records[id])
		return existing, false, err
	}

	stored, err := copyRecord(rec)
	if err != nil {
		return nil, false, err
	}
	r.nextID++
	now := r.now().UTC()
	stored.ID = r.nextID
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.records[stored.ID] = stored
	r.byHash[stored.FileHash] = stored.ID

	out, err := copyRecord(stored)
	return out, true, err
}

// GetByID retrieves a record by ID
func (r *MemoryPassportRepository) GetByID(_ context.Context, id int64) (*models.PassportRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	return copyRecord(rec)
}

// GetByFileHash retrieves a record by content fingerprint
func (r *MemoryPassportRepository) GetByFileHash(_ context.Context, hash string) (*models.PassportRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byHash[hash]
	if !ok {
		return nil, nil
	}
	return copyRecord(r.records[id])
}

// List returns records newest first together with the total count
func (r *MemoryPassportRepository) List(_ context.Context, offset, limit int) ([]*models.PassportRecord, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*models.PassportRecord, 0, len(r.records))
	for _, rec := range r.records {
		all = append(all, rec)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	total := len(all)
	out := []*models.PassportRecord{}
	if offset >= total {
		return out, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	for _, rec := range all[offset:end] {
		c, err := copyRecord(rec)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, nil
}

// UpdateData replaces the payload and re-derives the summary fields
func (r *MemoryPassportRepository) UpdateData(_ context.Context, id int64, data *models.Payload) (*models.PassportRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	clone, err := data.Clone()
	if err != nil {
		return nil, err
	}
	rec.Data = clone
	rec.FullName = models.NullableString(clone.FullName())
	rec.PassportNumber = models.NullableString(clone.PassportNumber())
	rec.UpdatedAt = r.now().UTC()
	return copyRecord(rec)
}

// Delete removes a record and reports whether it existed
func (r *MemoryPassportRepository) Delete(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return false, nil
	}
	delete(r.byHash, rec.FileHash)
	delete(r.records, id)
	return true, nil
}

func copyRecord(rec *models.PassportRecord) (*models.PassportRecord, error) {
	out := *rec
	if rec.Data != nil {
		data, err := rec.Data.Clone()
		if err != nil {
			return nil, err
		}
		out.Data = data
	}
	return &out, nil
}
