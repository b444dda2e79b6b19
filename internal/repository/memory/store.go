// Package memory is an in-process record store for local runs and tests. Like
// the hosted backend it enforces no uniqueness on milk records.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mamadbah2/milkmatrix/internal/domain/models"
	"github.com/mamadbah2/milkmatrix/internal/repository"
)

// Store keeps every entity in maps guarded by one lock.
type Store struct {
	mu sync.RWMutex

	cows     map[string]models.Cow
	milk     map[string]models.MilkRecord
	health   map[string]models.HealthRecord
	profiles map[string]models.Profile

	now func() time.Time
}

var _ repository.Store = (*Store)(nil)

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		cows:     map[string]models.Cow{},
		milk:     map[string]models.MilkRecord{},
		health:   map[string]models.HealthRecord{},
		profiles: map[string]models.Profile{},
		now:      time.Now,
	}
}

// SetClock overrides the creation timestamp source.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// PutProfile registers a profile row.
func (s *Store) PutProfile(p models.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
}

// Close is a no-op.
func (s *Store) Close(context.Context) error { return nil }

// ---- cows ----

func (s *Store) GetCow(_ context.Context, id string) (*models.Cow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cow, ok := s.cows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &cow, nil
}

func (s *Store) GetCowByTag(_ context.Context, tag string) (*models.Cow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, cow := range s.cows {
		if cow.TagNumber == tag {
			c := cow
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) ListCows(_ context.Context) ([]models.Cow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Cow, 0, len(s.cows))
	for _, cow := range s.cows {
		out = append(out, cow)
	}
	sortCows(out)
	return out, nil
}

func (s *Store) SearchCows(_ context.Context, term string) ([]models.Cow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(term)
	out := []models.Cow{}
	for _, cow := range s.cows {
		if strings.Contains(strings.ToLower(cow.Name), needle) || strings.Contains(strings.ToLower(cow.TagNumber), needle) {
			out = append(out, cow)
		}
	}
	sortCows(out)
	return out, nil
}

func (s *Store) InsertCows(_ context.Context, cows []models.Cow) ([]models.Cow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Cow, 0, len(cows))
	for _, cow := range cows {
		if cow.ID == "" {
			cow.ID = uuid.NewString()
		}
		s.cows[cow.ID] = cow
		out = append(out, cow)
	}
	return out, nil
}

// ---- milk ----

func (s *Store) FindMilkRecord(_ context.Context, cowID, date string, shift models.Shift) (*models.MilkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.milk {
		if rec.CowID == cowID && rec.Date == date && rec.Shift == shift {
			r := cloneMilk(rec)
			return &r, nil
		}
	}
	return nil, nil
}

func (s *Store) GetMilkRecord(_ context.Context, id string) (*models.MilkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.milk[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := s.decorateMilk(rec)
	return &out, nil
}

func (s *Store) InsertMilkRecord(_ context.Context, record models.MilkRecord) (*models.MilkRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record.ID = uuid.NewString()
	record.CreatedAt = s.now().UTC()
	record.UpdatedAt = nil
	record.Cow = nil
	s.milk[record.ID] = cloneMilk(record)

	out := s.decorateMilk(record)
	return &out, nil
}

func (s *Store) UpdateMilkRecord(_ context.Context, id string, record models.MilkRecord) (*models.MilkRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.milk[id]
	if !ok {
		return nil, repository.ErrNotFound
	}

	updated := s.now().UTC()
	record.ID = id
	record.CreatedAt = current.CreatedAt
	record.UpdatedAt = &updated
	record.Cow = nil
	s.milk[id] = cloneMilk(record)

	out := s.decorateMilk(record)
	return &out, nil
}

func (s *Store) DeleteMilkRecord(_ context.Context, id string) (*models.MilkRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.milk[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(s.milk, id)
	return &current, nil
}

func (s *Store) ListMilkRecords(_ context.Context, q repository.MilkQuery) ([]models.MilkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.MilkRecord{}
	for _, rec := range s.milk {
		if q.CowID != "" && rec.CowID != q.CowID {
			continue
		}
		if !q.CreatedFrom.IsZero() && rec.CreatedAt.Before(q.CreatedFrom) {
			continue
		}
		if !q.CreatedTo.IsZero() && !rec.CreatedAt.Before(q.CreatedTo) {
			continue
		}
		out = append(out, s.decorateMilk(rec))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// ---- health ----

func (s *Store) InsertHealthRecord(_ context.Context, record models.HealthRecord) (*models.HealthRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record.ID = uuid.NewString()
	record.CreatedAt = s.now().UTC()
	record.UpdatedAt = nil
	record.Cow = nil
	s.health[record.ID] = record

	out := s.decorateHealth(record)
	return &out, nil
}

func (s *Store) UpdateHealthRecord(_ context.Context, id string, record models.HealthRecord) (*models.HealthRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.health[id]
	if !ok {
		return nil, repository.ErrNotFound
	}

	updated := s.now().UTC()
	record.ID = id
	record.CreatedAt = current.CreatedAt
	record.UpdatedAt = &updated
	record.Cow = nil
	s.health[id] = record

	out := s.decorateHealth(record)
	return &out, nil
}

func (s *Store) DeleteHealthRecord(_ context.Context, id string) (*models.HealthRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.health[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(s.health, id)
	return &current, nil
}

func (s *Store) ListHealthRecords(_ context.Context, q repository.HealthQuery) ([]models.HealthRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.HealthRecord{}
	for _, rec := range s.health {
		if q.CowID != "" && rec.CowID != q.CowID {
			continue
		}
		if len(q.Statuses) > 0 && !containsStatus(q.Statuses, rec.Status) {
			continue
		}
		out = append(out, s.decorateHealth(rec))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// ---- profiles ----

func (s *Store) GetProfile(_ context.Context, userID string) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (s *Store) UpdateProfile(_ context.Context, userID string, update models.ProfileUpdate) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if update.FirstName != nil {
		p.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		p.LastName = *update.LastName
	}
	if update.DisplayName != nil {
		p.DisplayName = *update.DisplayName
	}
	now := s.now().UTC()
	p.UpdatedAt = &now
	s.profiles[userID] = p
	return &p, nil
}

func (s *Store) decorateMilk(rec models.MilkRecord) models.MilkRecord {
	rec = cloneMilk(rec)
	if cow, ok := s.cows[rec.CowID]; ok {
		rec.Cow = &models.CowSummary{TagNumber: cow.TagNumber, Name: cow.Name, Breed: cow.Breed}
	}
	return rec
}

// cloneMilk copies the pointer fields so stored records never alias caller
// memory.
func cloneMilk(rec models.MilkRecord) models.MilkRecord {
	rec.Fat = clonePtr(rec.Fat)
	rec.Protein = clonePtr(rec.Protein)
	rec.Lactose = clonePtr(rec.Lactose)
	rec.SomaticCellCount = clonePtr(rec.SomaticCellCount)
	rec.BacteriaCount = clonePtr(rec.BacteriaCount)
	rec.UpdatedAt = clonePtr(rec.UpdatedAt)
	return rec
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func (s *Store) decorateHealth(rec models.HealthRecord) models.HealthRecord {
	if cow, ok := s.cows[rec.CowID]; ok {
		rec.Cow = &models.CowSummary{TagNumber: cow.TagNumber, Name: cow.Name}
	}
	return rec
}

func sortCows(cows []models.Cow) {
	sort.Slice(cows, func(i, j int) bool { return cows[i].TagNumber < cows[j].TagNumber })
}

func containsStatus(list []models.HealthStatus, s models.HealthStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
