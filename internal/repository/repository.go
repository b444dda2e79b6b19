package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mamadbah2/milkmatrix/internal/domain/models"
)

var (
	// ErrNotFound is returned when an update or delete matched no row.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a store level uniqueness constraint rejected a write.
	ErrConflict = errors.New("record conflicts with an existing record")
	// ErrUnavailable wraps transport failures reaching the store.
	ErrUnavailable = errors.New("data store unavailable")
)

// MilkQuery filters milk record listings. Zero values disable a filter.
type MilkQuery struct {
	CowID       string
	CreatedFrom time.Time
	CreatedTo   time.Time // exclusive
	Limit       int
}

// HealthQuery filters health record listings. Zero values disable a filter.
type HealthQuery struct {
	CowID    string
	Statuses []models.HealthStatus
	Limit    int
}

// CowRepository reads the cow registry. Single row getters return ErrNotFound
// when nothing matches.
type CowRepository interface {
	GetCow(ctx context.Context, id string) (*models.Cow, error)
	GetCowByTag(ctx context.Context, tag string) (*models.Cow, error)
	ListCows(ctx context.Context) ([]models.Cow, error)
	SearchCows(ctx context.Context, term string) ([]models.Cow, error)
	InsertCows(ctx context.Context, cows []models.Cow) ([]models.Cow, error)
}

// MilkRepository persists milk production records.
type MilkRepository interface {
	// FindMilkRecord returns the record for the exact triple, or nil when none exists.
	FindMilkRecord(ctx context.Context, cowID, date string, shift models.Shift) (*models.MilkRecord, error)
	// GetMilkRecord returns ErrNotFound when no record has the id.
	GetMilkRecord(ctx context.Context, id string) (*models.MilkRecord, error)
	InsertMilkRecord(ctx context.Context, record models.MilkRecord) (*models.MilkRecord, error)
	UpdateMilkRecord(ctx context.Context, id string, record models.MilkRecord) (*models.MilkRecord, error)
	DeleteMilkRecord(ctx context.Context, id string) (*models.MilkRecord, error)
	ListMilkRecords(ctx context.Context, q MilkQuery) ([]models.MilkRecord, error)
}

// HealthRepository persists health events.
type HealthRepository interface {
	InsertHealthRecord(ctx context.Context, record models.HealthRecord) (*models.HealthRecord, error)
	UpdateHealthRecord(ctx context.Context, id string, record models.HealthRecord) (*models.HealthRecord, error)
	DeleteHealthRecord(ctx context.Context, id string) (*models.HealthRecord, error)
	ListHealthRecords(ctx context.Context, q HealthQuery) ([]models.HealthRecord, error)
}

// ProfileRepository reads and edits user profiles.
type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (*models.Profile, error)
}

// Store is implemented by every record store backend.
type Store interface {
	CowRepository
	MilkRepository
	HealthRepository
	ProfileRepository
	Close(ctx context.Context) error
}
