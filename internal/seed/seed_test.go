package seed

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/milkmatrix/internal/domain/models"
	"github.com/mamadbah2/milkmatrix/internal/repository"
	"github.com/mamadbah2/milkmatrix/internal/repository/memory"
	"github.com/mamadbah2/milkmatrix/internal/service/health"
	"github.com/mamadbah2/milkmatrix/internal/service/milk"
)

func newSeeder(store *memory.Store) *Seeder {
	s := New(store, milk.NewService(store, nil, time.UTC, nil), health.NewService(store, nil), rand.New(rand.NewSource(1)), nil)
	s.now = func() time.Time { return time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC) }
	return s
}

func TestRun(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	result, err := newSeeder(store).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Cows: 5, MilkRecords: 70, HealthRecords: 3}, result)

	records, err := store.ListMilkRecords(ctx, repository.MilkQuery{})
	require.NoError(t, err)
	require.Len(t, records, 70)
	for _, r := range records {
		switch r.Shift {
		case models.ShiftMorning:
			assert.True(t, r.Amount >= 15 && r.Amount <= 25, r.Amount)
		case models.ShiftEvening:
			assert.True(t, r.Amount >= 12 && r.Amount <= 20, r.Amount)
		}
		assert.Contains(t, []models.Grade{models.GradeGood, models.GradeExcellent}, r.QualityGrade)
	}

	events, err := store.ListHealthRecords(ctx, repository.HealthQuery{})
	require.NoError(t, err)
	require.Len(t, events, 3)
	for _, e := range events {
		assert.Equal(t, "Dr. Smith", e.PerformedBy)
		assert.Equal(t, models.StatusCompleted, e.Status)
	}

	cow, err := store.GetCowByTag(ctx, "001")
	require.NoError(t, err)
	bessie, err := store.ListHealthRecords(ctx, repository.HealthQuery{CowID: cow.ID})
	require.NoError(t, err)
	require.Len(t, bessie, 1)
	assert.Equal(t, "2024-05-05", bessie[0].EventDate)
}

func TestRunSkipsSeededStore(t *testing.T) {
	store := memory.NewStore()
	_, err := store.InsertCows(context.Background(), []models.Cow{{TagNumber: "100", Name: "Existing"}})
	require.NoError(t, err)

	result, err := newSeeder(store).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, "store already has cows, nothing seeded", result.String())
}
