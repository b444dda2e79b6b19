package cows

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/milkmatrix/internal/apperr"
	"github.com/mamadbah2/milkmatrix/internal/domain/models"
	"github.com/mamadbah2/milkmatrix/internal/repository"
	"github.com/mamadbah2/milkmatrix/internal/repository/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	_, err := store.InsertCows(context.Background(), []models.Cow{
		{ID: "c3", TagNumber: "003", Name: "Maple", Breed: "Guernsey"},
		{ID: "c1", TagNumber: "001", Name: "Bessie", Breed: "Holstein"},
		{ID: "c2", TagNumber: "002", Name: "Luna", Breed: "Jersey"},
	})
	require.NoError(t, err)
	return NewService(store, store, store, nil), store
}

func TestByID(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cow, err := svc.ByID(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, "Luna", cow.Name)

	_, err = svc.ByID(ctx, "")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "Invalid QR code: no cow ID provided", err.Error())

	_, err = svc.ByID(ctx, "c9")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, "No cow found with ID: c9", err.Error())
}

func TestByTagTrims(t *testing.T) {
	svc, _ := newTestService(t)

	cow, err := svc.ByTag(context.Background(), " 003 ")
	require.NoError(t, err)
	assert.Equal(t, "c3", cow.ID)

	_, err = svc.ByTag(context.Background(), "999")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestAllAndSearch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	all, err := svc.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"001", "002", "003"}, []string{all[0].TagNumber, all[1].TagNumber, all[2].TagNumber})

	found, err := svc.Search(ctx, "ma")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Maple", found[0].Name)

	byTag, err := svc.Search(ctx, "00")
	require.NoError(t, err)
	assert.Len(t, byTag, 3)

	everything, err := svc.Search(ctx, "  ")
	require.NoError(t, err)
	assert.Len(t, everything, 3)
}

func TestWithRecentRecords(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		_, err := store.InsertMilkRecord(ctx, models.MilkRecord{CowID: "c1", Amount: float64(i)})
		require.NoError(t, err)
	}
	_, err := store.InsertHealthRecord(ctx, models.HealthRecord{CowID: "c1", Status: models.StatusPending})
	require.NoError(t, err)

	out, err := svc.WithRecentRecords(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Bessie", out.Cow.Name)
	assert.Len(t, out.MilkRecords, RecentLimit)
	assert.Len(t, out.HealthRecords, 1)

	empty, err := svc.WithRecentRecords(ctx, "c2")
	require.NoError(t, err)
	assert.NotNil(t, empty.MilkRecords)
	assert.Empty(t, empty.MilkRecords)
}

type brokenMilk struct{ repository.MilkRepository }

func (brokenMilk) ListMilkRecords(context.Context, repository.MilkQuery) ([]models.MilkRecord, error) {
	return nil, errors.New("timeout")
}

func TestWithRecentRecordsToleratesListFailures(t *testing.T) {
	_, store := newTestService(t)
	svc := NewService(store, brokenMilk{}, store, nil)

	out, err := svc.WithRecentRecords(context.Background(), "c1")
	require.NoError(t, err)
	assert.Empty(t, out.MilkRecords)
}

func TestResolveScan(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cow, err := svc.ResolveScan(ctx, `{"id":"c1","tagNumber":"001","name":"Bessie"}`)
	require.NoError(t, err)
	assert.Equal(t, "Bessie", cow.Name)

	cow, err = svc.ResolveScan(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, "Luna", cow.Name)

	_, err = svc.ResolveScan(ctx, "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}
