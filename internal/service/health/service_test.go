package health

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/milkmatrix/internal/apperr"
	"github.com/mamadbah2/milkmatrix/internal/auth"
	"github.com/mamadbah2/milkmatrix/internal/domain/models"
	"github.com/mamadbah2/milkmatrix/internal/repository/memory"
)

var vet = auth.Session{UserID: "u1", DisplayName: "Dr. Smith"}

func newTestService(t *testing.T) *Service {
	t.Helper()
	store := memory.NewStore()
	clock := time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	})
	return NewService(store, nil)
}

func validInput() Input {
	return Input{
		CowID:       "cow-1",
		EventType:   "vaccination",
		EventDate:   "2024-05-01",
		Description: "Annual booster",
		Medications: []string{" Bovishield ", ""},
	}
}

func TestCreate_Defaults(t *testing.T) {
	svc := newTestService(t)

	rec, err := svc.Create(context.Background(), vet, validInput())
	require.NoError(t, err)

	assert.Equal(t, models.EventVaccination, rec.EventType)
	assert.Equal(t, models.StatusPending, rec.Status)
	assert.Equal(t, "Dr. Smith", rec.PerformedBy)
	assert.Equal(t, []models.Medication{{Name: "Bovishield"}}, rec.Medications)
}

func TestCreate_KeepsExplicitPerformer(t *testing.T) {
	svc := newTestService(t)

	in := validInput()
	in.PerformedBy = "Farm hand"
	in.Status = "Urgent"
	rec, err := svc.Create(context.Background(), vet, in)
	require.NoError(t, err)

	assert.Equal(t, "Farm hand", rec.PerformedBy)
	assert.Equal(t, models.StatusUrgent, rec.Status)
}

func TestCreate_Validation(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(context.Background(), vet, Input{EventType: "Haircut", EventDate: "May 1", Status: "later"})

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	for _, field := range []string{"cow_id", "event_type", "event_date", "status", "description"} {
		assert.Contains(t, appErr.Fields, field)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	rec, err := svc.Create(ctx, vet, validInput())
	require.NoError(t, err)

	in := validInput()
	in.Status = "completed"
	in.PerformedBy = "Dr. Smith"
	updated, err := svc.Update(ctx, rec.ID, in)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, updated.Status)

	_, err = svc.Update(ctx, "nope", in)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, "No health record found with ID: nope", err.Error())

	deleted, err := svc.Delete(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, deleted.ID)

	_, err = svc.Delete(ctx, rec.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestListings(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	statuses := []string{"pending", "completed", "urgent", "cancelled"}
	for i := 0; i < 24; i++ {
		in := validInput()
		in.Status = statuses[i%len(statuses)]
		if i%2 == 1 {
			in.CowID = "cow-2"
		}
		in.Description = fmt.Sprintf("event %d", i)
		_, err := svc.Create(ctx, vet, in)
		require.NoError(t, err)
	}

	recent, err := svc.Recent(ctx)
	require.NoError(t, err)
	require.Len(t, recent, RecentLimit)
	assert.Equal(t, "event 23", recent[0].Description)

	alerts, err := svc.Alerts(ctx)
	require.NoError(t, err)
	assert.Len(t, alerts, 12)
	for _, a := range alerts {
		assert.Contains(t, models.AlertStatuses, a.Status)
	}

	byCow, err := svc.ByCow(ctx, "cow-2")
	require.NoError(t, err)
	assert.Len(t, byCow, 12)

	_, err = svc.ByCow(ctx, "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}
