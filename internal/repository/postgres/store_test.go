package postgres

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mamadbah2/milkmatrix/internal/domain/models"
	"github.com/mamadbah2/milkmatrix/internal/repository"
)

var (
	milkCols = []string{"id", "cow_id", "date", "shift", "amount", "quality", "quality_grade",
		"fat", "protein", "lactose", "somatic_cell_count", "bacteria_count", "notes",
		"created_at", "updated_at", "tag_number", "name", "breed"}
	healthCols = []string{"id", "cow_id", "event_type", "event_date", "status", "description",
		"medications", "performed_by", "notes", "created_at", "updated_at", "tag_number", "name"}
	created = time.Date(2024, 5, 1, 6, 30, 0, 0, time.UTC)
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *Store) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	store := NewStore(db, zap.NewNop())
	store.now = func() time.Time { return created.Add(time.Hour) }
	return db, mock, store
}

func TestFindMilkRecord_None(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`FROM milk_production m LEFT JOIN cows c`).
		WithArgs("cow-1", "2024-05-01", "Morning").
		WillReturnRows(sqlmock.NewRows(milkCols))

	rec, err := store.FindMilkRecord(context.Background(), "cow-1", "2024-05-01", models.ShiftMorning)
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindMilkRecord_Decodes(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	rows := sqlmock.NewRows(milkCols).
		AddRow("m1", "cow-1", "2024-05-01", "Morning", 18.5, "Good", "Excellent",
			3.8, nil, nil, int64(120), nil, "", created, nil, "001", "Bessie", "Holstein")
	mock.ExpectQuery(`FROM milk_production m`).WillReturnRows(rows)

	rec, err := store.FindMilkRecord(context.Background(), "cow-1", "2024-05-01", models.ShiftMorning)
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, "m1", rec.ID)
	assert.Equal(t, models.ShiftMorning, rec.Shift)
	assert.Equal(t, models.GradeExcellent, rec.QualityGrade)
	require.NotNil(t, rec.Fat)
	assert.Equal(t, 3.8, *rec.Fat)
	assert.Nil(t, rec.Protein)
	require.NotNil(t, rec.SomaticCellCount)
	assert.Equal(t, int64(120), *rec.SomaticCellCount)
	assert.Nil(t, rec.UpdatedAt)
	require.NotNil(t, rec.Cow)
	assert.Equal(t, "Bessie", rec.Cow.Name)
}

func TestGetMilkRecord(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`WHERE m.id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(milkCols))
	mock.ExpectQuery(`WHERE m.id = \$1`).
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows(milkCols).
			AddRow("m1", "cow-1", "2024-05-01", "Morning", 18.5, "Good", "Good",
				nil, nil, nil, nil, nil, "", created, nil, "001", "Bessie", "Holstein"))

	_, err := store.GetMilkRecord(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	rec, err := store.GetMilkRecord(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, 18.5, rec.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertMilkRecord_UniqueViolation(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO milk_production`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint", Constraint: "milk_production_cow_date_shift_key"})

	_, err := store.InsertMilkRecord(context.Background(), models.MilkRecord{CowID: "cow-1", Date: "2024-05-01", Shift: models.ShiftMorning, Amount: 10})
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertMilkRecord_ReturnsJoinedRow(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	fat := 3.6
	rows := sqlmock.NewRows(milkCols).
		AddRow("m2", "cow-1", "2024-05-01", "Evening", 12.0, "Good", "Good",
			fat, nil, nil, nil, nil, "", created, nil, "001", "Bessie", "Holstein")
	mock.ExpectQuery(`WITH m AS \(\s+INSERT INTO milk_production`).
		WithArgs("cow-1", "2024-05-01", "Evening", 12.0, "Good", "Good", fat, nil, nil, nil, nil, "").
		WillReturnRows(rows)

	rec, err := store.InsertMilkRecord(context.Background(), models.MilkRecord{
		CowID: "cow-1", Date: "2024-05-01", Shift: models.ShiftEvening, Amount: 12,
		Quality: models.GradeGood, QualityGrade: models.GradeGood, Fat: &fat,
	})
	require.NoError(t, err)
	assert.Equal(t, "m2", rec.ID)
	assert.Equal(t, "001", rec.Cow.TagNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMilkRecord_NotFound(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`UPDATE milk_production SET`).WillReturnRows(sqlmock.NewRows(milkCols))

	_, err := store.UpdateMilkRecord(context.Background(), "missing", models.MilkRecord{CowID: "cow-1"})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestListMilkRecords_BuildsFilters(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`WHERE m.cow_id = \$1 AND m.created_at >= \$2 AND m.created_at < \$3 ORDER BY m.created_at DESC LIMIT \$4`).
		WithArgs("cow-1", from, from.AddDate(0, 0, 1), 5).
		WillReturnRows(sqlmock.NewRows(milkCols).
			AddRow("m1", "cow-1", "2024-05-01", "Morning", 18.5, "Good", "Good",
				nil, nil, nil, nil, nil, "", created, nil, nil, nil, nil))

	out, err := store.ListMilkRecords(context.Background(), repository.MilkQuery{
		CowID: "cow-1", CreatedFrom: from, CreatedTo: from.AddDate(0, 0, 1), Limit: 5,
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Nil(t, out[0].Cow)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListHealthRecords_StatusFilter(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`WHERE m.status = ANY\(\$1\) ORDER BY m.created_at DESC$`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(healthCols).
			AddRow("h1", "cow-1", "Treatment", "2024-05-01", "urgent", "Mastitis",
				[]byte(`[{"name":"Penicillin"}]`), "Dr. Smith", "", created, nil, "001", "Bessie"))

	out, err := store.ListHealthRecords(context.Background(), repository.HealthQuery{Statuses: models.AlertStatuses})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, models.StatusUrgent, out[0].Status)
	assert.Equal(t, []models.Medication{{Name: "Penicillin"}}, out[0].Medications)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteHealthRecord_NotFound(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`DELETE FROM health_events`).WithArgs("h9").WillReturnRows(sqlmock.NewRows(healthCols))

	_, err := store.DeleteHealthRecord(context.Background(), "h9")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSearchCows_EscapesPattern(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`WHERE name ILIKE \$1 OR tag_number ILIKE \$1`).
		WithArgs(`%50\%%`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tag_number", "name", "breed", "is_calf", "date_of_birth", "notes"}))

	out, err := store.SearchCows(context.Background(), "50%")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProfile(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	name := "Doc"
	mock.ExpectQuery(`UPDATE profiles SET`).
		WithArgs("u1", nil, nil, name, created.Add(time.Hour)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "first_name", "last_name", "display_name", "email", "role", "updated_at"}).
			AddRow("u1", "Ada", "", "Doc", "ada@farm.io", "worker", created.Add(time.Hour)))

	p, err := store.UpdateProfile(context.Background(), "u1", models.ProfileUpdate{DisplayName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Doc", p.DisplayName)
	assert.NotNil(t, p.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNetworkFailureIsUnavailable(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`FROM cows`).WillReturnError(&net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")})

	_, err := store.ListCows(context.Background())
	assert.ErrorIs(t, err, repository.ErrUnavailable)
}
