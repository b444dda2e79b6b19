package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/milkmatrix/internal/config"
	"github.com/mamadbah2/milkmatrix/internal/domain/models"
	"github.com/mamadbah2/milkmatrix/internal/repository"
	client "github.com/mamadbah2/milkmatrix/pkg/clients/supabase"
)

type captured struct {
	method string
	path   string
	query  url.Values
	auth   string
	body   map[string]any
}

func newServer(t *testing.T, status int, response string) (*Store, *[]captured) {
	t.Helper()
	var calls []captured

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := captured{method: r.Method, path: r.URL.Path, query: r.URL.Query(), auth: r.Header.Get("Authorization")}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&c.body)
		}
		calls = append(calls, c)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)

	api := client.NewClient(config.SupabaseConfig{URL: srv.URL, AnonKey: "anon"})
	return NewStore(api, nil), &calls
}

func TestFindMilkRecordFilters(t *testing.T) {
	store, calls := newServer(t, http.StatusOK, `[]`)

	rec, err := store.FindMilkRecord(context.Background(), "cow-1", "2024-05-01", models.ShiftMorning)
	require.NoError(t, err)
	assert.Nil(t, rec)

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, http.MethodGet, call.method)
	assert.Equal(t, "/rest/v1/milk_production", call.path)
	assert.Equal(t, "eq.cow-1", call.query.Get("cow_id"))
	assert.Equal(t, "eq.2024-05-01", call.query.Get("date"))
	assert.Equal(t, "eq.Morning", call.query.Get("shift"))
	assert.Equal(t, "Bearer anon", call.auth)
}

func TestFindMilkRecordDecodesMatch(t *testing.T) {
	store, _ := newServer(t, http.StatusOK,
		`[{"id":"m1","cow_id":"cow-1","date":"2024-05-01","shift":"Morning","amount":18.5,"created_at":"2024-05-01T06:00:00+00:00"}]`)

	rec, err := store.FindMilkRecord(context.Background(), "cow-1", "2024-05-01", models.ShiftMorning)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "m1", rec.ID)
	assert.Equal(t, 18.5, rec.Amount)
}

func TestInsertUniqueViolationIsConflict(t *testing.T) {
	store, calls := newServer(t, http.StatusConflict,
		`{"code":"23505","message":"duplicate key value violates unique constraint \"milk_production_cow_date_shift_key\""}`)

	_, err := store.InsertMilkRecord(context.Background(), models.MilkRecord{CowID: "cow-1", Date: "2024-05-01", Shift: models.ShiftMorning, Amount: 4})
	assert.ErrorIs(t, err, repository.ErrConflict)

	require.Len(t, *calls, 1)
	body := (*calls)[0].body
	assert.Equal(t, "cow-1", body["cow_id"])
	assert.NotContains(t, body, "id")
	assert.NotContains(t, body, "created_at")
}

func TestInsertKeepsPostgrestMessage(t *testing.T) {
	store, _ := newServer(t, http.StatusBadRequest, `{"code":"42703","message":"column \"lactose\" does not exist"}`)

	_, err := store.InsertMilkRecord(context.Background(), models.MilkRecord{CowID: "cow-1"})
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, `column "lactose" does not exist`, apiErr.Error())
}

func TestUpdateWithoutRowsIsNotFound(t *testing.T) {
	store, calls := newServer(t, http.StatusOK, `[]`)
	ctx := client.WithAccessToken(context.Background(), "user-token")

	_, err := store.UpdateMilkRecord(ctx, "m9", models.MilkRecord{CowID: "cow-1"})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	call := (*calls)[0]
	assert.Equal(t, http.MethodPatch, call.method)
	assert.Equal(t, "eq.m9", call.query.Get("id"))
	assert.Equal(t, "Bearer user-token", call.auth)
	assert.Contains(t, call.body, "updated_at")
}

func TestListMilkRecordsWindow(t *testing.T) {
	store, calls := newServer(t, http.StatusOK, `[]`)
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	rows, err := store.ListMilkRecords(context.Background(), repository.MilkQuery{
		CreatedFrom: start,
		CreatedTo:   start.AddDate(0, 0, 1),
		Limit:       10,
	})
	require.NoError(t, err)
	assert.Empty(t, rows)

	q := (*calls)[0].query
	assert.Equal(t, []string{"gte.2024-05-01T00:00:00Z", "lt.2024-05-02T00:00:00Z"}, q["created_at"])
	assert.Equal(t, "created_at.desc", q.Get("order"))
	assert.Equal(t, "10", q.Get("limit"))
	assert.Equal(t, milkSelect, q.Get("select"))
}

func TestHealthAlertsFilter(t *testing.T) {
	store, calls := newServer(t, http.StatusOK, `[]`)

	_, err := store.ListHealthRecords(context.Background(), repository.HealthQuery{Statuses: models.AlertStatuses})
	require.NoError(t, err)
	assert.Equal(t, "in.(pending,urgent)", (*calls)[0].query.Get("status"))
}

func TestSearchCowsQuotesTerm(t *testing.T) {
	store, calls := newServer(t, http.StatusOK, `[{"id":"c1","tag_number":"001","name":"Bessie"}]`)

	cows, err := store.SearchCows(context.Background(), "bes,(x)")
	require.NoError(t, err)
	require.Len(t, cows, 1)
	assert.Equal(t, `(name.ilike."*bes,(x)*",tag_number.ilike."*bes,(x)*")`, (*calls)[0].query.Get("or"))
}

func TestGetCowMissing(t *testing.T) {
	store, _ := newServer(t, http.StatusOK, `[]`)

	_, err := store.GetCow(context.Background(), "c9")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTransportFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	store := NewStore(client.NewClient(config.SupabaseConfig{URL: srv.URL, AnonKey: "anon"}), nil)
	_, err := store.ListCows(context.Background())
	assert.ErrorIs(t, err, repository.ErrUnavailable)
}
