package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/mamadbah2/milkmatrix/internal/config"
)

type fakeSheets struct {
	values  [][]interface{}
	appends [][]interface{}
	updates int
}

func (f *fakeSheets) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		var body struct {
			Values [][]interface{} `json:"values"`
		}
		switch {
		case r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]any{"range": "Milk!A1:F10", "values": f.values})
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			f.appends = append(f.appends, body.Values...)
			_, _ = w.Write([]byte(`{}`))
		case r.Method == http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			f.values = append(f.values, body.Values...)
			f.updates++
			_, _ = w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newTestRepo(t *testing.T, fake *fakeSheets) *GoogleSheetRepository {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	repo, err := NewGoogleSheetRepository(context.Background(),
		config.SheetsConfig{SpreadsheetID: "sheet-1"}, nil,
		option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication())
	require.NoError(t, err)
	return repo
}

func TestAppendAndRead(t *testing.T) {
	fake := &fakeSheets{values: [][]interface{}{{"Date", "Total"}, {"2024-05-01", "42.5"}}}
	repo := newTestRepo(t, fake)
	ctx := context.Background()

	require.NoError(t, repo.AppendRows(ctx, "Milk!A:F", [][]interface{}{{"2024-05-02", 40.0}}))
	require.Len(t, fake.appends, 1)
	assert.Equal(t, "2024-05-02", fake.appends[0][0])

	rows, err := repo.ReadRange(ctx, "Milk!A:F")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	assert.NoError(t, repo.AppendRows(ctx, "Milk!A:F", nil))
	assert.Error(t, repo.AppendRows(ctx, "", [][]interface{}{{"x"}}))
}

func TestEnsureHeader(t *testing.T) {
	fake := &fakeSheets{}
	repo := newTestRepo(t, fake)
	ctx := context.Background()

	header := []interface{}{"Date", "Total liters"}
	require.NoError(t, repo.EnsureHeader(ctx, "Milk!A1:F1", header))
	assert.Equal(t, 1, fake.updates)

	require.NoError(t, repo.EnsureHeader(ctx, "Milk!A1:F1", header))
	assert.Equal(t, 1, fake.updates)
}
