package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/milkmatrix/internal/config"
	"github.com/mamadbah2/milkmatrix/internal/repository/memory"
	supabasestore "github.com/mamadbah2/milkmatrix/internal/repository/supabase"
)

func TestOpen(t *testing.T) {
	store, err := Open(context.Background(), &config.Config{Store: config.StoreConfig{Driver: config.DriverMemory}}, nil)
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, store)

	store, err = Open(context.Background(), &config.Config{
		Store:    config.StoreConfig{Driver: config.DriverSupabase},
		Supabase: config.SupabaseConfig{URL: "http://localhost:54321", AnonKey: "anon"},
	}, nil)
	require.NoError(t, err)
	assert.IsType(t, &supabasestore.Store{}, store)

	_, err = Open(context.Background(), &config.Config{Store: config.StoreConfig{Driver: "sqlite"}}, nil)
	assert.EqualError(t, err, `unsupported store driver "sqlite"`)
}
