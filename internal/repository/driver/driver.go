// Package driver opens the record store selected by STORE_DRIVER.
package driver

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mamadbah2/milkmatrix/internal/config"
	"github.com/mamadbah2/milkmatrix/internal/repository"
	"github.com/mamadbah2/milkmatrix/internal/repository/memory"
	"github.com/mamadbah2/milkmatrix/internal/repository/mongodb"
	"github.com/mamadbah2/milkmatrix/internal/repository/postgres"
	supabasestore "github.com/mamadbah2/milkmatrix/internal/repository/supabase"
	"github.com/mamadbah2/milkmatrix/pkg/clients/supabase"
)

// Open connects the configured store. The caller closes it.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Store.Driver {
	case config.DriverSupabase:
		return supabasestore.NewStore(supabase.NewClient(cfg.Supabase), logger.Named("repo.supabase")), nil
	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		return postgres.NewStore(db, logger.Named("repo.postgres")), nil
	case config.DriverMongoDB:
		store, err := mongodb.NewMongoDBRepository(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName, logger.Named("repo.mongodb"))
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverMemory:
		logger.Warn("using the in-memory store, records are lost on restart")
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}
