package cli

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cortex/workspace/internal/db"
	"cortex/workspace/internal/model"
	"cortex/workspace/internal/repository"
	"cortex/workspace/internal/service"
)

// localUserID owns every session recorded by the terminal client.
const localUserID = "local"

type localStore struct {
	database *sql.DB
	sessions *service.PomodoroService
}

// openLocal opens and migrates the database and makes sure the local user
// exists.
func openLocal(ctx context.Context, opts *rootOptions) (*localStore, error) {
	database, err := db.OpenSQLite(opts.dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(database, db.MigrationSource(opts.migrationsDir)); err != nil {
		database.Close()
		return nil, err
	}

	now := time.Now().UTC()
	err = repository.NewUserRepository(database).Ensure(ctx, &model.User{
		ID:        localUserID,
		Email:     localUserID + "@" + appName + ".localhost",
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("prepare local user: %w", err)
	}

	return &localStore{
		database: database,
		sessions: service.NewPomodoroService(
			repository.NewPomodoroRepository(database),
			repository.NewSettingsRepository(database),
		),
	}, nil
}

func (l *localStore) Close() error {
	return l.database.Close()
}
