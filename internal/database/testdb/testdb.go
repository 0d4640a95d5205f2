// Package testdb spins up a shared Postgres testcontainer for
// integration tests across the store packages, grounded on tarsy's
// test/util/database.go but migrated with database.NewClient's embedded
// golang-migrate migrations instead of an ent schema create.
package testdb

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ankitaa186/agentic-memories-sub002/internal/database"
)

var (
	containerOnce sync.Once
	sharedCfg     database.Config
	containerErr  error
)

// Open returns a *sql.DB-backed store database.Config pointing at a
// shared Postgres container (started once per test binary), already
// migrated. Every test truncates its own tables via t.Cleanup.
func Open(t *testing.T) database.Config {
	t.Helper()

	containerOnce.Do(func() {
		ctx := context.Background()
		t.Log("starting shared postgres testcontainer")

		pgContainer, err := postgres.Run(ctx,
			"postgres:17-alpine",
			postgres.WithDatabase("memoryd_test"),
			postgres.WithUsername("memoryd_test"),
			postgres.WithPassword("memoryd_test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		if err != nil {
			containerErr = fmt.Errorf("start postgres container: %w", err)
			return
		}

		host, err := pgContainer.Host(ctx)
		if err != nil {
			containerErr = fmt.Errorf("container host: %w", err)
			return
		}
		port, err := pgContainer.MappedPort(ctx, "5432/tcp")
		if err != nil {
			containerErr = fmt.Errorf("container port: %w", err)
			return
		}
		portNum, err := strconv.Atoi(strings.TrimSuffix(string(port), "/tcp"))
		if err != nil {
			containerErr = fmt.Errorf("parse container port: %w", err)
			return
		}

		sharedCfg = database.Config{
			Host: host, Port: portNum, User: "memoryd_test", Password: "memoryd_test",
			Database: "memoryd_test", SSLMode: "disable",
			MaxOpenConns: 10, MaxIdleConns: 5,
			ConnMaxLifetime: time.Hour, ConnMaxIdleTime: 15 * time.Minute,
		}

		db, err := database.NewClient(ctx, sharedCfg)
		if err != nil {
			containerErr = fmt.Errorf("migrate test database: %w", err)
			return
		}
		_ = db.Close()
	})

	require.NoError(t, containerErr, "failed to set up postgres test container")
	return sharedCfg
}
