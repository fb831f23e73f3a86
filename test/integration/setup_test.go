package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/visitmgr/visitmgr/internal/platform/db"
)

// databaseURL points at a disposable Postgres. Every test gets its own
// schema, so tests may run in parallel against one database.
var databaseURL = os.Getenv("TEST_DATABASE_URL")

// findMigrationsDir locates the migrations directory relative to this test file.
func findMigrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// newTestPool creates a fresh schema, migrates it and returns a pool whose
// connections use it as search_path. The schema is dropped on cleanup.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	schema := "it_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]

	admin, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := admin.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", schema)); err != nil {
		admin.Close()
		t.Fatalf("create schema: %v", err)
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	cfg.MaxConns = 16
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		if _, err := admin.Exec(context.Background(), fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schema)); err != nil {
			t.Logf("warning: failed to drop schema %s: %v", schema, err)
		}
		admin.Close()
	})

	if _, err := db.NewMigrator(pool, findMigrationsDir()).Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// seedVisit inserts a patient, a doctor and a visit with the given status.
func seedVisit(t *testing.T, pool *pgxpool.Pool, visitID int, status string) {
	t.Helper()
	ctx := context.Background()
	stmts := []struct {
		sql  string
		args []interface{}
	}{
		{`INSERT INTO patients (patient_id, name, email, phone) VALUES ($1, 'Pat', 'pat@example.com', '+15550100')
		  ON CONFLICT DO NOTHING`, []interface{}{visitID}},
		{`INSERT INTO doctors (doctor_id, name, email, phone, specialization) VALUES ($1, 'Doc', 'doc@example.com', '+15550101', 'General')
		  ON CONFLICT DO NOTHING`, []interface{}{visitID}},
		{`INSERT INTO visits (visit_id, visit_type, visit_duration, visit_date, patient_id, doctor_id, status)
		  VALUES ($1, 'Consultation', 30, NOW(), $1, $1, $2)`, []interface{}{visitID, status}},
	}
	for _, s := range stmts {
		if _, err := pool.Exec(ctx, s.sql, s.args...); err != nil {
			t.Fatalf("seed visit %d: %v", visitID, err)
		}
	}
}

// seedRule inserts a billing rule and returns its id.
func seedRule(t *testing.T, pool *pgxpool.Pool, name, price string) int {
	t.Helper()
	var id int
	err := pool.QueryRow(context.Background(),
		`INSERT INTO rules (rule_name, rule_price) VALUES ($1, $2::text::numeric) RETURNING id`, name, price).Scan(&id)
	if err != nil {
		t.Fatalf("seed rule: %v", err)
	}
	return id
}
