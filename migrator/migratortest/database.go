package migratortest

import (
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for pgtestdb
	"github.com/peterldowns/pgtestdb"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/stakevote/migrator"
)

// CreateMonitorTestDatabase creates a test database with migrations applied and
// the monitor checkpoint set to signature.
// This mirrors the production pattern: schema first, then checkpoint initialization.
func CreateMonitorTestDatabase(t *testing.T, migrationsDir string, signature string) *pgxpool.Pool {
	t.Helper()

	pool := createTestDatabaseWithMigrator(t, migrator.NewSchemaMigrator(migrationsDir))

	err := migrator.InitializeCheckpoint(t.Context(), pool, signature)
	require.NoError(t, err)

	return pool
}

// CreateSeededTestDatabase creates a test database with migrations and demo data seeded.
// Returns the connection pool ready for use.
func CreateSeededTestDatabase(t *testing.T, migrationsDir string, data migrator.DemoData) *pgxpool.Pool {
	t.Helper()

	return createTestDatabaseWithMigrator(t, migrator.NewSeededMigrator(migrationsDir, data))
}

// createTestDatabaseWithMigrator creates a test database using the provided migrator
func createTestDatabaseWithMigrator(t *testing.T, migratorInstance pgtestdb.Migrator) *pgxpool.Pool {
	t.Helper()

	config := createTestDatabaseConfig()

	// Create test database and get its config
	dbConfig := pgtestdb.Custom(t, config, migratorInstance)

	pool, err := pgxpool.New(t.Context(), dbConfig.URL())
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	t.Logf("testdbconf: %s", dbConfig.URL())

	return pool
}

// createTestDatabaseConfig creates the standard pgtestdb configuration for stakevote tests
func createTestDatabaseConfig() pgtestdb.Config {
	return pgtestdb.Config{
		DriverName: "pgx",
		User:       "stakevote",
		Password:   "stakevote",
		Host:       "localhost",
		Port:       "5432",
		Options:    "sslmode=disable",
	}
}
