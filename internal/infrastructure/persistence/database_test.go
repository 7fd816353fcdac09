package persistence

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type agentRunRow struct {
	ID        uint
	TenantID  string
	AgentSlug string
	Status    string
}

// newMockDatabase wires a Database over a sqlmock connection so queries can
// be asserted without a real Postgres.
func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return &Database{DB: gormDB}, mock
}

func TestDatabase_WithTenant(t *testing.T) {
	t.Run("scopes every query to the tenant", func(t *testing.T) {
		db, mock := newMockDatabase(t)

		tenantID := "550e8400-e29b-41d4-a716-446655440000"
		mock.ExpectQuery(`SELECT \* FROM "agent_run_rows" WHERE tenant_id = \$1`).
			WithArgs(tenantID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "agent_slug", "status"}).
				AddRow(1, tenantID, "stock_monitor", "completed"))

		var runs []agentRunRow
		require.NoError(t, db.WithTenant(tenantID).Find(&runs).Error)
		require.Len(t, runs, 1)
		assert.Equal(t, "stock_monitor", runs[0].AgentSlug)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("does not mutate the shared connection", func(t *testing.T) {
		db, _ := newMockDatabase(t)

		original := db.DB
		scoped := db.WithTenant("tenant-a")

		assert.NotEqual(t, original, scoped)
		assert.Equal(t, original, db.DB)
	})

	t.Run("distinct tenants get distinct scopes", func(t *testing.T) {
		db, _ := newMockDatabase(t)

		assert.NotEqual(t, db.WithTenant("tenant-a"), db.WithTenant("tenant-b"))
	})

	t.Run("empty tenant ID panics", func(t *testing.T) {
		db, _ := newMockDatabase(t)

		assert.Panics(t, func() { db.WithTenant("") })
	})

	t.Run("tenant ID is bound as a parameter", func(t *testing.T) {
		db, mock := newMockDatabase(t)

		// A hostile tenant value must never reach the SQL text.
		tenantID := "tenant'; DROP TABLE agent_runs; --"
		mock.ExpectQuery(`SELECT \* FROM "agent_run_rows" WHERE tenant_id = \$1`).
			WithArgs(tenantID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "agent_slug", "status"}))

		var runs []agentRunRow
		require.NoError(t, db.WithTenant(tenantID).Find(&runs).Error)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("composes with filters and pagination", func(t *testing.T) {
		db, mock := newMockDatabase(t)

		tenantID := "tenant-page"
		mock.ExpectQuery(`SELECT \* FROM "agent_run_rows" WHERE tenant_id = \$1 AND status = \$2 ORDER BY id DESC LIMIT \$3 OFFSET \$4`).
			WithArgs(tenantID, "pending", 10, 5).
			WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "agent_slug", "status"}).
				AddRow(6, tenantID, "repricing", "pending"))

		var runs []agentRunRow
		err := db.WithTenant(tenantID).
			Where("status = ?", "pending").
			Order("id DESC").
			Limit(10).Offset(5).
			Find(&runs).Error
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDatabase_Transaction(t *testing.T) {
	t.Run("commits when the function succeeds", func(t *testing.T) {
		db, mock := newMockDatabase(t)

		mock.ExpectBegin()
		// Postgres inserts go through Query because of the RETURNING clause.
		mock.ExpectQuery(`INSERT INTO "agent_run_rows"`).
			WithArgs("tenant-a", "dead_stock", "running").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectCommit()

		err := db.Transaction(func(tx *gorm.DB) error {
			return tx.Create(&agentRunRow{TenantID: "tenant-a", AgentSlug: "dead_stock", Status: "running"}).Error
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when the function fails", func(t *testing.T) {
		db, mock := newMockDatabase(t)

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := db.Transaction(func(tx *gorm.DB) error {
			return assert.AnError
		})
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDatabase_Ping(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	// gorm.Open pings once itself.
	mock.ExpectPing()
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	db := &Database{DB: gormDB}

	mock.ExpectPing()
	assert.NoError(t, db.Ping())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_Close(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	db := &Database{DB: gormDB}

	mock.ExpectClose()
	assert.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_Stats(t *testing.T) {
	db, _ := newMockDatabase(t)

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.OpenConnections, 0)
	assert.GreaterOrEqual(t, stats.InUse+stats.Idle, 0)
}
