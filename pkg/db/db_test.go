package db

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.False(t, IsDuplicateKeyErr(nil))
	assert.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicateKeyErr(fmt.Errorf("wrap: %w", gorm.ErrDuplicatedKey)))
	assert.True(t, IsDuplicateKeyErr(errors.New(`ERROR: duplicate key value violates unique constraint "idx_customers_customer_id"`)))
	assert.True(t, IsDuplicateKeyErr(errors.New("Error 1062: Duplicate entry")))
	assert.True(t, IsDuplicateKeyErr(errors.New("constraint failed: UNIQUE constraint failed: customers.customer_id (2067)")))
	assert.False(t, IsDuplicateKeyErr(errors.New("database is locked")))
}

func TestDialect(t *testing.T) {
	for _, typ := range []string{"sqlite", "", "postgres", "mysql"} {
		d, err := Dialect(Config{Type: typ, Path: "x.db"})
		require.NoError(t, err, typ)
		assert.NotNil(t, d)
	}

	_, err := Dialect(Config{Type: "oracle"})
	assert.Error(t, err)
}

func TestSQLiteDSN(t *testing.T) {
	dsn := SQLiteDSN("data/customers.db")
	assert.Contains(t, dsn, "file:data/customers.db?")
	assert.Contains(t, dsn, "synchronous(FULL)")
}

func TestOpenCreatesSQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "customers.db")

	conn, err := Open(Config{Type: "sqlite", Path: path}, "customer-directory-test")
	require.NoError(t, err)
	require.NoError(t, conn.Exec("CREATE TABLE probe (id INTEGER)").Error)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
	require.NoError(t, sqlDB.Close())
	assert.FileExists(t, path)
}
