package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/sykell/link-health/internal/config"
	"github.com/sykell/link-health/internal/db"
	"github.com/sykell/link-health/internal/scanner"
	"github.com/sykell/link-health/internal/service"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.InitDB(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "seed.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

func TestSeedOptionsValidate(t *testing.T) {
	assert.NoError(t, seedOptions{Username: "admin", Password: "adminpass"}.validate())
	assert.Error(t, seedOptions{Password: "adminpass"}.validate())
	assert.Error(t, seedOptions{Username: "admin", Password: "short"}.validate())
}

func TestSeedUser(t *testing.T) {
	conn := newTestDB(t)
	var out bytes.Buffer

	opts := seedOptions{Username: "admin", Password: "adminpass", Email: "ops@example.com"}
	require.NoError(t, seedUser(conn, opts, &out))
	first, err := service.GetUserByUsername(conn, "admin")
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", first.Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(first.Password), []byte("adminpass")))

	out.Reset()
	require.NoError(t, seedUser(conn, seedOptions{Username: "admin", Password: "otherpass"}, &out))
	assert.Contains(t, out.String(), "already exists")
	same, err := service.GetUserByUsername(conn, "admin")
	require.NoError(t, err)
	assert.Equal(t, first.ID, same.ID)

	require.NoError(t, seedUser(conn, seedOptions{Username: "admin", Password: "otherpass", Force: true}, &out))
	recreated, err := service.GetUserByUsername(conn, "admin")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(recreated.Password), []byte("otherpass")))
}

type stubScanner struct {
	summary *scanner.Summary
	err     error
}

func (s stubScanner) ScanUser(context.Context, uint) (*scanner.Summary, error) {
	return s.summary, s.err
}

func TestRunScan(t *testing.T) {
	var out bytes.Buffer
	err := runScan(context.Background(), stubScanner{
		summary: &scanner.Summary{Scanned: 2, Broken: 1, Errors: []string{}},
	}, 1, &out)
	require.NoError(t, err)

	var got scanner.Summary
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, 2, got.Scanned)
	assert.Equal(t, 1, got.Broken)

	err = runScan(context.Background(), stubScanner{err: scanner.ErrScanInProgress}, 1, &out)
	assert.ErrorContains(t, err, "already running")
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"seed", "scan", "schedule"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}
