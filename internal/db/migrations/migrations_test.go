package migrations

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryUpHasADown(t *testing.T) {
	ups, err := fs.Glob(FS, "*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)

	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		_, err := fs.Stat(FS, down)
		assert.NoError(t, err, "missing %s", down)
	}
}

func TestSourceWalksInOrder(t *testing.T) {
	src, err := iofs.New(FS, ".")
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	next, err := src.Next(first)
	require.NoError(t, err)
	assert.Equal(t, uint(2), next)

	_, err = src.Next(next)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestOverlapExclusionExcludesCancelled(t *testing.T) {
	data, err := fs.ReadFile(FS, "000001_init_schema.up.sql")
	require.NoError(t, err)
	sql := string(data)

	assert.Contains(t, sql, "EXCLUDE USING gist")
	assert.Contains(t, sql, "'[)'")
	assert.Contains(t, sql, "WHERE (status <> 'Cancelled')")
}

func TestNotifyTriggerCoversEveryTable(t *testing.T) {
	data, err := fs.ReadFile(FS, "000002_change_notify.up.sql")
	require.NoError(t, err)
	sql := string(data)

	assert.Contains(t, sql, "'clinic_changes'")
	for _, table := range []string{"patients", "doctors", "appointments"} {
		assert.Contains(t, sql, "ON "+table+"\n")
	}
}
