package migration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("-- test"), 0o644))
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add evidence table", "add_evidence_table"},
		{"Add-Evidence-Table", "add_evidence_table"},
		{"ADD_EVIDENCE_TABLE", "add_evidence_table"},
		{"add__evidence__table", "add_evidence_table"},
		{"Add Payments 123", "add_payments_123"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()

	mf, err := CreateMigration(dir, "add case comments", "Store reviewer comments")
	require.NoError(t, err)

	assert.Equal(t, "000001", mf.Version)
	assert.Equal(t, filepath.Join(dir, "000001_add_case_comments.up.sql"), mf.UpPath)
	assert.Equal(t, filepath.Join(dir, "000001_add_case_comments.down.sql"), mf.DownPath)

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "add case comments")
	assert.Contains(t, string(up), "Store reviewer comments")
	assert.Contains(t, string(up), "BEGIN;")

	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "(rollback)")
}

func TestCreateMigration_NextSequence(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir,
		"000001_create_leakage_tables.up.sql",
		"000001_create_leakage_tables.down.sql",
		"000004_add_index.up.sql",
		"000004_add_index.down.sql",
	)

	mf, err := CreateMigration(dir, "add-vendor-index", "")
	require.NoError(t, err)
	assert.Equal(t, "000005", mf.Version)
	assert.True(t, strings.HasSuffix(mf.UpPath, "000005_add_vendor_index.up.sql"))
}

func TestCreateMigration_CreatesDirectory(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "nested", "migrations")

	_, err := CreateMigration(nested, "init", "")
	require.NoError(t, err)

	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!", "")
	assert.Error(t, err)
}

func TestListMigrations(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir,
		"000003_add_payments.up.sql",
		"000003_add_payments.down.sql",
		"000001_init_schema.up.sql",
		"000001_init_schema.down.sql",
		"000002_add_evidence.up.sql",
	)

	migrations, err := ListMigrations(dir)
	require.NoError(t, err)
	require.Len(t, migrations, 3)

	assert.Equal(t, uint(1), migrations[0].Version)
	assert.Equal(t, "init_schema", migrations[0].Name)
	assert.Equal(t, "000001_init_schema", migrations[0].BaseName())
	assert.True(t, migrations[0].HasDown)

	assert.Equal(t, "add_evidence", migrations[1].Name)
	assert.False(t, migrations[1].HasDown)

	assert.Equal(t, uint(3), migrations[2].Version)
}

func TestListMigrations_EmptyAndMissing(t *testing.T) {
	migrations, err := ListMigrations(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, migrations)

	migrations, err = ListMigrations("/nonexistent/path/to/migrations")
	require.NoError(t, err)
	assert.Empty(t, migrations)
}

func TestListMigrations_IgnoresOtherEntries(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir,
		"000001_init.up.sql",
		"000001_init.down.sql",
		"README.md",
		"notes.up.sql",
		".gitkeep",
	)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "000002_dir.up.sql"), 0o755))

	migrations, err := ListMigrations(dir)
	require.NoError(t, err)
	require.Len(t, migrations, 1)
	assert.Equal(t, "init", migrations[0].Name)
}

func TestListMigrations_DuplicateVersion(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "000001_init.up.sql", "000001_other.up.sql")

	_, err := ListMigrations(dir)
	assert.ErrorContains(t, err, "used by both")
}

func TestRepositoryMigrationsArePaired(t *testing.T) {
	migrations, err := ListMigrations(filepath.Join("..", "..", "..", "migrations"))
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	for _, m := range migrations {
		assert.True(t, m.HasDown, "migration %s has no down file", m.BaseName())
	}
}
