package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoadTableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	writeFile(t, path, `
- user: fanny
  password: azerty
  comment: first
- user: victor
  password: "12345"
  admin: "true"
`)

	table, err := LoadTableFile(path)
	require.NoError(t, err)
	require.Len(t, table.Records, 2)
	assert.Equal(t, []string{"user", "password", "comment", "admin"}, table.Columns)

	// Field order within a record follows the document.
	assert.Equal(t, "user", table.Records[0][0].Name)
	assert.Equal(t, "password", table.Records[0][1].Name)
	assert.Equal(t, "comment", table.Records[0][2].Name)

	v, _ := table.Records[1].Get("admin")
	assert.Equal(t, "true", v)
}

func TestLoadTableFile_OrderBeforeAlphabetical(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	writeFile(t, path, `
- zebra: "1"
  alpha: "2"
`)
	table, err := LoadTableFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"zebra", "alpha"}, table.Columns)
}

func TestParseTable_RejectsNonList(t *testing.T) {
	_, err := ParseTable([]byte("user: fanny"))
	assert.Error(t, err)

	_, err = ParseTable([]byte("- just a scalar"))
	assert.Error(t, err)
}

func TestParseTable_Empty(t *testing.T) {
	table, err := ParseTable(nil)
	require.NoError(t, err)
	assert.Empty(t, table.Records)
}

func TestLoadTableFile_FeedsEngine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	writeFile(t, path, `
- user: fanny
  password: azerty
`)
	table, err := LoadTableFile(path)
	require.NoError(t, err)

	auth, err := Resolve(table)
	require.NoError(t, err)
	d, err := auth.Check("fanny", "azerty")
	require.NoError(t, err)
	assert.True(t, d.Result)
}
