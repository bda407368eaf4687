package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func importApp(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "modules.db")
	out, err := execute(t, "catalog", "import", "--redirect", "old/theme.json=ui/theme.json", db, "testdata/app")
	require.NoError(t, err)
	assert.Equal(t, "Imported 6 module(s) and 1 redirect(s) into "+db+"\n", out)
	return db
}

func TestCatalogImportAndList(t *testing.T) {
	db := importApp(t)

	out, err := execute(t, "catalog", "ls", db)
	require.NoError(t, err)
	assertGolden(t, "catalog_ls_text", out)

	out, err = execute(t, "--format", "json", "catalog", "ls", db)
	require.NoError(t, err)
	var resp struct {
		Data struct {
			Modules []struct {
				ID string `json:"id"`
			} `json:"modules"`
			Redirects map[string]string `json:"redirects"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Len(t, resp.Data.Modules, 6)
	assert.Equal(t, map[string]string{"old/theme.json": "ui/theme.json"}, resp.Data.Redirects)
}

func TestDeserializeFromCatalog(t *testing.T) {
	db := importApp(t)

	out, err := execute(t, "deserialize", "--catalog", db, "testdata/app/main.json")
	require.NoError(t, err)
	assertGolden(t, "deserialize_text", out)
}

func TestCatalogErrors(t *testing.T) {
	_, err := execute(t, "catalog", "import", filepath.Join(t.TempDir(), "m.db"), "testdata/nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "catalog", "import", "--redirect", "broken", filepath.Join(t.TempDir(), "m.db"), "testdata/app")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out, err := execute(t, "catalog", "ls", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Contains(t, out, "Error [E005]")
}
