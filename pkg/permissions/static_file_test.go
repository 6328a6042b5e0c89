package permissions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/admitio/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadStaticChecker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grants.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"reviewer-1": ["review_application", "request_documents"]
	}`), 0o600))

	checker, err := LoadStaticChecker(path)
	require.NoError(t, err)

	actor := &models.Actor{ID: "reviewer-1"}

	ok, err := checker.HasPermissions(t.Context(), actor, []string{"review_application", "request_documents"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = checker.HasPermissions(t.Context(), actor, []string{"make_decision"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadStaticChecker_MissingFile(t *testing.T) {
	_, err := LoadStaticChecker(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoadStaticChecker_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grants.json")
	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o600))

	_, err := LoadStaticChecker(path)
	assert.Error(t, err)
}
