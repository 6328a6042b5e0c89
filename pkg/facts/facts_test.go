package facts

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukex/admitio/pkg/models"
	"github.com/dukex/admitio/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticProvider_UnknownApplication(t *testing.T) {
	provider := NewStaticProvider()

	_, err := provider.ApplicationType(t.Context(), "app-1")
	assert.Error(t, err)

	_, err = provider.Snapshot(t.Context(), "app-1")
	assert.Error(t, err)
}

func TestStaticProvider_RegisterAndSetFact(t *testing.T) {
	provider := NewStaticProvider()
	provider.Register("app-1", "undergraduate", models.FactSnapshot{models.FactFeePaid: true})
	provider.SetFact("app-1", models.FactDocumentsVerified, true)

	applicationType, err := provider.ApplicationType(t.Context(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, "undergraduate", applicationType)

	snapshot, err := provider.Snapshot(t.Context(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, true, snapshot[models.FactFeePaid])
	assert.Equal(t, true, snapshot[models.FactDocumentsVerified])

	// The snapshot is a copy; mutating it must not leak back.
	snapshot[models.FactFeePaid] = false

	again, err := provider.Snapshot(t.Context(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, true, again[models.FactFeePaid])
}

func TestStageAgeProvider_InjectsDaysInStage(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	inner := NewStaticProvider()
	inner.Register("app-1", "undergraduate", models.FactSnapshot{})

	entered := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.StatusRepository().Append(t.Context(), &models.StatusEntry{
		ID:            "e-1",
		ApplicationID: "app-1",
		StageID:       "submitted",
		CreatedAt:     entered,
	}, ""))

	provider := WithStageAge(inner, store.StatusRepository())
	provider.now = func() time.Time { return entered.Add(45*24*time.Hour + 6*time.Hour) }

	snapshot, err := provider.Snapshot(t.Context(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, float64(45), snapshot[models.FactDaysInStage])
}

func TestStageAgeProvider_NoHistoryLeavesSnapshotAlone(t *testing.T) {
	store := file.NewPersistence(t.TempDir())
	inner := NewStaticProvider()
	inner.Register("app-1", "undergraduate", models.FactSnapshot{models.FactFeePaid: true})

	provider := WithStageAge(inner, store.StatusRepository())

	snapshot, err := provider.Snapshot(t.Context(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, true, snapshot[models.FactFeePaid])
	assert.NotContains(t, snapshot, models.FactDaysInStage)
}

func TestHTTPProvider_Snapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/applications/app-1":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"application_type": "undergraduate",
				"facts": {"fee_paid": true, "gpa": 3.4}
			}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	provider := NewHTTPProvider(server.URL + "/")

	applicationType, err := provider.ApplicationType(t.Context(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, "undergraduate", applicationType)

	snapshot, err := provider.Snapshot(t.Context(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, true, snapshot["fee_paid"])
	assert.Equal(t, 3.4, snapshot["gpa"])

	_, err = provider.Snapshot(t.Context(), "missing")
	assert.Error(t, err)
}
