// Package facts defines the read-side contract with the external application
// record store.
package facts

import (
	"context"

	"github.com/dukex/admitio/pkg/models"
)

// Provider supplies application-derived data to the workflow core. The core never
// owns the application entity; it reads the application type and a fact snapshot,
// and it owns only the status-entry stream recording the application's progression.
type Provider interface {
	// ApplicationType returns the type the application was submitted under,
	// used to resolve the active workflow.
	ApplicationType(ctx context.Context, applicationID string) (string, error)

	// Snapshot returns the current fact values for condition evaluation
	// (documents_verified, application_fee_paid, gpa, test_score,
	// days_in_stage, custom_field_*). Fields without a value are simply
	// absent; absence never satisfies a condition.
	Snapshot(ctx context.Context, applicationID string) (models.FactSnapshot, error)
}
