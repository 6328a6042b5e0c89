// Package permissions verifies that acting users hold the permissions a transition
// requires. Permission storage itself is an external collaborator; this package only
// defines the consuming interface and a static in-memory implementation.
package permissions

import (
	"context"

	"github.com/dukex/admitio/pkg/models"
)

// Checker answers whether an actor holds every permission in a required set.
// The check is all-of: a single missing permission fails the whole set.
type Checker interface {
	HasPermissions(ctx context.Context, actor *models.Actor, required []string) (bool, error)
}

// StaticChecker is a Checker backed by a fixed actor-to-permissions map. Suitable
// for tests and single-node deployments where the permission catalog is loaded at
// startup.
type StaticChecker struct {
	grants map[string]map[string]bool
}

// NewStaticChecker builds a checker from actor ID to granted permission names.
func NewStaticChecker(grants map[string][]string) *StaticChecker {
	indexed := make(map[string]map[string]bool, len(grants))

	for actorID, permissions := range grants {
		set := make(map[string]bool, len(permissions))
		for _, permission := range permissions {
			set[permission] = true
		}

		indexed[actorID] = set
	}

	return &StaticChecker{grants: indexed}
}

func (c *StaticChecker) HasPermissions(_ context.Context, actor *models.Actor, required []string) (bool, error) {
	if len(required) == 0 {
		return true, nil
	}

	if actor == nil {
		return false, nil
	}

	granted := c.grants[actor.ID]

	for _, permission := range required {
		if !granted[permission] {
			return false, nil
		}
	}

	return true, nil
}
