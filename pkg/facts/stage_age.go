package facts

import (
	"context"
	"time"

	"github.com/dukex/admitio/pkg/models"
	"github.com/dukex/admitio/pkg/persistence"
)

// StageAgeProvider decorates a Provider with the days_in_stage fact, derived from
// the application's status stream. The records service does not know when an
// application entered its current stage; the status entries do.
type StageAgeProvider struct {
	inner    Provider
	statuses persistence.StatusRepository
	now      func() time.Time
}

func WithStageAge(inner Provider, statuses persistence.StatusRepository) *StageAgeProvider {
	return &StageAgeProvider{
		inner:    inner,
		statuses: statuses,
		now:      time.Now,
	}
}

func (p *StageAgeProvider) ApplicationType(ctx context.Context, applicationID string) (string, error) {
	return p.inner.ApplicationType(ctx, applicationID)
}

func (p *StageAgeProvider) Snapshot(ctx context.Context, applicationID string) (models.FactSnapshot, error) {
	snapshot, err := p.inner.Snapshot(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	history, err := p.statuses.History(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	latest := models.Latest(history)
	if latest != nil {
		days := int(p.now().UTC().Sub(latest.CreatedAt) / (24 * time.Hour))
		snapshot[models.FactDaysInStage] = float64(days)
	}

	return snapshot, nil
}
