package facts

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/dukex/admitio/pkg/models"
)

// StaticProvider is an in-memory Provider for tests and local development. Fact
// writes are safe for concurrent use with reads.
type StaticProvider struct {
	mu    sync.RWMutex
	types map[string]string
	facts map[string]models.FactSnapshot
}

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		types: make(map[string]string),
		facts: make(map[string]models.FactSnapshot),
	}
}

// Register adds an application with its type and initial facts.
func (p *StaticProvider) Register(applicationID, applicationType string, snapshot models.FactSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.types[applicationID] = applicationType

	if snapshot == nil {
		snapshot = models.FactSnapshot{}
	}

	p.facts[applicationID] = snapshot
}

// SetFact updates one fact value for an application.
func (p *StaticProvider) SetFact(applicationID, field string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	snapshot, ok := p.facts[applicationID]
	if !ok {
		snapshot = models.FactSnapshot{}
		p.facts[applicationID] = snapshot
	}

	snapshot[field] = value
}

func (p *StaticProvider) ApplicationType(_ context.Context, applicationID string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	applicationType, ok := p.types[applicationID]
	if !ok {
		return "", fmt.Errorf("unknown application %s", applicationID)
	}

	return applicationType, nil
}

func (p *StaticProvider) Snapshot(_ context.Context, applicationID string) (models.FactSnapshot, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	snapshot, ok := p.facts[applicationID]
	if !ok {
		return nil, fmt.Errorf("unknown application %s", applicationID)
	}

	out := make(models.FactSnapshot, len(snapshot))
	maps.Copy(out, snapshot)

	return out, nil
}
