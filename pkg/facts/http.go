package facts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukex/admitio/pkg/models"
)

const defaultRequestTimeout = 10 * time.Second

// HTTPProvider reads application facts from the institution's records service.
// It expects GET {baseURL}/applications/{id} to answer with the application type
// and the current fact values.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

type applicationRecord struct {
	ApplicationType string         `json:"application_type"`
	Facts           map[string]any `json:"facts"`
}

func NewHTTPProvider(baseURL string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultRequestTimeout},
	}
}

func (p *HTTPProvider) ApplicationType(ctx context.Context, applicationID string) (string, error) {
	record, err := p.fetch(ctx, applicationID)
	if err != nil {
		return "", err
	}

	return record.ApplicationType, nil
}

func (p *HTTPProvider) Snapshot(ctx context.Context, applicationID string) (models.FactSnapshot, error) {
	record, err := p.fetch(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	if record.Facts == nil {
		return models.FactSnapshot{}, nil
	}

	return models.FactSnapshot(record.Facts), nil
}

func (p *HTTPProvider) fetch(ctx context.Context, applicationID string) (*applicationRecord, error) {
	endpoint := p.baseURL + "/applications/" + url.PathEscape(applicationID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build records request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach records service: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("records service returned status %d for application %s",
			resp.StatusCode, applicationID)
	}

	var record applicationRecord

	err = json.NewDecoder(resp.Body).Decode(&record)
	if err != nil {
		return nil, fmt.Errorf("failed to decode application record: %w", err)
	}

	return &record, nil
}
