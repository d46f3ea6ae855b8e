package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const defaultTimeout = 30 * time.Second

// HTTPProvider is a thin JSON client for an upstream floor-price API that
// serves a market-cap listing and per-collection price history. It maps
// responses straight into the neutral provider types and wraps failures in
// FetchError so the engines can classify them.
type HTTPProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

var (
	_ MarketCapProvider    = (*HTTPProvider)(nil)
	_ PriceHistoryProvider = (*HTTPProvider)(nil)
)

func NewHTTPProvider(baseURL, apiKey string) *HTTPProvider {
	return &HTTPProvider{
		client:  &http.Client{Timeout: defaultTimeout},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// FetchAllCollections retrieves the full market-cap snapshot
func (p *HTTPProvider) FetchAllCollections(ctx context.Context) ([]CollectionSnapshot, error) {
	var payload struct {
		Collections []CollectionSnapshot `json:"collections"`
	}
	if err := p.getJSON(ctx, "/v1/collections", nil, "", &payload); err != nil {
		return nil, err
	}
	return payload.Collections, nil
}

// FetchPriceHistory retrieves raw price points for one collection
func (p *HTTPProvider) FetchPriceHistory(ctx context.Context, slug string, granularity Granularity, startTs, endTs int64) ([]PricePoint, error) {
	params := url.Values{}
	params.Set("granularity", string(granularity))
	params.Set("start", fmt.Sprintf("%d", startTs))
	params.Set("end", fmt.Sprintf("%d", endTs))

	var payload struct {
		Points []PricePoint `json:"points"`
	}
	path := fmt.Sprintf("/v1/collections/%s/prices", url.PathEscape(slug))
	if err := p.getJSON(ctx, path, params, slug, &payload); err != nil {
		return nil, err
	}
	return payload.Points, nil
}

func (p *HTTPProvider) getJSON(ctx context.Context, path string, params url.Values, slug string, out interface{}) error {
	reqURL := p.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return &FetchError{Slug: slug, Err: err}
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return &FetchError{Slug: slug, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &FetchError{
			Slug:       slug,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status"),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &FetchError{Slug: slug, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}
