package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/heartmarshall/eventsync/internal/provider"
)

const (
	defaultBaseURL = "https://nominatim.openstreetmap.org"
	defaultTimeout = 10 * time.Second
)

// Config configures a Provider. Nominatim's usage policy requires an
// identifying User-Agent.
type Config struct {
	BaseURL   string
	UserAgent string
	Email     string
	Timeout   time.Duration
}

// Provider resolves free-text locations through the Nominatim search API.
type Provider struct {
	baseURL    string
	userAgent  string
	email      string
	httpClient *http.Client
	log        *slog.Logger
}

func NewProvider(cfg Config, logger *slog.Logger) *Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Provider{
		baseURL:    baseURL,
		userAgent:  cfg.UserAgent,
		email:      cfg.Email,
		httpClient: &http.Client{Timeout: timeout},
		log:        logger.With("adapter", "nominatim"),
	}
}

// Geocode returns the best match for query.
// Returns nil, nil when the search yields no places.
func (p *Provider) Geocode(ctx context.Context, query string) (*provider.GeocodeResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")
	if p.email != "" {
		params.Set("email", p.email)
	}
	reqURL := p.baseURL + "/search?" + params.Encode()

	p.log.DebugContext(ctx, "nominatim request", slog.String("query", query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("nominatim: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nominatim: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nominatim: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("nominatim: read body: %w", err)
	}

	var places []apiPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, fmt.Errorf("nominatim: decode json: %w", err)
	}
	if len(places) == 0 {
		return nil, nil
	}

	result, err := mapPlace(places[0])
	if err != nil {
		return nil, err
	}

	p.log.DebugContext(ctx, "nominatim response",
		slog.String("query", query),
		slog.Float64("lat", result.Lat),
		slog.Float64("lng", result.Lng),
	)

	return result, nil
}

func mapPlace(pl apiPlace) (*provider.GeocodeResult, error) {
	lat, err := strconv.ParseFloat(pl.Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("nominatim: parse lat %q: %w", pl.Lat, err)
	}
	lng, err := strconv.ParseFloat(pl.Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("nominatim: parse lon %q: %w", pl.Lon, err)
	}
	return &provider.GeocodeResult{Lat: lat, Lng: lng, DisplayName: pl.DisplayName}, nil
}
