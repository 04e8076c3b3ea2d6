package stats

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RemoteConfig holds statistics upstream settings.
type RemoteConfig struct {
	BaseURL string
	Timeout int // seconds
	RPM     int // requests per minute, 0 = unlimited
	Burst   int
}

// RemoteSource queries the server-computed statistics endpoints. Each
// request goes through a shared rate limiter and circuit breaker; an
// open breaker fails the query like any other upstream error and the
// aggregator's partial-result policy takes it from there.
type RemoteSource struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewRemoteSource(cfg RemoteConfig, logger *zap.Logger) *RemoteSource {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15
	}

	s := &RemoteSource{
		baseURL: cfg.BaseURL,
		client: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
		},
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name: "stats-upstream",
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			Timeout: 30 * time.Second,
		}),
		logger: logger,
	}

	if cfg.RPM > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 10
		}
		s.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RPM)/60.0), burst)
	}

	return s
}

func (s *RemoteSource) get(ctx context.Context, path, profileID string, period Period) ([]byte, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	return s.breaker.Execute(func() ([]byte, error) {
		endpoint := fmt.Sprintf("%s%s?profile_id=%s&period=%s",
			s.baseURL, path, url.QueryEscape(profileID), url.QueryEscape(string(period)))

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			s.logger.Warn("statistics upstream returned non-200",
				zap.String("path", path),
				zap.Int("status", resp.StatusCode),
			)
			return nil, fmt.Errorf("upstream %s returned %d", path, resp.StatusCode)
		}
		return body, nil
	})
}

func (s *RemoteSource) Compliance(ctx context.Context, profileID string, period Period) (Compliance, error) {
	body, err := s.get(ctx, "/statistics/compliance", profileID, period)
	if err != nil {
		return Compliance{}, err
	}
	return decodeCompliance(body)
}

func (s *RemoteSource) Trend(ctx context.Context, profileID string, period Period) ([]SeriesPoint, error) {
	body, err := s.get(ctx, "/statistics/trend", profileID, period)
	if err != nil {
		return nil, err
	}
	return decodeSeries(body)
}

func (s *RemoteSource) Categories(ctx context.Context, profileID string, period Period) ([]SeriesPoint, error) {
	body, err := s.get(ctx, "/statistics/categories", profileID, period)
	if err != nil {
		return nil, err
	}
	return decodeSeries(body)
}

func (s *RemoteSource) MissedDoses(ctx context.Context, profileID string, period Period) ([]SeriesPoint, error) {
	body, err := s.get(ctx, "/statistics/missed", profileID, period)
	if err != nil {
		return nil, err
	}
	return decodeSeries(body)
}

func (s *RemoteSource) PeakTimes(ctx context.Context, profileID string, period Period) ([]SeriesPoint, error) {
	body, err := s.get(ctx, "/statistics/peak-times", profileID, period)
	if err != nil {
		return nil, err
	}
	return decodeSeries(body)
}
