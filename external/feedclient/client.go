package feedclient

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/dzoothis/oddsfeed/internal/domain/feed"
	"github.com/dzoothis/oddsfeed/internal/platform/logging"
	"github.com/dzoothis/oddsfeed/internal/platform/resilience"
	"github.com/dzoothis/oddsfeed/internal/usecase"
)

const maxResponseBytes = 6 << 20

var apiKeyParamRegex = regexp.MustCompile(`api_key=[^&\s"']+`)
var errFeedTransient = crerr.New("feed provider transient failure")

type ClientConfig struct {
	// Provider is the canonical provider name this client reports events
	// under ("oddsprime", "betstream", "rapidodds").
	Provider       string
	HTTPClient     *http.Client
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	MaxRetries     int
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client pulls one provider's odds feed over HTTP. All providers speak the
// same envelope; only the base URL and credentials differ per provider.
type Client struct {
	provider       string
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	maxRetries     int
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	flight         resilience.SingleFlight
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 20 * time.Second
	}

	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		provider:       strings.ToLower(strings.TrimSpace(cfg.Provider)),
		httpClient:     httpClient,
		baseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:         strings.TrimSpace(cfg.APIKey),
		maxRetries:     maxInt(cfg.MaxRetries, 0),
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
	}
}

func (c *Client) Provider() string {
	return c.provider
}

// FetchEvents lists the provider's current events for one sport. Rows the
// provider sent malformed are skipped individually so one broken event does
// not void the whole feed.
func (c *Client) FetchEvents(ctx context.Context, sportID int64) ([]feed.RawEvent, error) {
	if sportID <= 0 {
		return nil, fmt.Errorf("sport id must be greater than zero")
	}

	path := fmt.Sprintf("/v1/sports/%d/events", sportID)
	var envelope eventsEnvelope
	if err := c.doJSON(ctx, path, map[string]string{"include": "markets"}, &envelope); err != nil {
		return nil, fmt.Errorf("fetch events provider=%s sport_id=%d: %w", c.provider, sportID, err)
	}

	out := make([]feed.RawEvent, 0, len(envelope.Data))
	for _, item := range envelope.Data {
		event, ok := c.mapEvent(ctx, sportID, item)
		if !ok {
			continue
		}
		out = append(out, event)
	}
	return out, nil
}

func (c *Client) mapEvent(ctx context.Context, sportID int64, item eventItem) (feed.RawEvent, bool) {
	if strings.TrimSpace(item.ID) == "" {
		return feed.RawEvent{}, false
	}
	startingAt, err := parseProviderTime(item.StartingAt)
	if err != nil {
		c.logger.WarnContext(ctx, "skip event with unparseable start time",
			"provider", c.provider,
			"event_id", item.ID,
			"starting_at", item.StartingAt,
		)
		return feed.RawEvent{}, false
	}
	if strings.TrimSpace(item.Home.Name) == "" || strings.TrimSpace(item.Away.Name) == "" {
		return feed.RawEvent{}, false
	}

	event := feed.RawEvent{
		Provider:           c.provider,
		ProviderEventID:    strings.TrimSpace(item.ID),
		SportID:            sportID,
		LeagueID:           strings.TrimSpace(item.League.ID),
		LeagueName:         strings.TrimSpace(item.League.Name),
		HomeTeamName:       strings.TrimSpace(item.Home.Name),
		AwayTeamName:       strings.TrimSpace(item.Away.Name),
		HomeTeamProviderID: strings.TrimSpace(item.Home.ID),
		AwayTeamProviderID: strings.TrimSpace(item.Away.ID),
		ScheduledAt:        startingAt,
		StatusCode:         feed.NormalizeStatus(item.Status),
	}
	if item.Scores != nil {
		event.HomeScore = item.Scores.Home
		event.AwayScore = item.Scores.Away
	}

	for _, market := range item.Markets {
		marketType := strings.TrimSpace(market.Type)
		if marketType == "" || len(market.Outcomes) == 0 {
			continue
		}
		mapped := feed.Market{Type: marketType, Outcomes: make([]feed.Outcome, 0, len(market.Outcomes))}
		for _, outcome := range market.Outcomes {
			if outcome.Odds <= 1 {
				continue
			}
			mapped.Outcomes = append(mapped.Outcomes, feed.Outcome{
				Label: strings.TrimSpace(outcome.Label),
				Odds:  outcome.Odds,
			})
		}
		if len(mapped.Outcomes) > 0 {
			event.Markets = append(event.Markets, mapped)
		}
	}
	return event, true
}

func (c *Client) doJSON(ctx context.Context, path string, query map[string]string, target any) error {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "feed circuit breaker rejected request",
				"provider", c.provider,
				"state", c.breaker.State(),
			)
			return fmt.Errorf("%w: odds provider is temporarily unavailable", usecase.ErrDependencyUnavailable)
		}
	}

	values := url.Values{}
	for key, value := range query {
		values.Set(key, value)
	}
	values.Set("api_key", c.apiKey)

	fullURL := c.baseURL + path
	if encoded := values.Encode(); encoded != "" {
		fullURL += "?" + encoded
	}

	key := path + "?" + values.Encode()
	out, err, _ := c.flight.Do(key, func() (any, error) {
		raw, reqErr := c.executeRequest(ctx, fullURL)
		if c.circuitEnabled {
			if reqErr != nil && isCircuitFailure(reqErr) {
				c.breaker.RecordFailure()
			} else {
				c.breaker.RecordSuccess()
			}
		}
		return raw, reqErr
	})
	if err != nil {
		return err
	}

	raw, ok := out.([]byte)
	if !ok {
		return fmt.Errorf("unexpected response payload type %T", out)
	}
	if err := sonic.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode provider payload: %w", err)
	}
	return nil
}

func (c *Client) executeRequest(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: send request: %s", errFeedTransient, sanitizeSensitiveText(err.Error(), c.apiKey))
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
			_ = resp.Body.Close()
			if readErr != nil {
				lastErr = fmt.Errorf("%w: read response body: %v", errFeedTransient, readErr)
			} else if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return raw, nil
			} else if isRetryableStatus(resp.StatusCode) {
				lastErr = fmt.Errorf("%w: provider status=%d body=%s", errFeedTransient, resp.StatusCode, abbreviateBody(raw))
			} else {
				return nil, fmt.Errorf("provider status=%d body=%s", resp.StatusCode, abbreviateBody(raw))
			}
		}

		if attempt == c.maxRetries {
			break
		}
		backoff := time.Duration(attempt+1) * time.Second
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("provider request failed")
	}
	c.logger.WarnContext(ctx, "feed request failed",
		"provider", c.provider,
		"url", redactAPIURL(fullURL),
		"error", lastErr,
	)
	return nil, lastErr
}

func isCircuitFailure(err error) bool {
	if err == nil {
		return false
	}
	return stderrors.Is(err, errFeedTransient)
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func sanitizeSensitiveText(value, apiKey string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	if apiKey != "" {
		value = strings.ReplaceAll(value, apiKey, "REDACTED")
	}
	return apiKeyParamRegex.ReplaceAllString(value, "api_key=REDACTED")
}

func redactAPIURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	query := parsed.Query()
	if query.Has("api_key") {
		query.Set("api_key", "REDACTED")
		parsed.RawQuery = query.Encode()
	}
	return parsed.String()
}

func abbreviateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= 240 {
		return text
	}
	return text[:240] + "..."
}

func parseProviderTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty start time")
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed.UTC(), nil
	}
	if parsed, err := time.Parse("2006-01-02 15:04:05", value); err == nil {
		return parsed.UTC(), nil
	}
	if unix, err := strconv.ParseInt(value, 10, 64); err == nil && unix > 0 {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unsupported start time format %q", value)
}

func maxInt(left, right int) int {
	if left > right {
		return left
	}
	return right
}

type eventsEnvelope struct {
	Data []eventItem `json:"data"`
}

type eventItem struct {
	ID         string          `json:"id"`
	League     leagueRef       `json:"league"`
	Home       participantRef  `json:"home"`
	Away       participantRef  `json:"away"`
	StartingAt string          `json:"starting_at"`
	Status     string          `json:"status"`
	Scores     *scorePair      `json:"scores"`
	Markets    []marketPayload `json:"markets"`
}

type leagueRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type participantRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type scorePair struct {
	Home *int `json:"home"`
	Away *int `json:"away"`
}

type marketPayload struct {
	Type     string           `json:"type"`
	Outcomes []outcomePayload `json:"outcomes"`
}

type outcomePayload struct {
	Label string  `json:"label"`
	Odds  float64 `json:"odds"`
}
