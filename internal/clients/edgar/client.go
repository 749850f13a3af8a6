// Package edgar is a client for the SEC EDGAR full-text search API and
// the quarterly master.idx archive, plus the 13F information-table
// parser. All requests carry the SEC-mandated User-Agent and are rate
// limited to stay within the fair access policy.
package edgar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	searchURL     = "https://efts.sec.gov/LATEST/search-index"
	masterURLTmpl = "https://www.sec.gov/Archives/edgar/full-index/%d/QTR%d/master.idx"

	// DefaultPageSize is the EFTS page size used by the scraper.
	DefaultPageSize = 200
)

// Client talks to SEC EDGAR
type Client struct {
	httpClient *http.Client
	userAgent  string
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	maxRetries int
	baseSleep  time.Duration
	log        zerolog.Logger
}

// NewClient creates a new EDGAR client. userAgent must identify the
// operator with a contact address; requestsPerSecond should stay below
// the SEC's published limit of 10.
func NewClient(userAgent string, requestsPerSecond float64, log zerolog.Logger) *Client {
	settings := gobreaker.Settings{
		Name:     "edgar",
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		userAgent:  userAgent,
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		breaker:    gobreaker.NewCircuitBreaker(settings),
		maxRetries: 5,
		baseSleep:  800 * time.Millisecond,
		log:        log.With().Str("client", "edgar").Logger(),
	}
}

// SearchQuery describes one EFTS full-text search.
type SearchQuery struct {
	Forms     []string // form types to include; empty means all
	StartDate string   // YYYY-MM-DD, optional
	EndDate   string   // YYYY-MM-DD, optional
	PageSize  int
}

// searchPayload is the EFTS request body
type searchPayload struct {
	Keys      []string         `json:"keys"`
	Category  string           `json:"category"`
	From      int              `json:"from"`
	Size      int              `json:"size"`
	Sort      []map[string]any `json:"sort"`
	Forms     []string         `json:"forms,omitempty"`
	DateRange string           `json:"dateRange"`
	StartDt   string           `json:"startdt,omitempty"`
	EndDt     string           `json:"enddt,omitempty"`
}

// SearchPage is one page of EFTS hits, normalized.
type SearchPage struct {
	Total   int
	Filings []NormalizedFiling
}

// Search runs one page of an EFTS full-text search starting at fromIndex.
func (c *Client) Search(ctx context.Context, query SearchQuery, fromIndex int) (*SearchPage, error) {
	size := query.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}

	payload := searchPayload{
		Keys:     []string{"formType"},
		Category: "custom",
		From:     fromIndex,
		Size:     size,
		Sort:     []map[string]any{{"filedAt": map[string]string{"order": "desc"}}},
		Forms:    query.Forms,
	}
	if query.StartDate != "" && query.EndDate != "" {
		payload.DateRange = "custom"
		payload.StartDt = query.StartDate
		payload.EndDt = query.EndDate
	} else {
		payload.DateRange = "all"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search payload: %w", err)
	}

	raw, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, searchURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("EFTS search failed: %w", err)
	}

	var resp searchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode EFTS response: %w", err)
	}

	page := &SearchPage{Total: resp.Hits.Total.Value}
	for _, hit := range resp.Hits.Hits {
		page.Filings = append(page.Filings, normalizeHit(hit))
	}

	return page, nil
}

// FetchDocument downloads one filing document.
func (c *Client) FetchDocument(ctx context.Context, url string) ([]byte, error) {
	raw, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	return raw, nil
}

// doWithRetry executes a request through the rate limiter and circuit
// breaker, retrying with exponential backoff. buildReq is called per
// attempt because request bodies are single-use.
func (c *Client) doWithRetry(ctx context.Context, buildReq func() (*http.Request, error)) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			sleep := time.Duration(float64(c.baseSleep) * pow(1.5, attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(sleep):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		result, err := c.breaker.Execute(func() (any, error) {
			req, err := buildReq()
			if err != nil {
				return nil, err
			}
			req.Header.Set("User-Agent", c.userAgent)

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return nil, err
			}
			if resp.StatusCode != http.StatusOK {
				return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(string(body), 200))
			}
			return body, nil
		})
		if err != nil {
			lastErr = err
			c.log.Warn().Err(err).Int("attempt", attempt+1).Msg("EDGAR request failed")
			continue
		}

		return result.([]byte), nil
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", c.maxRetries, lastErr)
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
