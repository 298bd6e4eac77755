package scheduler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/GPTx-global/flightsurety/oracle/retry"
	"github.com/GPTx-global/flightsurety/oracle/types"
)

var (
	once       sync.Once
	httpClient *http.Client
)

func executorClient() *http.Client {
	once.Do(func() {
		httpClient = &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	})

	return httpClient
}

type httpStatus struct {
	endpoint string
	path     string
	retry    *retry.RetryConfig
}

// HTTPStatus asks an external flight status service for the status. The
// request carries airline, flight and timestamp as query parameters and path
// is a gjson path into the JSON reply, resolving to a status name or code.
func HTTPStatus(endpoint, path string) StatusPolicy {
	return &httpStatus{
		endpoint: endpoint,
		path:     path,
		retry: &retry.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    2 * time.Second,
			Multiplier:  2,
		},
	}
}

func (p *httpStatus) ChooseStatus(ctx context.Context, req types.FlightStatusRequest) (types.StatusCode, error) {
	target, err := p.requestURL(req)
	if err != nil {
		return types.StatusUnknown, err
	}

	var body []byte
	err = retry.Do(ctx, p.retry, func() error {
		body, err = fetchRawData(ctx, target)
		return err
	}, isRetryableFetch)
	if err != nil {
		return types.StatusUnknown, fmt.Errorf("failed to fetch flight status: %w", err)
	}

	result := gjson.GetBytes(body, p.path)
	if !result.Exists() {
		return types.StatusUnknown, fmt.Errorf("path %q not found in status reply", p.path)
	}

	return types.ParseStatusCode(result.String())
}

func (p *httpStatus) requestURL(req types.FlightStatusRequest) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid status url: %w", err)
	}

	q := u.Query()
	q.Set("airline", req.Airline.Hex())
	q.Set("flight", req.Flight)
	q.Set("timestamp", req.Timestamp.String())
	u.RawQuery = q.Encode()

	return u.String(), nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status: %d (%s)", e.code, e.body)
}

// isRetryableFetch retries transport errors and 5xx replies.
func isRetryableFetch(err error) bool {
	if se, ok := err.(*statusError); ok {
		return se.code >= http.StatusInternalServerError
	}
	return err != nil
}

func fetchRawData(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("User-Agent", "flightsurety-oracle/1.0")
	req.Header.Set("Accept", "application/json")

	res, err := executorClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		return nil, &statusError{code: res.StatusCode, body: string(body)}
	}

	return body, nil
}
