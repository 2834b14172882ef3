// Package directory talks to the HR/project directory that owns employees,
// projects and tasks. Calls go through a circuit breaker so a struggling
// directory does not stall timer requests.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("directory service unavailable")

type namedItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type listResponse struct {
	Items []namedItem `json:"items"`
}

// HTTPClient API client using HTTP
type HTTPClient struct {
	client  *http.Client
	baseURL string
	cb      *gobreaker.CircuitBreaker
}

// NewHTTPClient new HTTPClient
func NewHTTPClient(baseURL string) *HTTPClient {
	settings := gobreaker.Settings{
		Name:        "Directory-API",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Trip if failure rate is bigger then 50% after at least 10 requests
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		cb:      gobreaker.NewCircuitBreaker(settings),
	}
}

// EmployeeExists reports whether the directory knows the employee. A 404 is a
// valid answer, not a failure.
func (c *HTTPClient) EmployeeExists(ctx context.Context, employeeID string) (bool, error) {
	var found bool
	err := c.execute(func() error {
		status, err := c.get(ctx, "/employees/"+url.PathEscape(employeeID), nil)
		if err != nil {
			return err
		}
		found = status == http.StatusOK
		return nil
	})
	return found, err
}

// ActiveEmployees lists the ids of every active employee.
func (c *HTTPClient) ActiveEmployees(ctx context.Context) ([]string, error) {
	var resp listResponse
	err := c.execute(func() error {
		_, err := c.get(ctx, "/employees?status=active", &resp)
		return err
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		ids = append(ids, item.ID)
	}
	return ids, nil
}

// ProjectNames resolves project ids to display names. Unknown ids are omitted.
func (c *HTTPClient) ProjectNames(ctx context.Context, ids []string) (map[string]string, error) {
	return c.names(ctx, "/projects", ids)
}

// TaskNames resolves task ids to display names. Unknown ids are omitted.
func (c *HTTPClient) TaskNames(ctx context.Context, ids []string) (map[string]string, error) {
	return c.names(ctx, "/tasks", ids)
}

func (c *HTTPClient) names(ctx context.Context, path string, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var resp listResponse
	err := c.execute(func() error {
		_, err := c.get(ctx, path+"?ids="+url.QueryEscape(strings.Join(ids, ",")), &resp)
		return err
	})
	if err != nil {
		return nil, err
	}
	for _, item := range resp.Items {
		out[item.ID] = item.Name
	}
	return out, nil
}

func (c *HTTPClient) execute(fn func() error) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

// get decodes a 200 response into out. 404 is returned as a status without error;
// anything else >= 300 is an error.
func (c *HTTPClient) get(ctx context.Context, path string, out interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create directory request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to call directory api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return resp.StatusCode, nil
	}
	if resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("directory api returned non-successful status code: %d", resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode directory response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
