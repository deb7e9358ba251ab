package jason

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"jason/pkg/api"
)

// CheckStatus sends GET /status with the given platform and application version.
// Only the API key is required; the secret token is sent when known.
func (c *Client) CheckStatus(ctx context.Context, platform, appVersion string) (map[string]any, int, error) {
	if err := c.requireCredentials(false); err != nil {
		return nil, 0, err
	}

	query := url.Values{}
	query.Set("platform", platform)
	query.Set("app_version", appVersion)
	if c.creds.SecretToken != "" {
		query.Set("token", c.creds.SecretToken)
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/status", query, nil)
	if err != nil {
		return nil, 0, err
	}

	var body map[string]any
	code, err := c.do(req, "status", &body)
	if err != nil {
		return nil, code, err
	}
	return body, code, nil
}

// APIHealth checks the service with the client's platform and version.
// On success the body is returned without its "success" marker; any other
// answer yields nil.
func (c *Client) APIHealth(ctx context.Context) (map[string]any, error) {
	body, code, err := c.CheckStatus(ctx, c.platform, c.appVersion)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		c.log.Warn("status check failed", "status_code", code, "body", body)
		return nil, nil
	}
	if body == nil {
		body = map[string]any{}
	}
	delete(body, "success")
	return body, nil
}

// ValidateProcessID checks that id is made only of decimal digits.
func ValidateProcessID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty process id", ErrValidation)
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: process id %q must contain only digits", ErrValidation, id)
		}
	}
	return nil
}

// GetStatus sends GET /processes/{id} to retrieve a process and its results.
func (c *Client) GetStatus(ctx context.Context, processID string) (*api.ProcessStatus, int, error) {
	if err := ValidateProcessID(processID); err != nil {
		return nil, 0, err
	}
	if err := c.requireCredentials(true); err != nil {
		return nil, 0, err
	}

	query := url.Values{}
	query.Set("token", c.creds.SecretToken)

	req, err := c.newRequest(ctx, http.MethodGet, "/processes/"+processID, query, nil)
	if err != nil {
		return nil, 0, err
	}

	var status api.ProcessStatus
	code, err := c.do(req, "get_status", &status)
	if err != nil {
		return nil, code, err
	}
	return &status, code, nil
}

// ListProcesses sends GET /users/{token}/processes and returns a summary of
// every process issued by the user. Any non-200 answer yields an empty list.
func (c *Client) ListProcesses(ctx context.Context) ([]api.ProcessSummary, error) {
	if err := c.requireCredentials(true); err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/users/%s/processes", url.PathEscape(c.creds.SecretToken))
	req, err := c.newRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	var processes []api.Process
	code, err := c.do(req, "list_processes", &processes)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		c.log.Warn("listing processes failed", "status_code", code)
		return []api.ProcessSummary{}, nil
	}

	summaries := make([]api.ProcessSummary, 0, len(processes))
	for _, p := range processes {
		summaries = append(summaries, summarize(p))
	}
	return summaries, nil
}

func summarize(p api.Process) api.ProcessSummary {
	source := p.SourceFile
	if i := strings.LastIndex(source, "/"); i >= 0 {
		source = source[i+1:]
	}
	return api.ProcessSummary{
		ID:         p.ID.String(),
		Type:       p.Type,
		Status:     p.Status,
		SourceFile: source,
		Created:    p.Created,
	}
}
