package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is the typed HTTP client used by the CLI and the watch poller.
// Engine sentinel errors survive the round trip: errors.Is works on anything
// the server classified.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient targets a daemon at addr ("host:port" or full URL).
func NewClient(addr string) *Client {
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) CreateProject(ctx context.Context, title string, fastMode bool, retryBudget *int, settings map[string]string) (*ProjectSnapshot, error) {
	req := createProjectRequest{Title: title, FastMode: fastMode, RetryBudget: retryBudget, Settings: settings}
	var out ProjectSnapshot
	if err := c.do(ctx, http.MethodPost, "/api/projects", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListProjects(ctx context.Context, stages ...string) ([]ProjectSnapshot, error) {
	path := "/api/projects"
	if len(stages) > 0 {
		path += "?stage=" + url.QueryEscape(strings.Join(stages, ","))
	}
	var out []ProjectSnapshot
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Project(ctx context.Context, id string) (*ProjectSnapshot, error) {
	var out ProjectSnapshot
	if err := c.do(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/projects/"+url.PathEscape(id), nil, nil)
}

func (c *Client) Progress(ctx context.Context, id string) (*ProgressSnapshot, error) {
	var out ProgressSnapshot
	if err := c.do(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(id)+"/progress", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Approve signs off the review gate. An empty gate approves whatever gate
// the project is currently halted at; naming a gate makes the call
// idempotent against retried requests.
func (c *Client) Approve(ctx context.Context, id, gate string) (*ProjectSnapshot, error) {
	var out ProjectSnapshot
	if err := c.do(ctx, http.MethodPost, "/api/projects/"+url.PathEscape(id)+"/approve", approveRequest{Stage: gate}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Retry(ctx context.Context, id string) (*ProjectSnapshot, error) {
	var out ProjectSnapshot
	if err := c.do(ctx, http.MethodPost, "/api/projects/"+url.PathEscape(id)+"/retry", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Rollback(ctx context.Context, id string) (*ProjectSnapshot, error) {
	var out ProjectSnapshot
	if err := c.do(ctx, http.MethodPost, "/api/projects/"+url.PathEscape(id)+"/rollback", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Restart(ctx context.Context, id, fromStage string) (*ProjectSnapshot, error) {
	var out ProjectSnapshot
	if err := c.do(ctx, http.MethodPost, "/api/projects/"+url.PathEscape(id)+"/restart", restartRequest{Stage: fromStage}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateSettings(ctx context.Context, id string, fastMode *bool, retryBudget *int, values map[string]string) (*ProjectSnapshot, error) {
	req := settingsRequest{FastMode: fastMode, RetryBudget: retryBudget, Values: values}
	var out ProjectSnapshot
	if err := c.do(ctx, http.MethodPatch, "/api/projects/"+url.PathEscape(id)+"/settings", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Impact(ctx context.Context, id, targetStage string, keys []string) (*ImpactReport, error) {
	var out ImpactReport
	req := impactRequest{TargetStage: targetStage, Keys: keys}
	if err := c.do(ctx, http.MethodPost, "/api/projects/"+url.PathEscape(id)+"/impact", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Advance(ctx context.Context, id, fromStage string, epoch, costMinor int64) (*ProjectSnapshot, error) {
	var out ProjectSnapshot
	req := advanceRequest{FromStage: fromStage, Epoch: epoch, CostMinor: costMinor}
	if err := c.do(ctx, http.MethodPost, "/api/projects/"+url.PathEscape(id)+"/advance", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Fail(ctx context.Context, id, atStage string, epoch int64, errorInfo string, costMinor int64) (*ProjectSnapshot, error) {
	var out ProjectSnapshot
	req := failRequest{Stage: atStage, Epoch: epoch, Error: errorInfo, CostMinor: costMinor}
	if err := c.do(ctx, http.MethodPost, "/api/projects/"+url.PathEscape(id)+"/fail", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Status(ctx context.Context) (map[string]int, error) {
	var out map[string]int
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 || resp.StatusCode == http.StatusAccepted {
		return c.decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError rebuilds a typed error from the response envelope.
func (c *Client) decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var envelope errorEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Error.Code == "" {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if sentinel := sentinelForCode(envelope.Error.Code); sentinel != nil {
		return fmt.Errorf("%w: %s", sentinel, envelope.Error.Message)
	}
	return fmt.Errorf("%s: %s", envelope.Error.Code, envelope.Error.Message)
}
