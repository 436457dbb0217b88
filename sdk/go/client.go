package signalissdk

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

// Client is a minimal Signalis HTTP API client.
type Client struct {
	BaseURL    string
	ActorID    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Report represents the API report model (partial).
type Report struct {
	ID             string  `json:"id"`
	CollectivityID string  `json:"collectivity_id"`
	CommuneCode    string  `json:"commune_code"`
	Completed      bool    `json:"completed"`
	TransmissionID *string `json:"transmission_id,omitempty"`
	PackageID      *string `json:"package_id,omitempty"`
	Reference      *string `json:"reference,omitempty"`
}

// Transmission represents the API transmission model.
type Transmission struct {
	ID             string  `json:"id"`
	CollectivityID string  `json:"collectivity_id"`
	Sandbox        bool    `json:"sandbox"`
	CompletedAt    *string `json:"completed_at,omitempty"`
}

// Package represents the API package model.
type Package struct {
	ID          string  `json:"id"`
	Reference   string  `json:"reference"`
	AuthorityID string  `json:"authority_id"`
	Sandbox     bool    `json:"sandbox"`
	AssignedAt  *string `json:"assigned_at,omitempty"`
	ReturnedAt  *string `json:"returned_at,omitempty"`
}

// PoolChange mirrors the accounting returned by pool mutations.
type PoolChange struct {
	Before                int `json:"before"`
	After                 int `json:"after"`
	Added                 int `json:"added,omitempty"`
	Removed               int `json:"removed,omitempty"`
	NotAdded              int `json:"not_added,omitempty"`
	Incomplete            int `json:"incomplete,omitempty"`
	AlreadyTransmitted    int `json:"already_transmitted,omitempty"`
	AlreadyInTransmission int `json:"already_in_transmission,omitempty"`
	Other                 int `json:"other,omitempty"`
}

// FinalizeResult mirrors the finalization outcome.
type FinalizeResult struct {
	OK       bool     `json:"ok"`
	Errors   []string `json:"errors,omitempty"`
	Packages []struct {
		ID          string `json:"id"`
		Reference   string `json:"reference"`
		AuthorityID string `json:"authority_id"`
		Reports     []struct {
			ID        string `json:"id"`
			Reference string `json:"reference"`
		} `json:"reports"`
	} `json:"packages,omitempty"`
	Unrouted []string `json:"unrouted,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateTransmission opens a transmission for a collectivity.
func (c *Client) CreateTransmission(ctx context.Context, collectivityID string, sandbox *bool) (Transmission, error) {
	body := map[string]any{"collectivity_id": collectivityID}
	if sandbox != nil {
		body["sandbox"] = *sandbox
	}
	var resp Transmission
	err := c.do(ctx, http.MethodPost, "v0/transmissions", body, &resp)
	return resp, err
}

// AddReports adds reports to a transmission's pool.
func (c *Client) AddReports(ctx context.Context, transmissionID string, reportIDs []string) (PoolChange, error) {
	var resp PoolChange
	endpoint := fmt.Sprintf("v0/transmissions/%s/reports", url.PathEscape(transmissionID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"report_ids": reportIDs}, &resp)
	return resp, err
}

// RemoveReports removes reports from a transmission's pool.
func (c *Client) RemoveReports(ctx context.Context, transmissionID string, reportIDs []string) (PoolChange, error) {
	var resp PoolChange
	endpoint := fmt.Sprintf("v0/transmissions/%s/reports", url.PathEscape(transmissionID))
	err := c.do(ctx, http.MethodDelete, endpoint, map[string]any{"report_ids": reportIDs}, &resp)
	return resp, err
}

// CompleteTransmission finalizes a transmission into packages.
func (c *Client) CompleteTransmission(ctx context.Context, transmissionID string) (FinalizeResult, error) {
	var resp FinalizeResult
	endpoint := fmt.Sprintf("v0/transmissions/%s/complete", url.PathEscape(transmissionID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// Reports lists reports, optionally filtered by transmission or package.
func (c *Client) Reports(ctx context.Context, filters map[string]string) ([]Report, error) {
	endpoint := "v0/reports"
	if len(filters) > 0 {
		q := url.Values{}
		for k, v := range filters {
			q.Set(k, v)
		}
		endpoint += "?" + q.Encode()
	}
	var resp []Report
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Packages lists packages, optionally filtered.
func (c *Client) Packages(ctx context.Context, filters map[string]string) ([]Package, error) {
	endpoint := "v0/packages"
	if len(filters) > 0 {
		q := url.Values{}
		for k, v := range filters {
			q.Set(k, v)
		}
		endpoint += "?" + q.Encode()
	}
	var resp []Package
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// AssignPackage accepts a package into its authority's workload.
func (c *Client) AssignPackage(ctx context.Context, packageID string) (Package, error) {
	var resp Package
	endpoint := fmt.Sprintf("v0/packages/%s/assign", url.PathEscape(packageID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// ReturnPackage sends a package back to the collectivity.
func (c *Client) ReturnPackage(ctx context.Context, packageID string) (Package, error) {
	var resp Package
	endpoint := fmt.Sprintf("v0/packages/%s/return", url.PathEscape(packageID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.ActorID != "" {
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
