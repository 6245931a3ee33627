// Package wrapper implements the gateway's Wrapper Contract (component G):
// for a tool invocation on behalf of a session, it classifies the argv,
// requests approval for writes, fetches credentials, and execs the tool
// with a scrubbed, credential-injected environment.
package wrapper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to a running gateway on behalf of the wrapper.
type Client struct {
	BaseURL      string
	SessionToken string
	HTTPClient   *http.Client
}

// NewClient creates a Client with a bounded default HTTP timeout.
func NewClient(baseURL, sessionToken string) *Client {
	return &Client{
		BaseURL:      baseURL,
		SessionToken: sessionToken,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.SessionToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.HTTPClient.Do(req)
}

type approvalRequestBody struct {
	Command        string `json:"command"`
	Args           string `json:"args"`
	Classification string `json:"classification"`
}

type approvalSnapshot struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// RequestApproval posts {command, args, classification} to the gateway's
// approval endpoint and returns the new approval's id.
func (c *Client) RequestApproval(ctx context.Context, command, args, classification string) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, "/approvals/request", approvalRequestBody{
		Command:        command,
		Args:           args,
		Classification: classification,
	})
	if err != nil {
		return "", fmt.Errorf("requesting approval: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("approval request rejected: status %d", resp.StatusCode)
	}

	var snap approvalSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return "", fmt.Errorf("decoding approval response: %w", err)
	}
	return snap.ID, nil
}

// PollApproval polls the approval's status endpoint at interval until it
// reaches a terminal state or ctx is cancelled. It returns true iff the
// final status is "approved".
func (c *Client) PollApproval(ctx context.Context, id string, interval time.Duration) (bool, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := c.approvalStatus(ctx, id)
		if err != nil {
			return false, err
		}
		switch status {
		case "approved":
			return true, nil
		case "denied", "expired":
			return false, nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

func (c *Client) approvalStatus(ctx context.Context, id string) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/approvals/"+id+"/status", nil)
	if err != nil {
		return "", fmt.Errorf("polling approval status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("approval status request failed: status %d", resp.StatusCode)
	}

	var snap approvalSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return "", fmt.Errorf("decoding approval status: %w", err)
	}
	return snap.Status, nil
}

type credentialsFetchBody struct {
	Selector string `json:"selector"`
}

// FetchCredentials resolves selector against the gateway's credential
// endpoint and returns the bundle's fields.
func (c *Client) FetchCredentials(ctx context.Context, selector string) (map[string]string, error) {
	resp, err := c.do(ctx, http.MethodPost, "/credentials/fetch", credentialsFetchBody{Selector: selector})
	if err != nil {
		return nil, fmt.Errorf("fetching credentials: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("credential fetch failed: status %d", resp.StatusCode)
	}

	var bundle struct {
		Fields map[string]string `json:"Fields"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&bundle); err != nil {
		return nil, fmt.Errorf("decoding credential bundle: %w", err)
	}
	return bundle.Fields, nil
}
