package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
)

// StatusCommandInput contains the input for the status command.
type StatusCommandInput struct {
	ApprovalID string

	Control *Control
}

// approvalDetailsOutput mirrors approval.Details without importing the
// approval package, keeping trustgatectl a pure HTTP client of the gateway.
type approvalDetailsOutput struct {
	Provider       string `json:"provider,omitempty"`
	Method         string `json:"method,omitempty"`
	Path           string `json:"path,omitempty"`
	Command        string `json:"command,omitempty"`
	Args           string `json:"args,omitempty"`
	Classification string `json:"classification,omitempty"`
}

// StatusCommandOutput represents the JSON output from the status command.
type StatusCommandOutput struct {
	ID              string                `json:"id"`
	TenantID        string                `json:"tenant_id"`
	SourceRequestID string                `json:"source_request_id,omitempty"`
	Status          string                `json:"status"`
	CreatedAt       time.Time             `json:"created_at"`
	ExpiresAt       time.Time             `json:"expires_at"`
	DecidedAt       time.Time             `json:"decided_at,omitempty"`
	DecidedBy       string                `json:"decided_by,omitempty"`
	Details         approvalDetailsOutput `json:"details"`
}

// ConfigureStatusCommand sets up the status command with kingpin.
func ConfigureStatusCommand(app *kingpin.Application, c *Control) {
	input := StatusCommandInput{Control: c}

	cmd := app.Command("status", "Show the status of an approval")

	cmd.Arg("approval-id", "The approval id to look up").
		Required().
		StringVar(&input.ApprovalID)

	cmd.Action(func(pc *kingpin.ParseContext) error {
		err := StatusCommand(context.Background(), input)
		app.FatalIfError(err, "status")
		return nil
	})
}

// StatusCommand executes the status command logic.
func StatusCommand(ctx context.Context, input StatusCommandInput) error {
	var out StatusCommandOutput
	path := "/approvals/" + input.ApprovalID + "/status"
	if err := doRequest(ctx, input.Control, "GET", path, nil, &out); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to fetch approval status: %v\n", err)
		return err
	}

	jsonBytes, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal output to JSON: %v\n", err)
		return err
	}
	fmt.Println(string(jsonBytes))
	return nil
}
