package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
)

// SessionNewCommandInput contains the input for the session-new command.
type SessionNewCommandInput struct {
	TenantID         string
	EnrollmentSecret string

	Control *Control
}

// SessionNewCommandOutput represents the JSON output from session-new.
type SessionNewCommandOutput struct {
	SessionToken string `json:"session_token"`
	TTLSeconds   int64  `json:"ttl_seconds"`
	ExpiresAt    string `json:"expires_at"`
}

// ConfigureSessionNewCommand sets up the session-new command with kingpin.
func ConfigureSessionNewCommand(app *kingpin.Application, c *Control) {
	input := SessionNewCommandInput{Control: c}

	cmd := app.Command("session-new", "Create a new session for a tenant")

	cmd.Arg("tenant-id", "Tenant id to enroll").
		Required().
		StringVar(&input.TenantID)

	cmd.Arg("enrollment-secret", "Enrollment secret for the tenant").
		Required().
		StringVar(&input.EnrollmentSecret)

	cmd.Action(func(pc *kingpin.ParseContext) error {
		err := SessionNewCommand(context.Background(), input)
		app.FatalIfError(err, "session-new")
		return nil
	})
}

// SessionNewCommand executes the session-new command logic.
func SessionNewCommand(ctx context.Context, input SessionNewCommandInput) error {
	reqBody := map[string]string{
		"tenant_id":         input.TenantID,
		"enrollment_secret": input.EnrollmentSecret,
	}

	var out SessionNewCommandOutput
	if err := doRequest(ctx, input.Control, "POST", "/session/new", reqBody, &out); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create session: %v\n", err)
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
