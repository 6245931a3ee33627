package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
)

// DecideCommandInput contains the input shared by the approve and deny
// commands — they differ only in which endpoint they hit.
type DecideCommandInput struct {
	ApprovalID string
	Decider    string

	Control *Control
}

// DecideCommandOutput represents the JSON output from approve/deny.
type DecideCommandOutput struct {
	Status string `json:"status"`
}

// ConfigureApproveCommand sets up the approve command with kingpin.
func ConfigureApproveCommand(app *kingpin.Application, c *Control) {
	input := DecideCommandInput{Control: c}

	cmd := app.Command("approve", "Approve a pending approval")

	cmd.Arg("approval-id", "The approval id to approve").
		Required().
		StringVar(&input.ApprovalID)

	cmd.Flag("decider", "Identity of the human approving").
		Envar("TRUSTGATE_DECIDER").
		StringVar(&input.Decider)

	cmd.Action(func(pc *kingpin.ParseContext) error {
		err := DecideCommand(context.Background(), input, "approve")
		app.FatalIfError(err, "approve")
		return nil
	})
}

// ConfigureDenyCommand sets up the deny command with kingpin.
func ConfigureDenyCommand(app *kingpin.Application, c *Control) {
	input := DecideCommandInput{Control: c}

	cmd := app.Command("deny", "Deny a pending approval")

	cmd.Arg("approval-id", "The approval id to deny").
		Required().
		StringVar(&input.ApprovalID)

	cmd.Flag("decider", "Identity of the human denying").
		Envar("TRUSTGATE_DECIDER").
		StringVar(&input.Decider)

	cmd.Action(func(pc *kingpin.ParseContext) error {
		err := DecideCommand(context.Background(), input, "deny")
		app.FatalIfError(err, "deny")
		return nil
	})
}

// DecideCommand executes the approve/deny command logic against
// /approvals/{id}/{decision}.
func DecideCommand(ctx context.Context, input DecideCommandInput, decision string) error {
	path := "/approvals/" + input.ApprovalID + "/" + decision
	var headers map[string]string
	if input.Decider != "" {
		headers = map[string]string{"X-Decider": input.Decider}
	}

	var out DecideCommandOutput
	if err := doRequestWithHeaders(ctx, input.Control, "POST", path, headers, nil, &out); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to %s approval %s: %v\n", decision, input.ApprovalID, err)
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
