package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/alecthomas/kingpin/v2"
)

// ListCommandInput contains the input for the list command.
type ListCommandInput struct {
	Control *Control
}

// ConfigureListCommand sets up the list command with kingpin.
func ConfigureListCommand(app *kingpin.Application, c *Control) {
	input := ListCommandInput{Control: c}

	app.Command("list", "List every approval for the authenticated tenant").
		Action(func(pc *kingpin.ParseContext) error {
			err := ListCommand(context.Background(), input)
			app.FatalIfError(err, "list")
			return nil
		})
}

// ListCommand executes the list command logic.
func ListCommand(ctx context.Context, input ListCommandInput) error {
	var out []StatusCommandOutput
	if err := doRequest(ctx, input.Control, "GET", "/approvals", nil, &out); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list approvals: %v\n", err)
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
