// Package main implements trustgatectl, the operator CLI for a running
// trustgated instance: create sessions, list pending approvals, and decide
// them.
package main

import (
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
)

// Control holds shared state for all trustgatectl commands.
type Control struct {
	GatewayURL   string
	SessionToken string

	// HTTPClient is an optional http.Client override for testing.
	HTTPClient *http.Client
}

func (c *Control) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 15 * time.Second}
}

// ConfigureControlGlobals sets up global flags shared by every subcommand.
func ConfigureControlGlobals(app *kingpin.Application) *Control {
	c := &Control{}

	app.Flag("gateway-url", "Base URL of the trustgated instance").
		Envar("TRUSTGATE_URL").
		Default("http://127.0.0.1:8080").
		StringVar(&c.GatewayURL)

	app.Flag("session-token", "Bearer session token for authenticated commands").
		Envar("TRUSTGATE_SESSION_TOKEN").
		StringVar(&c.SessionToken)

	return c
}

func main() {
	app := kingpin.New("trustgatectl", "Operator CLI for a trust-gateway instance")
	c := ConfigureControlGlobals(app)

	ConfigureSessionNewCommand(app, c)
	ConfigureApproveCommand(app, c)
	ConfigureDenyCommand(app, c)
	ConfigureStatusCommand(app, c)
	ConfigureListCommand(app, c)

	kingpin.MustParse(app.Parse(os.Args[1:]))
}
