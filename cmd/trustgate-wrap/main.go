// Command trustgate-wrap implements the Wrapper Contract (component G):
// a drop-in replacement for a CLI tool (kubectl, aws, gh, ...) that gates
// writes on approval, resolves credentials, and execs the real tool.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/byteness/trustgate/config"
	"github.com/byteness/trustgate/wrapper"
)

func main() {
	os.Exit(mainExit())
}

func mainExit() int {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "trustgate-wrap: usage: trustgate-wrap <tool> [args...]")
		return 1
	}
	tool := os.Args[1]
	argv := os.Args[2:]

	cfg, err := config.LoadWrapperConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "trustgate-wrap: loading config: %v\n", err)
		return 1
	}

	w := &wrapper.Wrapper{
		Client:       wrapper.NewClient(cfg.GatewayURL, cfg.SessionToken),
		Provider:     providerFromTool(tool),
		CredSelector: cfg.CredSelector,
	}

	return w.Run(context.Background(), tool, argv)
}

// providerFromTool derives the provider name the policy engine and
// credential broker key on from the wrapped tool's basename, e.g.
// "/usr/local/bin/kubectl" -> "kubectl".
func providerFromTool(tool string) string {
	return filepath.Base(tool)
}
