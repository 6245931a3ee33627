package wrapper

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/byteness/trustgate/policy"
)

// pollInterval is how often PollApproval checks the gateway while a write
// waits on a human decision.
const pollInterval = 2 * time.Second

// Wrapper classifies a tool invocation, gates writes on approval, fetches
// credentials, and execs the tool with a scrubbed, credential-injected
// environment. Exit codes follow the external contract: 0 success, 1
// admission/execution failure, otherwise whatever the child returned.
type Wrapper struct {
	Client       *Client
	Provider     string
	CredSelector string // GATEWAY_CREDS; empty means no credential fetch
}

// Run executes tool with argv on behalf of the wrapper's session, writing
// the child's stdout/stderr straight through and returning the process
// exit code.
func (w *Wrapper) Run(ctx context.Context, tool string, argv []string) int {
	commandLine := strings.Join(append([]string{tool}, argv...), " ")
	classification := policy.ClassifyCLI(w.Provider, commandLine)

	if classification == policy.Write {
		approved, err := w.gateApproval(ctx, tool, strings.Join(argv, " "), classification.String())
		if err != nil {
			fmt.Fprintln(os.Stderr, "trustgate-wrap: approval request failed:", err)
			return 1
		}
		if !approved {
			fmt.Fprintln(os.Stderr, "trustgate-wrap: request not approved")
			return 1
		}
	}

	env := ScrubEnv(os.Environ())
	if w.CredSelector != "" {
		fields, err := w.Client.FetchCredentials(ctx, w.CredSelector)
		if err != nil {
			fmt.Fprintln(os.Stderr, "trustgate-wrap: credential fetch failed:", err)
			return 1
		}
		env = InjectCredentials(env, w.Provider, fields)
	}

	return w.exec(ctx, tool, argv, env)
}

func (w *Wrapper) gateApproval(ctx context.Context, tool, args, classification string) (bool, error) {
	id, err := w.Client.RequestApproval(ctx, tool, args, classification)
	if err != nil {
		return false, err
	}
	return w.Client.PollApproval(ctx, id, pollInterval)
}

// exec runs the real child process (spawn, wait, propagate exit code) —
// the wrapper contract never merely logs "would execute".
func (w *Wrapper) exec(ctx context.Context, tool string, argv []string, env []string) int {
	cmd := exec.CommandContext(ctx, tool, argv...)
	cmd.Env = env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode()
		}
		fmt.Fprintln(os.Stderr, "trustgate-wrap: exec failed:", err)
		return 1
	}
	return 0
}
