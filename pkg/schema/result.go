package schema

// RunStatus is the terminal outcome of a command execution.
type RunStatus string

const (
	RunStatusSuccess        RunStatus = "success"
	RunStatusMissingSecrets RunStatus = "missing_secrets"
	RunStatusError          RunStatus = "error"
)

// MissingSecret names a referenced secret that is absent from the vault,
// together with a message the agent can relay to a human.
type MissingSecret struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// RunResult is the structured result of running a command with injected secrets.
// Stdout and Stderr are always scrubbed before a RunResult leaves the executor.
type RunResult struct {
	Status   RunStatus       `json:"status"`
	ExitCode *int            `json:"exit_code,omitempty"`
	Stdout   *string         `json:"stdout,omitempty"`
	Stderr   *string         `json:"stderr,omitempty"`
	Missing  []MissingSecret `json:"missing,omitempty"`
	TimedOut bool            `json:"timed_out,omitempty"`
}

// OK reports whether the command ran and exited with code 0.
func (r *RunResult) OK() bool {
	return r != nil && r.Status == RunStatusSuccess
}

// StdoutText returns stdout or "" when absent.
func (r *RunResult) StdoutText() string {
	if r == nil || r.Stdout == nil {
		return ""
	}
	return *r.Stdout
}

// StderrText returns stderr or "" when absent.
func (r *RunResult) StderrText() string {
	if r == nil || r.Stderr == nil {
		return ""
	}
	return *r.Stderr
}

// ExitCodeValue returns the exit code, or -1 when the command never ran.
func (r *RunResult) ExitCodeValue() int {
	if r == nil || r.ExitCode == nil {
		return -1
	}
	return *r.ExitCode
}
