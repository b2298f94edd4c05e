// Package executor runs shell commands with vault secrets injected as
// environment variables and returns their output scrubbed of those secrets.
//
// A command that references a secret the caller did not supply is never
// started (fail closed). The executor never reads the vault itself: the
// caller passes the name→value mapping in.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/aivault/internal/logging"
	"github.com/rendis/aivault/internal/scrub"
	"github.com/rendis/aivault/pkg/schema"
)

const (
	DefaultTimeoutSeconds = 30
	MinTimeoutSeconds     = 1
	MaxTimeoutSeconds     = 300

	DefaultMaxOutputSize = 10 * 1024 * 1024 // 10MB
	waitDelay            = 2 * time.Second
)

// Config configures an Executor.
type Config struct {
	// Env is the ambient environment the child inherits, as KEY=VALUE pairs.
	// Secrets override entries with the same key.
	Env []string
	// HomeDir is the working directory used when a run does not name one.
	HomeDir string
	// Shell is the interpreter argv the command string is appended to.
	// Defaults to /bin/sh -c on unix and cmd /C elsewhere.
	Shell []string
	// MaxOutputSize caps captured bytes per stream; the rest is discarded.
	MaxOutputSize int64
	Logger        *slog.Logger
}

// RunInput is one command execution request.
type RunInput struct {
	Command          string  `json:"command"`
	WorkingDirectory string  `json:"working_directory,omitempty"`
	TimeoutSeconds   float64 `json:"timeout_seconds,omitempty"`
}

// Executor runs commands. It holds no secret material between runs.
type Executor struct {
	cfg    Config
	logger *slog.Logger
}

// New creates an Executor, filling unset Config fields with defaults.
func New(cfg Config) *Executor {
	if len(cfg.Shell) == 0 {
		cfg.Shell = defaultShell()
	}
	if cfg.MaxOutputSize <= 0 {
		cfg.MaxOutputSize = DefaultMaxOutputSize
	}
	if cfg.HomeDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.HomeDir = home
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &Executor{cfg: cfg, logger: logger}
}

// NewFromProcess creates an Executor that inherits the current process
// environment and home directory.
func NewFromProcess(logger *slog.Logger, maxOutputSize int64) *Executor {
	return New(Config{
		Env:           os.Environ(),
		MaxOutputSize: maxOutputSize,
		Logger:        logger,
	})
}

// ClampTimeout converts a requested timeout in seconds to a duration in
// [MinTimeoutSeconds, MaxTimeoutSeconds]. Zero means the default.
func ClampTimeout(seconds float64) time.Duration {
	if seconds == 0 {
		seconds = DefaultTimeoutSeconds
	}
	seconds = min(max(seconds, MinTimeoutSeconds), MaxTimeoutSeconds)
	return time.Duration(seconds * float64(time.Second))
}

// MissingSecretMessage is the remediation text returned for a referenced
// secret that is not in the vault.
func MissingSecretMessage(name string) string {
	return fmt.Sprintf("This secret is not in the vault. Please ask the user to add it using: "+
		"aivault set %s --desc \"description of what this secret is for\"", name)
}

// CheckReferences returns one MissingSecret for every $NAME in command that
// has no entry in secretValues.
func CheckReferences(command string, secretValues map[string]string) []schema.MissingSecret {
	var missing []schema.MissingSecret
	for _, name := range ParseSecretReferences(command) {
		if _, ok := secretValues[name]; ok {
			continue
		}
		missing = append(missing, schema.MissingSecret{Name: name, Message: MissingSecretMessage(name)})
	}
	return missing
}

// Run executes in.Command with every entry of secretValues injected into the
// environment. The result is always non-nil; subprocess failures are
// reported as RunStatusError, never as a Go error.
func (e *Executor) Run(ctx context.Context, in RunInput, secretValues map[string]string) *schema.RunResult {
	if logging.ExecutionID(ctx) == "" {
		ctx = logging.WithExecutionID(ctx, uuid.NewString())
	}
	scrubber := scrub.New(secretValues)

	if missing := CheckReferences(in.Command, secretValues); len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for _, m := range missing {
			names = append(names, m.Name)
		}
		e.logger.WarnContext(ctx, "command refused: missing secrets", "missing", names)
		return &schema.RunResult{Status: schema.RunStatusMissingSecrets, Missing: missing}
	}

	timeout := ClampTimeout(in.TimeoutSeconds)
	dir := in.WorkingDirectory
	if dir == "" {
		dir = e.cfg.HomeDir
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	argv := append(slices.Clone(e.cfg.Shell), in.Command)
	cmd := exec.CommandContext(execCtx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = mergeEnv(e.cfg.Env, secretValues)
	cmd.WaitDelay = waitDelay
	configureProcess(cmd)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &limitedWriter{w: &stdoutBuf, limit: e.cfg.MaxOutputSize}
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: e.cfg.MaxOutputSize}

	e.logger.InfoContext(ctx, "command started",
		"command", scrubber.Scrub(in.Command),
		"dir", dir,
		"timeout", timeout,
		"secrets_injected", len(secretValues),
	)

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	stdout := scrubber.Scrub(stdoutBuf.String())
	stderr := scrubber.Scrub(stderrBuf.String())

	if runErr == nil {
		e.logger.InfoContext(ctx, "command finished", "exit_code", 0, "duration_ms", duration.Milliseconds())
		return successResult(stdout)
	}

	exitCode := 1
	timedOut := errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	message := runErr.Error()

	var exitErr *exec.ExitError
	switch {
	case timedOut:
		message = fmt.Sprintf("command timed out after %s", timeout)
	case ctx.Err() != nil:
		message = fmt.Sprintf("command cancelled: %v", ctx.Err())
	case errors.As(runErr, &exitErr):
		if code := exitErr.ExitCode(); code > 0 {
			exitCode = code
		}
	}

	if stderr == "" {
		// Scrubbed as well: a spawn error can echo arguments back.
		stderr = scrubber.Scrub(message)
	}

	e.logger.InfoContext(ctx, "command failed",
		"exit_code", exitCode,
		"timed_out", timedOut,
		"duration_ms", duration.Milliseconds(),
	)

	return &schema.RunResult{
		Status:   schema.RunStatusError,
		ExitCode: &exitCode,
		Stdout:   &stdout,
		Stderr:   &stderr,
		TimedOut: timedOut,
	}
}

func successResult(stdout string) *schema.RunResult {
	code := 0
	empty := ""
	return &schema.RunResult{
		Status:   schema.RunStatusSuccess,
		ExitCode: &code,
		Stdout:   &stdout,
		Stderr:   &empty,
	}
}

// mergeEnv returns base with every secret set, replacing any existing
// entry for the same key. Secrets are appended in name order.
func mergeEnv(base []string, secretValues map[string]string) []string {
	env := make([]string, 0, len(base)+len(secretValues))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, override := secretValues[key]; override {
			continue
		}
		env = append(env, kv)
	}
	names := make([]string, 0, len(secretValues))
	for name := range secretValues {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		env = append(env, name+"="+secretValues[name])
	}
	return env
}
