// Package barrier evaluates external gating conditions and runs the
// background monitor that flips them to satisfied.
package barrier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/msageha/wildloop/internal/model"
)

// CheckResult is the outcome of one barrier evaluation. Detail is recorded
// to the barrier's last_check_result field so operators can see why a
// barrier has not cleared.
type CheckResult struct {
	Satisfied bool
	Detail    string
}

// Checker evaluates a barrier's type-specific condition. Command-backed
// checks run under a per-check timeout so a hung command can never stall
// the monitor loop.
type Checker struct {
	timeout time.Duration
}

func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Checker{timeout: timeout}
}

// Check evaluates one barrier. An error means the check itself could not
// run (bad command, timeout, unparseable output); the caller keeps the
// barrier waiting and retries next interval.
func (c *Checker) Check(ctx context.Context, b *model.Barrier) (CheckResult, error) {
	switch b.Type {
	case model.BarrierCommandCheck:
		return c.checkCommand(ctx, b)
	case model.BarrierFileExists:
		return c.checkFileExists(b)
	case model.BarrierCountBased:
		return c.checkCount(ctx, b)
	default:
		return CheckResult{}, fmt.Errorf("barrier type %q is not pollable", b.Type)
	}
}

func (c *Checker) checkCommand(ctx context.Context, b *model.Barrier) (CheckResult, error) {
	if b.CheckCommand == "" {
		return CheckResult{}, errors.New("missing check command")
	}

	stdout, exitCode, err := c.runShell(ctx, b.CheckCommand)
	if err != nil {
		return CheckResult{}, err
	}

	if b.ExpectedOutput != "" {
		got := strings.TrimSpace(stdout)
		if got == b.ExpectedOutput {
			return CheckResult{Satisfied: true, Detail: fmt.Sprintf("output %q", got)}, nil
		}
		return CheckResult{Detail: fmt.Sprintf("output %q, want %q", got, b.ExpectedOutput)}, nil
	}

	if exitCode == b.ExpectedExit {
		return CheckResult{Satisfied: true, Detail: fmt.Sprintf("exit %d", exitCode)}, nil
	}
	return CheckResult{Detail: fmt.Sprintf("exit %d, want %d", exitCode, b.ExpectedExit)}, nil
}

func (c *Checker) checkFileExists(b *model.Barrier) (CheckResult, error) {
	if b.FilePath == "" {
		return CheckResult{}, errors.New("missing file path")
	}

	if _, err := os.Stat(b.FilePath); err != nil {
		if os.IsNotExist(err) {
			return CheckResult{Detail: fmt.Sprintf("%s does not exist", b.FilePath)}, nil
		}
		return CheckResult{}, fmt.Errorf("stat %s: %w", b.FilePath, err)
	}
	return CheckResult{Satisfied: true, Detail: fmt.Sprintf("%s exists", b.FilePath)}, nil
}

func (c *Checker) checkCount(ctx context.Context, b *model.Barrier) (CheckResult, error) {
	if b.UpdateCommand == "" {
		return CheckResult{}, errors.New("missing update command")
	}

	stdout, exitCode, err := c.runShell(ctx, b.UpdateCommand)
	if err != nil {
		return CheckResult{}, err
	}
	if exitCode != 0 {
		return CheckResult{}, fmt.Errorf("update command exit %d", exitCode)
	}

	count, err := strconv.Atoi(strings.TrimSpace(stdout))
	if err != nil {
		return CheckResult{}, fmt.Errorf("parse count from %q: %w", strings.TrimSpace(stdout), err)
	}

	if count >= b.TargetCount {
		return CheckResult{Satisfied: true, Detail: fmt.Sprintf("count %d/%d", count, b.TargetCount)}, nil
	}
	return CheckResult{Detail: fmt.Sprintf("count %d/%d", count, b.TargetCount)}, nil
}

// runShell executes a command through sh -c with the checker timeout and
// returns stdout and the exit code. A non-zero exit is not an error here;
// callers decide what it means.
func (c *Checker) runShell(ctx context.Context, command string) (string, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return "", 0, fmt.Errorf("check timed out after %s", c.timeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.String(), exitErr.ExitCode(), nil
		}
		return "", 0, fmt.Errorf("run check command: %w", err)
	}
	return stdout.String(), 0, nil
}
