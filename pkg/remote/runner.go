// Package remote implements the SSH deploy engine. Connections ride the
// system ssh/scp binaries so host aliases, jump hosts, and key agents
// from the user's SSH config work without any configuration here. All
// remote commands run with BatchMode so nothing ever prompts.
package remote

import (
	"context"
	stderrors "errors"
	"os/exec"
	"strings"

	"github.com/arthur-debert/dotkeep/pkg/errors"
)

// sshUnreachableExit is ssh's own exit code for connection and
// authentication failures, distinct from the remote command's status.
const sshUnreachableExit = 255

// Runner abstracts the transport so the engine is testable without a
// live host.
type Runner interface {
	// Run executes command on host and returns its exit code and stdout.
	// err is non-nil only when the process could not be run at all.
	Run(ctx context.Context, host, user, command string) (int, string, error)
	// Copy transfers localPath to remotePath on host.
	Copy(ctx context.Context, localPath, host, user, remotePath string) error
}

// ExecRunner runs commands through the system ssh and scp binaries.
type ExecRunner struct{}

var sshBaseArgs = []string{"-o", "BatchMode=yes", "-o", "ConnectTimeout=5"}

// CheckInstalled verifies ssh and scp exist on PATH.
func CheckInstalled() error {
	for _, bin := range []string{"ssh", "scp"} {
		if _, err := exec.LookPath(bin); err != nil {
			return errors.Newf(errors.ErrSSHMissing, "%s not found on PATH", bin)
		}
	}
	return nil
}

// Dest formats the ssh destination, "user@host" or bare "host".
func Dest(host, user string) string {
	if user == "" {
		return host
	}
	return user + "@" + host
}

func (ExecRunner) Run(ctx context.Context, host, user, command string) (int, string, error) {
	args := append([]string{}, sshBaseArgs...)
	args = append(args, Dest(host, user), command)

	cmd := exec.CommandContext(ctx, "ssh", args...)
	var stdout strings.Builder
	cmd.Stdout = &stdout

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			return exitErr.ExitCode(), stdout.String(), nil
		}
		return 0, "", errors.Wrapf(err, errors.ErrIoFailure, "failed to run ssh to %s", host)
	}
	return 0, stdout.String(), nil
}

func (ExecRunner) Copy(ctx context.Context, localPath, host, user, remotePath string) error {
	args := append([]string{}, sshBaseArgs...)
	args = append(args, localPath, Dest(host, user)+":"+remotePath)

	cmd := exec.CommandContext(ctx, "scp", args...)
	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			if exitErr.ExitCode() == sshUnreachableExit {
				return errors.Newf(errors.ErrRemoteUnreachable, "cannot reach %s", host)
			}
			return errors.Newf(errors.ErrRemoteCommand,
				"scp to %s exited with status %d", host, exitErr.ExitCode())
		}
		return errors.Wrapf(err, errors.ErrIoFailure, "failed to run scp to %s", host)
	}
	return nil
}
