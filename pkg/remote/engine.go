package remote

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/dotkeep/pkg/errors"
	"github.com/arthur-debert/dotkeep/pkg/logging"
	"github.com/arthur-debert/dotkeep/pkg/manifest"
	"github.com/arthur-debert/dotkeep/pkg/paths"
)

// backupSuffix tags remote backups so they are recognizable and never
// collide with live files.
const backupSuffix = ".dotkeep-bak."

// FileAction is one planned remote file transfer.
type FileAction struct {
	Tool string
	// LocalPath is the absolute local file to send
	LocalPath string
	// RemotePath is tilde-relative so the remote shell resolves it
	// against the remote home
	RemotePath string
	// RemoteExists records the probe result: true means overwrite (and
	// backup first), false means new file
	RemoteExists bool
}

// Result counts what an executed plan did.
type Result struct {
	Copied   int
	BackedUp int
}

// Engine plans and executes remote deploys over a Runner.
type Engine struct {
	runner Runner
	logger zerolog.Logger
}

// NewEngine creates a remote deploy engine on the given transport.
func NewEngine(runner Runner) *Engine {
	return &Engine{
		runner: runner,
		logger: logging.GetLogger("remote"),
	}
}

// Plan probes the remote host and builds the per-file transfer list for
// the tracked tools. toolFilter limits the plan to named tools; empty
// means all. The existence probe runs under dry-run too, so the plan
// shown is the plan that would execute. Missing local files are skipped.
func (e *Engine) Plan(ctx context.Context, host, user string, m *manifest.Manifest, toolFilter []string) ([]FileAction, error) {
	wanted := make(map[string]bool, len(toolFilter))
	for _, tool := range toolFilter {
		wanted[tool] = true
	}

	var actions []FileAction
	for _, tool := range m.ToolNames() {
		if len(wanted) > 0 && !wanted[tool] {
			continue
		}
		entry, err := m.Get(tool)
		if err != nil {
			continue
		}

		for _, configPath := range entry.ConfigPaths {
			local := paths.ExpandTilde(configPath)
			info, err := os.Stat(local)
			if err != nil {
				continue
			}

			if info.IsDir() {
				files, err := e.planDir(ctx, host, user, tool, local, configPath)
				if err != nil {
					return nil, err
				}
				actions = append(actions, files...)
				continue
			}

			exists, err := e.probe(ctx, host, user, configPath)
			if err != nil {
				return nil, err
			}
			actions = append(actions, FileAction{
				Tool:         tool,
				LocalPath:    local,
				RemotePath:   configPath,
				RemoteExists: exists,
			})
		}
	}

	return actions, nil
}

// planDir expands a directory config path one level deep, probing each
// file's remote counterpart.
func (e *Engine) planDir(ctx context.Context, host, user, tool, localDir, configPath string) ([]FileAction, error) {
	entries, err := os.ReadDir(localDir)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrIoFailure, "failed to read %s", localDir)
	}

	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var actions []FileAction
	for _, name := range names {
		remotePath := path.Join(configPath, name)
		exists, err := e.probe(ctx, host, user, remotePath)
		if err != nil {
			return nil, err
		}
		actions = append(actions, FileAction{
			Tool:         tool,
			LocalPath:    filepath.Join(localDir, name),
			RemotePath:   remotePath,
			RemoteExists: exists,
		})
	}
	return actions, nil
}

// shellPath converts a tilde-contracted remote path to one relative to
// the remote home. Quoted tildes do not expand in the remote shell, and
// ssh commands start in the home directory, so relative paths are the
// safe spelling.
func shellPath(remotePath string) string {
	if remotePath == "~" {
		return "."
	}
	if rest, ok := strings.CutPrefix(remotePath, "~/"); ok {
		return rest
	}
	return remotePath
}

// shellQuote single-quotes s for the remote shell. Embedded single
// quotes close the quoting, emit an escaped quote, and reopen it.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// probe checks whether remotePath exists on the host. Exit 255 means the
// host itself is unreachable and aborts planning.
func (e *Engine) probe(ctx context.Context, host, user, remotePath string) (bool, error) {
	exit, _, err := e.runner.Run(ctx, host, user, fmt.Sprintf("test -e %s", shellQuote(shellPath(remotePath))))
	if err != nil {
		return false, err
	}
	switch exit {
	case 0:
		return true, nil
	case sshUnreachableExit:
		return false, errors.Newf(errors.ErrRemoteUnreachable, "cannot reach %s", host)
	default:
		return false, nil
	}
}

// Execute runs a plan against the host. Under dry-run nothing touches
// the remote at all. Existing remote files are backed up in place before
// being overwritten; any failed step aborts the remainder of the plan.
func (e *Engine) Execute(ctx context.Context, host, user string, actions []FileAction, dryRun bool) (Result, error) {
	var result Result
	if dryRun {
		return result, nil
	}

	timestamp := time.Now().Format("20060102_150405")

	for _, action := range actions {
		remotePath := shellPath(action.RemotePath)

		if dir := path.Dir(remotePath); dir != "" && dir != "." && dir != "/" {
			if err := e.run(ctx, host, user, fmt.Sprintf("mkdir -p %s", shellQuote(dir))); err != nil {
				return result, err
			}
		}

		if action.RemoteExists {
			backupPath := remotePath + backupSuffix + timestamp
			if err := e.run(ctx, host, user,
				fmt.Sprintf("cp -a %s %s", shellQuote(remotePath), shellQuote(backupPath))); err != nil {
				return result, err
			}
			result.BackedUp++
			e.logger.Info().
				Str("host", host).
				Str("path", action.RemotePath).
				Str("backup", backupPath).
				Msg("remote file backed up")
		}

		if err := e.runner.Copy(ctx, action.LocalPath, host, user, remotePath); err != nil {
			return result, err
		}
		result.Copied++
		e.logger.Debug().
			Str("host", host).
			Str("local", action.LocalPath).
			Str("remote", action.RemotePath).
			Msg("file copied to remote")
	}

	return result, nil
}

// run executes one remote command, mapping exit codes to error classes.
func (e *Engine) run(ctx context.Context, host, user, command string) error {
	exit, _, err := e.runner.Run(ctx, host, user, command)
	if err != nil {
		return err
	}
	switch {
	case exit == 0:
		return nil
	case exit == sshUnreachableExit:
		return errors.Newf(errors.ErrRemoteUnreachable, "cannot reach %s", host)
	default:
		return errors.Newf(errors.ErrRemoteCommand,
			"remote command %q on %s exited with status %d", command, host, exit)
	}
}
