// Package deploy implements the local symlink engine. A deploy points a
// live config path (the target) at the managed copy (the source) via a
// symlink, preserving whatever occupied the target first. All writes go
// through the backup-guarded writer.
package deploy

import (
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/dotkeep/pkg/logging"
	"github.com/arthur-debert/dotkeep/pkg/paths"
	"github.com/arthur-debert/dotkeep/pkg/writer"
)

// Pair is one planned symlink: target becomes a link to source.
type Pair struct {
	Source string
	Target string
}

// Result aggregates the writer outcomes of one deploy batch.
type Result struct {
	Outcomes []writer.Outcome

	Created        int
	AlreadyCorrect int
	Relinked       int
	BackedUp       int
	Skipped        int
	Failed         int
}

func (r *Result) record(out writer.Outcome, err error) {
	r.Outcomes = append(r.Outcomes, out)
	if err != nil {
		r.Failed++
		return
	}
	switch out.Action {
	case writer.ActionCreate:
		r.Created++
	case writer.ActionNone:
		r.AlreadyCorrect++
	case writer.ActionRelink:
		r.Relinked++
	case writer.ActionBackupReplace:
		r.BackedUp++
	case writer.ActionSkip:
		r.Skipped++
	}
}

// Engine deploys symlinks through a backup-guarded writer.
type Engine struct {
	writer *writer.Writer
	logger zerolog.Logger
}

// New creates a deploy engine.
func New(w *writer.Writer) *Engine {
	return &Engine{
		writer: w,
		logger: logging.GetLogger("deploy"),
	}
}

// PairsForTool maps a tool's tracked config paths to deploy pairs. The
// source for each path is the managed copy under
// configsDir/<tool>/<basename>; the target is the live, tilde-expanded
// path. Path lists are opaque here; ordering is preserved.
func PairsForTool(configsDir, tool string, configPaths []string) []Pair {
	pairs := make([]Pair, 0, len(configPaths))
	for _, configPath := range configPaths {
		target := paths.ExpandTilde(configPath)
		source := filepath.Join(configsDir, tool, filepath.Base(target))
		pairs = append(pairs, Pair{Source: source, Target: target})
	}
	return pairs
}

// Deploy executes (or, under dry-run, plans) a batch of symlink pairs.
// Per-pair failures are counted and do not abort the batch; targets that
// escape the home directory fail their pair with PathUnsafe.
func (e *Engine) Deploy(pairs []Pair, dryRun bool) (Result, error) {
	var result Result

	for _, pair := range pairs {
		if err := paths.CheckPathSafety(pair.Target); err != nil {
			result.record(writer.Outcome{Target: pair.Target, Action: writer.ActionSkip}, err)
			e.logger.Warn().Err(err).Str("target", pair.Target).Msg("unsafe deploy target")
			continue
		}

		out, err := e.writer.WriteLink(pair.Source, pair.Target, dryRun)
		result.record(out, err)
		if err != nil {
			e.logger.Warn().Err(err).Str("target", pair.Target).Msg("deploy failed for target")
		}
	}

	e.logger.Info().
		Bool("dry_run", dryRun).
		Int("created", result.Created).
		Int("already_correct", result.AlreadyCorrect).
		Int("relinked", result.Relinked).
		Int("backed_up", result.BackedUp).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("deploy batch finished")
	return result, nil
}
