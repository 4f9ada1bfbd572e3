// Package diff computes line-level unified diffs between two content
// states. Output is plain text; coloring and pagination belong to the
// presentation layer.
package diff

import (
	"github.com/pmezard/go-difflib/difflib"

	"github.com/arthur-debert/dotkeep/pkg/errors"
)

// FileDiff is a pending comparison between two states of one file.
type FileDiff struct {
	// FilePath labels the diff header; usually the tilde-contracted path
	FilePath string
	// Old is the baseline content (empty when no baseline exists)
	Old string
	// New is the current content
	New string
	// Untracked marks a file with no prior snapshot; the diff shows the
	// whole file as an addition rather than erroring
	Untracked bool
}

// HasChanges reports whether the two sides differ at all.
func (d FileDiff) HasChanges() bool {
	return d.Old != d.New
}

// Unified renders d as a unified diff with three lines of context.
func Unified(d FileDiff) (string, error) {
	return Between(d.Old, d.New, "a/"+d.FilePath, "b/"+d.FilePath)
}

// Between renders a unified diff between two arbitrary contents with
// explicit header labels. Callers are responsible for passing comparable
// contents; the engine does not require them to share a path.
func Between(old, new, fromLabel, toLabel string) (string, error) {
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(old),
		B:        difflib.SplitLines(new),
		FromFile: fromLabel,
		ToFile:   toLabel,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrInternal, "failed to compute diff")
	}
	return text, nil
}
