package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/dotkeep/pkg/deploy"
	"github.com/arthur-debert/dotkeep/pkg/diff"
	"github.com/arthur-debert/dotkeep/pkg/errors"
	"github.com/arthur-debert/dotkeep/pkg/manifest"
	"github.com/arthur-debert/dotkeep/pkg/modules"
	"github.com/arthur-debert/dotkeep/pkg/paths"
	"github.com/arthur-debert/dotkeep/pkg/snapshot"
	"github.com/arthur-debert/dotkeep/pkg/store"
	"github.com/arthur-debert/dotkeep/pkg/style"
	"github.com/arthur-debert/dotkeep/pkg/watch"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize dotkeep's manifest and snapshot store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := paths.New()

			if manifest.Exists(p.ManifestPath()) {
				fmt.Printf("Already initialized (manifest at %s)\n", p.ManifestPath())
				return nil
			}

			if err := manifest.New(p.ManifestPath()).Save(); err != nil {
				return err
			}

			s, err := store.Open(p.DatabasePath())
			if err != nil {
				return err
			}
			defer s.Close()

			fmt.Printf("Initialized dotkeep\n")
			fmt.Printf("  manifest: %s\n", p.ManifestPath())
			fmt.Printf("  store:    %s\n", p.DatabasePath())
			return nil
		},
	}
}

func newAddCmd() *cobra.Command {
	var customPaths []string

	cmd := &cobra.Command{
		Use:   "add <tool>",
		Short: "Start tracking a tool's config files",
		Long: `Start tracking a tool. Known tools (tmux, zsh, git) bring their usual
config paths; any other tool needs --path. Existing files are copied
into the managed configs directory and snapshotted immediately.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tool := args[0]
			if err := paths.ValidateToolName(tool); err != nil {
				return err
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			configPaths := customPaths
			tier := modules.TierFor(tool)
			if len(configPaths) == 0 {
				def, ok := modules.Get(tool)
				if !ok {
					return errors.Newf(errors.ErrInvalidInput,
						"unknown tool %q: pass --path to track a custom tool", tool)
				}
				configPaths = def.Metadata.ConfigPaths
			}

			if err := a.manifest.Add(tool, tier, configPaths); err != nil {
				return err
			}

			// Seed the managed copies used by deploy
			if err := adoptConfigs(a.paths.ConfigsDir(), tool, configPaths); err != nil {
				return err
			}

			result := a.engine.SnapshotTool(tool, configPaths, "initial snapshot (add)")
			_ = a.manifest.TouchSnapshot(tool)
			if err := a.manifest.Save(); err != nil {
				return err
			}

			fmt.Printf("Tracking %s (tier %d)\n", style.Bold(tool), tier)
			for _, fr := range result.Files {
				fmt.Println(style.RenderFileResult(fr))
			}
			fmt.Printf("  %s\n", result.Summary())
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&customPaths, "path", nil, "Config path to track (repeatable, tilde form)")
	return cmd
}

// adoptConfigs copies a tool's existing files into the managed configs
// directory so deploy has sources to link to. Directory config paths
// become managed directories holding their one-level regular files, so
// deploy can link the directory wholesale. Missing paths are fine.
func adoptConfigs(configsDir, tool string, configPaths []string) error {
	for _, configPath := range configPaths {
		abs := paths.ExpandTilde(configPath)
		info, err := os.Stat(abs)
		if err != nil {
			continue
		}

		dest := filepath.Join(configsDir, tool, filepath.Base(abs))
		if info.IsDir() {
			if err := adoptDir(abs, dest); err != nil {
				return err
			}
			continue
		}
		if err := adoptFile(abs, dest); err != nil {
			return err
		}
	}
	return nil
}

func adoptFile(src, dest string) error {
	content, err := os.ReadFile(src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrIoFailure, "failed to read %s", src)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0700); err != nil {
		return errors.Wrapf(err, errors.ErrIoFailure, "failed to create %s", filepath.Dir(dest))
	}
	if err := os.WriteFile(dest, content, 0600); err != nil {
		return errors.Wrapf(err, errors.ErrIoFailure, "failed to write %s", dest)
	}
	return nil
}

// adoptDir copies srcDir's regular files one level deep into destDir.
func adoptDir(srcDir, destDir string) error {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return errors.Wrapf(err, errors.ErrIoFailure, "failed to read %s", srcDir)
	}
	if err := os.MkdirAll(destDir, 0700); err != nil {
		return errors.Wrapf(err, errors.ErrIoFailure, "failed to create %s", destDir)
	}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if err := adoptFile(filepath.Join(srcDir, entry.Name()), filepath.Join(destDir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <tool>",
		Short: "Stop tracking a tool (snapshot history is kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.manifest.Remove(args[0]); err != nil {
				return err
			}
			if err := a.manifest.Save(); err != nil {
				return err
			}
			fmt.Printf("Stopped tracking %s (history retained)\n", args[0])
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tracked tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			names := a.manifest.ToolNames()
			if len(names) == 0 {
				fmt.Println("No tools tracked yet. Try: dotkeep add tmux")
				return nil
			}

			for _, tool := range names {
				entry, err := a.manifest.Get(tool)
				if err != nil {
					continue
				}
				last := entry.LastSnapshot
				if last == "" {
					last = "never"
				}
				fmt.Printf("  %s (tier %d): %d path(s), last snapshot %s\n",
					style.Bold(tool), entry.Tier, len(entry.ConfigPaths), last)
				for _, p := range entry.ConfigPaths {
					fmt.Printf("      %s\n", p)
				}
			}
			return nil
		},
	}
}

func newSnapshotCmd() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "snapshot [tool]",
		Short: "Snapshot a tool's config files (or all tracked tools)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			var results []snapshot.ToolResult
			if len(args) == 1 {
				entry, err := a.manifest.Get(args[0])
				if err != nil {
					return err
				}
				results = append(results, a.engine.SnapshotTool(args[0], entry.ConfigPaths, message))
			} else {
				results = a.engine.SnapshotAll(a.manifest, message)
			}

			for _, result := range results {
				fmt.Printf("%s\n", style.Bold(result.Tool))
				for _, fr := range result.Files {
					fmt.Println(style.RenderFileResult(fr))
				}
				fmt.Printf("  %s\n", result.Summary())
				_ = a.manifest.TouchSnapshot(result.Tool)
			}
			return a.manifest.Save()
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "Message recorded with the snapshot")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <tool>",
		Short: "Show a tool's snapshot history, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			entries, err := a.engine.History(args[0], limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Printf("No snapshots for %s yet.\n", args[0])
				return nil
			}

			for _, entry := range entries {
				line := fmt.Sprintf("  #%-5d %s  %s  %s",
					entry.ID, store.ShortHash(entry.Hash), entry.CreatedAt, entry.FilePath)
				if entry.Message != "" {
					line += fmt.Sprintf("  %q", entry.Message)
				}
				fmt.Println(line)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", snapshot.DefaultHistoryLimit, "Maximum entries to show")
	return cmd
}

func newDiffCmd() *cobra.Command {
	var between []int64

	cmd := &cobra.Command{
		Use:   "diff <tool>",
		Short: "Diff current files against their latest snapshots",
		Long: `Diff a tool's on-disk config files against their latest snapshots.
Files with no snapshot yet show as pure additions. With --between,
diff two snapshot ids against each other instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			if len(between) == 2 {
				out, err := a.engine.DiffBetween(between[0], between[1])
				if err != nil {
					return err
				}
				printDiff(out)
				return nil
			}

			if len(args) != 1 {
				return errors.New(errors.ErrInvalidInput, "pass a tool name or --between id,id")
			}

			entry, err := a.manifest.Get(args[0])
			if err != nil {
				return err
			}
			diffs, err := a.engine.DiffCurrent(args[0], entry.ConfigPaths)
			if err != nil {
				return err
			}

			clean := true
			for _, d := range diffs {
				if !d.HasChanges() {
					continue
				}
				clean = false
				if d.Untracked {
					fmt.Printf("%s (no baseline)\n", style.Bold(d.FilePath))
				}
				out, err := diff.Unified(d)
				if err != nil {
					return err
				}
				printDiff(out)
			}
			if clean {
				fmt.Println("No changes since last snapshot.")
			}
			return nil
		},
	}

	cmd.Flags().Int64SliceVar(&between, "between", nil, "Diff two snapshot ids: --between OLD,NEW")
	return cmd
}

func printDiff(out string) {
	if out == "" {
		fmt.Println("No differences.")
		return
	}
	fmt.Print(style.RenderDiff(out))
}

func newRollbackCmd(dryRun *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <snapshot-id>",
		Short: "Restore a file to a snapshotted state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return errors.Newf(errors.ErrInvalidInput, "invalid snapshot id %q", args[0])
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			plan, err := a.engine.Rollback(id, *dryRun)
			if err != nil {
				return err
			}

			fmt.Printf("Rollback #%d -> %s\n", id, plan.FilePath)
			if plan.OldHash != "" {
				fmt.Printf("  %s -> %s\n", store.ShortHash(plan.OldHash), store.ShortHash(plan.NewHash))
			}
			fmt.Println(style.RenderOutcome(plan.Outcome))
			if *dryRun {
				fmt.Println(style.DryRunNote())
			}
			return nil
		},
	}
}

func newDeployCmd(dryRun *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "deploy <tool>",
		Short: "Symlink a tool's config paths to the managed copies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			entry, err := a.manifest.Get(args[0])
			if err != nil {
				return err
			}

			pairs := deploy.PairsForTool(a.paths.ConfigsDir(), args[0], entry.ConfigPaths)
			engine := deploy.New(a.writer)
			result, err := engine.Deploy(pairs, *dryRun)
			if err != nil {
				return err
			}

			for _, out := range result.Outcomes {
				fmt.Println(style.RenderOutcome(out))
			}
			fmt.Printf("  %d created, %d correct, %d relinked, %d backed up, %d skipped, %d failed\n",
				result.Created, result.AlreadyCorrect, result.Relinked,
				result.BackedUp, result.Skipped, result.Failed)
			if *dryRun {
				fmt.Println(style.DryRunNote())
			}
			return nil
		},
	}
}

func newWatchCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Auto-snapshot tracked files as they change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			w := watch.New(a.engine, interval)
			w.OnEvent = func(e watch.Event) {
				fmt.Printf("  [%s] %s #%d\n", e.Tool, e.FilePath, e.SnapshotID)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Println("Watching tracked files (ctrl-c to stop)...")
			if err := w.Run(ctx, a.manifest); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", watch.DefaultInterval, "Polling interval")
	return cmd
}
