package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/dotkeep/pkg/profile"
	"github.com/arthur-debert/dotkeep/pkg/style"
)

func newProfileCmd(dryRun *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Save and restore named machine setups",
	}

	cmd.AddCommand(newProfileSaveCmd())
	cmd.AddCommand(newProfileLoadCmd(dryRun))
	cmd.AddCommand(newProfileListCmd())
	cmd.AddCommand(newProfileDeleteCmd())
	return cmd
}

func newProfileSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save <name>",
		Short: "Save the current tracked files as a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			mgr := profile.NewManager(a.paths.ProfilesDir(), a.writer)
			result, err := mgr.Save(args[0], a.manifest)
			if err != nil {
				return err
			}
			fmt.Printf("Saved profile %s (%d tool(s), %d file(s))\n",
				style.Bold(args[0]), result.Tools, result.Files)
			return nil
		},
	}
}

func newProfileLoadCmd(dryRun *bool) *cobra.Command {
	var addUntracked bool

	cmd := &cobra.Command{
		Use:   "load <name>",
		Short: "Restore a profile's files (existing files are backed up)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			mgr := profile.NewManager(a.paths.ProfilesDir(), a.writer)
			result, err := mgr.Load(args[0], a.manifest, addUntracked, *dryRun)
			if err != nil {
				return err
			}

			for _, out := range result.Outcomes {
				fmt.Println(style.RenderOutcome(out))
			}
			for _, tool := range result.ToolsSkipped {
				fmt.Printf("  skipped %s (not tracked; use --add to merge)\n", tool)
			}

			if *dryRun {
				fmt.Println(style.DryRunNote())
				return nil
			}

			if len(result.ToolsAdded) > 0 {
				if err := a.manifest.Save(); err != nil {
					return err
				}
			}
			fmt.Printf("Restored %d file(s) from %s (%d backed up)\n",
				result.Restored, style.Bold(args[0]), result.BackedUp)
			return nil
		},
	}

	cmd.Flags().BoolVar(&addUntracked, "add", false, "Track tools from the profile that are not tracked yet")
	return cmd
}

func newProfileListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			mgr := profile.NewManager(a.paths.ProfilesDir(), a.writer)
			summaries, err := mgr.List()
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Println("No profiles saved yet.")
				return nil
			}
			for _, s := range summaries {
				fmt.Printf("  %s: %d tool(s), %d file(s), created %s\n",
					style.Bold(s.Name), s.ToolCount, s.FileCount, s.CreatedAt)
			}
			return nil
		},
	}
}

func newProfileDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a saved profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			mgr := profile.NewManager(a.paths.ProfilesDir(), a.writer)
			if err := mgr.Delete(args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted profile %s\n", args[0])
			return nil
		},
	}
}
