package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/dotkeep/pkg/remote"
	"github.com/arthur-debert/dotkeep/pkg/style"
)

func newDeployRemoteCmd(dryRun *bool) *cobra.Command {
	var (
		host string
		user string
	)

	cmd := &cobra.Command{
		Use:   "deploy-remote [tool...]",
		Short: "Copy tracked config files to a remote host over SSH",
		Long: `Copy tracked config files to a remote host. Host aliases, jump hosts,
and keys come from your SSH config; nothing ever prompts (BatchMode).
Existing remote files are backed up in place before being overwritten.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := remote.CheckInstalled(); err != nil {
				return err
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			engine := remote.NewEngine(remote.ExecRunner{})

			actions, err := engine.Plan(cmd.Context(), host, user, a.manifest, args)
			if err != nil {
				return err
			}
			if len(actions) == 0 {
				fmt.Println("Nothing to deploy.")
				return nil
			}

			for _, action := range actions {
				kind := "new"
				if action.RemoteExists {
					kind = "overwrite (with backup)"
				}
				fmt.Printf("  [%s] %s -> %s:%s\n", kind, action.LocalPath, remote.Dest(host, user), action.RemotePath)
			}

			result, err := engine.Execute(cmd.Context(), host, user, actions, *dryRun)
			if err != nil {
				return err
			}

			if *dryRun {
				fmt.Println(style.DryRunNote())
				return nil
			}
			fmt.Printf("Deployed %d file(s) to %s (%d backed up)\n",
				result.Copied, remote.Dest(host, user), result.BackedUp)
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Remote host (or SSH config alias)")
	cmd.Flags().StringVar(&user, "user", "", "Remote user (defaults to SSH config)")
	_ = cmd.MarkFlagRequired("host")
	return cmd
}
