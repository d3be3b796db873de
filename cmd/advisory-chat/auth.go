package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Verify credentials and cache the profile locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			email, password := credentials(cmd)
			if err := a.login(ctx, email, password); err != nil {
				return err
			}
			a.store.FetchWorkspaces(ctx)

			snap := a.store.Snapshot()
			fmt.Printf("logged in as %s (%d workspaces)\n", snap.User.Email, len(snap.Workspaces))
			return nil
		},
	}
}
