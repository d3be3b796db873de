package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lumen-advisory/advisory-chat/internal/model"
)

func newWorkspacesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspaces",
		Short: "Manage workspaces",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List workspaces",
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

			for _, ws := range a.store.Snapshot().Workspaces {
				fmt.Printf("%s  %s (%d conversations)\n", ws.ID, ws.Name, ws.ConversationCount)
			}
			return nil
		},
	}

	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a workspace",
		Args:  cobra.ExactArgs(1),
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

			ws, err := a.store.CreateWorkspace(ctx, model.CreateWorkspaceRequest{Name: args[0]})
			if err != nil {
				return err
			}
			fmt.Println(ws.ID)
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a workspace",
		Args:  cobra.ExactArgs(1),
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
			return a.store.DeleteWorkspace(ctx, args[0])
		},
	}

	cmd.AddCommand(list, create, remove)
	return cmd
}
