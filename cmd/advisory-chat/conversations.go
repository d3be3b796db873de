package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConversationsCmd() *cobra.Command {
	var workspaceID string

	cmd := &cobra.Command{
		Use:   "conversations",
		Short: "Manage conversations",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List conversations, newest activity first",
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
			if workspaceID != "" {
				a.store.SelectWorkspace(workspaceID)
			}
			a.store.FetchConversations(ctx)

			for _, conv := range a.store.Snapshot().Conversations {
				fmt.Printf("%s  %s  (%s)\n", conv.ID, conv.Title, conv.LastActivity().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
	list.Flags().StringVar(&workspaceID, "workspace", "", "scope to a workspace id")

	remove := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a conversation",
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
			return a.store.DeleteConversation(ctx, args[0])
		},
	}

	cmd.AddCommand(list, remove)
	return cmd
}
