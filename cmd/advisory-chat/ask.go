package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lumen-advisory/advisory-chat/internal/model"
	"github.com/lumen-advisory/advisory-chat/internal/store"
)

func newAskCmd() *cobra.Command {
	var workspaceID, conversationID string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question and stream the answer",
		Args:  cobra.MinimumNArgs(1),
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
			if conversationID != "" {
				a.store.SelectConversation(conversationID)
			}

			question := strings.Join(args, " ")

			// Render streaming output the way a UI would: watch snapshots
			// and print whatever content appeared since the last one.
			snapshots, unsubscribe := a.store.Subscribe()
			defer unsubscribe()
			rendered := make(chan struct{})
			go func() {
				defer close(rendered)
				printed := 0
				for snap := range snapshots {
					msg := lastStreamedAssistant(snap)
					if msg == nil {
						continue
					}
					if len(msg.Content) > printed && !msg.Error {
						fmt.Print(msg.Content[printed:])
						printed = len(msg.Content)
					}
					if !msg.IsStreaming {
						fmt.Println()
						if msg.Error {
							fmt.Println(msg.Content)
						} else if msg.Confidence != nil {
							fmt.Printf("[confidence: %s %d%%]\n", msg.Confidence.Level, msg.Confidence.Percentage)
						}
						return
					}
				}
			}()

			err = a.orch.Send(ctx, question)
			unsubscribe()
			<-rendered
			return err
		},
	}

	cmd.Flags().StringVar(&workspaceID, "workspace", "", "workspace id to scope the conversation")
	cmd.Flags().StringVar(&conversationID, "conversation", "", "existing conversation id to continue")
	return cmd
}

func lastStreamedAssistant(snap store.Snapshot) *model.Message {
	for i := len(snap.Messages) - 1; i >= 0; i-- {
		if snap.Messages[i].Sender == model.SenderAssistant {
			return &snap.Messages[i]
		}
	}
	return nil
}
