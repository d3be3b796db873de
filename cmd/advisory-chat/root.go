package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/lumen-advisory/advisory-chat/internal/api"
	"github.com/lumen-advisory/advisory-chat/internal/chat"
	"github.com/lumen-advisory/advisory-chat/internal/config"
	"github.com/lumen-advisory/advisory-chat/internal/store"
	"github.com/lumen-advisory/advisory-chat/internal/stream"
	"github.com/lumen-advisory/advisory-chat/pkg/logger"
	"github.com/lumen-advisory/advisory-chat/pkg/tracing"
)

// app wires the client pipeline once per invocation: config, logger, API
// client, durable store, stream client and orchestrator.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	api     *api.Client
	persist *store.SQLitePersister
	store   *store.Store
	orch    *chat.Orchestrator

	shutdown []func(context.Context) error
}

func newApp() (*app, error) {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a := &app{cfg: cfg, log: log}

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(context.Background(), "advisory-chat", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing")
		} else {
			a.shutdown = append(a.shutdown, tp.Shutdown)
		}
	}

	a.api = api.New(cfg.APIBaseURL, &http.Client{Timeout: cfg.RequestTimeout}, log)

	a.persist, err = store.OpenSQLite(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	a.store = store.New(a.api, a.persist, log)

	// The stream client gets its own http.Client without a timeout; answer
	// streams outlive any sane request deadline.
	streamClient := stream.New(cfg.APIBaseURL, &http.Client{}, a.api.AccessToken, log)
	a.orch = chat.New(a.store, a.api, streamClient, log)

	return a, nil
}

func (a *app) close() {
	ctx := context.Background()
	for _, fn := range a.shutdown {
		fn(ctx)
	}
	a.persist.Close()
	a.log.Sync()
}

// login authenticates with credentials from flags or environment.
func (a *app) login(ctx context.Context, email, password string) error {
	if email == "" {
		email = os.Getenv("ADVISORY_EMAIL")
	}
	if password == "" {
		password = os.Getenv("ADVISORY_PASSWORD")
	}
	if email == "" || password == "" {
		return fmt.Errorf("credentials required: pass --email/--password or set ADVISORY_EMAIL/ADVISORY_PASSWORD")
	}
	return a.store.Login(ctx, email, password)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "advisory-chat",
		Short:         "Terminal client for the Lumen advisory backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("email", "", "account email (or ADVISORY_EMAIL)")
	root.PersistentFlags().String("password", "", "account password (or ADVISORY_PASSWORD)")

	root.AddCommand(
		newAskCmd(),
		newLoginCmd(),
		newWorkspacesCmd(),
		newConversationsCmd(),
		newDevCmd(),
	)
	return root
}

func credentials(cmd *cobra.Command) (string, string) {
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	return email, password
}
