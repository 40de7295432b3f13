package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/agentic-research/codepad/internal/docstore"
	"github.com/agentic-research/codepad/internal/editor"
	"github.com/agentic-research/codepad/internal/remote"
	"github.com/agentic-research/codepad/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the project API backed by SQLite, or MongoDB when mongo_uri is set",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("addr") {
			cfg.ServerAddr = serveAddr
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, closeStore, err := openDocStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		var assistant editor.Assistant
		if cfg.LLMAPIKey != "" {
			assistant = newAssistant()
		} else {
			log.Warn("llm_api_key not set, suggestion and bugfix endpoints are disabled")
		}
		var run editor.Runner
		if cfg.Judge0URL != "" {
			run = newRunner()
		}

		srv, err := server.New(server.Config{
			Store:     store,
			Assistant: assistant,
			Runner:    run,
			Logger:    log,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "codepad listening on %s\n", cfg.ServerAddr)
		return srv.ListenAndServe(ctx, cfg.ServerAddr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server_addr)")
	rootCmd.AddCommand(serveCmd)
}

func openDocStore(ctx context.Context) (remote.Store, func(), error) {
	if cfg.MongoURI != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		ms, err := docstore.OpenMongo(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		log.WithField("database", cfg.MongoDatabase).Info("using mongo document store")
		return ms, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = ms.Close(closeCtx)
		}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create db dir: %w", err)
	}
	ds, err := docstore.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	log.WithFields(logrus.Fields{"path": cfg.DBPath}).Info("using sqlite document store")
	return ds, func() { _ = ds.Close() }, nil
}
