package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/agentic-research/codepad/internal/assist"
	cfgpkg "github.com/agentic-research/codepad/internal/config"
	"github.com/agentic-research/codepad/internal/localstore"
	"github.com/agentic-research/codepad/internal/remote"
	"github.com/agentic-research/codepad/internal/runner"
	"github.com/agentic-research/codepad/internal/syncer"
)

var (
	cfgFile     string
	logLevel    string
	flagUID     string
	flagProject string
	flagRemote  string

	cfg *cfgpkg.Config
	log = logrus.New()
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.codepad/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagUID, "uid", "", "user id of the session (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&flagProject, "project", "p", "", "project id of the session (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagRemote, "remote", "", "codepad server URL (overrides config)")
}

var rootCmd = &cobra.Command{
	Use:           "codepad",
	Short:         "codepad: project trees for a code editor, synced locally or to a server",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := cfgpkg.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = c

		f := cmd.Flags()
		if f.Changed("uid") {
			cfg.UID = flagUID
		}
		if f.Changed("project") {
			cfg.ProjectID = flagProject
		}
		if f.Changed("remote") {
			cfg.RemoteURL = flagRemote
		}
		if f.Changed("log-level") {
			cfg.LogLevel = logLevel
		}

		log.SetOutput(os.Stderr)
		lvl, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
		}
		log.SetLevel(lvl)
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func remoteClient() (*remote.Client, error) {
	if cfg.RemoteURL == "" {
		return nil, fmt.Errorf("no server configured: set remote_url or pass --remote")
	}
	return remote.NewClient(cfg.RemoteURL, cfg.HTTPTimeout(), cfg.RetryMaxAttempts, cfg.BaseDelay(), cfg.MaxDelay()), nil
}

// session bundles a mounted engine with the stores it owns.
type session struct {
	*syncer.Engine
	local *localstore.Store
}

// openEngine mounts the tree selected by the configuration: the server's
// project when uid, project and remote are all set, the local guest
// workspace otherwise. The local store doubles as offline cache.
func openEngine(ctx context.Context) (*session, error) {
	scope := "guest"
	ec := syncer.Config{
		RootName:    cfg.RootName,
		Logger:      log,
		SaveTimeout: cfg.SaveTimeout(),
		Notify: func(n syncer.Notice) {
			log.WithField("op", n.Op).Warn(n.String())
		},
	}
	if cfg.UID != "" && cfg.ProjectID != "" && cfg.RemoteURL != "" {
		rc, err := remoteClient()
		if err != nil {
			return nil, err
		}
		ec.UID, ec.ProjectID, ec.Remote = cfg.UID, cfg.ProjectID, rc
		scope = cfg.UID + "/" + cfg.ProjectID
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LocalStore), 0o755); err != nil {
		return nil, fmt.Errorf("create local store dir: %w", err)
	}
	ls, err := localstore.Open(cfg.LocalStore, scope)
	if err != nil {
		// Without a cache the engine still works; guests lose persistence.
		log.WithError(err).Warn("local store unavailable")
	} else {
		ec.Local = ls
	}

	e := syncer.New(ec)
	if err := e.Mount(ctx); err != nil {
		if ls != nil {
			_ = ls.Close()
		}
		return nil, err
	}
	return &session{Engine: e, local: ls}, nil
}

// Close flushes pending saves and releases the local store.
func (s *session) Close(ctx context.Context) error {
	err := s.Engine.Close(ctx)
	if s.local != nil {
		if cerr := s.local.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func newAssistant() *assist.Client {
	return assist.NewClient(assist.Options{
		APIKey:      cfg.LLMAPIKey,
		BaseURL:     cfg.LLMBaseURL,
		Model:       cfg.LLMModel,
		HTTPTimeout: cfg.HTTPTimeout(),
		RetryMax:    cfg.RetryMaxAttempts,
		BaseDelay:   cfg.BaseDelay(),
		MaxDelay:    cfg.MaxDelay(),
	})
}

func newRunner() *runner.Client {
	return runner.NewClient(runner.Options{
		BaseURL:     cfg.Judge0URL,
		Host:        cfg.Judge0Host,
		APIKey:      cfg.Judge0Key,
		HTTPTimeout: cfg.HTTPTimeout(),
	})
}
