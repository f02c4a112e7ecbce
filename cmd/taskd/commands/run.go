package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/taskd/internal/apiserver"
	"github.com/slok/taskd/internal/app/lifecycle"
	"github.com/slok/taskd/internal/app/transition"
	"github.com/slok/taskd/internal/config"
	"github.com/slok/taskd/internal/dispatch/webhook"
	"github.com/slok/taskd/internal/storage/memory"
	"github.com/slok/taskd/internal/storage/sqlite"
)

type RunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	listenAddr         string
	internalAuthToken  string
	dispatchTriggerURL string
	configFile         string
}

// NewRunCommand returns the run command.
func NewRunCommand(rootCmd *RootCommand, app *kingpin.Application) *RunCommand {
	c := &RunCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("run", "Run the task lifecycle API server.")

	c.Cmd.Flag("listen-addr", "Address the API server listens on (default :8080).").Envar("TASKD_LISTEN_ADDR").StringVar(&c.listenAddr)
	c.Cmd.Flag("internal-auth-token", "Shared secret for the privileged callback endpoints.").Envar("TASKD_INTERNAL_AUTH_TOKEN").StringVar(&c.internalAuthToken)
	c.Cmd.Flag("dispatch-trigger-url", "External backend endpoint that triggers task execution.").Envar("TASKD_DISPATCH_TRIGGER_URL").StringVar(&c.dispatchTriggerURL)
	c.Cmd.Flag("config-file", "Path to an optional YAML config file, flags take precedence.").Envar("TASKD_CONFIG_FILE").StringVar(&c.configFile)

	return c
}

func (c RunCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	cfg, err := c.serverConfig(ctx)
	if err != nil {
		return fmt.Errorf("could not load server configuration: %w", err)
	}

	// Initialize storage (SQLite durable store + in-memory status cache).
	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: cfg.DBPath,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create repository: %w", err)
	}
	defer repo.Close()

	cache, err := memory.NewStatusCache(memory.StatusCacheConfig{Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create status cache: %w", err)
	}

	// Dispatch notifier.
	notifier, err := webhook.NewNotifier(webhook.NotifierConfig{
		TriggerURL: cfg.DispatchTriggerURL,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create dispatch notifier: %w", err)
	}

	// Application services.
	coordinator, err := transition.NewCoordinator(transition.CoordinatorConfig{
		Repository:  repo,
		StatusCache: cache,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("could not create transition coordinator: %w", err)
	}

	svc, err := lifecycle.NewService(lifecycle.ServiceConfig{
		Repository:  repo,
		StatusCache: cache,
		Coordinator: coordinator,
		Notifier:    notifier,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("could not create lifecycle service: %w", err)
	}

	// API server.
	server, err := apiserver.NewServer(apiserver.ServerConfig{
		ListenAddr:        cfg.ListenAddr,
		InternalAuthToken: cfg.InternalAuthToken,
		Service:           svc,
		Logger:            logger,
	})
	if err != nil {
		return fmt.Errorf("could not create API server: %w", err)
	}

	return server.Run(ctx)
}

// serverConfig resolves the effective configuration: YAML file values first
// (when a file is given), explicit flags on top.
func (c RunCommand) serverConfig(ctx context.Context) (*config.Server, error) {
	cfg := &config.Server{}

	if c.configFile != "" {
		abs, err := filepath.Abs(c.configFile)
		if err != nil {
			return nil, fmt.Errorf("could not resolve config file path: %w", err)
		}
		loader := config.NewYAMLLoader(os.DirFS(filepath.Dir(abs)))
		fileCfg, err := loader.Load(ctx, filepath.Base(abs))
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	if c.listenAddr != "" {
		cfg.ListenAddr = c.listenAddr
	}
	if c.internalAuthToken != "" {
		cfg.InternalAuthToken = c.internalAuthToken
	}
	if c.dispatchTriggerURL != "" {
		cfg.DispatchTriggerURL = c.dispatchTriggerURL
	}
	if cfg.DBPath == "" {
		cfg.DBPath = c.rootCmd.DBPath
	}

	if cfg.InternalAuthToken == "" {
		return nil, fmt.Errorf("an internal auth token is required (flag or config file)")
	}
	if cfg.DispatchTriggerURL == "" {
		return nil, fmt.Errorf("a dispatch trigger url is required (flag or config file)")
	}

	return cfg, nil
}
