package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"prism-board/client"
	"prism-board/config"
	"prism-board/engine"
	"prism-board/printer"
	"prism-board/storage"
)

// app carries what every subcommand needs once the root has loaded the
// configuration.
type app struct {
	configPath string
	logFormat  string
	project    string

	cfg    *config.Config
	logger *log.Logger
	stdout io.Writer
	stderr io.Writer
}

// NewRootCmd builds the prism-board command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "prism-board",
		Short: "Kanban board client for task backends with unknown update contracts",
		Long: `prism-board shows a project's tasks as a three column board and moves or
creates tasks against the backend.

Moves are applied locally first and then persisted by probing the backend's
update routes and payload shapes until one is accepted. The winning contract
is remembered per project, in Redis when a cache URL is configured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to prism-board.yml")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "text", "Log format: text or json")
	root.PersistentFlags().StringVarP(&a.project, "project", "p", "", "Project id (defaults to api.project)")

	root.AddCommand(
		newShowCmd(a),
		newMoveCmd(a),
		newCreateCmd(a),
		newDevServerCmd(a),
	)
	return root
}

// SetVersionInfo sets the version information for the CLI.
func SetVersionInfo(root *cobra.Command, v, c, d string) {
	root.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func (a *app) init(cmd *cobra.Command) error {
	a.stdout = cmd.OutOrStdout()
	a.stderr = cmd.ErrOrStderr()
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return a.fail("Configuration error", err.Error(), []string{
			"Check the file passed with --config and the PRISM_* environment variables.",
		})
	}
	a.cfg = cfg

	logger := log.New()
	logger.SetOutput(cmd.ErrOrStderr())
	switch a.logFormat {
	case "json":
		logger.SetFormatter(&log.JSONFormatter{})
	case "text", "":
	default:
		return a.fail("Invalid --log-format", fmt.Sprintf("Unknown format %q.", a.logFormat), []string{"Use text or json."})
	}
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.WarnLevel)
	}
	a.logger = logger
	return nil
}

func (a *app) projectID() (string, error) {
	if a.project != "" {
		return a.project, nil
	}
	if a.cfg.API.Project != "" {
		return a.cfg.API.Project, nil
	}
	return "", a.fail("No project selected", "Commands act on one project.", []string{
		"Pass --project <id>, or set api.project / PRISM_PROJECT.",
	})
}

func (a *app) client() *client.Client {
	session := client.Session{
		BaseURL: a.cfg.API.URL,
		Token:   a.cfg.API.Token,
		OnUnauthorized: func() {
			a.logger.Debug("backend answered 401")
		},
	}
	return client.New(session, client.WithLogger(a.logger))
}

// contractCache uses Redis when configured and reachable, else memory.
func (a *app) contractCache(ctx context.Context) (storage.ContractCache, func()) {
	if a.cfg.Cache.RedisURL == "" {
		return storage.NewMemoryContractCache(), func() {}
	}
	opts, err := config.RedisOptions(a.cfg.Cache.RedisURL)
	if err != nil {
		a.logger.WithError(err).Warn("contract cache disabled")
		return storage.NewMemoryContractCache(), func() {}
	}
	rc := redis.NewClient(opts)
	if err := rc.Ping(ctx).Err(); err != nil {
		a.logger.WithError(err).Warn("redis unreachable, contract cache kept in memory")
		_ = rc.Close()
		return storage.NewMemoryContractCache(), func() {}
	}
	return storage.NewRedisContractCache(rc, a.cfg.Cache.TTL), func() { _ = rc.Close() }
}

// openView loads the board and reports load failures the way every command
// wants them.
func (a *app) openView(ctx context.Context, c *client.Client, projectID string) (*engine.View, error) {
	view, err := engine.OpenView(ctx, engine.NewLoader(c, a.logger), projectID, a.logger)
	if err != nil {
		return nil, a.fail("Could not load the board", client.UserMessage(err), a.suggestionsFor(err))
	}
	return view, nil
}

func (a *app) fail(title, explanation string, suggestions []string) error {
	return printer.Error(a.stderr, title, explanation, suggestions)
}

func (a *app) suggestionsFor(err error) []string {
	switch {
	case errors.Is(err, client.ErrSessionExpired):
		return []string{"The token has expired. Sign in again and update api.token or PRISM_TOKEN."}
	case client.StatusCode(err) == http.StatusUnauthorized, client.StatusCode(err) == http.StatusForbidden:
		return []string{"Check the token in api.token or PRISM_TOKEN."}
	case client.StatusCode(err) == http.StatusNotFound:
		return []string{"Check the project id."}
	}
	return []string{fmt.Sprintf("Check that the backend at %s is reachable.", a.cfg.API.URL)}
}
