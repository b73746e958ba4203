package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	"github.com/hylla/taskmon/internal/adapters/auth"
	"github.com/hylla/taskmon/internal/adapters/cache/rediscache"
	serveradapter "github.com/hylla/taskmon/internal/adapters/server"
	"github.com/hylla/taskmon/internal/adapters/server/promapi"
	"github.com/hylla/taskmon/internal/adapters/storage/sqlite"
	"github.com/hylla/taskmon/internal/app"
	"github.com/hylla/taskmon/internal/config"
	"github.com/hylla/taskmon/internal/platform"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// version stores a package-level helper value.
var version = "dev"

// serveCommandRunner starts the HTTP+MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

// Environment variables read by the CLI.
const (
	envConfig        = "TASKMON_CONFIG"
	envDBPath        = "TASKMON_DB_PATH"
	envDevMode       = "TASKMON_DEV_MODE"
	envUser          = "TASKMON_USER"
	envPassword      = "TASKMON_PASSWORD"
	envAdminPassword = "TASKMON_ADMIN_PASSWORD"
	envNewPassword   = "TASKMON_NEW_PASSWORD"
)

// main handles main.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := newCLI(os.Stdout, os.Stderr, os.Getenv)
	c.markdownStyle = "auto"
	if err := fang.Execute(ctx, c.rootCommand(), fang.WithVersion(version)); err != nil {
		stop()
		os.Exit(1)
	}
}

// cli holds global flag state and the process environment seen by every command.
type cli struct {
	stdout        io.Writer
	stderr        io.Writer
	getenv        func(string) string
	now           func() time.Time
	markdownStyle string

	configPath string
	dbPath     string
	devMode    bool
	as         string
	jsonOut    bool
}

// newCLI constructs a new value for this package.
func newCLI(stdout, stderr io.Writer, getenv func(string) string) *cli {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	if getenv == nil {
		getenv = func(string) string { return "" }
	}
	return &cli{
		stdout:        stdout,
		stderr:        stderr,
		getenv:        getenv,
		now:           time.Now,
		markdownStyle: "dark",
	}
}

// rootCommand assembles the command tree.
func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "taskmon",
		Short:         "Track activities, time, dependencies and team productivity",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)

	defaultDev := version == "dev"
	if v, ok := parseBoolEnv(c.getenv(envDevMode)); ok {
		defaultDev = v
	}
	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "path to config TOML (env "+envConfig+")")
	flags.StringVar(&c.dbPath, "db", "", "path to sqlite database (env "+envDBPath+")")
	flags.BoolVar(&c.devMode, "dev", defaultDev, "use dev mode paths (taskmon-dev)")
	flags.StringVar(&c.as, "as", "", "username to act as; password read from "+envPassword)
	flags.BoolVar(&c.jsonOut, "json", false, "print JSON instead of tables")

	root.AddCommand(
		c.pathsCommand(),
		c.migrateCommand(),
		c.provisionAdminCommand(),
		c.serveCommand(),
		c.activityCommand(),
		c.timeCommand(),
		c.depCommand(),
		c.commentCommand(),
		c.tagCommand(),
		c.reminderCommand(),
		c.departmentCommand(),
		c.userCommand(),
		c.metricsCommand(),
		c.auditCommand(),
	)
	return root
}

// runtime is the opened service stack for one command invocation.
type runtime struct {
	cfg        config.Config
	configPath string
	paths      platform.Paths
	logger     *runtimeLogger
	repo       *sqlite.Repository
	redis      *redis.Client
	svc        *app.Service
}

// resolvePaths applies flag, env and platform defaults in that order.
func (c *cli) resolvePaths() (platform.Paths, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: platform.DefaultAppName,
		DevMode: c.devMode,
	})
	if err != nil {
		return platform.Paths{}, err
	}
	configPath := firstNonEmpty(c.configPath, c.getenv(envConfig))
	dbPath := firstNonEmpty(c.dbPath, c.getenv(envDBPath))
	return paths.WithOverrides(configPath, dbPath)
}

// open loads configuration and builds the repository, cache and service.
func (c *cli) open(ctx context.Context, command string) (*runtime, error) {
	paths, err := c.resolvePaths()
	if err != nil {
		return nil, err
	}
	dbOverridden := strings.TrimSpace(firstNonEmpty(c.dbPath, c.getenv(envDBPath))) != ""

	cfg, err := config.Load(paths.ConfigPath, config.Default(paths.DBPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", paths.ConfigPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = paths.DBPath
	}

	logger, err := newRuntimeLogger(c.stderr, appName(c.devMode), c.devMode, cfg.Logging, c.now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	rt := &runtime{cfg: cfg, configPath: paths.ConfigPath, paths: paths, logger: logger}

	logger.Debug("startup configuration resolved", "dev_mode", c.devMode, "command", command)
	logger.Debug("configuration loaded", "config_path", paths.ConfigPath, "db_path", cfg.Database.Path, "log_level", cfg.Logging.Level)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	repo, err := sqlite.Open(ctx, cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		_ = rt.Close()
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	rt.repo = repo
	logger.Debug("sqlite repository ready", "db_path", cfg.Database.Path, "migrations", "ensured")

	svcCfg, err := serviceConfig(cfg)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	if url := strings.TrimSpace(cfg.Cache.RedisURL); url != "" {
		client, err := rediscache.Connect(ctx, url)
		if err != nil {
			logger.Error("redis connect failed", "err", err)
			_ = rt.Close()
			return nil, fmt.Errorf("connect dashboard cache: %w", err)
		}
		rt.redis = client
		ttl, _ := cfg.CacheTTL()
		svcCfg.Cache = rediscache.New(client, rediscache.Config{
			TTL:       ttl,
			KeyPrefix: cfg.Cache.KeyPrefix,
			Logger:    logger.Component("cache"),
		})
		logger.Debug("dashboard cache enabled", "ttl", ttl, "prefix", cfg.Cache.KeyPrefix)
	}

	svcCfg.Logger = logger.Component("service")
	rt.svc = app.NewService(repo, uuid.NewString, c.now, svcCfg)
	return rt, nil
}

// serviceConfig maps config onto the service options.
func serviceConfig(cfg config.Config) (app.ServiceConfig, error) {
	timeout, err := cfg.DatabaseTimeout()
	if err != nil {
		return app.ServiceConfig{}, err
	}
	grace, err := cfg.LateGrace()
	if err != nil {
		return app.ServiceConfig{}, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return app.ServiceConfig{}, err
	}
	return app.ServiceConfig{
		OperationTimeout:         timeout,
		LateGrace:                grace,
		EnforceStartDependencies: cfg.Lifecycle.EnforceStartDependencies,
		ProductivityWindowDays:   cfg.Metrics.ProductivityWindowDays,
		Location:                 loc,
	}, nil
}

// Close releases the cache client, repository and log file.
func (rt *runtime) Close() error {
	var errs []error
	if rt.redis != nil {
		errs = append(errs, rt.redis.Close())
	}
	if rt.repo != nil {
		errs = append(errs, rt.repo.Close())
	}
	errs = append(errs, rt.logger.Close())
	return errors.Join(errs...)
}

// withRuntime opens the stack, runs fn and closes the stack.
func (c *cli) withRuntime(cmd *cobra.Command, fn func(context.Context, *runtime) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := c.open(ctx, cmd.CommandPath())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil && err == nil {
			rt.logger.Warn("runtime close failed", "err", closeErr)
		}
	}()
	if err := fn(ctx, rt); err != nil {
		rt.logger.Debug("command flow failed", "command", cmd.CommandPath(), "err", err)
		return err
	}
	return nil
}

// asActor authenticates the --as user and runs fn with that actor on the context.
func (c *cli) asActor(cmd *cobra.Command, fn func(context.Context, *runtime) error) error {
	return c.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
		username := firstNonEmpty(c.as, c.getenv(envUser))
		if username == "" {
			return fmt.Errorf("--as or %s is required", envUser)
		}
		password := c.getenv(envPassword)
		if password == "" {
			return fmt.Errorf("%s is required", envPassword)
		}
		user, err := rt.svc.Authenticate(ctx, username, password)
		if err != nil {
			return fmt.Errorf("authenticate %q: %w", username, err)
		}
		return fn(app.WithActor(ctx, app.ActorFromUser(user)), rt)
	})
}

// pathsCommand prints resolved locations without opening the database.
func (c *cli) pathsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print config, data and database locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := c.resolvePaths()
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(c.stdout, "app: %s\n", appName(c.devMode))
			_, _ = fmt.Fprintf(c.stdout, "dev_mode: %t\n", c.devMode)
			_, _ = fmt.Fprintf(c.stdout, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(c.stdout, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(c.stdout, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(c.stdout, "log_dir: %s\n", paths.LogDir)
			return nil
		},
	}
}

// migrateCommand applies pending schema migrations and prints the version.
func (c *cli) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				v, err := sqlite.SchemaVersion(ctx, rt.repo.DB())
				if err != nil {
					return fmt.Errorf("read schema version: %w", err)
				}
				rt.logger.Info("migrations applied", "db_path", rt.cfg.Database.Path, "version", v)
				_, _ = fmt.Fprintf(c.stdout, "schema version: %d\n", v)
				return nil
			})
		},
	}
}

// provisionAdminCommand creates the first administrator.
func (c *cli) provisionAdminCommand() *cobra.Command {
	var (
		username     string
		fullName     string
		email        string
		passwordFile string
	)
	cmd := &cobra.Command{
		Use:   "provision-admin",
		Short: "Create the first administrator account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := c.readSecret(passwordFile, envAdminPassword)
			if err != nil {
				return err
			}
			return c.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				user, err := rt.svc.ProvisionAdmin(ctx, app.ProvisionAdminInput{
					Username: username,
					Password: password,
					FullName: fullName,
					Email:    email,
				})
				if err != nil {
					return fmt.Errorf("provision admin: %w", err)
				}
				rt.logger.Info("administrator provisioned", "username", user.Username)
				return c.printUser(user)
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "admin", "administrator username")
	cmd.Flags().StringVar(&fullName, "full-name", "Administrator", "administrator full name")
	cmd.Flags().StringVar(&email, "email", "", "administrator email")
	cmd.Flags().StringVar(&passwordFile, "password-file", "", "file holding the password (default env "+envAdminPassword+")")
	return cmd
}

// serveCommand runs the HTTP API, MCP endpoint and metrics exporter.
func (c *cli) serveCommand() *cobra.Command {
	var (
		httpBind        string
		apiEndpoint     string
		mcpEndpoint     string
		metricsEndpoint string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, MCP tools and Prometheus metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
				secretEnv := strings.TrimSpace(rt.cfg.Auth.SecretEnv)
				ttl, err := rt.cfg.TokenTTL()
				if err != nil {
					return err
				}
				tokens, err := auth.NewTokens(c.getenv(secretEnv), ttl, c.now)
				if err != nil {
					return fmt.Errorf("configure tokens from %s: %w", secretEnv, err)
				}
				serverLogger := rt.logger.Component("server")
				srvCfg := serveradapter.Config{
					HTTPBind:        firstNonEmpty(httpBind, rt.cfg.Server.HTTPBind),
					APIEndpoint:     firstNonEmpty(apiEndpoint, rt.cfg.Server.APIEndpoint),
					MCPEndpoint:     firstNonEmpty(mcpEndpoint, rt.cfg.Server.MCPEndpoint),
					MetricsEndpoint: firstNonEmpty(metricsEndpoint, rt.cfg.Server.MetricsEndpoint),
					ServerName:      platform.DefaultAppName,
					ServerVersion:   version,
				}
				rt.logger.Info("command flow start", "command", "serve", "bind", srvCfg.HTTPBind)
				err = serveCommandRunner(ctx, srvCfg, serveradapter.Dependencies{
					Service: rt.svc,
					Tokens:  tokens,
					Metrics: promapi.New(rt.svc, serverLogger),
					Store:   rt.repo,
					Logger:  serverLogger,
				})
				if err != nil {
					return fmt.Errorf("run serve command: %w", err)
				}
				rt.logger.Info("command flow complete", "command", "serve")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&httpBind, "http", "", "HTTP listen address (default from config)")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "", "HTTP API base endpoint")
	cmd.Flags().StringVar(&mcpEndpoint, "mcp-endpoint", "", "MCP streamable HTTP endpoint")
	cmd.Flags().StringVar(&metricsEndpoint, "metrics-endpoint", "", "Prometheus scrape endpoint")
	return cmd
}

// readSecret reads a password from file, or from env when file is empty.
func (c *cli) readSecret(file, env string) (string, error) {
	if strings.TrimSpace(file) != "" {
		content, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read password file: %w", err)
		}
		return strings.TrimRight(string(content), "\r\n"), nil
	}
	if v := c.getenv(env); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("password required: set %s or pass --password-file", env)
}

func appName(devMode bool) string {
	if devMode {
		return platform.DefaultAppName + "-dev"
	}
	return platform.DefaultAppName
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// parseBoolEnv parses input into a normalized form.
func parseBoolEnv(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
