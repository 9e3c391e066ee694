/*-------------------------------------------------------------------------
 *
 * sqlpilot - Web Chat Server
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sqlpilot/internal/agent"
	"sqlpilot/internal/config"
	"sqlpilot/internal/conversations"
	"sqlpilot/internal/database"
	"sqlpilot/internal/llm"
	"sqlpilot/internal/logging"
	"sqlpilot/internal/tools"
	"sqlpilot/internal/web"
)

const version = "1.0.0-alpha1"

var (
	configFile  string
	httpAddr    string
	dbURL       string
	dbHost      string
	dbPort      int
	dbName      string
	dbUser      string
	dbPassword  string
	dbSSLMode   string
	restURL     string
	restAPIKey  string
	llmProvider string
	llmModel    string
	maxRounds   int
	storePath   string
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "sqlpilot",
	Short: "sqlpilot - ask your PostgreSQL database questions in plain language",
	Long: `sqlpilot serves a web chat that answers natural language questions about a
PostgreSQL database. The assistant explores the schema on demand, writes and
runs the SQL itself, and replies in plain language.

Configuration comes from flags, SQLPILOT_* environment variables, and a YAML
config file, in that priority order. A running server picks up config file
changes without a restart; reasoning settings apply from the next question.`,
	Version: version,
	RunE:    run,
}

func init() {
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to configuration file")
	rootCmd.Flags().StringVar(&httpAddr, "addr", "", "HTTP listen address (default :8080)")
	rootCmd.Flags().StringVar(&dbURL, "db-url", "", "Full database connection URL")
	rootCmd.Flags().StringVar(&dbHost, "db-host", "", "Database host")
	rootCmd.Flags().IntVar(&dbPort, "db-port", 0, "Database port")
	rootCmd.Flags().StringVar(&dbName, "db-name", "", "Database name")
	rootCmd.Flags().StringVar(&dbUser, "db-user", "", "Database user")
	rootCmd.Flags().StringVar(&dbPassword, "db-password", "", "Database password")
	rootCmd.Flags().StringVar(&dbSSLMode, "db-sslmode", "", "Database SSL mode (disable, require, verify-ca, verify-full)")
	rootCmd.Flags().StringVar(&restURL, "rest-url", "", "Hosted backend base URL (replaces the direct connection)")
	rootCmd.Flags().StringVar(&restAPIKey, "rest-api-key", "", "API key for the hosted backend")
	rootCmd.Flags().StringVar(&llmProvider, "provider", "", "LLM provider: anthropic or openai")
	rootCmd.Flags().StringVar(&llmModel, "model", "", "LLM model (empty picks the provider default)")
	rootCmd.Flags().IntVar(&maxRounds, "max-rounds", 0, "Reasoning/tool cycles allowed per question")
	rootCmd.Flags().StringVar(&storePath, "store", "", "Conversation store path (SQLite)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

func main() {
	// Cobra prints usage for flag errors; runtime errors are reported by run
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// collectFlags records which flags were explicitly set, so unset flags do not
// clobber file or environment values.
func collectFlags(cmd *cobra.Command) config.CLIFlags {
	flags := config.CLIFlags{}

	if cmd.Flags().Changed("config") {
		flags.ConfigFileSet = true
		flags.ConfigFile = configFile
	}
	if cmd.Flags().Changed("addr") {
		flags.HTTPAddrSet = true
		flags.HTTPAddr = httpAddr
	}
	if cmd.Flags().Changed("db-url") {
		flags.DatabaseURLSet = true
		flags.DatabaseURL = dbURL
	}
	if cmd.Flags().Changed("db-host") {
		flags.DBHostSet = true
		flags.DBHost = dbHost
	}
	if cmd.Flags().Changed("db-port") {
		flags.DBPortSet = true
		flags.DBPort = dbPort
	}
	if cmd.Flags().Changed("db-name") {
		flags.DBNameSet = true
		flags.DBName = dbName
	}
	if cmd.Flags().Changed("db-user") {
		flags.DBUserSet = true
		flags.DBUser = dbUser
	}
	if cmd.Flags().Changed("db-password") {
		flags.DBPassSet = true
		flags.DBPassword = dbPassword
	}
	if cmd.Flags().Changed("db-sslmode") {
		flags.DBSSLSet = true
		flags.DBSSLMode = dbSSLMode
	}
	if cmd.Flags().Changed("rest-url") {
		flags.RESTURLSet = true
		flags.RESTURL = restURL
	}
	if cmd.Flags().Changed("rest-api-key") {
		flags.RESTAPIKeySet = true
		flags.RESTAPIKey = restAPIKey
	}
	if cmd.Flags().Changed("provider") {
		flags.ProviderSet = true
		flags.Provider = llmProvider
	}
	if cmd.Flags().Changed("model") {
		flags.ModelSet = true
		flags.Model = llmModel
	}
	if cmd.Flags().Changed("max-rounds") {
		flags.MaxRoundsSet = true
		flags.MaxRounds = maxRounds
	}
	if cmd.Flags().Changed("store") {
		flags.StorePathSet = true
		flags.StorePath = storePath
	}
	if cmd.Flags().Changed("log-level") {
		flags.LogLevelSet = true
		flags.LogLevel = logLevel
	}

	return flags
}

func reasoningOptions(cfg *config.Config) llm.Options {
	return llm.Options{
		APIKey:      cfg.LLM.APIKey(),
		Model:       cfg.LLM.ResolvedModel(),
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.RequestTimeoutDuration(),
	}
}

func run(cmd *cobra.Command, args []string) error {
	// Suppress usage for runtime errors (flags have already been parsed)
	cmd.SilenceUsage = true

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	cliFlags := collectFlags(cmd)

	configPath := configFile
	if !cliFlags.ConfigFileSet {
		configPath = config.GetDefaultConfigPath(execPath)
	}

	// The default config path is allowed to be absent
	configPathForLoad := ""
	if config.ConfigFileExists(configPath) {
		configPathForLoad = configPath
	}

	cfg, err := config.LoadConfig(configPathForLoad, cliFlags)
	if err != nil {
		return err
	}
	if level, ok := logging.ParseLevel(cfg.LogLevel); ok {
		logging.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Metadata provider: hosted REST backend or a direct connection pool
	var provider database.Provider
	if cfg.Hosted() {
		provider = database.NewRESTProvider(cfg.REST.URL, cfg.REST.APIKey)
		logging.Info("using hosted backend", "url", cfg.REST.URL)
	} else {
		pg, err := database.NewPGProvider(ctx, cfg.Database.ConnString(), database.PoolSettings{
			MaxConns:        int32(cfg.Database.PoolMaxConns),
			MinConns:        int32(cfg.Database.PoolMinConns),
			MaxConnIdleTime: cfg.Database.MaxIdleTime(),
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		provider = pg
	}
	defer provider.Close()

	registry := tools.DefaultRegistry(provider)

	client, err := llm.NewClient(cfg.LLM.Provider, reasoningOptions(cfg))
	if err != nil {
		return err
	}
	swappable := llm.NewSwappable(client)

	store, err := conversations.NewStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open conversation store: %w", err)
	}
	defer store.Close()

	// Config file changes swap the reasoning client in place; sessions pick
	// up the new agent limits on their next turn.
	reloadable := config.NewReloadableConfig(cfg, configPathForLoad, cliFlags)
	reloadable.OnReload(func(newCfg *config.Config) {
		if level, ok := logging.ParseLevel(newCfg.LogLevel); ok {
			logging.SetLevel(level)
		}
		newClient, err := llm.NewClient(newCfg.LLM.Provider, reasoningOptions(newCfg))
		if err != nil {
			logging.Warn("keeping previous reasoning client",
				"config", reloadable.GetPath(), "error", err.Error())
			return
		}
		swappable.Swap(newClient)
	})

	if configPathForLoad != "" {
		watcher, err := config.NewFileWatcher(configPathForLoad, reloadable.Reload)
		if err != nil {
			logging.Warn("config watching disabled", "error", err.Error())
		} else {
			watcher.Start()
			defer watcher.Stop()
			logging.Info("watching config file", "path", configPathForLoad)
		}
	}

	factory := func(id string, history []llm.Message) web.Conversation {
		agentCfg := reloadable.Get().Agent
		return agent.ResumeSession(id, history, swappable, registry, agent.Options{
			MaxRounds:   agentCfg.MaxRounds,
			ToolTimeout: agentCfg.ToolTimeoutDuration(),
		})
	}

	server := web.NewServer(web.Config{Addr: cfg.HTTP.Address}, store, factory, provider.Ping)

	logging.Info("sqlpilot starting",
		"version", version,
		"addr", cfg.HTTP.Address,
		"provider", cfg.LLM.Provider,
		"model", cfg.LLM.ResolvedModel())

	return server.Run(ctx)
}
