/*-------------------------------------------------------------------------
 *
 * sqlpilot - Terminal Chat
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sqlpilot/internal/agent"
	"sqlpilot/internal/chat"
	"sqlpilot/internal/config"
	"sqlpilot/internal/database"
	"sqlpilot/internal/llm"
	"sqlpilot/internal/tools"
)

const version = "1.0.0-alpha1"

func main() {
	// Command line flags
	configFile := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	dbURL := flag.String("db-url", "", "Full database connection URL")
	dbHost := flag.String("db-host", "", "Database host")
	dbPort := flag.Int("db-port", 0, "Database port")
	dbName := flag.String("db-name", "", "Database name")
	dbUser := flag.String("db-user", "", "Database user")
	dbPassword := flag.String("db-password", "", "Database password")
	dbSSLMode := flag.String("db-sslmode", "", "Database SSL mode (disable, require, verify-ca, verify-full)")
	restURL := flag.String("rest-url", "", "Hosted backend base URL (replaces the direct connection)")
	restAPIKey := flag.String("rest-api-key", "", "API key for the hosted backend")
	llmProvider := flag.String("provider", "", "LLM provider: anthropic or openai")
	llmModel := flag.String("model", "", "LLM model (empty picks the provider default)")
	apiKey := flag.String("api-key", "", "API key for the LLM provider")
	noColor := flag.Bool("no-color", false, "Disable colored output")
	noMarkdown := flag.Bool("no-markdown", false, "Disable markdown rendering of answers")

	flag.Parse()

	if *showVersion {
		fmt.Printf("sqlpilot chat v%s\n", version)
		return
	}

	// Route the key through the environment so provider selection decides
	// which slot it fills
	if *apiKey != "" {
		os.Setenv("SQLPILOT_ANTHROPIC_API_KEY", *apiKey)
		os.Setenv("SQLPILOT_OPENAI_API_KEY", *apiKey)
	}

	// Track which flags were explicitly set
	cliFlags := config.CLIFlags{}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "config":
			cliFlags.ConfigFileSet = true
			cliFlags.ConfigFile = *configFile
		case "db-url":
			cliFlags.DatabaseURLSet = true
			cliFlags.DatabaseURL = *dbURL
		case "db-host":
			cliFlags.DBHostSet = true
			cliFlags.DBHost = *dbHost
		case "db-port":
			cliFlags.DBPortSet = true
			cliFlags.DBPort = *dbPort
		case "db-name":
			cliFlags.DBNameSet = true
			cliFlags.DBName = *dbName
		case "db-user":
			cliFlags.DBUserSet = true
			cliFlags.DBUser = *dbUser
		case "db-password":
			cliFlags.DBPassSet = true
			cliFlags.DBPassword = *dbPassword
		case "db-sslmode":
			cliFlags.DBSSLSet = true
			cliFlags.DBSSLMode = *dbSSLMode
		case "rest-url":
			cliFlags.RESTURLSet = true
			cliFlags.RESTURL = *restURL
		case "rest-api-key":
			cliFlags.RESTAPIKeySet = true
			cliFlags.RESTAPIKey = *restAPIKey
		case "provider":
			cliFlags.ProviderSet = true
			cliFlags.Provider = *llmProvider
		case "model":
			cliFlags.ModelSet = true
			cliFlags.Model = *llmModel
		}
	})

	execPath, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to get executable path: %v\n", err)
		os.Exit(1)
	}

	configPath := *configFile
	if !cliFlags.ConfigFileSet {
		configPath = config.GetDefaultConfigPath(execPath)
	}
	configPathForLoad := ""
	if config.ConfigFileExists(configPath) {
		configPathForLoad = configPath
	}

	cfg, err := config.LoadConfig(configPathForLoad, cliFlags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\nReceived interrupt signal. Shutting down...")
		cancel()
	}()

	// Metadata provider: hosted REST backend or a direct connection pool
	var provider database.Provider
	var dbDisplay string
	if cfg.Hosted() {
		provider = database.NewRESTProvider(cfg.REST.URL, cfg.REST.APIKey)
		dbDisplay = cfg.REST.URL
	} else {
		pg, err := database.NewPGProvider(ctx, cfg.Database.ConnString(), database.PoolSettings{
			MaxConns:        int32(cfg.Database.PoolMaxConns),
			MinConns:        int32(cfg.Database.PoolMinConns),
			MaxConnIdleTime: cfg.Database.MaxIdleTime(),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: Failed to connect to database: %v\n", err)
			os.Exit(1)
		}
		provider = pg
		if cfg.Database.URL != "" {
			dbDisplay = cfg.Redacted().Database.URL
		} else {
			dbDisplay = fmt.Sprintf("%s@%s:%d/%s",
				cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
		}
	}
	defer provider.Close()

	registry := tools.DefaultRegistry(provider)

	client, err := llm.NewClient(cfg.LLM.Provider, llm.Options{
		APIKey:      cfg.LLM.APIKey(),
		Model:       cfg.LLM.ResolvedModel(),
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.RequestTimeoutDuration(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	chatClient := chat.NewClient(client, registry, chat.Options{
		Provider:       cfg.LLM.Provider,
		Model:          cfg.LLM.ResolvedModel(),
		Database:       dbDisplay,
		NoColor:        *noColor,
		RenderMarkdown: !*noMarkdown,
		Agent: agent.Options{
			MaxRounds:   cfg.Agent.MaxRounds,
			ToolTimeout: cfg.Agent.ToolTimeoutDuration(),
		},
	})

	if err := chatClient.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}
