/*-------------------------------------------------------------------------
 *
 * sqlpilot - Configuration
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete process configuration.
type Config struct {
	// HTTP server settings for the web surface.
	HTTP HTTPConfig `yaml:"http"`

	// Database connection settings for the direct PostgreSQL provider.
	Database DatabaseConfig `yaml:"database"`

	// REST settings for the hosted provider. When URL is set, the hosted
	// provider is used instead of a direct connection.
	REST RESTConfig `yaml:"rest"`

	// LLM reasoning-service settings.
	LLM LLMConfig `yaml:"llm"`

	// Agent loop settings.
	Agent AgentConfig `yaml:"agent"`

	// Store settings for conversation persistence.
	Store StoreConfig `yaml:"store"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// HTTPConfig holds web server settings.
type HTTPConfig struct {
	Address string `yaml:"address"` // Listen address (default: :8080)
}

// DatabaseConfig holds direct-connection settings.
type DatabaseConfig struct {
	URL      string `yaml:"url"`      // Full connection string; overrides the discrete fields below
	Host     string `yaml:"host"`     // Database host (default: localhost)
	Port     int    `yaml:"port"`     // Database port (default: 5432)
	Database string `yaml:"database"` // Database name (default: postgres)
	User     string `yaml:"user"`     // Database user (required unless url or rest.url is set)
	Password string `yaml:"password"` // Database password (optional, .pgpass is consulted when empty)
	SSLMode  string `yaml:"sslmode"`  // disable, require, verify-ca, verify-full (default: prefer)

	PoolMaxConns        int    `yaml:"pool_max_conns"`          // Maximum pool size (default: 4)
	PoolMinConns        int    `yaml:"pool_min_conns"`          // Minimum pool size (default: 0)
	PoolMaxConnIdleTime string `yaml:"pool_max_conn_idle_time"` // Idle teardown, Go duration (default: 30m)
}

// RESTConfig holds hosted-provider settings.
type RESTConfig struct {
	URL    string `yaml:"url"`     // Base URL of the hosted backend
	APIKey string `yaml:"api_key"` // API key sent with every request
}

// LLMConfig holds reasoning-service settings.
type LLMConfig struct {
	Provider        string  `yaml:"provider"`          // "anthropic" or "openai" (default: anthropic)
	Model           string  `yaml:"model"`             // Provider-specific model, empty picks the provider default
	AnthropicAPIKey string  `yaml:"anthropic_api_key"` // Discouraged in files; prefer ANTHROPIC_API_KEY
	OpenAIAPIKey    string  `yaml:"openai_api_key"`    // Discouraged in files; prefer OPENAI_API_KEY
	MaxTokens       int     `yaml:"max_tokens"`        // Response token cap (default: 4096)
	Temperature     float64 `yaml:"temperature"`       // Sampling temperature (default: 0, SQL wants determinism)
	RequestTimeout  string  `yaml:"request_timeout"`   // Per-request timeout, Go duration (default: 120s)
}

// AgentConfig holds conversation-loop settings.
type AgentConfig struct {
	MaxRounds   int    `yaml:"max_rounds"`   // Reasoning/tool cycles per turn (default: 16)
	ToolTimeout string `yaml:"tool_timeout"` // Per tool call, Go duration (default: 30s)
}

// StoreConfig holds conversation persistence settings.
type StoreConfig struct {
	Path string `yaml:"path"` // SQLite file path (default: sqlpilot.db)
}

// CLIFlags carries command-line values plus whether each was explicitly set,
// so unset flags do not clobber file or environment values.
type CLIFlags struct {
	ConfigFile    string
	ConfigFileSet bool

	HTTPAddr    string
	HTTPAddrSet bool

	DatabaseURL    string
	DatabaseURLSet bool
	DBHost         string
	DBHostSet      bool
	DBPort         int
	DBPortSet      bool
	DBName         string
	DBNameSet      bool
	DBUser         string
	DBUserSet      bool
	DBPassword     string
	DBPassSet      bool
	DBSSLMode      string
	DBSSLSet       bool

	RESTURL       string
	RESTURLSet    bool
	RESTAPIKey    string
	RESTAPIKeySet bool

	Provider    string
	ProviderSet bool
	Model       string
	ModelSet    bool

	MaxRounds    int
	MaxRoundsSet bool

	StorePath    string
	StorePathSet bool

	LogLevel    string
	LogLevelSet bool
}

// LoadConfig assembles configuration with the usual priority:
// 1. Command-line flags (highest)
// 2. Environment variables
// 3. Configuration file
// 4. Hard-coded defaults (lowest)
func LoadConfig(configPath string, cliFlags CLIFlags) (*Config, error) {
	cfg := defaultConfig()

	if configPath != "" {
		fileCfg, err := loadConfigFile(configPath)
		if err != nil {
			// An explicitly requested file must load; the default path is
			// allowed to be absent.
			if cliFlags.ConfigFileSet {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
		} else {
			mergeConfig(cfg, fileCfg)
		}
	}

	applyEnvironmentVariables(cfg)
	applyCLIFlags(cfg, cliFlags)

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address: ":8080",
		},
		Database: DatabaseConfig{
			Host:                "localhost",
			Port:                5432,
			Database:            "postgres",
			User:                "", // Required - must be provided
			Password:            "", // Optional - .pgpass is consulted
			SSLMode:             "prefer",
			PoolMaxConns:        4,
			PoolMinConns:        0,
			PoolMaxConnIdleTime: "30m",
		},
		REST: RESTConfig{},
		LLM: LLMConfig{
			Provider:       "anthropic",
			Model:          "", // Resolved per provider when empty
			MaxTokens:      4096,
			Temperature:    0,
			RequestTimeout: "120s",
		},
		Agent: AgentConfig{
			MaxRounds:   16,
			ToolTimeout: "30s",
		},
		Store: StoreConfig{
			Path: "sqlpilot.db",
		},
		LogLevel: "info",
	}
}

func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &cfg, nil
}

// mergeConfig overlays non-zero values from src onto dest.
func mergeConfig(dest, src *Config) {
	if src.HTTP.Address != "" {
		dest.HTTP.Address = src.HTTP.Address
	}

	if src.Database.URL != "" {
		dest.Database.URL = src.Database.URL
	}
	if src.Database.Host != "" {
		dest.Database.Host = src.Database.Host
	}
	if src.Database.Port != 0 {
		dest.Database.Port = src.Database.Port
	}
	if src.Database.Database != "" {
		dest.Database.Database = src.Database.Database
	}
	if src.Database.User != "" {
		dest.Database.User = src.Database.User
	}
	if src.Database.Password != "" {
		dest.Database.Password = src.Database.Password
	}
	if src.Database.SSLMode != "" {
		dest.Database.SSLMode = src.Database.SSLMode
	}
	if src.Database.PoolMaxConns != 0 {
		dest.Database.PoolMaxConns = src.Database.PoolMaxConns
	}
	if src.Database.PoolMinConns != 0 {
		dest.Database.PoolMinConns = src.Database.PoolMinConns
	}
	if src.Database.PoolMaxConnIdleTime != "" {
		dest.Database.PoolMaxConnIdleTime = src.Database.PoolMaxConnIdleTime
	}

	if src.REST.URL != "" {
		dest.REST.URL = src.REST.URL
	}
	if src.REST.APIKey != "" {
		dest.REST.APIKey = src.REST.APIKey
	}

	if src.LLM.Provider != "" {
		dest.LLM.Provider = src.LLM.Provider
	}
	if src.LLM.Model != "" {
		dest.LLM.Model = src.LLM.Model
	}
	if src.LLM.AnthropicAPIKey != "" {
		dest.LLM.AnthropicAPIKey = src.LLM.AnthropicAPIKey
	}
	if src.LLM.OpenAIAPIKey != "" {
		dest.LLM.OpenAIAPIKey = src.LLM.OpenAIAPIKey
	}
	if src.LLM.MaxTokens != 0 {
		dest.LLM.MaxTokens = src.LLM.MaxTokens
	}
	if src.LLM.Temperature != 0 {
		dest.LLM.Temperature = src.LLM.Temperature
	}
	if src.LLM.RequestTimeout != "" {
		dest.LLM.RequestTimeout = src.LLM.RequestTimeout
	}

	if src.Agent.MaxRounds != 0 {
		dest.Agent.MaxRounds = src.Agent.MaxRounds
	}
	if src.Agent.ToolTimeout != "" {
		dest.Agent.ToolTimeout = src.Agent.ToolTimeout
	}

	if src.Store.Path != "" {
		dest.Store.Path = src.Store.Path
	}

	if src.LogLevel != "" {
		dest.LogLevel = src.LogLevel
	}
}

// setStringFromEnv sets a string config value from an environment variable if it exists
func setStringFromEnv(dest *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dest = val
	}
}

// setStringFromEnvWithFallback checks multiple environment variable names in
// priority order.
func setStringFromEnvWithFallback(dest *string, keys ...string) {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			*dest = val
			return
		}
	}
}

// setIntFromEnv sets an integer config value from an environment variable if it exists
func setIntFromEnv(dest *int, key string) {
	if val := os.Getenv(key); val != "" {
		var intVal int
		if _, err := fmt.Sscanf(val, "%d", &intVal); err == nil {
			*dest = intVal
		}
	}
}

// applyEnvironmentVariables overrides config with environment variables.
// Variables use the SQLPILOT_ prefix; API keys and the standard PostgreSQL
// variables are also read unprefixed for convenience.
func applyEnvironmentVariables(cfg *Config) {
	setStringFromEnv(&cfg.HTTP.Address, "SQLPILOT_HTTP_ADDRESS")

	setStringFromEnv(&cfg.Database.URL, "SQLPILOT_DATABASE_URL")
	setStringFromEnv(&cfg.Database.Host, "SQLPILOT_DB_HOST")
	setIntFromEnv(&cfg.Database.Port, "SQLPILOT_DB_PORT")
	setStringFromEnv(&cfg.Database.Database, "SQLPILOT_DB_NAME")
	setStringFromEnv(&cfg.Database.User, "SQLPILOT_DB_USER")
	setStringFromEnv(&cfg.Database.Password, "SQLPILOT_DB_PASSWORD")
	setStringFromEnv(&cfg.Database.SSLMode, "SQLPILOT_DB_SSLMODE")

	// Standard PostgreSQL environment variables fill in anything still at
	// its default.
	if cfg.Database.Host == "localhost" {
		setStringFromEnv(&cfg.Database.Host, "PGHOST")
	}
	if cfg.Database.Port == 5432 {
		setIntFromEnv(&cfg.Database.Port, "PGPORT")
	}
	if cfg.Database.Database == "postgres" {
		setStringFromEnv(&cfg.Database.Database, "PGDATABASE")
	}
	if cfg.Database.User == "" {
		setStringFromEnv(&cfg.Database.User, "PGUSER")
	}
	if cfg.Database.Password == "" {
		setStringFromEnv(&cfg.Database.Password, "PGPASSWORD")
	}
	if cfg.Database.SSLMode == "prefer" {
		setStringFromEnv(&cfg.Database.SSLMode, "PGSSLMODE")
	}

	setStringFromEnv(&cfg.REST.URL, "SQLPILOT_REST_URL")
	setStringFromEnv(&cfg.REST.APIKey, "SQLPILOT_REST_API_KEY")

	setStringFromEnv(&cfg.LLM.Provider, "SQLPILOT_LLM_PROVIDER")
	setStringFromEnv(&cfg.LLM.Model, "SQLPILOT_LLM_MODEL")
	setStringFromEnvWithFallback(&cfg.LLM.AnthropicAPIKey, "SQLPILOT_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	setStringFromEnvWithFallback(&cfg.LLM.OpenAIAPIKey, "SQLPILOT_OPENAI_API_KEY", "OPENAI_API_KEY")
	setIntFromEnv(&cfg.LLM.MaxTokens, "SQLPILOT_LLM_MAX_TOKENS")
	if val := os.Getenv("SQLPILOT_LLM_TEMPERATURE"); val != "" {
		var floatVal float64
		if _, err := fmt.Sscanf(val, "%f", &floatVal); err == nil {
			cfg.LLM.Temperature = floatVal
		}
	}
	setStringFromEnv(&cfg.LLM.RequestTimeout, "SQLPILOT_LLM_REQUEST_TIMEOUT")

	setIntFromEnv(&cfg.Agent.MaxRounds, "SQLPILOT_AGENT_MAX_ROUNDS")
	setStringFromEnv(&cfg.Agent.ToolTimeout, "SQLPILOT_TOOL_TIMEOUT")

	setStringFromEnv(&cfg.Store.Path, "SQLPILOT_STORE_PATH")

	setStringFromEnv(&cfg.LogLevel, "SQLPILOT_LOG_LEVEL")
}

// applyCLIFlags overrides config with explicitly set command-line flags.
func applyCLIFlags(cfg *Config, flags CLIFlags) {
	if flags.HTTPAddrSet {
		cfg.HTTP.Address = flags.HTTPAddr
	}

	if flags.DatabaseURLSet {
		cfg.Database.URL = flags.DatabaseURL
	}
	if flags.DBHostSet {
		cfg.Database.Host = flags.DBHost
	}
	if flags.DBPortSet {
		cfg.Database.Port = flags.DBPort
	}
	if flags.DBNameSet {
		cfg.Database.Database = flags.DBName
	}
	if flags.DBUserSet {
		cfg.Database.User = flags.DBUser
	}
	if flags.DBPassSet {
		cfg.Database.Password = flags.DBPassword
	}
	if flags.DBSSLSet {
		cfg.Database.SSLMode = flags.DBSSLMode
	}

	if flags.RESTURLSet {
		cfg.REST.URL = flags.RESTURL
	}
	if flags.RESTAPIKeySet {
		cfg.REST.APIKey = flags.RESTAPIKey
	}

	if flags.ProviderSet {
		cfg.LLM.Provider = flags.Provider
	}
	if flags.ModelSet {
		cfg.LLM.Model = flags.Model
	}

	if flags.MaxRoundsSet {
		cfg.Agent.MaxRounds = flags.MaxRounds
	}

	if flags.StorePathSet {
		cfg.Store.Path = flags.StorePath
	}

	if flags.LogLevelSet {
		cfg.LogLevel = flags.LogLevel
	}
}

// validateConfig rejects configurations the process cannot start with.
// Failures here are fatal before any turn begins.
func validateConfig(cfg *Config) error {
	switch cfg.LLM.Provider {
	case "anthropic":
		if cfg.LLM.AnthropicAPIKey == "" {
			return fmt.Errorf("anthropic API key is required (set ANTHROPIC_API_KEY or llm.anthropic_api_key)")
		}
	case "openai":
		if cfg.LLM.OpenAIAPIKey == "" {
			return fmt.Errorf("openai API key is required (set OPENAI_API_KEY or llm.openai_api_key)")
		}
	default:
		return fmt.Errorf("unsupported LLM provider %q (supported: anthropic, openai)", cfg.LLM.Provider)
	}

	if cfg.REST.URL != "" {
		if cfg.REST.APIKey == "" {
			return fmt.Errorf("REST API key is required when rest.url is set (set SQLPILOT_REST_API_KEY)")
		}
	} else if cfg.Database.URL == "" && cfg.Database.User == "" {
		return fmt.Errorf("database user is required (set via --db-user, SQLPILOT_DB_USER, PGUSER, or config file), or provide a full URL / hosted rest.url")
	}

	if cfg.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be positive")
	}
	if cfg.LLM.Temperature < 0 {
		return fmt.Errorf("llm.temperature must not be negative")
	}
	if cfg.Agent.MaxRounds <= 0 {
		return fmt.Errorf("agent.max_rounds must be positive")
	}
	if cfg.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}

	durations := []struct {
		name  string
		value string
	}{
		{"llm.request_timeout", cfg.LLM.RequestTimeout},
		{"agent.tool_timeout", cfg.Agent.ToolTimeout},
		{"database.pool_max_conn_idle_time", cfg.Database.PoolMaxConnIdleTime},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		if _, err := time.ParseDuration(d.value); err != nil {
			return fmt.Errorf("%s: invalid duration %q", d.name, d.value)
		}
	}

	return nil
}

// ConnString builds a PostgreSQL connection string. When the password is not
// set, pgx consults .pgpass automatically.
func (c *DatabaseConfig) ConnString() string {
	if c.URL != "" {
		return c.URL
	}

	connStr := fmt.Sprintf("postgres://%s", c.User)
	if c.Password != "" {
		connStr += ":" + c.Password
	}
	connStr += fmt.Sprintf("@%s:%d/%s", c.Host, c.Port, c.Database)
	if c.SSLMode != "" {
		connStr += "?sslmode=" + c.SSLMode
	}
	return connStr
}

// MaxIdleTime returns the parsed pool idle teardown duration.
func (c *DatabaseConfig) MaxIdleTime() time.Duration {
	return parseDurationOr(c.PoolMaxConnIdleTime, 30*time.Minute)
}

// RequestTimeoutDuration returns the parsed per-request LLM timeout.
func (c *LLMConfig) RequestTimeoutDuration() time.Duration {
	return parseDurationOr(c.RequestTimeout, 120*time.Second)
}

// APIKey returns the key for the configured provider.
func (c *LLMConfig) APIKey() string {
	switch c.Provider {
	case "openai":
		return c.OpenAIAPIKey
	default:
		return c.AnthropicAPIKey
	}
}

// ResolvedModel returns the configured model, falling back to the provider
// default when none is set.
func (c *LLMConfig) ResolvedModel() string {
	if c.Model != "" {
		return c.Model
	}
	return DefaultModel(c.Provider)
}

// DefaultModel returns the default model for a provider.
func DefaultModel(provider string) string {
	switch provider {
	case "openai":
		return "gpt-4o"
	default:
		return "claude-sonnet-4-5"
	}
}

// ToolTimeoutDuration returns the parsed per-tool-call timeout.
func (c *AgentConfig) ToolTimeoutDuration() time.Duration {
	return parseDurationOr(c.ToolTimeout, 30*time.Second)
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// Hosted reports whether the hosted REST provider should be used.
func (cfg *Config) Hosted() bool {
	return cfg.REST.URL != ""
}

// GetDefaultConfigPath returns the default config file path. The system
// directory wins when a file exists there; otherwise the binary's directory
// is used.
func GetDefaultConfigPath(binaryPath string) string {
	if env := os.Getenv("SQLPILOT_CONFIG"); env != "" {
		return env
	}

	systemPath := "/etc/sqlpilot/sqlpilot.yaml"
	if _, err := os.Stat(systemPath); err == nil {
		return systemPath
	}

	dir := filepath.Dir(binaryPath)
	return filepath.Join(dir, "sqlpilot.yaml")
}

// ConfigFileExists checks if a config file exists at the given path
func ConfigFileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// SaveConfig writes the configuration to a YAML file, creating the parent
// directory when needed.
func SaveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Redacted returns a copy safe for logging, with secrets masked.
func (cfg *Config) Redacted() Config {
	out := *cfg
	out.Database.Password = mask(out.Database.Password)
	out.Database.URL = maskURL(out.Database.URL)
	out.REST.APIKey = mask(out.REST.APIKey)
	out.LLM.AnthropicAPIKey = mask(out.LLM.AnthropicAPIKey)
	out.LLM.OpenAIAPIKey = mask(out.LLM.OpenAIAPIKey)
	return out
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

// maskURL hides the password component of a connection URL.
func maskURL(raw string) string {
	if raw == "" {
		return ""
	}
	at := strings.LastIndex(raw, "@")
	colon := strings.Index(raw, "://")
	if at == -1 || colon == -1 {
		return raw
	}
	userinfo := raw[colon+3 : at]
	if sep := strings.Index(userinfo, ":"); sep != -1 {
		return raw[:colon+3] + userinfo[:sep] + ":********" + raw[at:]
	}
	return raw
}
