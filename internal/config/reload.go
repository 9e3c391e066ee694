/*-------------------------------------------------------------------------
 *
 * sqlpilot - Reloadable Configuration
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package config

import (
	"fmt"
	"sync"

	"sqlpilot/internal/logging"
)

// ReloadableConfig wraps a Config with thread-safe access and reload
// capability. LLM and agent settings take effect on reload; connection and
// listen settings require a restart and are only warned about.
type ReloadableConfig struct {
	mu       sync.RWMutex
	config   *Config
	path     string
	cliFlags CLIFlags
	onReload []func(*Config)
}

// NewReloadableConfig creates a new reloadable configuration
func NewReloadableConfig(config *Config, path string, cliFlags CLIFlags) *ReloadableConfig {
	return &ReloadableConfig{
		config:   config,
		path:     path,
		cliFlags: cliFlags,
	}
}

// Get returns the current configuration (read-only access)
func (rc *ReloadableConfig) Get() *Config {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.config
}

// Reload re-reads the configuration file. On any failure the previous
// configuration stays in effect.
func (rc *ReloadableConfig) Reload() error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.path == "" {
		return fmt.Errorf("no configuration file path set")
	}

	newConfig, err := LoadConfig(rc.path, rc.cliFlags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	rc.warnRestartRequired(newConfig)

	old := rc.config
	rc.config = newConfig

	for _, callback := range rc.onReload {
		callback(newConfig)
	}

	logging.Info("configuration reloaded", "path", rc.path)
	if old.LLM.Provider != newConfig.LLM.Provider {
		logging.Info("reasoning provider changed", "provider", newConfig.LLM.Provider)
	}
	if old.LLM.ResolvedModel() != newConfig.LLM.ResolvedModel() {
		logging.Info("reasoning model changed", "model", newConfig.LLM.ResolvedModel())
	}

	return nil
}

// warnRestartRequired logs settings that changed but only apply after a
// restart.
func (rc *ReloadableConfig) warnRestartRequired(newConfig *Config) {
	old := rc.config

	if old.HTTP.Address != newConfig.HTTP.Address {
		logging.Warn("http.address changed - requires restart")
	}
	if old.Database.ConnString() != newConfig.Database.ConnString() {
		logging.Warn("database connection settings changed - requires restart")
	}
	if old.REST.URL != newConfig.REST.URL {
		logging.Warn("rest.url changed - requires restart")
	}
	if old.Store.Path != newConfig.Store.Path {
		logging.Warn("store.path changed - requires restart")
	}
}

// OnReload registers a callback invoked with the new configuration after
// every successful reload.
func (rc *ReloadableConfig) OnReload(fn func(*Config)) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.onReload = append(rc.onReload, fn)
}

// GetPath returns the configuration file path
func (rc *ReloadableConfig) GetPath() string {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.path
}
