// Package probeagent implements the client-side probe daemon: it enrolls
// with the coordinator via the device-code flow, maintains a single
// server-push event subscription with reconnect and heartbeat, dispatches
// received scrape requests to local fetchers, and posts results back.
package probeagent

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const stateDirName = ".linkmind-probe"

// ErrNotLoggedIn means config.json has no access token — login hasn't run,
// or logout cleared it.
var ErrNotLoggedIn = errors.New("probeagent: not logged in, run 'login' first")

// Config is the probe's persisted identity: which coordinator it talks to
// and the bearer token identifying it as a specific ProbeDevice.
type Config struct {
	APIBase     string `json:"api_base"`
	AccessToken string `json:"access_token"`
	UserID      int64  `json:"user_id"`
}

// StateDir resolves the probe's state directory under the user's home,
// creating it if absent.
func StateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("probeagent: resolving home directory: %w", err)
	}
	dir := filepath.Join(home, stateDirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("probeagent: creating state directory: %w", err)
	}
	return dir, nil
}

func configPath(dir string) string { return filepath.Join(dir, "config.json") }

// PIDPath is the daemon's PID file, the lock whose presence (plus a live
// process at that PID) means the daemon is running.
func PIDPath(dir string) string { return filepath.Join(dir, "probe.pid") }

// LogPath is where a backgrounded daemon redirects its stdio.
func LogPath(dir string) string { return filepath.Join(dir, "probe.log") }

// LoadConfig reads config.json from dir. A missing file is reported as
// ErrNotLoggedIn since that's the only way it can be absent in normal use.
func LoadConfig(dir string) (*Config, error) {
	data, err := os.ReadFile(configPath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotLoggedIn
		}
		return nil, fmt.Errorf("probeagent: reading config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("probeagent: parsing config: %w", err)
	}
	return &cfg, nil
}

// SaveConfig writes cfg to dir's config.json, replacing any existing file.
func SaveConfig(dir string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("probeagent: encoding config: %w", err)
	}
	if err := os.WriteFile(configPath(dir), data, 0o600); err != nil {
		return fmt.Errorf("probeagent: writing config: %w", err)
	}
	return nil
}
