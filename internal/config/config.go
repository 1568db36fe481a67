// Package config layers application configuration:
// defaults < config.json in the data dir < environment < flags.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all application configuration, for both the
// server and the tracker agent.
type Config struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	DataDir      string        `json:"data_dir"`
	DBPath       string        `json:"-"`
	APIKey       string        `json:"api_key,omitempty"`
	WriteTimeout time.Duration `json:"-"`

	// Tracker agent settings.
	ServerURL       string        `json:"server_url"`
	UserID          string        `json:"user_id"`
	PollInterval    time.Duration `json:"-"`
	RefreshInterval time.Duration `json:"-"`
}

// Default returns a Config with default values.
func Default() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf(
			"determining home directory: %w", err,
		)
	}
	dataDir := filepath.Join(home, ".usageview")
	return Config{
		Host:            "127.0.0.1",
		Port:            8000,
		DataDir:         dataDir,
		DBPath:          filepath.Join(dataDir, "usage.db"),
		WriteTimeout:    30 * time.Second,
		ServerURL:       "http://127.0.0.1:8000",
		UserID:          localUserID(),
		PollInterval:    2 * time.Second,
		RefreshInterval: time.Minute,
	}, nil
}

// localUserID is the tracker's default reporting identity.
func localUserID() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}

// Load builds a Config by layering: defaults < config file < env < flags.
// The provided FlagSet must already be parsed by the caller.
// Only flags that were explicitly set override the lower layers.
func Load(fs *flag.FlagSet) (Config, error) {
	cfg, err := LoadMinimal()
	if err != nil {
		return cfg, err
	}
	applyFlags(&cfg, fs)
	return cfg, nil
}

// LoadMinimal builds a Config from defaults, config file, and env,
// without parsing CLI flags. Use this for subcommands that manage
// their own flag sets.
func LoadMinimal() (Config, error) {
	cfg, err := Default()
	if err != nil {
		return cfg, err
	}
	// Env can move the data dir, and the config file lives in
	// the data dir, so resolve env first, then read the file,
	// then let the remaining env vars win over the file.
	if v := os.Getenv("USAGEVIEW_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if err := cfg.loadFile(); err != nil {
		return cfg, fmt.Errorf("loading config file: %w", err)
	}
	cfg.loadEnv()
	cfg.DBPath = filepath.Join(cfg.DataDir, "usage.db")
	return cfg, nil
}

func (c *Config) configPath() string {
	return filepath.Join(c.DataDir, "config.json")
}

func (c *Config) loadFile() error {
	data, err := os.ReadFile(c.configPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var file struct {
		Host      string `json:"host"`
		Port      int    `json:"port"`
		APIKey    string `json:"api_key"`
		ServerURL string `json:"server_url"`
		UserID    string `json:"user_id"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if file.Host != "" {
		c.Host = file.Host
	}
	if file.Port != 0 {
		c.Port = file.Port
	}
	if file.APIKey != "" {
		c.APIKey = file.APIKey
	}
	if file.ServerURL != "" {
		c.ServerURL = file.ServerURL
	}
	if file.UserID != "" {
		c.UserID = file.UserID
	}
	return nil
}

func (c *Config) loadEnv() {
	if v := os.Getenv("USAGEVIEW_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("USAGEVIEW_SERVER_URL"); v != "" {
		c.ServerURL = v
	}
	if v := os.Getenv("USAGEVIEW_USER_ID"); v != "" {
		c.UserID = v
	}
}

// RegisterServeFlags registers serve-command flags on fs.
// The caller must call fs.Parse before passing fs to Load.
func RegisterServeFlags(fs *flag.FlagSet) {
	fs.String("host", "127.0.0.1", "Host to bind to")
	fs.Int("port", 8000, "Port to listen on")
}

// RegisterTrackFlags registers track-command flags on fs.
func RegisterTrackFlags(fs *flag.FlagSet) {
	fs.String("server", "", "Usage server base URL")
	fs.String("user", "", "User ID to report activity as")
	fs.Duration("interval", 2*time.Second, "Window sampling interval")
	fs.Bool("stdin", false,
		"Read window samples from stdin (app<TAB>title lines)")
}

// applyFlags copies explicitly-set flags from fs into cfg.
func applyFlags(cfg *Config, fs *flag.FlagSet) {
	if fs == nil {
		return
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Host = f.Value.String()
		case "port":
			// flag already validated the int; ignore parse error
			cfg.Port, _ = strconv.Atoi(f.Value.String())
		case "server":
			cfg.ServerURL = f.Value.String()
		case "user":
			cfg.UserID = f.Value.String()
		case "interval":
			cfg.PollInterval, _ = time.ParseDuration(f.Value.String())
		}
	})
}

// SaveAPIKey persists the chatbot API key to the config file.
func (c *Config) SaveAPIKey(key string) error {
	if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	existing := make(map[string]any)
	data, err := os.ReadFile(c.configPath())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err == nil {
		if err := json.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf(
				"existing config is invalid, cannot update: %w",
				err,
			)
		}
	}

	existing["api_key"] = key
	out, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(c.configPath(), out, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	c.APIKey = key
	return nil
}
