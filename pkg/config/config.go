package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	// Try []string first
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	// Try []interface{} to handle mixed types
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Workspace string         `env:"WEBCLAW_WORKSPACE" json:"workspace"`
	Gateway   GatewayConfig  `json:"gateway"`
	Channels  ChannelsConfig `json:"channels"`
	Snapshot  SnapshotConfig `json:"snapshot"`
}

type GatewayConfig struct {
	Host string `env:"WEBCLAW_GATEWAY_HOST" json:"host"`
	Port int    `env:"WEBCLAW_GATEWAY_PORT" json:"port"`
}

type ChannelsConfig struct {
	Web WebConfig `json:"web"`
}

// WebConfig configures the web UI channel. Secret is mandatory when the
// channel is enabled; the channel constructor rejects an empty secret.
type WebConfig struct {
	Enabled        bool                `env:"WEBCLAW_CHANNELS_WEB_ENABLED"          json:"enabled"`
	BaseURL        string              `env:"WEBCLAW_CHANNELS_WEB_BASE_URL"         json:"base_url"`
	Secret         string              `env:"WEBCLAW_CHANNELS_WEB_SECRET"           json:"secret"`
	PollIntervalMS int                 `env:"WEBCLAW_CHANNELS_WEB_POLL_INTERVAL_MS" json:"poll_interval_ms"`
	AllowFrom      FlexibleStringSlice `env:"WEBCLAW_CHANNELS_WEB_ALLOW_FROM"       json:"allow_from"`
}

// SnapshotConfig configures the periodic workspace-snapshot push.
// Schedule is a cron expression evaluated once per minute.
type SnapshotConfig struct {
	Enabled    bool   `env:"WEBCLAW_SNAPSHOT_ENABLED"     json:"enabled"`
	Schedule   string `env:"WEBCLAW_SNAPSHOT_SCHEDULE"    json:"schedule"`
	PushStatus bool   `env:"WEBCLAW_SNAPSHOT_PUSH_STATUS" json:"push_status"`
}

func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Workspace: filepath.Join(home, ".webclaw", "workspace"),
		Gateway: GatewayConfig{
			Host: "127.0.0.1",
			Port: 18790,
		},
		Channels: ChannelsConfig{
			Web: WebConfig{
				BaseURL:        "http://localhost:3000",
				PollIntervalMS: 2000,
			},
		},
		Snapshot: SnapshotConfig{
			Schedule: "*/5 * * * *",
		},
	}
}

// LoadConfig reads the JSON config at path (missing file yields defaults)
// and applies environment variable overrides on top.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

func (c *Config) WorkspacePath() string {
	return expandHome(c.Workspace)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
