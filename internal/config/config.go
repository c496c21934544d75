package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config root configuration
type Config struct {
	Agents    AgentsConfig    `mapstructure:"agents"`
	Channels  ChannelsConfig  `mapstructure:"channels"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Pending   PendingConfig   `mapstructure:"pending"`
	Log       LogConfig       `mapstructure:"log"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	MCP       MCPConfig       `mapstructure:"mcp"`
}

// AgentsConfig agent settings
type AgentsConfig struct {
	Defaults AgentDefaults `mapstructure:"defaults"`
}

// AgentDefaults default agent parameters
type AgentDefaults struct {
	Workspace         string  `mapstructure:"workspace"`
	WorkspaceMode     string  `mapstructure:"workspace_mode"`
	Model             string  `mapstructure:"model"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	Temperature       float64 `mapstructure:"temperature"`
	MaxToolIterations int     `mapstructure:"max_tool_iterations"`
}

// ChannelsConfig channel settings
type ChannelsConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig telegram bot settings. OperatorChatID is where pending
// approval and input notifications are pushed.
type TelegramConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Token          string   `mapstructure:"token"`
	OperatorChatID string   `mapstructure:"operator_chat_id"`
	AllowFrom      []string `mapstructure:"allow_from"`
}

// ProvidersConfig LLM provider settings
type ProvidersConfig struct {
	OpenRouter ProviderConfig `mapstructure:"openrouter"`
	Claude     ProviderConfig `mapstructure:"claude"`
	OpenAI     ProviderConfig `mapstructure:"openai"`
	DeepSeek   ProviderConfig `mapstructure:"deepseek"`
	Ollama     ProviderConfig `mapstructure:"ollama"`
}

// ProviderConfig single provider settings
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// GatewayConfig web gateway settings
type GatewayConfig struct {
	Host  string `mapstructure:"host"`
	Port  int    `mapstructure:"port"`
	Token string `mapstructure:"token"`
}

// PendingConfig tunes the human-in-the-loop coordination stores.
// Durations are in seconds except PollIntervalMs.
type PendingConfig struct {
	InputTimeout    int `mapstructure:"input_timeout"`
	PollIntervalMs  int `mapstructure:"poll_interval_ms"`
	InputRetention  int `mapstructure:"input_retention"`
	ToolRetention   int `mapstructure:"tool_retention"`
	ResultRetention int `mapstructure:"result_retention"`
	ReapInterval    int `mapstructure:"reap_interval"`
}

// LogConfig logging settings
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// ToolsConfig tool settings
type ToolsConfig struct {
	Web  WebToolsConfig `mapstructure:"web"`
	Exec ExecToolConfig `mapstructure:"exec"`
}

// WebToolsConfig web tool settings
type WebToolsConfig struct {
	Search WebSearchConfig `mapstructure:"search"`
}

// WebSearchConfig search settings
type WebSearchConfig struct {
	APIKey     string `mapstructure:"api_key"`
	MaxResults int    `mapstructure:"max_results"`
}

// ExecToolConfig exec tool settings
type ExecToolConfig struct {
	Timeout             int  `mapstructure:"timeout"`
	RestrictToWorkspace bool `mapstructure:"restrict_to_workspace"`
}

// MCPConfig external MCP server settings, keyed by server name.
type MCPConfig struct {
	Servers map[string]MCPServerConfig `mapstructure:"servers"`
}

// MCPServerConfig one MCP server connection. Command/Args/Env apply to the
// stdio transport, URL/Headers to http_sse.
type MCPServerConfig struct {
	Enabled   *bool             `mapstructure:"enabled"`
	Transport string            `mapstructure:"transport"`
	Command   string            `mapstructure:"command"`
	Args      []string          `mapstructure:"args"`
	Env       map[string]string `mapstructure:"env"`
	URL       string            `mapstructure:"url"`
	Headers   map[string]string `mapstructure:"headers"`
}

// IsMCPServerEnabled treats a missing enabled flag as enabled.
func IsMCPServerEnabled(cfg MCPServerConfig) bool {
	return cfg.Enabled == nil || *cfg.Enabled
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		slog.Warn("failed to resolve home directory, using current directory as fallback", "error", err)
		homeDir = "."
	}
	return &Config{
		Agents: AgentsConfig{
			Defaults: AgentDefaults{
				Workspace:         filepath.Join(homeDir, ".seeker", "workspace"),
				WorkspaceMode:     "default",
				Model:             "anthropic/claude-sonnet-4-5",
				MaxTokens:         8192,
				Temperature:       0.7,
				MaxToolIterations: 20,
			},
		},
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{
				Enabled:   false,
				AllowFrom: []string{},
			},
		},
		Providers: ProvidersConfig{},
		Gateway: GatewayConfig{
			Host:  "0.0.0.0",
			Port:  18690,
			Token: "",
		},
		Pending: PendingConfig{
			InputTimeout:    300,
			PollIntervalMs:  100,
			InputRetention:  600,
			ToolRetention:   3600,
			ResultRetention: 3600,
			ReapInterval:    60,
		},
		Log: LogConfig{
			Level: "info",
			File:  "",
		},
		Tools: ToolsConfig{
			Web: WebToolsConfig{
				Search: WebSearchConfig{
					MaxResults: 5,
				},
			},
			Exec: ExecToolConfig{
				Timeout:             60,
				RestrictToWorkspace: true,
			},
		},
	}
}

// ConfigDir returns the seeker config directory
func ConfigDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".seeker")
}

// ConfigPath returns the config file path
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// Load loads config from file or returns defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := ConfigPath()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := Save(cfg); err != nil {
			return cfg, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	v.SetEnvPrefix("SEEKER")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return cfg, err
	}

	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.MatchName = func(mapKey, fieldName string) bool {
			return normalizeKey(mapKey) == normalizeKey(fieldName)
		}
	}); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func normalizeKey(input string) string {
	input = strings.ReplaceAll(input, "_", "")
	input = strings.ReplaceAll(input, "-", "")
	return strings.ToLower(input)
}

// Save saves config to file
func Save(cfg *Config) error {
	configPath := ConfigPath()

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0600)
}

// Validate checks that the configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	d := &c.Agents.Defaults

	if d.MaxToolIterations < 0 {
		return fmt.Errorf("agents.defaults.max_tool_iterations must not be negative, got %d", d.MaxToolIterations)
	}
	if d.MaxToolIterations == 0 {
		d.MaxToolIterations = 20
	}

	if d.Temperature < 0 || d.Temperature > 2.0 {
		return fmt.Errorf("agents.defaults.temperature must be between 0 and 2.0, got %f", d.Temperature)
	}

	if d.MaxTokens <= 0 {
		return fmt.Errorf("agents.defaults.max_tokens must be > 0, got %d", d.MaxTokens)
	}

	mode := strings.TrimSpace(d.WorkspaceMode)
	if mode != "" {
		validModes := map[string]bool{"default": true, "cwd": true, "path": true}
		if !validModes[strings.ToLower(mode)] {
			return fmt.Errorf("agents.defaults.workspace_mode must be one of: default, cwd, path; got %q", mode)
		}
		if strings.EqualFold(mode, "path") && strings.TrimSpace(d.Workspace) == "" {
			return fmt.Errorf("agents.defaults.workspace must be non-empty when workspace_mode is \"path\"")
		}
	}

	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway.port must be between 1 and 65535, got %d", c.Gateway.Port)
	}

	p := &c.Pending
	if p.InputTimeout < 0 {
		return fmt.Errorf("pending.input_timeout must not be negative, got %d", p.InputTimeout)
	}
	if p.InputTimeout == 0 {
		p.InputTimeout = 300
	}
	if p.PollIntervalMs < 0 {
		return fmt.Errorf("pending.poll_interval_ms must not be negative, got %d", p.PollIntervalMs)
	}
	if p.PollIntervalMs == 0 {
		p.PollIntervalMs = 100
	}
	// The waiter promises to notice an answer within ~100ms of it landing.
	if p.PollIntervalMs > 100 {
		p.PollIntervalMs = 100
	}
	if p.InputRetention <= 0 {
		p.InputRetention = 600
	}
	if p.ToolRetention <= 0 {
		p.ToolRetention = 3600
	}
	if p.ResultRetention <= 0 {
		p.ResultRetention = 3600
	}
	if p.ReapInterval <= 0 {
		p.ReapInterval = 60
	}

	level := strings.ToLower(strings.TrimSpace(c.Log.Level))
	if level == "" {
		c.Log.Level = "info"
	} else {
		validLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}
		if !validLevels[level] {
			return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
		}
		c.Log.Level = level
	}

	return nil
}

// WorkspacePath returns the expanded workspace path
func (c *Config) WorkspacePath() string {
	path, err := c.WorkspacePathChecked()
	if err != nil {
		return filepath.Join(ConfigDir(), "workspace")
	}
	return path
}

// WorkspacePathChecked returns the expanded workspace path or an error if invalid.
func (c *Config) WorkspacePathChecked() (string, error) {
	mode := strings.TrimSpace(c.Agents.Defaults.WorkspaceMode)
	if mode == "" || strings.EqualFold(mode, "default") {
		return filepath.Join(ConfigDir(), "workspace"), nil
	}
	if strings.EqualFold(mode, "cwd") {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to resolve cwd: %w", err)
		}
		return wd, nil
	}
	if !strings.EqualFold(mode, "path") {
		return "", fmt.Errorf("unknown workspace_mode: %s", mode)
	}
	if c.Agents.Defaults.Workspace == "" {
		return "", fmt.Errorf("workspace is required when workspace_mode=path")
	}
	if len(c.Agents.Defaults.Workspace) > 0 && c.Agents.Defaults.Workspace[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory for workspace path: %w", err)
		}
		rest := c.Agents.Defaults.Workspace[1:]
		rest = strings.TrimPrefix(rest, string(filepath.Separator))
		rest = strings.TrimPrefix(rest, "/")
		return filepath.Join(homeDir, rest), nil
	}
	return c.Agents.Defaults.Workspace, nil
}
