package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

var (
	exeDirCache string
)

// getExecutableDir returns the directory where the executable is located
func getExecutableDir() string {
	if exeDirCache != "" {
		return exeDirCache
	}
	execPath, err := os.Executable()
	if err != nil {
		exeDirCache = "."
		return exeDirCache
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		exeDirCache = "."
		return exeDirCache
	}
	exeDirCache = filepath.Dir(execPath)
	return exeDirCache
}

type Config struct {
	Console   ConsoleConfig  `yaml:"console"`
	Platforms PlatformConfig `yaml:"platforms,omitempty"`
	Channel   ChannelConfig  `yaml:"channel"`
	Queue     QueueConfig    `yaml:"queue,omitempty"`
	Recheck   RecheckConfig  `yaml:"recheck,omitempty"`
	Logging   LoggingConfig  `yaml:"logging"`
}

// ConsoleConfig describes the copy-trading console and the browser session
// used to drive it.
type ConsoleConfig struct {
	LoginURL     string `yaml:"login_url"`
	DashboardURL string `yaml:"dashboard_url"`
	Email        string `yaml:"email,omitempty"`
	Password     string `yaml:"password,omitempty"`
	// ProfileDir is the persistent browser profile directory. Cookies and
	// local storage survive restarts, so most runs skip the login form.
	ProfileDir string `yaml:"profile_dir,omitempty"`
	Headless   bool   `yaml:"headless"`
	// ScreenSize controls the browser window size.
	// Use "fullscreen" for fullscreen mode, or "WIDTHxHEIGHT" (e.g. "1024x768").
	// Default: "1280x900"
	ScreenSize string `yaml:"screen_size,omitempty"`
}

// ChannelConfig selects where account notifications are read from.
type ChannelConfig struct {
	Platform string `yaml:"platform"` // "slack", "discord", "telegram"
	ID       string `yaml:"id"`       // channel identifier on that platform
}

type QueueConfig struct {
	CooldownSeconds int `yaml:"cooldown_seconds,omitempty"`
}

type RecheckConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule,omitempty"` // cron expression, default "*/30 * * * *"
	// WindowHours bounds how far back re-verification looks for
	// previously connected accounts.
	WindowHours int `yaml:"window_hours,omitempty"`
}

type PlatformConfig struct {
	Slack    SlackConfig    `yaml:"slack,omitempty"`
	Discord  DiscordConfig  `yaml:"discord,omitempty"`
	Telegram TelegramConfig `yaml:"telegram,omitempty"`
}

// Channel on a platform config restricts that platform to one channel
// when it is not the notification channel's platform; the notification
// channel itself comes from ChannelConfig.
type SlackConfig struct {
	BotToken string `yaml:"bot_token,omitempty"`
	AppToken string `yaml:"app_token,omitempty"`
	Channel  string `yaml:"channel,omitempty"`
}

type DiscordConfig struct {
	Token   string `yaml:"token,omitempty"`
	Channel string `yaml:"channel,omitempty"`
}

type TelegramConfig struct {
	Token   string `yaml:"token,omitempty"`
	Channel string `yaml:"channel,omitempty"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

func DefaultConfig() *Config {
	return &Config{
		Console: ConsoleConfig{
			Headless:   true,
			ScreenSize: "1280x900",
			ProfileDir: filepath.Join(ConfigDir(), "browser-profile"),
		},
		Channel: ChannelConfig{
			Platform: "slack",
		},
		Queue: QueueConfig{
			CooldownSeconds: 3,
		},
		Recheck: RecheckConfig{
			Enabled:     false,
			Schedule:    "*/30 * * * *",
			WindowHours: 24,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

func ConfigDir() string {
	exeDir := getExecutableDir()
	return filepath.Join(exeDir, ".copydesk")
}

func ConfigPath() string {
	exeDir := getExecutableDir()
	return filepath.Join(exeDir, ".copydesk.yaml")
}

// StorePath returns the default location of the run-history database.
func StorePath() string {
	exeDir := getExecutableDir()
	return filepath.Join(exeDir, ".copydesk.db")
}

func Load() (*Config, error) {
	return LoadFromPath(ConfigPath())
}

// LoadFromPath reads the config file at the given path, applying defaults
// for anything unset and environment overrides on top.
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv lets deployment environments override credentials and tokens
// without writing them into the config file.
func (c *Config) applyEnv() {
	setIfEnv(&c.Console.LoginURL, "COPYDESK_CONSOLE_LOGIN_URL")
	setIfEnv(&c.Console.DashboardURL, "COPYDESK_CONSOLE_DASHBOARD_URL")
	setIfEnv(&c.Console.Email, "COPYDESK_CONSOLE_EMAIL")
	setIfEnv(&c.Console.Password, "COPYDESK_CONSOLE_PASSWORD")
	setIfEnv(&c.Platforms.Slack.BotToken, "SLACK_BOT_TOKEN")
	setIfEnv(&c.Platforms.Slack.AppToken, "SLACK_APP_TOKEN")
	setIfEnv(&c.Platforms.Discord.Token, "DISCORD_TOKEN")
	setIfEnv(&c.Platforms.Telegram.Token, "TELEGRAM_TOKEN")
	setIfEnv(&c.Channel.ID, "COPYDESK_CHANNEL")
	setIfEnv(&c.Channel.Platform, "COPYDESK_CHANNEL_PLATFORM")
}

func setIfEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) Save() error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(ConfigPath(), data, 0600)
}
