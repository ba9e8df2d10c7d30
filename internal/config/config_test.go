package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromPathReadsConsoleSection(t *testing.T) {
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, ".copydesk.yaml")
	content := `console:
  login_url: "https://console.example.com/login"
  dashboard_url: "https://console.example.com/cockpit"
  email: "ops@example.com"
  password: "secret"
  headless: true
  screen_size: "1024x768"
channel:
  platform: slack
  id: "C0A1B2C3"
platforms:
  discord:
    token: "bot-token"
    channel: "987654"
queue:
  cooldown_seconds: 5
recheck:
  enabled: true
  schedule: "*/15 * * * *"
  window_hours: 12
`
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Console.DashboardURL != "https://console.example.com/cockpit" {
		t.Fatalf("unexpected dashboard url: %q", cfg.Console.DashboardURL)
	}
	if cfg.Console.ScreenSize != "1024x768" {
		t.Fatalf("unexpected screen size: %q", cfg.Console.ScreenSize)
	}
	if cfg.Channel.Platform != "slack" || cfg.Channel.ID != "C0A1B2C3" {
		t.Fatalf("unexpected channel: %#v", cfg.Channel)
	}
	if cfg.Platforms.Discord.Channel != "987654" {
		t.Fatalf("unexpected discord channel: %q", cfg.Platforms.Discord.Channel)
	}
	if cfg.Queue.CooldownSeconds != 5 {
		t.Fatalf("unexpected cooldown: %d", cfg.Queue.CooldownSeconds)
	}
	if !cfg.Recheck.Enabled || cfg.Recheck.Schedule != "*/15 * * * *" || cfg.Recheck.WindowHours != 12 {
		t.Fatalf("unexpected recheck config: %#v", cfg.Recheck)
	}
}

func TestLoadFromPathMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file must fall back to defaults: %v", err)
	}
	if !cfg.Console.Headless {
		t.Fatalf("expected headless default")
	}
	if cfg.Recheck.Schedule != "*/30 * * * *" {
		t.Fatalf("unexpected default schedule: %q", cfg.Recheck.Schedule)
	}
}

func TestEnvOverridesCredentials(t *testing.T) {
	t.Setenv("COPYDESK_CONSOLE_EMAIL", "env@example.com")
	t.Setenv("COPYDESK_CONSOLE_PASSWORD", "env-secret")
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-env")
	t.Setenv("COPYDESK_CHANNEL", "C9Z8Y7")

	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Console.Email != "env@example.com" || cfg.Console.Password != "env-secret" {
		t.Fatalf("env credentials not applied: %#v", cfg.Console)
	}
	if cfg.Platforms.Slack.BotToken != "xoxb-env" {
		t.Fatalf("env bot token not applied")
	}
	if cfg.Channel.ID != "C9Z8Y7" {
		t.Fatalf("env channel not applied")
	}
}
