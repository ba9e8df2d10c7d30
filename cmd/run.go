package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kayz/copydesk/internal/config"
	"github.com/kayz/copydesk/internal/console"
	"github.com/kayz/copydesk/internal/logger"
	"github.com/kayz/copydesk/internal/notify"
	"github.com/kayz/copydesk/internal/onboard"
	"github.com/kayz/copydesk/internal/persist"
	"github.com/kayz/copydesk/internal/platforms/discord"
	"github.com/kayz/copydesk/internal/platforms/slack"
	"github.com/kayz/copydesk/internal/platforms/telegram"
	"github.com/kayz/copydesk/internal/recheck"
	"github.com/kayz/copydesk/internal/report"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch the channel and onboard accounts (default)",
	Run:   runOnboarder,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runOnboarder(cmd *cobra.Command, args []string) {
	// .env is optional; deployments usually set real environment variables
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Logging.File != "" {
		if err := logger.SetFile(cfg.Logging.File); err != nil {
			log.Printf("Warning: %v", err)
		}
	}
	if cfg.Console.DashboardURL == "" {
		fmt.Fprintln(os.Stderr, "Error: console.dashboard_url is not configured")
		os.Exit(1)
	}

	// One browser session for the whole process; the queue guarantees it
	// is never used by two workflows at once.
	session := console.NewSession(console.Config{
		LoginURL:     cfg.Console.LoginURL,
		DashboardURL: cfg.Console.DashboardURL,
		Email:        cfg.Console.Email,
		Password:     cfg.Console.Password,
		ProfileDir:   cfg.Console.ProfileDir,
		Headless:     cfg.Console.Headless,
		ScreenSize:   cfg.Console.ScreenSize,
	})
	if err := session.Open(); err != nil {
		fmt.Fprintf(os.Stderr, "Error opening browser session: %v\n", err)
		os.Exit(1)
	}
	cns := console.New(session)

	store, err := persist.NewStore(config.StorePath())
	if err != nil {
		session.Close()
		fmt.Fprintf(os.Stderr, "Error opening run store: %v\n", err)
		os.Exit(1)
	}

	var queue *onboard.Queue

	router := notify.New(func(msg notify.Message) {
		req := onboard.ParseNotification(msg)
		if req == nil {
			return
		}
		queue.Enqueue(onboard.QueueItem{
			Request:         *req,
			SourceMessageID: msg.ID,
			Platform:        msg.Platform,
			ChannelID:       msg.ChannelID,
		})
	})

	reporter := report.New(router)
	proc := &recordingProcessor{
		runner: onboard.NewRunner(cns),
		store:  store,
	}
	queue = onboard.NewQueue(proc, reporter, time.Duration(cfg.Queue.CooldownSeconds)*time.Second)

	if err := registerPlatforms(router, cfg); err != nil {
		session.Close()
		store.Close()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue.Start(ctx)
	if err := router.Start(ctx); err != nil {
		session.Close()
		store.Close()
		fmt.Fprintf(os.Stderr, "Error starting platforms: %v\n", err)
		os.Exit(1)
	}

	var scheduler *recheck.Scheduler
	if cfg.Recheck.Enabled {
		notifier := &channelNotifier{
			router:   router,
			platform: cfg.Channel.Platform,
			channel:  cfg.Channel.ID,
		}
		window := time.Duration(cfg.Recheck.WindowHours) * time.Hour
		scheduler = recheck.NewScheduler(store, cns, queue, notifier, cfg.Recheck.Schedule, window)
		if err := scheduler.Start(ctx); err != nil {
			log.Printf("Warning: Failed to start recheck scheduler: %v", err)
		}
	}

	log.Printf("Watching %s channel %s for account notifications", cfg.Channel.Platform, cfg.Channel.ID)
	log.Println("Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	cancel()
	if scheduler != nil {
		scheduler.Stop()
	}
	router.Stop()
	session.Close()
	store.Close()
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromPath(configPath)
	}
	return config.Load()
}

// registerPlatforms adds every platform with credentials configured. At
// least one must be present, and the notification channel's platform must
// be among them.
func registerPlatforms(router *notify.Router, cfg *config.Config) error {
	registered := map[string]bool{}

	if cfg.Platforms.Slack.BotToken != "" {
		channel, err := channelFor(cfg, "slack", cfg.Platforms.Slack.Channel)
		if err != nil {
			return err
		}
		p, err := slack.New(slack.Config{
			BotToken:  cfg.Platforms.Slack.BotToken,
			AppToken:  cfg.Platforms.Slack.AppToken,
			ChannelID: channel,
		})
		if err != nil {
			return fmt.Errorf("slack: %w", err)
		}
		router.Register(p)
		registered["slack"] = true
	}

	if cfg.Platforms.Discord.Token != "" {
		channel, err := channelFor(cfg, "discord", cfg.Platforms.Discord.Channel)
		if err != nil {
			return err
		}
		p, err := discord.New(discord.Config{
			Token:     cfg.Platforms.Discord.Token,
			ChannelID: channel,
		})
		if err != nil {
			return fmt.Errorf("discord: %w", err)
		}
		router.Register(p)
		registered["discord"] = true
	}

	if cfg.Platforms.Telegram.Token != "" {
		channel, err := channelFor(cfg, "telegram", cfg.Platforms.Telegram.Channel)
		if err != nil {
			return err
		}
		p, err := telegram.New(telegram.Config{
			Token:  cfg.Platforms.Telegram.Token,
			ChatID: channel,
		})
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		router.Register(p)
		registered["telegram"] = true
	}

	if len(registered) == 0 {
		return fmt.Errorf("no chat platform configured; set Slack, Discord or Telegram credentials")
	}
	if !registered[cfg.Channel.Platform] {
		return fmt.Errorf("channel platform %q has no credentials configured", cfg.Channel.Platform)
	}
	return nil
}

// channelFor resolves the single channel a platform is allowed to read.
// The notification channel's platform uses the channel config; any other
// platform needs its own channel set, since an adapter with no channel
// would deliver messages from everywhere.
func channelFor(cfg *config.Config, platform, own string) (string, error) {
	if cfg.Channel.Platform == platform {
		return cfg.Channel.ID, nil
	}
	if own == "" {
		return "", fmt.Errorf("platform %q has credentials but no channel configured", platform)
	}
	return own, nil
}

// recordingProcessor runs the onboarding workflow and writes the outcome
// into the run history.
type recordingProcessor struct {
	runner *onboard.Runner
	store  *persist.Store
}

func (rp *recordingProcessor) Process(ctx context.Context, item onboard.QueueItem) onboard.Outcome {
	out := rp.runner.Process(ctx, item)
	err := rp.store.Record(persist.Run{
		ID:              out.RunID,
		SourceMessageID: item.SourceMessageID,
		Platform:        item.Platform,
		ChannelID:       item.ChannelID,
		Organization:    item.Request.Organization,
		Broker:          string(item.Request.BrokerKind),
		AccountNumber:   out.AccountNumber,
		MatchedTemplate: out.MatchedTemplate,
		Success:         out.Success,
		Connected:       out.Connected,
		FailureReason:   out.FailureReason,
	})
	if err != nil {
		logger.Warn("[Run] Failed to record run %s: %v", out.RunID, err)
	}
	return out
}

// channelNotifier posts recheck alerts into the notification channel.
type channelNotifier struct {
	router   *notify.Router
	platform string
	channel  string
}

func (n *channelNotifier) NotifyChat(message string) error {
	p, ok := n.router.Platform(n.platform)
	if !ok {
		return fmt.Errorf("platform %q not registered", n.platform)
	}
	return p.Send(context.Background(), n.channel, message)
}
