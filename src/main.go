package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

func main() {
	bootLog := logrus.New()

	// Try to load .env file
	if err := godotenv.Load(); err != nil {
		bootLog.Info("No .env file found, will use OS environment variables")
	}

	configPath := flag.String("config", "", "Path to an optional YAML configuration file")
	schedule := flag.String("schedule", "", "Cron expression; when set the collector keeps running and polls on this schedule")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		bootLog.WithError(err).Fatal("Failed to load configuration")
	}
	if *schedule != "" {
		cfg.Schedule = *schedule
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		bootLog.WithError(err).Fatal("Failed to configure logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline := buildPipeline(ctx, cfg, log)

	var runErr error
	if cfg.Schedule == "" {
		runErr = pipeline.Run(ctx)
	} else {
		runScheduled(ctx, cfg.Schedule, pipeline, log)
	}

	if err := pipeline.Close(); err != nil {
		log.WithError(err).Warn("Failed to close publishers")
	}
	if runErr != nil {
		stop()
		os.Exit(1)
	}
}

// buildPipeline wires sources, sink, notifiers and publishers from cfg.
func buildPipeline(ctx context.Context, cfg *Config, log *logrus.Logger) *Pipeline {
	var sources []RateSource
	if cfg.Sources.BFX.Enabled {
		sources = append(sources, NewBFXSource(cfg.Sources.BFX, cfg.HTTPTimeout, log))
	}
	if cfg.Sources.Bluefin.Enabled {
		sources = append(sources, NewBluefinSource(cfg.Sources.Bluefin, cfg.HTTPTimeout, log))
	}
	if cfg.Sources.Orderly.Enabled {
		sources = append(sources, NewOrderlySource(cfg.Sources.Orderly, cfg.HTTPTimeout, log))
	}
	if cfg.Sources.Hyperliquid.Enabled {
		sources = append(sources, NewHyperliquidSource(cfg.Sources.Hyperliquid, cfg.HTTPTimeout, log))
	}

	openSink := func(ctx context.Context) (Sink, error) {
		return OpenSink(ctx, cfg.Sink, cfg.HTTPTimeout, log)
	}

	p := NewPipeline(sources, NewNormalizer(cfg.Assets), openSink, log)
	p.AlertMessage = cfg.Alert.Message

	if cfg.Alert.WebhookURL != "" {
		p.Notifiers = append(p.Notifiers, NewWebhookNotifier(cfg.Alert.WebhookURL))
	}
	if cfg.Alert.TelegramToken != "" && cfg.Alert.TelegramChatID != 0 {
		bot, err := tgbotapi.NewBotAPI(cfg.Alert.TelegramToken)
		if err != nil {
			log.WithError(err).Warn("Telegram alerts disabled")
		} else {
			log.WithField("account", bot.Self.UserName).Info("Authorized on Telegram")
			p.Notifiers = append(p.Notifiers, NewTelegramNotifier(bot, cfg.Alert.TelegramChatID))
		}
	}

	if cfg.Cache.Addr != "" {
		p.Publishers = append(p.Publishers, NewRedisPublisher(cfg.Cache))
	}
	if cfg.Archive.Bucket != "" {
		archiver, err := NewS3Archiver(ctx, cfg.Archive)
		if err != nil {
			log.WithError(err).Warn("S3 archive disabled")
		} else {
			p.Publishers = append(p.Publishers, archiver)
		}
	}

	return p
}

// runScheduled runs the pipeline on every tick of schedule until ctx is done.
// A tick that fires while the previous run is still going is skipped.
func runScheduled(ctx context.Context, schedule string, p *Pipeline, log *logrus.Logger) {
	cronLog := cron.VerbosePrintfLogger(withComponent(log, "scheduler"))
	c := cron.New(cron.WithChain(
		cron.Recover(cronLog),
		cron.SkipIfStillRunning(cronLog),
	))

	if _, err := c.AddFunc(schedule, func() {
		// failures are already logged and alerted on by the pipeline
		_ = p.Run(ctx)
	}); err != nil {
		log.WithError(err).Fatal("Invalid schedule")
	}

	log.WithField("schedule", schedule).Info("Scheduler started")
	c.Start()
	<-ctx.Done()

	log.Info("Shutting down scheduler")
	<-c.Stop().Done()
}
