package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/crystal-mush/localchat/pkg/archive"
	"github.com/crystal-mush/localchat/pkg/audit"
	"github.com/crystal-mush/localchat/pkg/config"
	"github.com/crystal-mush/localchat/pkg/control"
	"github.com/crystal-mush/localchat/pkg/plugin"
	"github.com/crystal-mush/localchat/pkg/simhost"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// envDefault returns the environment variable value if set, otherwise the fallback.
func envDefault(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

func envInt(envVar string) int {
	n, _ := strconv.Atoi(os.Getenv(envVar))
	return n
}

func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

func main() {
	// A missing .env file is fine; flags and the environment still apply.
	envErr := godotenv.Load()

	confFile := flag.String("conf", envDefault("LOCALCHAT_CONF", ""), "Path to YAML config file (env: LOCALCHAT_CONF)")
	port := flag.Int("port", envInt("LOCALCHAT_PORT"), "Line protocol port, overrides config (env: LOCALCHAT_PORT)")
	webPort := flag.Int("web-port", envInt("LOCALCHAT_WEB_PORT"), "HTTP/WebSocket port, overrides config (env: LOCALCHAT_WEB_PORT)")
	debug := flag.Bool("debug", os.Getenv("LOCALCHAT_DEBUG") == "true", "Debug logging (env: LOCALCHAT_DEBUG)")
	plain := flag.Bool("plain", os.Getenv("LOCALCHAT_PLAIN") == "true", "Disable ANSI colors for line clients (env: LOCALCHAT_PLAIN)")
	console := flag.Bool("console", false, "Read console commands from stdin")
	hash := flag.String("hash", "", "Print the bcrypt hash of a password for the accounts list and exit")
	genSecret := flag.Bool("gen-secret", false, "Print a random jwt_secret and exit")
	flag.Parse()

	if *hash != "" {
		h, err := simhost.HashPassword(*hash)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(h)
		return
	}
	if *genSecret {
		fmt.Println(simhost.GenerateJWTSecret())
		return
	}

	logger, err := newLogger(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	if envErr != nil {
		logger.Debug("no .env file loaded", zap.Error(envErr))
	}

	if err := run(logger, *confFile, *port, *webPort, *plain, *console); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(logger *zap.Logger, confFile string, port, webPort int, plain, console bool) error {
	cfg := config.Default()
	if confFile != "" {
		var err error
		if cfg, err = config.Load(confFile); err != nil {
			return err
		}
		logger.Info("loaded config", zap.String("path", confFile))
	}
	if port != 0 {
		cfg.Port = port
	}
	if webPort != 0 {
		cfg.WebPort = webPort
	}

	reg := prometheus.NewRegistry()
	var hostMetrics *simhost.Metrics
	var plgMetrics *plugin.Metrics
	if cfg.MetricsEnabled {
		hostMetrics = simhost.NewMetrics(reg)
		plgMetrics = plugin.NewMetrics(reg)
	}

	var (
		auditor  control.Auditor
		auditLog *audit.Log
	)
	if cfg.AuditDB != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.AuditDB), 0o755); err != nil {
			return fmt.Errorf("audit dir: %w", err)
		}
		al, err := audit.Open(cfg.AuditDB, logger)
		if err != nil {
			return err
		}
		logger.Info("audit log open", zap.String("path", al.Path()), zap.Int("entries", al.Count()))
		auditor, auditLog = al, al
	}

	h := simhost.New(cfg, simhost.Options{Logger: logger, Metrics: hostMetrics, Plain: plain})
	plg := plugin.New(h, cfg, plugin.Options{Logger: logger, Auditor: auditor, Metrics: plgMetrics})
	defer func() {
		if err := plg.Close(); err != nil {
			logger.Warn("plugin close", zap.Error(err))
		}
	}()
	if err := plg.Setup(); err != nil {
		// Setup keeps whatever registered; the rest is reported.
		logger.Warn("plugin setup incomplete", zap.Error(err))
	}

	var transcript *simhost.Transcript
	if cfg.TranscriptDB != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.TranscriptDB), 0o755); err != nil {
			return fmt.Errorf("transcript dir: %w", err)
		}
		tr, err := simhost.OpenTranscript(cfg.TranscriptDB, logger)
		if err != nil {
			return err
		}
		defer tr.Close()
		if err := tr.StartRetention(cfg.TranscriptPurge, cfg.Retention()); err != nil {
			return err
		}
		h.Bus().SubscribeGlobal(tr)
		transcript = tr
	}

	if cfg.ArchiveSpec != "" {
		c, err := scheduleArchives(cfg, confFile, auditLog, transcript, logger)
		if err != nil {
			return err
		}
		defer func() { <-c.Stop().Done() }()
	}

	auth := simhost.NewAuthService(h, cfg.JWTSecret)
	if cfg.JWTSecret == "" {
		logger.Warn("jwt_secret not set; tokens will not survive a restart")
	}

	lines := simhost.NewServer(h, auth)
	if err := lines.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		return err
	}
	defer lines.Close()

	webOpts := simhost.WebOptions{Transcript: transcript}
	if cfg.MetricsEnabled {
		webOpts.Gatherer = reg
	}
	web := simhost.NewWebServer(h, auth, webOpts)
	webErr := make(chan error, 1)
	go func() {
		webErr <- web.Start(fmt.Sprintf("%s:%d", cfg.WebHost, cfg.WebPort))
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if confFile != "" {
		err := config.Watch(ctx, confFile, logger, func(c *config.Config) {
			h.Apply(c)
			plg.Apply(c)
			logger.Info("config reloaded", zap.Int("local_radius", c.LocalRadius))
		})
		if err != nil {
			logger.Warn("config reload disabled", zap.Error(err))
		}
	}

	if console {
		h.Console().SetOutput(os.Stdout)
		go readConsole(h, os.Stdin)
	}

	logger.Info("localchat running",
		zap.String("name", cfg.Name),
		zap.Int("port", cfg.Port),
		zap.Int("web_port", cfg.WebPort),
		zap.Int("accounts", len(cfg.Accounts)))

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-webErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := web.Stop(shutdownCtx); err != nil {
		logger.Warn("web shutdown", zap.Error(err))
	}
	return runErr
}

// scheduleArchives snapshots the audit log, the transcript and the config
// on cfg.ArchiveSpec.
func scheduleArchives(cfg *config.Config, confFile string, al *audit.Log, tr *simhost.Transcript, logger *zap.Logger) (*cron.Cron, error) {
	job := archive.Job{
		Params: archive.Params{ConfPath: confFile, Dir: cfg.ArchiveDir, Name: cfg.Name},
		Keep:   cfg.ArchiveRetain,
		Log:    logger.Named("archive"),
	}
	if al != nil {
		job.Params.Audit = al.Backup
	}
	if tr != nil {
		job.Params.Transcript = tr.Snapshot
	}
	c := cron.New()
	if _, err := c.AddJob(cfg.ArchiveSpec, job); err != nil {
		return nil, fmt.Errorf("archive_spec %q: %w", cfg.ArchiveSpec, err)
	}
	c.Start()
	logger.Info("archives scheduled", zap.String("spec", cfg.ArchiveSpec), zap.String("dir", cfg.ArchiveDir))
	return c, nil
}

// readConsole runs each stdin line as a console command until EOF.
func readConsole(h *simhost.Host, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		h.RunConsole(scanner.Text())
	}
}
