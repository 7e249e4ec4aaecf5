package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shineum/release-announcer/internal/announce"
	"github.com/shineum/release-announcer/internal/config"
	"github.com/shineum/release-announcer/internal/confirm"
	"github.com/shineum/release-announcer/internal/mail"
	"github.com/shineum/release-announcer/internal/message"
	"github.com/shineum/release-announcer/internal/project"
	"github.com/shineum/release-announcer/internal/transport/graph"
	"github.com/shineum/release-announcer/internal/transport/ses"
	"github.com/shineum/release-announcer/internal/transport/smtp"
	"github.com/shineum/release-announcer/internal/transport/stdout"
	tlsconfig "github.com/shineum/release-announcer/internal/tls"
)

// app is everything a command needs once configuration is loaded.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	composer *announce.Composer
}

func newApp(cmd *cobra.Command, f *flags, st streams) (*app, error) {
	if !f.noDotenv {
		if err := config.LoadDotEnv(".env"); err != nil {
			return nil, err
		}
	}

	cfg, err := loadConfig(f.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	applyFlags(cmd, f, cfg)

	logger := setupLogger(st.errOut, cfg.Logging.Level, cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	meta, err := loadMetadata(cfg, logger)
	if err != nil {
		return nil, err
	}

	subject, err := meta.Subject(cfg.Announce.Subject)
	if err != nil {
		return nil, err
	}

	var parts []string
	if len(cfg.Announce.Parts) > 0 {
		parts = cfg.Announce.Parts
	}
	gen := project.NewGenerator(meta, cfg.Project.Dir)
	gen.Logger = logger
	builder := message.NewBuilder(cfg.Announce.File, parts, gen).WithLogger(logger)

	transport, err := selectTransport(cmd.Context(), cfg, logger, st.out)
	if err != nil {
		return nil, err
	}

	composer := announce.New(announce.Config{
		Recipients: cfg.Recipients(),
		Subject:    subject,
		Settings:   cfg.Email,
		SkipEnv:    cfg.Announce.NoEnv,
		Force:      cfg.Announce.Force,
		Trial:      cfg.Announce.Trial,
	},
		builder,
		confirm.New(st.in, st.out),
		transport,
		announce.WithOutput(st.out),
		announce.WithLogger(logger),
	)

	return &app{cfg: cfg, logger: logger, composer: composer}, nil
}

// loadConfig reads the given file, or announce.yaml when it exists, with
// environment overrides. Without a file only defaults and the environment
// apply.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	if _, err := os.Stat(config.DefaultConfigFile); err == nil {
		return config.LoadFromFile(config.DefaultConfigFile)
	}
	return config.Load()
}

// applyFlags copies the flags the user set onto the configuration.
func applyFlags(cmd *cobra.Command, f *flags, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("mailto") {
		cfg.Announce.MailTo = f.mailto
		cfg.Announce.To = nil
	}
	if changed("subject") {
		cfg.Announce.Subject = f.subject
	}
	if changed("file") {
		cfg.Announce.File = f.file
	}
	if changed("parts") {
		cfg.Announce.Parts = f.parts
	}
	if changed("force") {
		cfg.Announce.Force = f.force
	}
	if changed("trial") {
		cfg.Announce.Trial = f.trial
	}
	if changed("noenv") {
		cfg.Announce.NoEnv = f.noenv
	}
	if changed("provider") {
		cfg.Provider = strings.ToLower(f.provider)
	}
	if changed("log-level") {
		cfg.Logging.Level = strings.ToLower(f.logLevel)
	}
	if changed("log-format") {
		cfg.Logging.Format = strings.ToLower(f.logFormat)
	}
}

// setupLogger installs the default slog logger writing to w with the given
// level and format.
func setupLogger(w io.Writer, level, format string) *slog.Logger {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// loadMetadata reads the project metadata. A missing file yields empty
// metadata so that message files and literal parts still work.
func loadMetadata(cfg *config.Config, logger *slog.Logger) (*project.Metadata, error) {
	path := cfg.Project.Metadata
	if !filepath.IsAbs(path) {
		path = filepath.Join(cfg.Project.Dir, path)
	}

	meta, err := project.LoadMetadata(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("project metadata not found", "path", path)
		return &project.Metadata{}, nil
	}
	if err != nil {
		return nil, err
	}
	return meta, nil
}

// selectTransport creates the delivery backend named by the configuration.
func selectTransport(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) (mail.Transport, error) {
	switch cfg.Provider {
	case config.ProviderSMTP:
		logger.Debug("using SMTP transport")
		return smtp.New(tlsconfig.Options{
			CAFile:             cfg.TLS.CAFile,
			CertFile:           cfg.TLS.CertFile,
			KeyFile:            cfg.TLS.KeyFile,
			InsecureSkipVerify: cfg.TLS.InsecureSkipVerify,
		}), nil

	case config.ProviderSES:
		logger.Debug("using AWS SES transport", "region", cfg.SES.Region)
		t, err := ses.New(ctx, ses.Config{
			Region:          cfg.SES.Region,
			AccessKeyID:     cfg.SES.AccessKeyID,
			SecretAccessKey: cfg.SES.SecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create SES transport: %w", err)
		}
		return t, nil

	case config.ProviderGraph:
		logger.Debug("using Microsoft Graph transport")
		return graph.New(graph.Config{
			TenantID:     cfg.Graph.TenantID,
			ClientID:     cfg.Graph.ClientID,
			ClientSecret: cfg.Graph.ClientSecret,
			Authority:    cfg.Graph.Authority,
			Endpoint:     cfg.Graph.Endpoint,
		}), nil

	case config.ProviderStdout:
		logger.Debug("using stdout transport")
		return stdout.NewWithWriter(out), nil

	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownProvider, cfg.Provider)
	}
}
