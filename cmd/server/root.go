package main

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"shepherd/internal/adapters/email"
	"shepherd/internal/adapters/metrics"
	"shepherd/internal/adapters/storage"
	"shepherd/internal/config"
	"shepherd/internal/logging"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "shepherd",
		Short:         "Appointment scheduling between members and counselors",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "config file path (default config.yaml)")

	root.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newAccountCommand(),
		newTokenCommand(),
		newOutboxCommand(),
	)
	return root
}

// services is what every command needs once configuration is loaded.
type services struct {
	cfg       *config.Config
	db        *sql.DB
	timed     *storage.TimedDB
	metrics   *metrics.Metrics
	logCloser io.Closer
}

// setup loads configuration, installs the logger and opens the migrated
// database.
// POST: the caller must call Close
func setup(cmd *cobra.Command) (*services, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logger, closer := logging.New(logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Env:        cfg.Env,
		Version:    version,
		FilePath:   cfg.Logging.File.Path,
		MaxSizeMB:  cfg.Logging.File.MaxSizeMB,
		MaxBackups: cfg.Logging.File.MaxBackups,
		MaxAgeDays: cfg.Logging.File.MaxAgeDays,
		Compress:   cfg.Logging.File.Compress,
	})
	slog.SetDefault(logger)

	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		closer.Close()
		return nil, err
	}
	if err := storage.MigrateDB(db, cfg.Storage.Path); err != nil {
		db.Close()
		closer.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	m := metrics.New()
	return &services{
		cfg:       cfg,
		db:        db,
		timed:     storage.NewTimedDB(db, m, cfg.SlowQuery()),
		metrics:   m,
		logCloser: closer,
	}, nil
}

// Close releases the database and the log file.
func (s *services) Close() {
	if err := s.db.Close(); err != nil {
		slog.Error("storage_event", "event", "close_failed", "error", err)
	}
	s.logCloser.Close()
}

// newSender picks the mail provider named by email.provider.
func newSender(cfg *config.Config) email.Sender {
	switch cfg.Email.Provider {
	case "resend":
		return email.NewResendSender(cfg.Email.Resend.APIKey, cfg.Email.From)
	case "smtp":
		return email.NewSMTPSender(email.SMTPConfig{
			Host:     cfg.Email.SMTP.Host,
			Port:     cfg.Email.SMTP.Port,
			Username: cfg.Email.SMTP.Username,
			Password: cfg.Email.SMTP.Password,
			From:     cfg.Email.From,
			SSL:      cfg.Email.SMTP.SSL,
			Timeout:  cfg.Notification.SendTimeout,
		})
	default:
		return email.NewNoopSender()
	}
}
