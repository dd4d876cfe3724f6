package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	web "shepherd/internal/adapters/http"
	"shepherd/internal/adapters/http/middleware"
	accountstore "shepherd/internal/adapters/storage/account"
	apptstore "shepherd/internal/adapters/storage/appointment"
	availstore "shepherd/internal/adapters/storage/availability"
	outboxstore "shepherd/internal/adapters/storage/outbox"
	"shepherd/internal/application/orchestrators"
	"shepherd/internal/application/projections"
	"shepherd/internal/domain/access"
	"shepherd/internal/domain/notification"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := setup(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()
			return serve(cmd.Context(), svc)
		},
	}
}

func serve(parent context.Context, svc *services) error {
	cfg := svc.cfg
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tokenCfg, err := tokenConfig(svc)
	if err != nil {
		return err
	}

	authorizer, err := access.NewAuthorizer(svc.metrics.AccessDenied)
	if err != nil {
		return fmt.Errorf("build access policy: %w", err)
	}

	accounts := accountstore.NewSQLiteStore(svc.timed)
	windows := availstore.NewSQLiteStore(svc.timed)
	appointments := apptstore.NewSQLiteStore(svc.timed)
	outbox := outboxstore.NewSQLiteStore(svc.timed)

	if cfg.IsDevelopment() {
		if _, err := orchestrators.ExecuteSeedDevAccounts(ctx, orchestrators.DevSeedDeps{AccountStore: accounts}); err != nil {
			return fmt.Errorf("seed dev accounts: %w", err)
		}
	}

	sender := newSender(cfg)
	dispatcherDeps := orchestrators.DispatcherDeps{
		Sender:     sender,
		GenerateID: uuid.NewString,
		Metrics:    svc.metrics,
	}
	if cfg.Outbox.Enabled {
		dispatcherDeps.Outbox = outbox
	}
	dispatcher := orchestrators.NewDispatcher(orchestrators.DispatcherConfig{
		From:        cfg.Email.From,
		ReplyTo:     cfg.Email.ReplyTo,
		SendTimeout: cfg.Notification.SendTimeout,
		MaxInFlight: cfg.Notification.MaxInFlight,
		RatePerSec:  cfg.Notification.RatePerSec,
		Burst:       cfg.Notification.Burst,
	}, dispatcherDeps)
	defer dispatcher.Close()

	stopRetry := orchestrators.StartOutboxRetryScheduler(ctx, orchestrators.OutboxRetryDeps{
		OutboxStore: outbox,
		Sender:      sender,
		From:        cfg.Email.From,
		SendTimeout: cfg.Notification.SendTimeout,
		BaseDelay:   cfg.Outbox.BaseDelay,
		MaxDelay:    cfg.Outbox.MaxDelay,
		Metrics:     svc.metrics,
	}, orchestrators.OutboxRetryConfig{Interval: cfg.Outbox.Interval, Enabled: cfg.Outbox.Enabled})
	defer stopRetry()

	var limiter *middleware.RateLimiter
	if cfg.Server.RateLimit.RPS > 0 {
		limiter = middleware.NewRateLimiter(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst)
		defer limiter.Close()
	}

	handler := web.NewMux(web.Deps{
		DB: svc.db,
		Availability: orchestrators.AvailabilityDeps{
			Store:      windows,
			Authorizer: authorizer,
			GenerateID: uuid.NewString,
			Metrics:    svc.metrics,
		},
		Appointments: orchestrators.AppointmentDeps{
			Store:        appointments,
			Accounts:     accounts,
			Availability: windows,
			Authorizer:   authorizer,
			Hooks: []orchestrators.CommitHook{orchestrators.ConfirmationHook{
				Accounts:   accounts,
				Dispatcher: dispatcher,
				Org:        notification.Organization{Name: cfg.Notification.Organization, Website: cfg.Notification.Website},
				Metrics:    svc.metrics,
			}},
			GenerateID:        uuid.NewString,
			Metrics:           svc.metrics,
			EnforceSlotChecks: cfg.Scheduling.EnforceSlotChecks,
		},
		Directory:   orchestrators.DirectoryDeps{Accounts: accounts, Authorizer: authorizer},
		Queries:     projections.DirectoryDeps{AccountStore: accounts, Authorizer: authorizer},
		Token:       tokenCfg,
		Limiter:     limiter,
		Metrics:     svc.metrics,
		SlowRequest: cfg.SlowRequest(),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server_event", "event", "listening",
			"addr", cfg.Server.Addr,
			"mail_provider", sender.Name(),
			"slot_checks", cfg.Scheduling.EnforceSlotChecks,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("server_event", "event", "shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// tokenConfig returns the bearer token settings. Development may run without
// a secret: a random one is generated and tokens die with the process.
func tokenConfig(svc *services) (middleware.TokenConfig, error) {
	secret := []byte(svc.cfg.Auth.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return middleware.TokenConfig{}, fmt.Errorf("generate token secret: %w", err)
		}
		slog.Warn("auth_event", "event", "random_secret",
			"detail", "auth.jwt_secret is empty; tokens will not survive a restart")
	}
	return middleware.TokenConfig{Secret: secret, Issuer: svc.cfg.Auth.Issuer}, nil
}
