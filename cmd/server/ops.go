package main

import (
	"errors"
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"shepherd/internal/adapters/http/middleware"
	"shepherd/internal/adapters/storage"
	accountstore "shepherd/internal/adapters/storage/account"
	outboxstore "shepherd/internal/adapters/storage/outbox"
	"shepherd/internal/application/orchestrators"
	"shepherd/internal/application/projections"
	"shepherd/internal/domain/account"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// setup migrates; this command only reports the result.
			svc, err := setup(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()
			v, err := storage.SchemaVersion(svc.db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (%s)\n", v, svc.cfg.Storage.Path)
			return nil
		},
	}
}

func newAccountCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage the local account directory",
	}
	cmd.AddCommand(newAccountUpsertCommand(), newAccountListCommand())
	return cmd
}

func newAccountUpsertCommand() *cobra.Command {
	var in orchestrators.UpsertAccountInput
	cmd := &cobra.Command{
		Use:   "upsert",
		Short: "Create or replace a directory entry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := setup(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()
			acc, err := orchestrators.ExecuteUpsertAccount(cmd.Context(), in, orchestrators.DirectoryDeps{
				Accounts: accountstore.NewSQLiteStore(svc.timed),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", acc.ID, acc.Role, acc.Email, acc.DisplayName)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.ID, "id", "", "account id (the identity provider subject)")
	cmd.Flags().StringVar(&in.Email, "email", "", "contact address")
	cmd.Flags().StringVar(&in.DisplayName, "name", "", "display name")
	cmd.Flags().StringVar(&in.Role, "role", "MEMBER", "MEMBER, COUNSELOR (or PASTOR) or ADMIN")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newAccountListCommand() *cobra.Command {
	var role string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List directory entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			query := projections.GetAccountListQuery{Limit: limit}
			if role != "" {
				r, err := account.ParseRole(role)
				if err != nil {
					return err
				}
				query.Role = r
			}
			svc, err := setup(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()
			res, err := projections.QueryGetAccountList(cmd.Context(), query, projections.DirectoryDeps{
				AccountStore: accountstore.NewSQLiteStore(svc.timed),
			})
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tROLE\tEMAIL\tNAME")
			for _, a := range res.Accounts {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.ID, a.Role, a.Email, a.DisplayName)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "only accounts with this role")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows (0 = all)")
	return cmd
}

func newTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Bearer token utilities",
	}
	cmd.AddCommand(newTokenIssueCommand())
	return cmd
}

func newTokenIssueCommand() *cobra.Command {
	var sub, role string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Mint a bearer token signed with auth.jwt_secret",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := account.ParseRole(role)
			if err != nil {
				return err
			}
			svc, err := setup(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()
			if svc.cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret is empty; a token signed now would be rejected by the server")
			}
			if ttl <= 0 {
				ttl = svc.cfg.Auth.TokenTTL
			}
			raw, err := middleware.IssueToken(middleware.TokenConfig{
				Secret: []byte(svc.cfg.Auth.JWTSecret),
				Issuer: svc.cfg.Auth.Issuer,
			}, sub, r, ttl, time.Now())
			if err != nil {
				return err
			}
			slog.Info("auth_event", "event", "token_issued", "sub", sub, "role", string(r), "ttl", ttl.String())
			fmt.Fprintln(cmd.OutOrStdout(), raw)
			return nil
		},
	}
	cmd.Flags().StringVar(&sub, "sub", "", "actor id")
	cmd.Flags().StringVar(&role, "role", "", "MEMBER, COUNSELOR (or PASTOR) or ADMIN")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default auth.token_ttl)")
	_ = cmd.MarkFlagRequired("sub")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func newOutboxCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and replay failed notification sends",
	}
	cmd.AddCommand(newOutboxRetryCommand(), newOutboxFailedCommand(), newOutboxAbandonCommand())
	return cmd
}

func outboxDeps(svc *services) orchestrators.OutboxRetryDeps {
	cfg := svc.cfg
	return orchestrators.OutboxRetryDeps{
		OutboxStore: outboxstore.NewSQLiteStore(svc.timed),
		Sender:      newSender(cfg),
		From:        cfg.Email.From,
		SendTimeout: cfg.Notification.SendTimeout,
		BaseDelay:   cfg.Outbox.BaseDelay,
		MaxDelay:    cfg.Outbox.MaxDelay,
		Metrics:     svc.metrics,
	}
}

func newOutboxRetryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id]",
		Short: "Run one retry pass, or replay a single entry now",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := setup(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()
			deps := outboxDeps(svc)

			if len(args) == 1 {
				e, err := orchestrators.ExecuteOutboxRetryOne(cmd.Context(), args[0], deps)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tattempts=%d\n", e.ID, e.Status, e.Attempts)
				return nil
			}
			res, err := orchestrators.ExecuteOutboxRetry(cmd.Context(), deps)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed=%d succeeded=%d failed=%d deferred=%d\n",
				res.Processed, res.Succeeded, res.Failed, res.Deferred)
			return nil
		},
	}
}

func newOutboxFailedCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "failed",
		Short: "List entries whose attempts are spent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := setup(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()
			entries, err := outboxstore.NewSQLiteStore(svc.timed).ListFailed(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tATTEMPTS\tLAST ATTEMPT\tERROR")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", e.ID, e.Attempts, e.LastAttemptedAt.Format(time.RFC3339), e.ErrorMessage)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	return cmd
}

func newOutboxAbandonCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "abandon <id>",
		Short: "Stop retrying an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := setup(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()
			if err := orchestrators.ExecuteOutboxAbandon(cmd.Context(), args[0], outboxDeps(svc)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s abandoned\n", args[0])
			return nil
		},
	}
}
