package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	identitystore "doccontrol/internal/identity/store"
	jwttoken "doccontrol/internal/jwt_token"
	"doccontrol/internal/platform/httpserver"
	"doccontrol/internal/platform/postgres"
	id "doccontrol/pkg/domain"
)

func serveCmd(envFile *string) *cobra.Command {
	var (
		seedDemo bool
		migrate  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if migrate && cfg.Database.URL != "" {
				if err := postgres.Migrate(cfg.Database.URL); err != nil {
					return err
				}
			}

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close(context.WithoutCancel(ctx))

			if seedDemo {
				if _, err := a.seed(ctx, time.Hour); err != nil {
					return err
				}
			}
			return a.serve(ctx)
		},
	}
	cmd.Flags().BoolVar(&seedDemo, "seed-demo", false, "Create a demo tenant on startup and log admin credentials")
	cmd.Flags().BoolVar(&migrate, "migrate", true, "Apply database migrations before serving when DATABASE_URL is set")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	srv := httpserver.New(a.cfg.Server.Addr, a.router())

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting server", "addr", a.cfg.Server.Addr, "postgres", a.db != nil, "redis", a.redis != nil, "kafka", a.producer != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

// seed creates the demo directory and logs a token for its admin so the
// API can be exercised right away.
func (a *app) seed(ctx context.Context, tokenTTL time.Duration) (*identitystore.Demo, error) {
	demo, err := identitystore.SeedDemo(ctx, a.identityStore, time.Now())
	if err != nil {
		return nil, err
	}
	token, err := a.jwt.GenerateAccessToken(id.Principal{
		UserID:   demo.Admin.ID,
		TenantID: demo.Tenant.ID,
		Role:     id.RoleAdmin,
	}, tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("mint demo token: %w", err)
	}
	members := make([]string, 0, len(demo.Members))
	for _, m := range demo.Members {
		members = append(members, m.ID.String())
	}
	a.logger.InfoContext(ctx, "seeded demo tenant",
		"tenant_id", demo.Tenant.ID.String(),
		"admin_id", demo.Admin.ID.String(),
		"member_ids", members,
		"contract_id", demo.Contract.ID.String(),
		"admin_token", token,
	)
	return demo, nil
}

func migrateCmd(envFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			if err := requireDatabase(cfg); err != nil {
				return err
			}
			if err := postgres.Migrate(cfg.Database.URL); err != nil {
				return err
			}
			cmd.Println("migrations applied")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			if err := requireDatabase(cfg); err != nil {
				return err
			}
			version, dirty, err := postgres.Version(cfg.Database.URL)
			if err != nil {
				return err
			}
			cmd.Printf("version %d (dirty: %t)\n", version, dirty)
			return nil
		},
	})
	return cmd
}

func seedCmd(envFile *string) *cobra.Command {
	var tokenTTL time.Duration

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a demo tenant, users and contract in Postgres",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			if err := requireDatabase(cfg); err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())
			_, err = a.seed(cmd.Context(), tokenTTL)
			return err
		},
	}
	cmd.Flags().DurationVar(&tokenTTL, "token-ttl", 24*time.Hour, "Lifetime of the admin token that is printed")
	return cmd
}

func tenantCmd(envFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Administer tenants",
	}

	change := func(use, short string, apply func(ctx context.Context, a *app, tenantID id.TenantID) error) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <tenant-id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				tenantID, err := id.ParseTenantID(args[0])
				if err != nil {
					return err
				}
				cfg, err := loadConfig(*envFile)
				if err != nil {
					return err
				}
				if err := requireDatabase(cfg); err != nil {
					return err
				}
				a, err := newApp(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				defer a.close(cmd.Context())
				if err := apply(cmd.Context(), a, tenantID); err != nil {
					return err
				}
				cmd.Printf("tenant %s %sd\n", tenantID, use)
				return nil
			},
		}
	}

	cmd.AddCommand(
		change("deactivate", "Refuse all operations for a tenant", func(ctx context.Context, a *app, tenantID id.TenantID) error {
			_, err := a.identity.DeactivateTenant(ctx, tenantID)
			return err
		}),
		change("reactivate", "Allow operations for a deactivated tenant again", func(ctx context.Context, a *app, tenantID id.TenantID) error {
			_, err := a.identity.ReactivateTenant(ctx, tenantID)
			return err
		}),
	)
	return cmd
}

// tokenCmd mints an access token for local testing.
func tokenCmd(envFile *string) *cobra.Command {
	var (
		userID, tenantID, role string
		permissions            []string
		ttl                    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a signed access token for a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			uid, err := id.ParseUserID(userID)
			if err != nil {
				return fmt.Errorf("--user: %w", err)
			}
			tid, err := id.ParseTenantID(tenantID)
			if err != nil {
				return fmt.Errorf("--tenant: %w", err)
			}
			p := id.Principal{UserID: uid, TenantID: tid, Role: id.Role(role)}
			switch p.Role {
			case id.RoleAdmin, id.RoleMember:
			default:
				return fmt.Errorf("--role must be %q or %q", id.RoleAdmin, id.RoleMember)
			}
			for _, perm := range permissions {
				p.Permissions = append(p.Permissions, id.Permission(perm))
			}

			token, err := jwttoken.NewJWTService(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.Audience).
				GenerateAccessToken(p, ttl)
			if err != nil {
				return err
			}
			cmd.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID (required)")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant ID (required)")
	cmd.Flags().StringVar(&role, "role", string(id.RoleMember), "Role: admin or member")
	cmd.Flags().StringSliceVar(&permissions, "permission", nil, "Extra permission, repeatable")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}
