// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/rpgate/config"
	"github.com/hashicorp/rpgate/gateway"
	"github.com/hashicorp/rpgate/oidc"
	"github.com/hashicorp/rpgate/server"
	"github.com/hashicorp/rpgate/session"
	"github.com/spf13/cobra"
)

var envFiles []string

var rootCmd = &cobra.Command{
	Use:           "rpgate",
	Short:         "OpenID Connect relying party authentication gateway",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx)
	},
}

func init() {
	rootCmd.Flags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files read before the environment, missing files are skipped")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		var cfgErr *config.ConfigurationError
		if errors.As(err, &cfgErr) {
			fmt.Fprintln(os.Stderr, "invalid configuration:")
			for _, p := range cfgErr.Problems() {
				fmt.Fprintf(os.Stderr, "  * %s\n", p)
			}
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(config.WithEnvFiles(envFiles...))
	if err != nil {
		return err
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "rpgate",
		Level: cfg.Level(),
	})
	if cfg.ForceSSL && !cfg.TLSEnabled() {
		logger.Warn("FORCE_SSL is set but the key or certificate file is missing, serving plain http",
			"key", cfg.KeyFile, "cert", cfg.CertFile)
	}

	sessionLogger := logger.Named("session")
	backend, err := session.NewBackend(ctx, string(cfg.SessionRedisURL), session.WithTTL(cfg.SessionTTL))
	if err != nil {
		return err
	}
	store, err := session.NewStore(backend, cfg.SessionOptions(sessionLogger)...)
	if err != nil {
		return err
	}
	cookies, err := session.NewCookies([]byte(cfg.SessionSecret), cfg.SessionOptions(sessionLogger)...)
	if err != nil {
		return err
	}

	provider, err := oidc.NewProvider(cfg.Provider())
	if err != nil {
		return err
	}
	defer provider.Done()

	auth, err := gateway.NewAuthenticator(provider, store, gateway.WithLogger(logger.Named("gateway")))
	if err != nil {
		return err
	}

	opts := []server.Option{server.WithLogger(logger.Named("server"))}
	if cfg.TLSEnabled() {
		opts = append(opts, server.WithTLS(cfg.CertFile, cfg.KeyFile))
	}
	srv, err := server.New(auth, cookies, opts...)
	if err != nil {
		return err
	}
	logger.Info("starting", "issuer", cfg.Issuer, "client_id", cfg.ClientID, "redirect_uri", cfg.CallbackURL)
	return srv.ListenAndServe(ctx, cfg.Addr())
}
