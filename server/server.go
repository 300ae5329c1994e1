// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/rpgate/callback"
	"github.com/hashicorp/rpgate/oidc"
	"github.com/hashicorp/rpgate/principal"
	"github.com/hashicorp/rpgate/session"
)

const (
	// CallbackPath is where the provider sends authentication responses.
	CallbackPath = "/auth/callback"

	readHeaderTimeout = 10 * time.Second
)

// Authenticator runs authentication attempts and guards sessions.
// *gateway.Authenticator is an Authenticator.
type Authenticator interface {
	callback.Completer
	BeginAuth(ctx context.Context, sessionID string) (string, error)
	Authorize(ctx context.Context, sessionID string) (*principal.Principal, error)
	EndSession(ctx context.Context, sessionID string) error
}

// Server is the gateway's http server.
type Server struct {
	auth    Authenticator
	cookies *session.Cookies
	router  *mux.Router
	logger  hclog.Logger

	certFile        string
	keyFile         string
	shutdownTimeout time.Duration
}

// New creates the gateway's http server and registers its routes:
//
//	GET       /               entry page
//	GET       /auth           starts an authentication attempt
//	GET|POST  /auth/callback  completes it
//	GET       /profile        the authenticated principal (guarded)
//	GET|POST  /logout         ends the session
//
// Supported options: WithLogger, WithTLS, WithShutdownTimeout
func New(a Authenticator, c *session.Cookies, opt ...Option) (*Server, error) {
	const op = "server.New"
	switch {
	case a == nil:
		return nil, fmt.Errorf("%s: authenticator is nil: %w", op, oidc.ErrNilParameter)
	case c == nil:
		return nil, fmt.Errorf("%s: session cookies are nil: %w", op, oidc.ErrNilParameter)
	}
	opts := getOpts(opt...)
	s := &Server{
		auth:            a,
		cookies:         c,
		router:          mux.NewRouter(),
		logger:          opts.withLogger,
		certFile:        opts.withCertFile,
		keyFile:         opts.withKeyFile,
		shutdownTimeout: opts.withShutdownTimeout,
	}

	cb, err := callback.Handler(a, c,
		callback.RedirectOnSuccess("/profile"),
		callback.RedirectOnError("/", s.logger.Named("callback")),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.router.Use(requestLogger(s.logger))
	s.router.HandleFunc("/", s.index).Methods(http.MethodGet)
	s.router.HandleFunc("/auth", s.beginAuth).Methods(http.MethodGet)
	s.router.HandleFunc(CallbackPath, cb).Methods(http.MethodGet, http.MethodPost)
	s.router.Handle("/profile", s.requireAuthentication(http.HandlerFunc(s.profile))).Methods(http.MethodGet)
	s.router.HandleFunc("/logout", s.logout).Methods(http.MethodGet, http.MethodPost)
	return s, nil
}

// Handler returns the server's http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// TLS reports whether Serve terminates TLS.
func (s *Server) TLS() bool {
	return s.certFile != "" && s.keyFile != ""
}

// ListenAndServe listens on the tcp address addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	const op = "Server.ListenAndServe"
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%s: unable to listen on %q: %w", op, addr, err)
	}
	return s.Serve(ctx, l)
}

// Serve accepts connections on l until ctx is done, then shuts down
// gracefully: in-flight requests get the shutdown timeout to complete.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	const op = "Server.Serve"
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          s.logger.StandardLogger(&hclog.StandardLoggerOptions{InferLevels: true}),
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.TLS() {
			s.logger.Info("https enabled, listening", "addr", l.Addr().String())
			err = srv.ServeTLS(l, s.certFile, s.keyFile)
		} else {
			s.logger.Info("listening", "addr", l.Addr().String())
			err = srv.Serve(l)
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s: shutdown: %w", op, err)
	}
	<-errCh
	return nil
}
