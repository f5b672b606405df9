// Package app wires the auth service and hosts it over HTTP.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/meridianbank/passkeyd/internal/auth/api/httpapi"
	"github.com/meridianbank/passkeyd/internal/auth/ceremony"
	"github.com/meridianbank/passkeyd/internal/auth/notify"
	"github.com/meridianbank/passkeyd/internal/auth/otp"
	"github.com/meridianbank/passkeyd/internal/auth/service"
	"github.com/meridianbank/passkeyd/internal/auth/storage/sqlite"
	"github.com/meridianbank/passkeyd/internal/auth/token"
	"github.com/meridianbank/passkeyd/internal/auth/verifier"
)

const cleanupInterval = 5 * time.Minute

// Server hosts the auth service.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	store      *sqlite.Store
}

// New creates a configured auth server listening on the provided address.
func New(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	store, err := openAuthStore()
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	rpConfig := verifier.LoadConfigFromEnv()
	webauthnVerifier, err := verifier.New(rpConfig)
	if err != nil {
		_ = listener.Close()
		_ = store.Close()
		return nil, err
	}
	tokenIssuer, err := token.NewIssuer(token.LoadConfigFromEnv())
	if err != nil {
		_ = listener.Close()
		_ = store.Close()
		return nil, err
	}

	svc := service.New(service.Params{
		OTP:         otp.NewManager(store, otp.LoadConfigFromEnv()),
		Ceremonies:  ceremony.NewManager(store, ceremony.LoadConfigFromEnv()),
		Accounts:    store,
		Credentials: store,
		Verifier:    webauthnVerifier,
		Tokens:      tokenIssuer,
		Sender:      notify.LogSender{},
		RelyingParty: service.RelyingParty{
			ID:          rpConfig.RPID,
			DisplayName: rpConfig.RPDisplayName,
		},
	})

	mux := http.NewServeMux()
	httpapi.NewHandler(svc).Register(mux)

	return &Server{
		listener:   listener,
		httpServer: &http.Server{Handler: mux},
		store:      store,
	}, nil
}

// Addr returns the listener address for the auth server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves an auth server until the context ends.
func Run(ctx context.Context, addr string) error {
	server, err := New(addr)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the auth server and blocks until it stops or the context ends.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	serverCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.closeStore()

	s.startCleanup(serverCtx, cleanupInterval)

	log.Printf("auth server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	handleErr := func(err error) error {
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
		return handleErr(<-serveErr)
	case err := <-serveErr:
		return handleErr(err)
	}
}

// startCleanup purges expired ceremony contexts and one-time codes in the
// background. Correctness never depends on it: expiry is re-checked on use.
func (s *Server) startCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := time.Now().UTC()
				if err := s.store.DeleteExpiredCeremonies(ctx, now); err != nil {
					log.Printf("cleanup ceremonies: %v", err)
				}
				if err := s.store.DeleteExpiredOneTimeCodes(ctx, now); err != nil {
					log.Printf("cleanup one-time codes: %v", err)
				}
			}
		}
	}()
}

func openAuthStore() (*sqlite.Store, error) {
	path := strings.TrimSpace(os.Getenv("PASSKEYD_DB_PATH"))
	if path == "" {
		path = filepath.Join("data", "passkeyd.db")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	store, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open auth sqlite store: %w", err)
	}
	return store, nil
}

func (s *Server) closeStore() {
	if s == nil || s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		log.Printf("close auth store: %v", err)
	}
}
