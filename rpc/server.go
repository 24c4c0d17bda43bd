// Package rpc exposes the staking ledger over a JSON REST API.
package rpc

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"stakeledger/core/txn"
	"stakeledger/gateway/middleware"
	"stakeledger/native/bank"
	"stakeledger/native/staking"
	telemetry "stakeledger/observability/otel"
)

const (
	moduleStaking  = "staking"
	moduleTreasury = "treasury"
	moduleBank     = "bank"
	moduleQuery    = "query"

	limitWrite = "write"
	limitRead  = "read"
)

var errJournalDisabled = errors.New("authorization journal not configured")

// AuthorizationLog reports how many times an authorization digest has been
// honoured by committed operations.
type AuthorizationLog interface {
	Uses(ctx context.Context, digest common.Hash) (int64, error)
}

type Config struct {
	Engine   *staking.Engine
	Executor *txn.Executor
	Bank     *bank.Ledger
	// Journal is optional; without it the authorizations route answers 503.
	Journal       AuthorizationLog
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
	Logger        *slog.Logger
}

type Server struct {
	engine  *staking.Engine
	exec    *txn.Executor
	bank    *bank.Ledger
	journal AuthorizationLog
	auth    *middleware.Authenticator
	limiter *middleware.RateLimiter
	obs     *middleware.Observability
	cors    middleware.CORSConfig
	logger  *slog.Logger
	tracer  trace.Tracer
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Engine == nil || cfg.Executor == nil || cfg.Bank == nil {
		return nil, errors.New("rpc: engine, executor and bank are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	auth := cfg.Authenticator
	if auth == nil {
		auth = middleware.NewAuthenticator(middleware.AuthConfig{}, logger)
	}
	limiter := cfg.RateLimiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(nil, logger)
	}
	obs := cfg.Observability
	if obs == nil {
		obs = middleware.NewObservability(middleware.ObservabilityConfig{}, logger)
	}
	return &Server{
		engine:  cfg.Engine,
		exec:    cfg.Executor,
		bank:    cfg.Bank,
		journal: cfg.Journal,
		auth:    auth,
		limiter: limiter,
		obs:     obs,
		cors:    cfg.CORS,
		logger:  logger,
		tracer:  telemetry.Tracer("stakeledger/rpc"),
	}, nil
}

// Handler builds the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.CORS(s.cors))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Middleware(limitWrite))
			r.Use(s.auth.Middleware)
			s.post(r, moduleStaking, "/stake", s.handleStake)
			s.post(r, moduleStaking, "/unstake", s.handleUnstake)
			s.post(r, moduleStaking, "/reward", s.handleReward)
			s.post(r, moduleStaking, "/slash", s.handleSlash)
			s.post(r, moduleStaking, "/authority", s.handleRotateAuthority)
			s.post(r, moduleStaking, "/owner", s.handleTransferOwnership)
			s.post(r, moduleTreasury, "/treasury/deposit", s.handleTreasuryDeposit)
			s.post(r, moduleTreasury, "/treasury/withdraw", s.handleTreasuryWithdraw)
			s.post(r, moduleBank, "/bank/approve", s.handleApprove)
		})
		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Middleware(limitRead))
			s.get(r, moduleQuery, "/accounts/{address}", s.handleAccount)
			s.get(r, moduleQuery, "/liquidity", s.handleLiquidity)
			s.get(r, moduleTreasury, "/treasury/{asset}", s.handleTreasuryBalance)
			s.get(r, moduleQuery, "/domain", s.handleDomain)
			s.get(r, moduleQuery, "/digest", s.handleDigest)
			s.get(r, moduleQuery, "/authorizations/{digest}", s.handleAuthorization)
			s.get(r, moduleBank, "/bank/{asset}/balances/{holder}", s.handleBalance)
		})
	})
	return r
}

func (s *Server) post(r chi.Router, module, pattern string, h http.HandlerFunc) {
	r.With(s.obs.Middleware(module, "/v1"+pattern)).Post(pattern, h)
}

func (s *Server) get(r chi.Router, module, pattern string, h http.HandlerFunc) {
	r.With(s.obs.Middleware(module, "/v1"+pattern)).Get(pattern, h)
}

// mutate runs op inside a span and writes either the resulting commit point
// or the mapped ledger error.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, caller common.Address) error) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeNotAuthorized, "caller not authenticated")
		return
	}
	ctx, span := s.tracer.Start(r.Context(), "staking."+op, trace.WithAttributes(
		attribute.String("stake.op", op),
		attribute.String("stake.caller", caller.Hex()),
	))
	defer span.End()

	var receipt txn.Receipt
	if err := fn(txn.WithReceipt(ctx, &receipt), caller); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		writeLedgerError(w, err)
		return
	}
	span.SetAttributes(attribute.Int64("stake.height", int64(receipt.Height)))
	writeJSON(w, http.StatusOK, CommitResponse{Height: receipt.Height, Root: receipt.Root.Hex()})
}

// Serve runs the API on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
