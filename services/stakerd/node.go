package stakerd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"stakeledger/config"
	"stakeledger/core/events"
	"stakeledger/core/state"
	"stakeledger/core/txn"
	"stakeledger/gateway/middleware"
	"stakeledger/native/bank"
	nativecommon "stakeledger/native/common"
	"stakeledger/native/multisig"
	"stakeledger/native/staking"
	"stakeledger/observability"
	"stakeledger/rpc"
	"stakeledger/services/stakerd/journal"
	"stakeledger/storage"
)

// Node owns every component of a running ledger.
type Node struct {
	cfg     Config
	ledger  *config.Ledger
	logger  *slog.Logger
	db      storage.Database
	state   *state.Manager
	exec    *txn.Executor
	bank    *bank.Ledger
	owners  *nativecommon.Ownership
	engine  *staking.Engine
	journal *journal.Journal
	server  *rpc.Server
}

// NewNode opens storage and wires the engine, journal and API server.
func NewNode(cfg Config, ledger *config.Ledger, dataDir string, logger *slog.Logger) (*Node, error) {
	if ledger == nil {
		return nil, errors.New("stakerd: ledger config required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	var (
		db  storage.Database
		err error
	)
	if cfg.InMemory {
		db = storage.NewMemDB()
	} else {
		if db, err = storage.NewLevelDB(dataDir); err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
	}
	n := &Node{cfg: cfg, ledger: ledger, logger: logger, db: db}
	if err := n.wire(); err != nil {
		n.Close()
		return nil, err
	}
	return n, nil
}

func (n *Node) wire() error {
	mgr, err := state.Open(n.db)
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	n.state = mgr
	n.exec = txn.NewExecutor(mgr)
	n.bank = bank.NewLedger(mgr)
	n.owners = nativecommon.NewOwnership(mgr)

	registry := multisig.NewRegistry()
	if n.ledger.Wallet != nil {
		registry.RegisterWallet(n.ledger.Wallet)
	}
	engine, err := staking.NewEngine(n.ledger.Staking, n.exec, n.bank, n.owners, registry)
	if err != nil {
		return err
	}
	engine.SetLogger(n.logger.With(slog.String("module", "staking")))
	engine.SetObserver(observability.Staking())
	n.engine = engine

	fanout := events.Fanout{observability.Events()}
	var authLog rpc.AuthorizationLog
	if n.cfg.Journal.DSN != "" {
		j, err := journal.Open(n.cfg.Journal.DSN, n.logger.With(slog.String("module", "journal")))
		if err != nil {
			return err
		}
		n.journal = j
		fanout = append(fanout, j)
		authLog = j
	}
	n.exec.SetEmitter(fanout)

	limits := make(map[string]middleware.RateLimit, len(n.cfg.Limits))
	for group, limit := range n.cfg.Limits {
		limits[group] = middleware.RateLimit{RequestsPerMinute: limit.RequestsPerMinute, Burst: limit.Burst}
	}
	server, err := rpc.NewServer(rpc.Config{
		Engine:   engine,
		Executor: n.exec,
		Bank:     n.bank,
		Journal:  authLog,
		Authenticator: middleware.NewAuthenticator(middleware.AuthConfig{
			Enabled:    n.cfg.Auth.Enabled,
			HMACSecret: n.cfg.Auth.HMACSecret,
			Issuer:     n.cfg.Auth.Issuer,
			Audience:   n.cfg.Auth.Audience,
			ClockSkew:  n.cfg.Auth.ClockSkew.Duration,
		}, n.logger),
		RateLimiter:   middleware.NewRateLimiter(limits, n.logger),
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{ServiceName: "stakerd", LogRequests: n.cfg.Log.Requests}, n.logger),
		CORS:          middleware.CORSConfig{AllowedOrigins: n.cfg.CORS.AllowedOrigins},
		Logger:        n.logger,
	})
	if err != nil {
		return err
	}
	n.server = server
	return nil
}

// Initialize assigns the administrator and authority and, on an empty
// ledger, applies the genesis allocations. It is safe to call on every
// start.
func (n *Node) Initialize(ctx context.Context) error {
	fresh := n.state.Height() == 0
	receipt, err := n.exec.Run(ctx, func(ctx context.Context) error {
		if err := n.owners.Initialize(ctx, n.ledger.Owner); err != nil {
			return fmt.Errorf("assign owner: %w", err)
		}
		if err := n.engine.Bootstrap(ctx); err != nil {
			return fmt.Errorf("bootstrap authority: %w", err)
		}
		if !fresh {
			return nil
		}
		custody := n.engine.CustodyAddress()
		for _, grant := range n.ledger.Genesis {
			if err := n.bank.Mint(ctx, grant.Asset, grant.Holder, grant.Amount); err != nil {
				return fmt.Errorf("genesis mint to %s: %w", grant.Holder.Hex(), err)
			}
			if grant.ApproveCustody {
				if err := n.bank.Approve(ctx, grant.Asset, grant.Holder, custody, grant.Amount); err != nil {
					return fmt.Errorf("genesis approve for %s: %w", grant.Holder.Hex(), err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	n.logger.Info("ledger initialised",
		slog.Bool("genesis", fresh),
		slog.Uint64("height", receipt.Height),
		slog.String("root", receipt.Root.Hex()))
	if err := n.warnStoredRoles(ctx); err != nil {
		return err
	}
	return n.engine.CheckInvariants(ctx)
}

// warnStoredRoles reports configured roles that ledger state overrides. The
// owner and authority are only taken from config on the first start; later
// changes go through the API.
func (n *Node) warnStoredRoles(ctx context.Context) error {
	owner, err := n.engine.Owner(ctx)
	if err != nil {
		return err
	}
	if owner != n.ledger.Owner {
		n.logger.Warn("configured owner ignored; ledger state keeps its owner",
			slog.String("configured", n.ledger.Owner.Hex()),
			slog.String("stored", owner.Hex()))
	}
	authority, err := n.engine.Authority(ctx)
	if err != nil {
		return err
	}
	if authority != n.ledger.Staking.Authority {
		n.logger.Warn("configured authority ignored; ledger state keeps its authority",
			slog.String("configured", n.ledger.Staking.Authority.Hex()),
			slog.String("stored", authority.Hex()))
	}
	return nil
}

func (n *Node) Engine() *staking.Engine { return n.engine }

func (n *Node) Bank() *bank.Ledger { return n.bank }

func (n *Node) Handler() http.Handler { return n.server.Handler() }

// Serve runs the API until ctx is cancelled.
func (n *Node) Serve(ctx context.Context) error {
	return n.server.Serve(ctx, n.cfg.ListenAddress)
}

// Close releases the journal and storage.
func (n *Node) Close() {
	if n.journal != nil {
		if err := n.journal.Close(); err != nil {
			n.logger.Warn("close journal", slog.Any("error", err))
		}
	}
	if n.db != nil {
		n.db.Close()
	}
}
