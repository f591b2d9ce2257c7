package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"ReserveGate/internal/api"
	"ReserveGate/internal/audit"
	"ReserveGate/internal/capacity"
	"ReserveGate/internal/ledger"
	"ReserveGate/internal/logger"
	"ReserveGate/internal/storage"
)

// statusInterval is how often the node logs a health summary.
const statusInterval = time.Minute

// Node represents a running ReserveGate node.
type Node struct {
	cfg     *Config
	storage *storage.Storage     // storage holds controller state, roles and used ids
	journal *audit.Journal       // journal is the queryable event log
	ledger  *ledger.Memory       // ledger is the supply ledger the cap is pushed to
	ctrl    *capacity.Controller // ctrl is the capacity controller
	api     *api.Server
}

// NewNode opens every component and bootstraps roles on first start.
func NewNode(cfg *Config) (*Node, error) {
	ctrlCfg, err := cfg.Controller()
	if err != nil {
		return nil, err
	}

	n := &Node{cfg: cfg}

	if err := n.initStorage(); err != nil {
		return nil, err
	}

	if err := n.initJournal(); err != nil {
		n.Close()
		return nil, err
	}

	if err := n.initController(ctrlCfg); err != nil {
		n.Close()
		return nil, err
	}

	n.api = api.New(cfg.HTTPAddress, n.ctrl, n.journal, ctrlCfg.Domain)

	if err := n.api.PersistEnvelopes(n.storage); err != nil {
		n.Close()
		return nil, fmt.Errorf("init envelope journal:\n%w", err)
	}

	return n, nil
}

// initStorage initializes the Pebble storage.
func (n *Node) initStorage() error {
	if err := os.MkdirAll(n.cfg.DataPath, 0755); err != nil {
		return fmt.Errorf("create data directory:\n%w", err)
	}

	db, err := storage.New(filepath.Join(n.cfg.DataPath, "db"))
	if err != nil {
		return fmt.Errorf("init storage:\n%w", err)
	}

	n.storage = db

	return nil
}

// initJournal opens the SQLite audit journal.
func (n *Node) initJournal() error {
	j, err := audit.OpenJournal(filepath.Join(n.cfg.DataPath, "events.db"))
	if err != nil {
		return fmt.Errorf("init journal:\n%w", err)
	}

	n.journal = j

	return nil
}

// initController opens the controller and applies the roles file if present.
func (n *Node) initController(cfg capacity.Config) error {
	n.ledger = ledger.NewMemory(nil)

	sink := audit.Multi{
		audit.LogSink{Log: logger.With("component", "audit")},
		n.journal,
	}

	ctrl, err := capacity.Open(context.Background(), n.storage, n.ledger, sink, cfg)
	if err != nil {
		return fmt.Errorf("open controller:\n%w", err)
	}

	n.ctrl = ctrl

	if n.cfg.RolesPath == "" {
		return nil
	}

	members, err := loadRoles(n.cfg.RolesPath)
	if err != nil {
		return err
	}

	err = ctrl.Bootstrap(context.Background(), members)
	if errors.Is(err, capacity.ErrAlreadyBootstrapped) {
		logger.Debug("roles already bootstrapped, ignoring roles file", "path", n.cfg.RolesPath)
		return nil
	}
	if err != nil {
		return fmt.Errorf("bootstrap roles:\n%w", err)
	}

	return nil
}

// Run serves until SIGINT or SIGTERM, then closes every component.
func (n *Node) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return n.api.Run(ctx)
	})

	g.Go(func() error {
		n.reportStatus(ctx)
		return nil
	})

	err := g.Wait()

	logger.Info("shutting down")
	n.Close()

	return err
}

// reportStatus logs a health summary every statusInterval until ctx is done.
func (n *Node) reportStatus(ctx context.Context) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			st, err := n.ctrl.Status(ctx)
			if err != nil {
				logger.Warn("status unavailable", "error", err)
				continue
			}

			logger.Info("status",
				"capacity", st.CurrentCapacity,
				"reserve", st.AttestedReserve,
				"outstanding", st.Outstanding,
				"healthy", st.Healthy,
				"paused", st.Paused,
				"remaining_increase", st.RemainingIncrease,
			)
		}
	}
}

// Close releases all resources.
func (n *Node) Close() {
	if n.journal != nil {
		if err := n.journal.Close(); err != nil {
			logger.Warn("close journal", "error", err)
		}
	}

	if n.storage != nil {
		if err := n.storage.Close(); err != nil {
			logger.Warn("close storage", "error", err)
		}
	}
}
