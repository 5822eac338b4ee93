package subscription

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"stripe-webhook-router/internal/common/errors"
	"stripe-webhook-router/internal/common/logging"
	"stripe-webhook-router/internal/locks"
)

const refreshLockKey = "subscription-refresh"

// RefresherConfig controls the periodic refresh sweep
type RefresherConfig struct {
	// Schedule is a cron spec, e.g. "@every 1h"
	Schedule string
	// Window refreshes subscriptions expiring within this duration
	Window time.Duration
	// LockTTL bounds how long one sweep may hold the lock
	LockTTL time.Duration
}

// Refresher extends subscriptions before they lapse
type Refresher struct {
	manager *Manager
	locker  locks.Locker
	config  RefresherConfig
	cron    *cron.Cron
	logger  logging.Logger

	mu      sync.Mutex
	running bool
}

// NewRefresher creates a refresher. locker serializes sweeps across instances.
func NewRefresher(manager *Manager, locker locks.Locker, config RefresherConfig) (*Refresher, error) {
	if config.Schedule == "" {
		config.Schedule = "@every 1h"
	}
	if config.Window <= 0 {
		config.Window = 24 * time.Hour
	}
	if config.LockTTL <= 0 {
		config.LockTTL = 5 * time.Minute
	}
	if locker == nil {
		locker = locks.NewLocalLocker()
	}

	r := &Refresher{
		manager: manager,
		locker:  locker,
		config:  config,
		cron:    cron.New(),
		logger:  logging.Component("subscription_refresher"),
	}

	if _, err := r.cron.AddFunc(config.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), config.LockTTL)
		defer cancel()
		if _, err := r.RefreshExpiring(ctx); err != nil {
			r.logger.Warn("Subscription refresh sweep failed", logging.Err(err))
		}
	}); err != nil {
		return nil, errors.ConfigError("invalid subscription refresh schedule").WithCause(err)
	}

	return r, nil
}

// Start begins the schedule
func (r *Refresher) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true
	r.cron.Start()
	r.logger.Info("Subscription refresher started",
		logging.String("schedule", r.config.Schedule),
		logging.Duration("window", r.config.Window),
	)
}

// Stop halts the schedule and waits for a running sweep
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	r.running = false
	<-r.cron.Stop().Done()
}

// RefreshExpiring refreshes every active subscription expiring within the
// window and returns how many were refreshed. It does nothing when another
// instance holds the sweep lock and fails when the lock backend does.
func (r *Refresher) RefreshExpiring(ctx context.Context) (int, error) {
	lock, err := r.locker.TryLock(ctx, refreshLockKey, r.config.LockTTL)
	if locks.IsHeld(err) {
		r.logger.Debug("Refresh sweep skipped, lock held elsewhere")
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := lock.Unlock(context.Background()); err != nil {
			r.logger.Warn("Failed to release refresh lock", logging.Err(err))
		}
	}()

	// lapsed subscriptions stay lapsed; only an explicit Refresh revives them
	now := r.manager.now()
	expiring, err := r.manager.Store().ListExpiring(ctx, now, now.Add(r.config.Window))
	if err != nil {
		return 0, err
	}

	refreshed := 0
	for _, sub := range expiring {
		if _, err := r.manager.Refresh(ctx, sub.ID); err != nil {
			r.logger.Error("Failed to refresh subscription", err, logging.String("subscription_id", sub.ID))
			continue
		}
		refreshed++
	}

	if refreshed > 0 {
		r.logger.Info("Subscriptions refreshed", logging.Int("count", refreshed))
	}
	return refreshed, nil
}
