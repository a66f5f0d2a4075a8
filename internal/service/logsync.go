package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robosms/twilio-sms-service/internal/cache"
	"github.com/robosms/twilio-sms-service/internal/config"
	"github.com/robosms/twilio-sms-service/internal/domain"
	"github.com/robosms/twilio-sms-service/internal/telemetry"
	"github.com/robosms/twilio-sms-service/internal/twilio"
)

// dedupTTL keeps mirror marks around long enough to catch the overlap
// between consecutive poll windows.
const dedupTTL = 24 * time.Hour

// LogSync is the long-running loop that mirrors newly sent vendor
// messages into the telemetry store. One loop runs per configuration
// snapshot; reconfiguration stops it and starts a fresh one.
//
// The cursor is the wall-clock time at the start of the previous
// iteration, not the last message's timestamp, so delivery to the
// store is at-least-once; the cache suppresses the duplicates this
// produces.
type LogSync struct {
	cfg    *config.Config
	client MessageClient
	store  telemetry.Store
	cache  cache.Cache
	logger *slog.Logger

	stopChan  chan struct{}
	isRunning bool
	mtx       sync.Mutex
	interval  time.Duration
}

func NewLogSync(cfg *config.Config, client MessageClient, store telemetry.Store, dedup cache.Cache, logger *slog.Logger) *LogSync {
	interval := cfg.SyncInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	return &LogSync{
		cfg:      cfg,
		client:   client,
		store:    store,
		cache:    dedup,
		logger:   logger,
		stopChan: make(chan struct{}),
		interval: interval,
	}
}

// Start launches the mirror loop. When the telemetry configuration is
// incomplete the loop does not start: the problem is logged and left
// at that.
func (s *LogSync) Start() {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.isRunning {
		return
	}

	if !s.cfg.Telemetry.Complete() || s.store == nil {
		s.logger.Error("telemetry sync not started", "error", domain.ErrTelemetryMisconfigured.Error())
		return
	}

	s.isRunning = true

	ticker := time.NewTicker(s.interval)
	go func(t *time.Ticker) {
		syncCtx, syncCtxCancel := context.WithCancel(context.Background())
		defer syncCtxCancel()

		cursor := time.Now().UTC()

		for {
			select {
			case <-t.C:
				start := time.Now().UTC()
				s.syncOnce(syncCtx, cursor)
				cursor = start
			case <-s.stopChan:
				t.Stop()
				syncCtxCancel()
				return
			}
		}
	}(ticker)
}

// Stop terminates the loop before its next iteration. In-flight
// iterations are not forcibly cancelled.
func (s *LogSync) Stop() {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if !s.isRunning {
		return
	}

	s.stopChan <- struct{}{}
	s.isRunning = false
}

// IsRunning reports whether the mirror loop is active.
func (s *LogSync) IsRunning() bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.isRunning
}

// syncOnce mirrors every vendor message sent since the cursor.
func (s *LogSync) syncOnce(ctx context.Context, since time.Time) {
	messages, err := s.client.ListMessages(ctx, twilio.ListParams{
		SentAfter: &since,
		PageSize:  vendorPageSize,
	})
	if err != nil {
		s.logger.Error("failed to list vendor messages", "error", err.Error())
		return
	}

	for _, msg := range messages {
		if !s.claim(ctx, msg) {
			continue
		}

		reading := telemetry.Reading{
			OrganizationID: s.cfg.Telemetry.OrganizationID,
			PartID:         s.cfg.Telemetry.PartID,
			ComponentName:  s.cfg.Telemetry.ComponentName,
			Category:       telemetry.CategorySMS,
			Body:           msg.Body,
			Recipient:      msg.To,
			Sender:         msg.From,
			ReceivedAt:     msg.SentAt().UTC(),
		}
		if err := s.store.Append(ctx, reading); err != nil {
			s.logger.Error("failed to append reading", "sid", msg.SID, "error", err.Error())
		}
	}
}

// claim marks a message as mirrored; a second claim for the same
// message reports false. Without a cache every message in the overlap
// window is forwarded again and the store has to deduplicate.
func (s *LogSync) claim(ctx context.Context, msg twilio.Message) bool {
	if s.cache == nil {
		return true
	}

	key := fmt.Sprintf("sms_sync:%s", msg.SID)
	if msg.SID == "" {
		key = fmt.Sprintf("sms_sync:%s:%s:%s", msg.To, msg.DateSent, msg.Body)
	}

	ok, err := s.cache.SetNX(ctx, key, "1", dedupTTL)
	if err != nil {
		s.logger.Error("failed to mark message as mirrored", "error", err.Error())
		return true
	}
	return ok
}
