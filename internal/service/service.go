// Package service implements command dispatch for the messaging
// adapter: sending through the vendor API (with media provisioning
// when needed), history queries, and the background telemetry mirror.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/robosms/twilio-sms-service/internal/cache"
	"github.com/robosms/twilio-sms-service/internal/config"
	"github.com/robosms/twilio-sms-service/internal/domain"
	"github.com/robosms/twilio-sms-service/internal/media"
	"github.com/robosms/twilio-sms-service/internal/telemetry"
	"github.com/robosms/twilio-sms-service/internal/twilio"
)

// Service owns the current configuration snapshot and the components
// built from it. Reconfigure swaps everything atomically; dispatches
// already in flight keep the snapshot they started with.
type Service struct {
	logger *slog.Logger
	store  telemetry.Store
	cache  cache.Cache

	// newClient exists so tests can substitute a fake vendor client.
	newClient func(cfg *config.Config) MessageClient

	mu      sync.Mutex
	router  atomic.Pointer[Router]
	logSync *LogSync
}

func NewService(store telemetry.Store, dedup cache.Cache, logger *slog.Logger) *Service {
	return &Service{
		logger: logger,
		store:  store,
		cache:  dedup,
		newClient: func(cfg *config.Config) MessageClient {
			return twilio.NewClient(cfg.AccountSID, cfg.AuthToken)
		},
	}
}

// Reconfigure replaces the previous configuration entirely: a fresh
// vendor client, send/history handlers and, when telemetry mirroring
// is requested, a fresh sync loop. The old loop is stopped first.
func (s *Service) Reconfigure(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.logSync != nil {
		s.logSync.Stop()
		s.logSync = nil
	}

	client := s.newClient(cfg)

	var provisioner MediaProvisioner
	if cfg.MediaServiceSID != "" {
		if twilioClient, ok := client.(*twilio.Client); ok {
			p, err := media.NewProvisioner(twilioClient, cfg.MediaServiceSID,
				s.logger.With(slog.String("component", "mediaProvisioner")))
			if err != nil {
				return err
			}
			provisioner = p
		}
	}

	send := NewSendHandler(cfg, client, provisioner, s.logger.With(slog.String("component", "sendHandler")))
	history := NewHistoryQuery(cfg, client, s.store, s.logger.With(slog.String("component", "historyQuery")))
	s.router.Store(NewRouter(send, history))

	if cfg.StoreInTelemetry {
		s.logSync = NewLogSync(cfg, client, s.store, s.cache,
			s.logger.With(slog.String("component", "logSync")))
		s.logSync.Start()
	}

	return nil
}

// Dispatch routes one raw command against the current snapshot.
func (s *Service) Dispatch(ctx context.Context, raw map[string]any) (domain.Result, error) {
	router := s.router.Load()
	if router == nil {
		return domain.Result{}, errors.New("service is not configured")
	}
	return router.Dispatch(ctx, raw)
}

// Close stops the background loop.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.logSync != nil {
		s.logSync.Stop()
		s.logSync = nil
	}
}
