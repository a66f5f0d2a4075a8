package service

import (
	"context"
	"log/slog"

	"github.com/robosms/twilio-sms-service/internal/config"
	"github.com/robosms/twilio-sms-service/internal/domain"
	"github.com/robosms/twilio-sms-service/internal/telemetry"
	"github.com/robosms/twilio-sms-service/internal/twilio"
)

// vendorPageSize keeps pagination round-trips down on the vendor's
// message list API.
const vendorPageSize = 1000

// HistoryQuery serves get commands either against the vendor's own
// message list or against the telemetry store, depending on
// configuration. Both modes normalize into the same MessageRecord.
type HistoryQuery struct {
	cfg    *config.Config
	client MessageClient
	store  telemetry.Store
	logger *slog.Logger
}

func NewHistoryQuery(cfg *config.Config, client MessageClient, store telemetry.Store, logger *slog.Logger) *HistoryQuery {
	return &HistoryQuery{
		cfg:    cfg,
		client: client,
		store:  store,
		logger: logger,
	}
}

func (h *HistoryQuery) Handle(ctx context.Context, cmd domain.GetCommand) (domain.Result, error) {
	limit := cmd.Number
	if limit <= 0 {
		limit = domain.DefaultHistoryLimit
	}

	if h.cfg.StoreInTelemetry && h.store != nil {
		return h.fromTelemetry(ctx, cmd, limit)
	}
	return h.fromVendor(ctx, cmd, limit)
}

func (h *HistoryQuery) fromVendor(ctx context.Context, cmd domain.GetCommand, limit int) (domain.Result, error) {
	messages, err := h.client.ListMessages(ctx, twilio.ListParams{
		From:       cmd.From,
		To:         cmd.To,
		SentAfter:  cmd.Start,
		SentBefore: cmd.End,
		PageSize:   vendorPageSize,
		Limit:      limit,
	})
	if err != nil {
		return domain.Result{}, err
	}

	// Vendor ordering is newest-first; preserve it.
	records := make([]domain.MessageRecord, 0, len(messages))
	for _, msg := range messages {
		records = append(records, domain.MessageRecord{
			Body: msg.Body,
			To:   msg.To,
			From: msg.From,
			Sent: msg.SentAt().Format(domain.TimestampLayout),
		})
	}

	return domain.RetrievedResult(records), nil
}

func (h *HistoryQuery) fromTelemetry(ctx context.Context, cmd domain.GetCommand, limit int) (domain.Result, error) {
	readings, err := h.store.QueryReadings(ctx, telemetry.Query{
		OrganizationID: h.cfg.Telemetry.OrganizationID,
		ComponentName:  h.cfg.Telemetry.ComponentName,
		Sender:         cmd.From,
		Recipient:      cmd.To,
		Start:          cmd.Start,
		End:            cmd.End,
		Limit:          limit,
	})
	if err != nil {
		return domain.Result{}, err
	}

	records := make([]domain.MessageRecord, 0, len(readings))
	for _, r := range readings {
		records = append(records, domain.MessageRecord{
			Body: r.Body,
			To:   r.Recipient,
			From: r.Sender,
			Sent: r.ReceivedAt.UTC().Format(domain.TimestampLayout),
		})
	}

	return domain.RetrievedResult(records), nil
}
