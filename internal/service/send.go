package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/robosms/twilio-sms-service/internal/config"
	"github.com/robosms/twilio-sms-service/internal/domain"
	"github.com/robosms/twilio-sms-service/internal/media"
	"github.com/robosms/twilio-sms-service/internal/twilio"
)

// MessageClient is the slice of the vendor API the send and history
// paths call.
type MessageClient interface {
	SendMessage(ctx context.Context, p twilio.SendParams) (*twilio.Message, error)
	ListMessages(ctx context.Context, p twilio.ListParams) ([]twilio.Message, error)
}

// MediaProvisioner turns a media source into a vendor-reachable URL
// and releases the provisioned resources afterwards.
type MediaProvisioner interface {
	Provision(ctx context.Context, src *domain.MediaSource) (*media.Session, error)
	Teardown(ctx context.Context, sess *media.Session)
}

// SendHandler assembles and dispatches a single outbound message.
type SendHandler struct {
	cfg         *config.Config
	client      MessageClient
	provisioner MediaProvisioner
	logger      *slog.Logger
}

func NewSendHandler(cfg *config.Config, client MessageClient, provisioner MediaProvisioner, logger *slog.Logger) *SendHandler {
	return &SendHandler{
		cfg:         cfg,
		client:      client,
		provisioner: provisioner,
		logger:      logger,
	}
}

// Handle runs the send pipeline. Policy violations and vendor-flagged
// delivery failures come back as structured error results; a non-nil
// error means the provisioning pipeline or the transport itself broke
// before the message could be dispatched.
func (h *SendHandler) Handle(ctx context.Context, cmd domain.SendCommand) (domain.Result, error) {
	if cmd.To == "" {
		return domain.ErrorResult("a recipient is required"), nil
	}
	if h.cfg.EnforcePresets && cmd.Preset == "" {
		return domain.ErrorResult(domain.ErrPresetRequired.Error()), nil
	}

	body := cmd.Body
	if cmd.Preset != "" {
		preset, ok := h.cfg.PresetBody(cmd.Preset)
		if !ok {
			return domain.ErrorResult((&domain.PresetNotFoundError{Name: cmd.Preset}).Error()), nil
		}
		body = preset
	}

	mediaURL, sess, err := h.resolveMedia(ctx, cmd.Media)
	if sess != nil {
		// Best effort regardless of the send outcome; teardown must
		// survive a canceled request context.
		defer h.provisioner.Teardown(context.WithoutCancel(ctx), sess)
	}
	if err != nil {
		return domain.Result{}, err
	}

	if body == "" && mediaURL == "" {
		return domain.ErrorResult("a body, preset or media source is required"), nil
	}

	from := cmd.From
	if from == "" {
		from = h.cfg.DefaultFrom
	}

	params := twilio.SendParams{
		From:     from,
		To:       cmd.To,
		MediaURL: mediaURL,
	}
	// Vendor contract: the body field is omitted when a media URL is
	// present and no explicit body or preset was given.
	if body != "" {
		params.Body = body
	}

	msg, err := h.client.SendMessage(ctx, params)
	if err != nil {
		return domain.Result{}, err
	}

	if msg.ErrorMessage != "" {
		return domain.ErrorResult(msg.ErrorMessage), nil
	}

	h.logger.Info("message sent", slog.String("sid", msg.SID), slog.String("to", msg.To))
	return domain.SentResult(), nil
}

// resolveMedia yields the media URL for the send, provisioning the
// payload when a hosting service is configured. A direct URL is used
// verbatim without provisioning.
func (h *SendHandler) resolveMedia(ctx context.Context, src *domain.MediaSource) (string, *media.Session, error) {
	if src == nil {
		return "", nil, nil
	}

	hasPayload := src.Path != "" || len(src.Data) > 0

	if hasPayload && h.provisioner != nil {
		sess, err := h.provisioner.Provision(ctx, src)
		if err != nil {
			return "", sess, err
		}
		return sess.MediaURL(), sess, nil
	}

	if src.URL != "" {
		return src.URL, nil, nil
	}

	return "", nil, &domain.ProvisionError{Step: "resolve source", Err: errNoMediaService}
}

var errNoMediaService = errors.New("a media payload was supplied but no media hosting service is configured")
