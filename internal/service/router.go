package service

import (
	"context"
	"errors"

	"github.com/robosms/twilio-sms-service/internal/domain"
)

// Router validates a raw key-value request and dispatches it to the
// send or history path.
type Router struct {
	send    *SendHandler
	history *HistoryQuery
}

func NewRouter(send *SendHandler, history *HistoryQuery) *Router {
	return &Router{send: send, history: history}
}

// Dispatch decodes and routes one command. Boundary validation
// failures (missing or unknown discriminator, malformed fields) come
// back as structured error results; a non-nil error is reserved for
// hard pipeline failures inside the handlers.
func (r *Router) Dispatch(ctx context.Context, raw map[string]any) (domain.Result, error) {
	cmd, err := domain.DecodeCommand(raw)
	if err != nil {
		if errors.Is(err, domain.ErrCommandRequired) {
			return domain.ErrorResult(domain.ErrCommandRequired.Error()), nil
		}
		return domain.ErrorResult(err.Error()), nil
	}

	switch c := cmd.(type) {
	case domain.SendCommand:
		return r.send.Handle(ctx, c)
	case domain.GetCommand:
		return r.history.Handle(ctx, c)
	default:
		return domain.ErrorResult("unsupported command"), nil
	}
}
