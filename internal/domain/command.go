package domain

import (
	"encoding/base64"
	"fmt"
	"time"
)

// Command discriminator values accepted at the dispatch boundary.
const (
	CommandSend = "send"
	CommandGet  = "get"
)

// TimestampLayout is the wire format used for every timestamp that
// crosses the command boundary (DD/MM/YYYY HH:MM:SS).
const TimestampLayout = "02/01/2006 15:04:05"

// DefaultHistoryLimit is applied when a get command carries no count.
const DefaultHistoryLimit = 5

// Command is a decoded, typed variant of the generic key-value request.
type Command interface {
	isCommand()
}

// SendCommand requests a single outbound message.
type SendCommand struct {
	To     string
	From   string
	Body   string
	Preset string
	Media  *MediaSource
}

func (SendCommand) isCommand() {}

// GetCommand requests message history.
type GetCommand struct {
	From   string
	To     string
	Number int
	Start  *time.Time
	End    *time.Time
}

func (GetCommand) isCommand() {}

// MediaSource describes where the media payload for a send comes from.
// Exactly one of Path, Data or URL is expected to be set; Data carries
// decoded inline content together with its declared MIME type.
type MediaSource struct {
	Path     string
	Data     []byte
	MimeType string
	URL      string
}

// DecodeCommand validates a raw key-value request and converts it into
// a typed Command. A missing discriminator yields ErrCommandRequired,
// an unrecognized one an UnknownCommandError; both are expected to be
// surfaced as structured error results, never as transport failures.
func DecodeCommand(raw map[string]any) (Command, error) {
	name, ok := stringField(raw, "command")
	if !ok || name == "" {
		return nil, ErrCommandRequired
	}

	switch name {
	case CommandSend:
		return decodeSend(raw)
	case CommandGet:
		return decodeGet(raw)
	default:
		return nil, &UnknownCommandError{Name: name}
	}
}

func decodeSend(raw map[string]any) (Command, error) {
	cmd := SendCommand{}
	cmd.To, _ = stringField(raw, "to")
	cmd.From, _ = stringField(raw, "from")
	cmd.Body, _ = stringField(raw, "body")
	cmd.Preset, _ = stringField(raw, "preset")

	src := MediaSource{}
	src.Path, _ = stringField(raw, "media_path")
	src.MimeType, _ = stringField(raw, "media_mime_type")
	src.URL, _ = stringField(raw, "media_url")

	if encoded, ok := stringField(raw, "media_base64"); ok && encoded != "" {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid media_base64: %w", err)
		}
		src.Data = data
	}

	if src.Path != "" || len(src.Data) > 0 || src.URL != "" {
		cmd.Media = &src
	}

	return cmd, nil
}

func decodeGet(raw map[string]any) (Command, error) {
	cmd := GetCommand{Number: DefaultHistoryLimit}
	cmd.From, _ = stringField(raw, "from")
	cmd.To, _ = stringField(raw, "to")

	if n, ok := intField(raw, "number"); ok {
		cmd.Number = n
	}

	for key, dst := range map[string]**time.Time{
		"time_start": &cmd.Start,
		"time_end":   &cmd.End,
	} {
		value, ok := stringField(raw, key)
		if !ok || value == "" {
			continue
		}
		ts, err := time.Parse(TimestampLayout, value)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = &ts
	}

	return cmd, nil
}

func stringField(raw map[string]any, key string) (string, bool) {
	v, ok := raw[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func intField(raw map[string]any, key string) (int, bool) {
	switch v := raw[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}
