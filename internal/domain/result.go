package domain

// Result statuses mirrored back to the caller of the command endpoint.
const (
	StatusSent      = "sent"
	StatusRetrieved = "retrieved"
	StatusError     = "error"
)

// MessageRecord is the normalized view of a sent or received message,
// identical whether it was sourced from the vendor API or from the
// telemetry store. Sent carries the TimestampLayout wire format.
type MessageRecord struct {
	Body string `json:"body"`
	To   string `json:"to"`
	From string `json:"from"`
	Sent string `json:"sent"`
}

// Result is the outcome of a dispatched command.
type Result struct {
	Status   string          `json:"status"`
	Error    string          `json:"error,omitempty"`
	Messages []MessageRecord `json:"messages,omitempty"`
}

func SentResult() Result {
	return Result{Status: StatusSent}
}

func RetrievedResult(messages []MessageRecord) Result {
	if messages == nil {
		messages = []MessageRecord{}
	}
	return Result{Status: StatusRetrieved, Messages: messages}
}

func ErrorResult(message string) Result {
	return Result{Status: StatusError, Error: message}
}
