// Package telemetry mirrors sent messages into an external store and
// serves history queries against it, as an alternate backend to the
// vendor's own message list API.
package telemetry

import (
	"context"
	"time"
)

// CategorySMS is the fixed label every mirrored message reading is
// tagged with.
const CategorySMS = "sms"

// Reading is one tagged message record associated with the component
// that produced it.
type Reading struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OrganizationID string    `gorm:"type:varchar(64);index;not null" json:"organization_id"`
	PartID         string    `gorm:"type:varchar(64)" json:"part_id"`
	ComponentName  string    `gorm:"type:varchar(128);index;not null" json:"component_name"`
	Category       string    `gorm:"type:varchar(32);not null" json:"category"`
	Body           string    `gorm:"type:text" json:"body"`
	Recipient      string    `gorm:"type:varchar(20)" json:"recipient"`
	Sender         string    `gorm:"type:varchar(20)" json:"sender"`
	ReceivedAt     time.Time `gorm:"index;not null" json:"received_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// Query selects readings scoped to an organization and component, with
// equality filters on sender/recipient and an inclusive receipt-time
// range, sorted descending by receipt time and limited.
type Query struct {
	OrganizationID string
	ComponentName  string
	Sender         string
	Recipient      string
	Start          *time.Time
	End            *time.Time
	Limit          int
}

type Store interface {
	Append(ctx context.Context, reading Reading) error
	QueryReadings(ctx context.Context, q Query) ([]Reading, error)
}
