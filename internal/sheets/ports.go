// Package sheets defines the outbound port for the spreadsheet audit
// mirror. The mirror is a read model: losing it never loses ledger data.
package sheets

import (
	"context"
	"time"
)

// EventRow is one ledger event flattened for a spreadsheet row.
type EventRow struct {
	Timestamp   time.Time
	OwnerID     string
	EventType   string
	EntityID    string
	AmountCents int64
	Detail      string
}

// EventWriter appends ledger event rows to the mirror.
type EventWriter interface {
	Append(ctx context.Context, row EventRow) (rowRef string, err error)
}
