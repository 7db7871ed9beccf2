package notification

import "time"

// ErrSending is the sentinel error value a Notification row carries between
// creation and the transport call returning. A crash mid-send leaves the row
// in this state, which is exactly the audit trail we want.
const ErrSending = "Sending"

// Notification is the audit record of one delivery attempt to one channel
// for one status transition. Rows are created before the transport is
// invoked and updated once with the final outcome; they are never deleted.
type Notification struct {
	ID          int64     `json:"id"`
	Code        string    `json:"code"`
	CheckID     int64     `json:"check_id"`
	ChannelID   int64     `json:"channel_id"`
	CheckStatus string    `json:"check_status"`
	Error       string    `json:"error"`
	CreatedAt   time.Time `json:"created_at"`
}
