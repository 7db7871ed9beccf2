package channel

import (
	"time"
)

type Kind string

const (
	KindEmail   Kind = "email"
	KindWebhook Kind = "webhook"
	KindShell   Kind = "shell"
	KindSMS     Kind = "sms"
)

// Channel binds a delivery mechanism to its settings and to the set of
// checks subscribed to it. Value keeps the raw payload as stored; Config is
// the canonical typed form, normalized when the row is loaded or created.
type Channel struct {
	ID            int64     `json:"id"`
	Code          string    `json:"code"`
	ProjectID     int64     `json:"project_id"`
	Name          string    `json:"name"`
	Kind          Kind      `json:"kind"`
	Value         string    `json:"value"`
	EmailVerified bool      `json:"email_verified"`
	LastError     string    `json:"last_error"`
	CreatedAt     time.Time `json:"created_at"`

	Config Config `json:"-"`
}

func KnownKind(k Kind) bool {
	switch k {
	case KindEmail, KindWebhook, KindShell, KindSMS:
		return true
	}
	return false
}
