package ping

import "time"

type Kind string

const (
	KindPlain Kind = ""
	KindStart Kind = "start"
	KindFail  Kind = "fail"
)

// Ping is one received liveness signal. Rows are append-only: they are never
// updated, and only bulk retention pruning outside this service removes them.
type Ping struct {
	ID         int64     `json:"id"`
	Seq        int64     `json:"seq"`
	CheckID    int64     `json:"check_id"`
	Kind       Kind      `json:"kind"`
	Scheme     string    `json:"scheme"`
	RemoteAddr string    `json:"remote_addr"`
	Method     string    `json:"method"`
	UserAgent  string    `json:"user_agent"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}
