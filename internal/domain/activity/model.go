package activity

import "time"

// Entry is one row of the activity trail.
type Entry struct {
	ID          int64     `db:"id" json:"id"`
	Actor       string    `db:"actor" json:"actor"`
	Description string    `db:"description" json:"description"`
	OccurredAt  time.Time `db:"occurred_at" json:"occurredAt"`
}

// PingResponse answers GET /logger/ping.
type PingResponse struct {
	OK bool      `json:"ok"`
	At time.Time `json:"at"`
}
