package model

import "time"

// Comment is a single PR-level comment as seen by the approval engine.
// Body is whitespace-trimmed at the adapter boundary. Collections handed to
// the engine are ordered oldest-first.
type Comment struct {
	Author    string
	Body      string
	CreatedAt time.Time
}
