package model

import (
	"context"
	"time"
)

// Notice kinds.
const (
	NoticeDuelCreated = "duel_created"
	NoticeOutcome     = "outcome"
	NoticeRankChange  = "rank_change"
	NoticeError       = "error"
	NoticeAssign      = "assign"
	NoticeUnassign    = "unassign"
	NoticeDeleteVenue = "delete_venue"
)

// Notice is a deferred side effect toward the chat platform.
// Notices sharing a Key are delivered in enqueue order.
type Notice struct {
	Kind       string
	Key        string
	EnqueuedAt time.Time
	Deliver    func(ctx context.Context) error
}
