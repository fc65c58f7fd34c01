// Package audit persists access decisions and the requester directory.
package audit

import (
	"context"
	"time"

	"github.com/altamira-data/queryhub/schema"
)

// Record is one access-log entry. Every query attempt produces one,
// denied or not.
type Record struct {
	Timestamp        time.Time
	RequesterID      string
	RequesterTier    schema.Tier
	QueryText        string
	Tier             schema.Tier
	Route            schema.Route
	ReferencedIDs    []string
	Success          bool
	DeniedReason     string
	CacheHit         bool
	ProcessingTimeMs int64
}

// Sink receives access records.
type Sink interface {
	Write(ctx context.Context, record Record) error
	Close() error
}

// NopSink discards records. Used when no audit path is configured.
type NopSink struct{}

func (NopSink) Write(context.Context, Record) error { return nil }
func (NopSink) Close() error                        { return nil }

// User is a requester directory entry.
type User struct {
	ID        string
	Name      string
	Clearance schema.Tier
}

// Directory resolves requester clearances.
type Directory interface {
	GetUser(ctx context.Context, id string) (*User, error)
	SetUser(ctx context.Context, user User) error
	ListUsers(ctx context.Context) ([]User, error)
}
