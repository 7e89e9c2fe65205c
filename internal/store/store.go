// Package store defines the document store boundary the gateway mutates
// through. Every write receives only schema-approved fields plus the
// server-derived actor id — raw client payloads never reach this layer.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by keyed reads when no record exists.
var ErrNotFound = errors.New("store: record not found")

// ErrUnavailable indicates the backing store could not be reached.
var ErrUnavailable = errors.New("store: unavailable")

// ErrConflict indicates a write collided with an existing record.
var ErrConflict = errors.New("store: conflict")

// User is the stored subject record. IsAdmin is the authorization flag
// the gateway re-derives on every request.
type User struct {
	SubjectID string    `json:"subject_id"`
	Email     string    `json:"email,omitempty"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

// UserBan is one user ban record.
type UserBan struct {
	BanID        string    `json:"ban_id"`
	UserID       string    `json:"user_id"`
	Reason       string    `json:"reason"`
	DurationDays int64     `json:"duration_days"`
	ActorID      string    `json:"actor_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// IPBan is one network address ban record.
type IPBan struct {
	BanID        string    `json:"ban_id"`
	IPAddress    string    `json:"ip_address"`
	Reason       string    `json:"reason"`
	DurationDays int64     `json:"duration_days"`
	ActorID      string    `json:"actor_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// License is one issued license record.
type License struct {
	LicenseKey   string    `json:"license_key"`
	Plan         string    `json:"plan"`
	ValidityDays int64     `json:"validity_days"`
	ActorID      string    `json:"actor_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store is the keyed-record interface over the external document store.
type Store interface {
	GetUser(ctx context.Context, subjectID string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	InsertUserBan(ctx context.Context, ban UserBan) error
	InsertIPBan(ctx context.Context, ban IPBan) error
	InsertLicense(ctx context.Context, lic License) error
}
