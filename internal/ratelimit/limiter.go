// Package ratelimit provides fixed-window request counting keyed by
// caller address and operation class. Fixed windows trade boundary-burst
// imprecision for O(1) space and check cost per key.
package ratelimit

import (
	"context"
	"time"
)

// Class is one admission policy: at most Limit requests per Window.
// The caller selects the class per route; this package never infers it.
type Class struct {
	Name   string        `yaml:"name"`
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

// Default classes. General covers read traffic; Admin covers privileged
// mutations and is deliberately strict.
var (
	DefaultGeneral = Class{Name: "general", Limit: 100, Window: time.Minute}
	DefaultAdmin   = Class{Name: "admin", Limit: 10, Window: time.Minute}
)

// Limiter admits or rejects one request for a key under a class.
// The under-limit check and the increment are a single atomic step:
// two concurrent calls for the same key never both consume the last slot.
type Limiter interface {
	Admit(ctx context.Context, key string, class Class) (bool, error)
}
