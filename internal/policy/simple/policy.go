// Package simple contains the pass-through fetch policy used when rate limiting is off.
package simple

import (
	"context"
	"fmt"
)

// Policy never delays a fetch; it only honors cancellation.
type Policy struct{}

// New creates a new Policy.
func New() *Policy {
	return &Policy{}
}

// Wait returns immediately unless ctx is already done.
func (Policy) Wait(ctx context.Context, _ string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("fetch policy wait: %w", err)
	}
	return nil
}
