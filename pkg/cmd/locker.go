// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"fmt"

	"github.com/dukex/admitio/pkg/locks"
)

// NewLocker builds the per-application locker. An empty redisURL selects the
// in-process mutex, which is only safe while a single instance serves transitions.
func NewLocker(redisURL string) locks.Locker {
	if redisURL == "" {
		return locks.NewKeyedMutex()
	}

	locker, err := locks.NewRedisLocker(redisURL)
	if err != nil {
		panic(fmt.Errorf("failed to create Redis locker: %w", err))
	}

	return locker
}
