// Package monitoring stores the lifetime coin and toy counters read off
// each machine. Snapshots are immutable; a repeated (machine, coins, toys)
// triple returns the stored row.
package monitoring

import (
	"errors"
	"time"
)

// Snapshot is one reading of a machine's cumulative counters.
type Snapshot struct {
	ID        int64     `json:"id" db:"id"`
	MachineID int64     `json:"machine_id" db:"machine_id"`
	Date      time.Time `json:"date" db:"date"`
	Coins     int64     `json:"coins" db:"coins"`
	Toys      int64     `json:"toys" db:"toys"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

var (
	// ErrNotFound indicates a missing snapshot.
	ErrNotFound = errors.New("monitoring: not found")
	// ErrNegativeCounter rejects negative counter values.
	ErrNegativeCounter = errors.New("monitoring: counters must not be negative")
)
