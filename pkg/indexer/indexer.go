package indexer

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Watcher is one unit of synchronization: a single event kind of a single contract.
// It owns the checkpoint stored under (Address, Kind).
type Watcher struct {
	// Name identifies the configured watcher the unit was expanded from.
	Name string

	// Address is the watched contract.
	Address common.Address

	// ContractType selects the ABI the kind is resolved against.
	ContractType string

	// Kind is the event kind, also used as the checkpoint category.
	Kind string

	// StartBlock is the first block synced when no checkpoint exists.
	StartBlock uint64
}

// Key returns the checkpoint key of the watcher.
func (w Watcher) Key() string {
	return fmt.Sprintf("%s/%s", w.Address.Hex(), w.Kind)
}

// WatcherSource lists the watchers to synchronize in one pass.
type WatcherSource interface {
	// Watchers returns the watchers of the pass, without duplicate keys.
	Watchers(ctx context.Context) ([]Watcher, error)
}

// Coordinator drives the synchronization passes.
type Coordinator interface {
	// Run executes passes on every tick until ctx is done or a pass fails fatally.
	Run(ctx context.Context) error

	// RunOnce executes a single pass over every watcher.
	RunOnce(ctx context.Context) error
}
