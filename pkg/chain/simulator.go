package chain

//go:generate mockgen -destination=../../internal/mocks/simulator.go -package=mocks github.com/storacha/devchain/pkg/chain Simulator

import (
	"context"
	"net/http"
)

// Simulator is an EVM chain implementation that serves JSON-RPC.
type Simulator interface {
	// Configure prepares the simulator. It is called once, before Listen.
	Configure(cfg Config) error
	// Listen boots the chain and returns the handler serving its JSON-RPC API.
	Listen(ctx context.Context) (http.Handler, error)
	// Close shuts the chain down and flushes its state to disk.
	Close() error
}
