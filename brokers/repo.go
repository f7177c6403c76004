package brokers

import "context"

// Repo is the registry of brokers known to the server.
type Repo interface {
	// Upsert registers or updates a broker.
	Upsert(ctx context.Context, broker *Broker) error

	// Get returns the broker named name or an error wrapping ErrBrokerNotFound.
	Get(ctx context.Context, name string) (*Broker, error)
}
