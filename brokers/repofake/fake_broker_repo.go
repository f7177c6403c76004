package fakebrokerrepo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/go-sso/brokers"
	ssoerrors "github.com/jrsteele09/go-sso/internal/errors"
)

var _ brokers.Repo = (*FakeBrokerRepo)(nil)

type FakeBrokerRepo struct {
	brokers map[string]brokers.Broker
	lock    sync.RWMutex
}

func NewFakeBrokerRepo() *FakeBrokerRepo {
	return &FakeBrokerRepo{
		brokers: make(map[string]brokers.Broker),
	}
}

func (br *FakeBrokerRepo) Upsert(_ context.Context, broker *brokers.Broker) error {
	if broker == nil || broker.Name == "" {
		return errors.New("broker name is required")
	}
	br.lock.Lock()
	defer br.lock.Unlock()

	if broker.CreatedAt.IsZero() {
		broker.CreatedAt = time.Now()
	}
	br.brokers[broker.Name] = *broker
	return nil
}

func (br *FakeBrokerRepo) Get(_ context.Context, name string) (*brokers.Broker, error) {
	br.lock.RLock()
	defer br.lock.RUnlock()

	b, ok := br.brokers[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ssoerrors.ErrBrokerNotFound)
	}
	return &b, nil
}
