package evm

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"portfolio_dashboard/internal/app/port"
	"portfolio_dashboard/internal/infrastructure/configloader"
)

const defaultConnectionTimeout = 10 * time.Second

// ClientProvider hands out one Client per EVM network, caching dialed
// connections so repeated fetch cycles reuse them instead of reconnecting.
type ClientProvider struct {
	clients           *gocache.Cache
	logger            port.Logger
	connectionTimeout time.Duration
	rpcCallTimeout    time.Duration
}

// NewClientProvider creates a ClientProvider.
func NewClientProvider(cfg *configloader.Config, logger port.Logger) *ClientProvider {
	return &ClientProvider{
		clients:           gocache.New(gocache.NoExpiration, 0),
		logger:            logger,
		connectionTimeout: defaultConnectionTimeout,
		rpcCallTimeout:    time.Duration(cfg.Performance.RPCCallTimeoutSeconds) * time.Second,
	}
}

// GetClient retrieves or dials the client for a network.
func (p *ClientProvider) GetClient(network configloader.EVMNetworkConfig) (*Client, error) {
	if cached, ok := p.clients.Get(network.Identifier); ok {
		return cached.(*Client), nil
	}

	p.logger.Info("Creating new EVM client", "network", network.Identifier, "rpc_primary", network.PrimaryRPCURL)
	client, err := NewClient(network, p.connectionTimeout, p.rpcCallTimeout)
	if err != nil {
		p.logger.Error("Failed to create EVM client", "network", network.Identifier, "error", err)
		return nil, fmt.Errorf("failed to create EVM client for %s: %w", network.Identifier, err)
	}

	p.clients.Set(network.Identifier, client, gocache.NoExpiration)
	return client, nil
}
