package dispatch

import (
	"github.com/rickgao/market-gateway/internal/provider"
	"github.com/rickgao/market-gateway/internal/provider/coincap"
	"github.com/rickgao/market-gateway/internal/provider/coingecko"
	"github.com/rickgao/market-gateway/internal/provider/coinpaprika"
	"github.com/rickgao/market-gateway/internal/registry"
)

// DefaultFactory builds adapters for the built-in provider ids. Adapters
// are constructed per call from the current ProviderConfig, so registry
// mutations (credentials, base URLs, endpoints) take effect immediately.
// Unknown ids yield nil and are skipped by the fallback chain.
func DefaultFactory(opts ...provider.ClientOption) AdapterFactory {
	return func(cfg registry.ProviderConfig) provider.Adapter {
		switch cfg.ID {
		case registry.ProviderCoinGecko:
			return coingecko.New(cfg, opts...)
		case registry.ProviderCoinCap:
			return coincap.New(cfg, opts...)
		case registry.ProviderCoinPaprika:
			return coinpaprika.New(cfg, opts...)
		default:
			return nil
		}
	}
}
