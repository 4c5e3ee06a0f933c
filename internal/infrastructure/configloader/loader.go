package configloader

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// PerformanceConfig holds concurrency-related configuration.
type PerformanceConfig struct {
	MaxConcurrentRoutines int `yaml:"max_concurrent_routines"`
	RPCCallTimeoutSeconds int `yaml:"rpc_call_timeout_seconds"`
}

// CacheConfig holds the namespaced cache configuration.
type CacheConfig struct {
	NamespaceBudgetBytes int64 `yaml:"namespaceBudgetBytes"`
	MaxEntryAgeMinutes   int   `yaml:"maxEntryAgeMinutes"`
	SweepIntervalMinutes int   `yaml:"sweepIntervalMinutes"`
}

// RateLimitConfig holds the sliding-window limiter configuration. PerSource
// overrides the default for named sources.
type RateLimitConfig struct {
	MaxRequests int                       `yaml:"maxRequests"`
	WindowMs    int64                     `yaml:"windowMs"`
	PerSource   map[string]RateLimitEntry `yaml:"perSource"`
}

// RateLimitEntry is one per-source limit override.
type RateLimitEntry struct {
	MaxRequests int   `yaml:"maxRequests"`
	WindowMs    int64 `yaml:"windowMs"`
}

// RetryConfig holds the backoff policy configuration.
type RetryConfig struct {
	MaxAttempts int   `yaml:"maxAttempts"`
	BaseDelayMs int64 `yaml:"baseDelayMs"`
}

// FetchConfig holds per-account orchestration timings.
type FetchConfig struct {
	DebounceMs            int64 `yaml:"debounceMs"`
	MinRefreshSeconds     int   `yaml:"minRefreshSeconds"`
	RequestTimeoutSeconds int   `yaml:"requestTimeoutSeconds"`
	PriceTTLMinutes       int   `yaml:"priceTTLMinutes"`
}

// DEXScreenerConfig holds the DEX Screener client configuration.
type DEXScreenerConfig struct {
	BaseURL                  string `yaml:"baseURL"`
	RequestTimeoutMillis     int64  `yaml:"requestTimeoutMillis"`
	MaxTokensPerBatchRequest int    `yaml:"maxTokensPerBatchRequest"`
}

// CoinGeckoConfig holds the CoinGecko client configuration. AssetIDs maps
// asset symbols to CoinGecko asset ids for symbol-keyed price lookups.
type CoinGeckoConfig struct {
	BaseURL   string            `yaml:"baseURL"`
	APIKeyEnv string            `yaml:"apiKeyEnv"`
	AssetIDs  map[string]string `yaml:"assetIds"`
}

// TokenConfig declares one tracked token on an EVM network.
type TokenConfig struct {
	Address  string `yaml:"address"`
	Symbol   string `yaml:"symbol"`
	Name     string `yaml:"name"`
	Decimals uint8  `yaml:"decimals"`
}

// EVMNetworkConfig holds the configuration for one EVM chain.
type EVMNetworkConfig struct {
	Identifier         string        `yaml:"identifier"`
	Name               string        `yaml:"name"`
	ChainID            uint64        `yaml:"chainID"`
	NativeSymbol       string        `yaml:"nativeSymbol"`
	NativeDecimals     uint8         `yaml:"nativeDecimals"`
	PrimaryRPCURL      string        `yaml:"primaryRpcUrl"`
	FallbackRPCURLs    []string      `yaml:"fallbackRpcUrls"`
	BlockExplorerURL   string        `yaml:"blockExplorerUrl"`
	DEXScreenerChainID string        `yaml:"dexScreenerChainId"`
	WrappedNativeToken string        `yaml:"wrappedNativeToken"`
	LimiterRPS         float64       `yaml:"limiterRps"`
	LimiterBurst       int           `yaml:"limiterBurst"`
	Tokens             []TokenConfig `yaml:"tokens"`
}

// RESTSourceConfig holds the endpoint of one REST-based chain source.
type RESTSourceConfig struct {
	Endpoint         string        `yaml:"endpoint"`
	BlockExplorerURL string        `yaml:"blockExplorerUrl"`
	Tokens           []TokenConfig `yaml:"tokens"`
}

// ExchangeConfig holds one exchange integration. Credentials are referenced
// by environment variable name and resolved at adapter construction; a
// missing variable makes the source fail closed.
type ExchangeConfig struct {
	BaseURL      string `yaml:"baseURL"`
	APIKeyEnv    string `yaml:"apiKeyEnv"`
	APISecretEnv string `yaml:"apiSecretEnv"`
}

// TFIAccountConfig declares one traditional finance account with its last
// statement value in USD.
type TFIAccountConfig struct {
	ID             string  `yaml:"id"`
	Name           string  `yaml:"name"`
	Type           string  `yaml:"type"`
	StatementValue float64 `yaml:"statementValue"`
}

// AccountConfig declares one account in the static account list.
type AccountConfig struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	Chain     string `yaml:"chain"`
	PublicKey string `yaml:"publicKey"`
	Status    string `yaml:"status"`
	Platform  string `yaml:"platform"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server      ServerConfig                `yaml:"server"`
	Logging     LoggingConfig               `yaml:"logging"`
	Performance PerformanceConfig           `yaml:"performance"`
	Cache       CacheConfig                 `yaml:"cache"`
	RateLimit   RateLimitConfig             `yaml:"rateLimit"`
	Retry       RetryConfig                 `yaml:"retry"`
	Fetch       FetchConfig                 `yaml:"fetch"`
	DEXScreener DEXScreenerConfig           `yaml:"dexScreener"`
	CoinGecko   CoinGeckoConfig             `yaml:"coinGecko"`
	Networks    []EVMNetworkConfig          `yaml:"networks"`
	Sources     map[string]RESTSourceConfig `yaml:"sources"`
	Exchanges   map[string]ExchangeConfig   `yaml:"exchanges"`
	TFIAccounts []TFIAccountConfig          `yaml:"tfiAccounts"`
	Accounts    []AccountConfig             `yaml:"accounts"`
	WalletsFile string                      `yaml:"walletsFile"`
	KeepZero    []string                    `yaml:"keepZeroAssets"`
}

// Load reads the YAML configuration file from the given path, unmarshals it
// and applies defaults.
func Load(path string) (*Config, error) {
	logrus.Infof("Loading configuration from path: %s", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config data from %s: %w", path, err)
	}

	applyDefaults(&cfg)

	for _, network := range cfg.Networks {
		if network.Identifier == "" || network.PrimaryRPCURL == "" {
			return nil, fmt.Errorf("network entry missing identifier or primaryRpcUrl (name=%q)", network.Name)
		}
		if network.DEXScreenerChainID == "" {
			logrus.Warnf("Network %q is missing dexScreenerChainId; token prices for it will be zero", network.Identifier)
		}
	}

	logrus.Info("Configuration loaded successfully.")
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
	if cfg.Performance.MaxConcurrentRoutines <= 0 {
		cfg.Performance.MaxConcurrentRoutines = 10
	}
	if cfg.Performance.RPCCallTimeoutSeconds <= 0 {
		cfg.Performance.RPCCallTimeoutSeconds = 10
	}

	if cfg.Cache.NamespaceBudgetBytes <= 0 {
		cfg.Cache.NamespaceBudgetBytes = 1 << 20
	}
	if cfg.Cache.MaxEntryAgeMinutes <= 0 {
		cfg.Cache.MaxEntryAgeMinutes = 60
	}
	if cfg.Cache.SweepIntervalMinutes <= 0 {
		cfg.Cache.SweepIntervalMinutes = 5
	}

	if cfg.RateLimit.MaxRequests <= 0 {
		cfg.RateLimit.MaxRequests = 10
	}
	if cfg.RateLimit.WindowMs <= 0 {
		cfg.RateLimit.WindowMs = 1000
	}

	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.BaseDelayMs <= 0 {
		cfg.Retry.BaseDelayMs = 500
	}

	if cfg.Fetch.DebounceMs <= 0 {
		cfg.Fetch.DebounceMs = 1000
	}
	if cfg.Fetch.MinRefreshSeconds <= 0 {
		cfg.Fetch.MinRefreshSeconds = 60
	}
	if cfg.Fetch.RequestTimeoutSeconds <= 0 {
		cfg.Fetch.RequestTimeoutSeconds = 30
	}
	if cfg.Fetch.PriceTTLMinutes <= 0 {
		cfg.Fetch.PriceTTLMinutes = 5
	}

	if cfg.DEXScreener.BaseURL == "" {
		cfg.DEXScreener.BaseURL = "https://api.dexscreener.com"
	}
	if cfg.DEXScreener.RequestTimeoutMillis <= 0 {
		cfg.DEXScreener.RequestTimeoutMillis = 10000
	}
	if cfg.DEXScreener.MaxTokensPerBatchRequest <= 0 {
		cfg.DEXScreener.MaxTokensPerBatchRequest = 30
	}

	if cfg.CoinGecko.BaseURL == "" {
		cfg.CoinGecko.BaseURL = "https://api.coingecko.com/api/v3"
	}

	if cfg.WalletsFile == "" {
		cfg.WalletsFile = "data/wallets.txt"
	}
}
