package configloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: "debug"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	// Listen address form, usable directly as http.Server.Addr.
	require.Equal(t, ":8080", cfg.Server.Port)
	require.Equal(t, int64(1000), cfg.Fetch.DebounceMs)
	require.Equal(t, 60, cfg.Fetch.MinRefreshSeconds)
	require.Equal(t, 30, cfg.Fetch.RequestTimeoutSeconds)
	require.Equal(t, 5, cfg.Fetch.PriceTTLMinutes)
	require.Equal(t, 3, cfg.Retry.MaxAttempts)
	require.Equal(t, int64(500), cfg.Retry.BaseDelayMs)
	require.Equal(t, 10, cfg.RateLimit.MaxRequests)
	require.Equal(t, int64(1<<20), cfg.Cache.NamespaceBudgetBytes)
	require.Equal(t, 60, cfg.Cache.MaxEntryAgeMinutes)
	require.Equal(t, "data/wallets.txt", cfg.WalletsFile)
}

func TestLoadParsesFullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  port: ":8080"
rateLimit:
  maxRequests: 5
  windowMs: 2000
  perSource:
    kraken:
      maxRequests: 2
      windowMs: 1000
networks:
  - identifier: "ethereum"
    chainID: 1
    nativeSymbol: "ETH"
    primaryRpcUrl: "https://rpc.example"
    tokens:
      - address: "0xabc"
        symbol: "USDC"
        decimals: 6
sources:
  solana:
    endpoint: "https://rpc.solana.example"
exchanges:
  kraken:
    apiKeyEnv: "KRAKEN_API_KEY"
    apiSecretEnv: "KRAKEN_API_SECRET"
tfiAccounts:
  - id: "ira"
    name: "Retirement"
    type: "broker"
    statementValue: 31000.5
keepZeroAssets:
  - "bitcoin:BTC"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 5, cfg.RateLimit.MaxRequests)
	require.Equal(t, 2, cfg.RateLimit.PerSource["kraken"].MaxRequests)
	require.Len(t, cfg.Networks, 1)
	require.Equal(t, uint64(1), cfg.Networks[0].ChainID)
	require.Equal(t, uint8(6), cfg.Networks[0].Tokens[0].Decimals)
	require.Equal(t, "https://rpc.solana.example", cfg.Sources["solana"].Endpoint)
	require.Equal(t, "KRAKEN_API_KEY", cfg.Exchanges["kraken"].APIKeyEnv)
	require.Equal(t, 31000.5, cfg.TFIAccounts[0].StatementValue)
	require.Equal(t, []string{"bitcoin:BTC"}, cfg.KeepZero)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not: a: mapping")
	_, err := Load(path)
	require.Error(t, err)
}
