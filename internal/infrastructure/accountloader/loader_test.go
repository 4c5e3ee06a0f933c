package accountloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"portfolio_dashboard/internal/domain/entity"
	"portfolio_dashboard/internal/infrastructure/configloader"
	"portfolio_dashboard/internal/pkg/logger"
)

func writeWalletsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wallets.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSourceDerivation(t *testing.T) {
	cfg := &configloader.Config{
		Accounts: []configloader.AccountConfig{
			{ID: "w1", Name: "Hot", Type: "wallet", Chain: "Ethereum", PublicKey: "0xabc", Status: "active"},
			{ID: "c1", Name: "Kraken", Type: "cex", Platform: "Kraken"},
			{ID: "b1", Name: "Checking", Type: "bank"},
		},
	}
	p, err := New(cfg, logger.NewSlogAdapter())
	require.NoError(t, err)

	accounts, err := p.GetAccounts()
	require.NoError(t, err)
	require.Len(t, accounts, 3)

	byID := make(map[string]entity.Account)
	for _, a := range accounts {
		byID[a.ID] = a
	}
	require.Equal(t, "ethereum", byID["w1"].Source)
	require.Equal(t, "kraken", byID["c1"].Source)
	require.Equal(t, "tfi", byID["b1"].Source)

	require.Equal(t, entity.AccountWallet, byID["w1"].Type)
	require.Equal(t, entity.AccountCEX, byID["c1"].Type)
	require.Equal(t, entity.AccountBank, byID["b1"].Type)
}

func TestWalletsFileParsing(t *testing.T) {
	path := writeWalletsFile(t, `
# primary wallets
0x47ac0fb4f2d84898e4d9e7b4dab3c24507a6d503 Hot Wallet
base 0x47ac0fb4f2d84898e4d9e7b4dab3c24507a6d503
solana 5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1 Solana Main

0xdeadbeef
`)
	cfg := &configloader.Config{WalletsFile: path}
	p, err := New(cfg, logger.NewSlogAdapter())
	require.NoError(t, err)

	accounts, err := p.GetAccounts()
	require.NoError(t, err)
	require.Len(t, accounts, 3, "comments, blanks and malformed lines are skipped")

	require.Equal(t, "ethereum", accounts[0].Chain)
	require.Equal(t, "Hot Wallet", accounts[0].Name)
	require.Equal(t, "base", accounts[1].Chain)
	require.Equal(t, "solana", accounts[2].Chain)
	require.Equal(t, "Solana Main", accounts[2].Name)
	for _, a := range accounts {
		require.NotEmpty(t, a.ID, "generated ids")
		require.Equal(t, entity.AccountWallet, a.Type)
		require.Equal(t, a.Chain, a.Source)
	}
}

func TestMissingWalletsFileTolerated(t *testing.T) {
	cfg := &configloader.Config{WalletsFile: filepath.Join(t.TempDir(), "absent.txt")}
	p, err := New(cfg, logger.NewSlogAdapter())
	require.NoError(t, err)
	accounts, err := p.GetAccounts()
	require.NoError(t, err)
	require.Empty(t, accounts)
}

func TestDuplicateIDRejected(t *testing.T) {
	cfg := &configloader.Config{
		Accounts: []configloader.AccountConfig{
			{ID: "dup", Name: "A", Type: "bank"},
			{ID: "dup", Name: "B", Type: "bank"},
		},
	}
	_, err := New(cfg, logger.NewSlogAdapter())
	require.Error(t, err)
}

func TestWalletNeedsChainAndKey(t *testing.T) {
	cfg := &configloader.Config{
		Accounts: []configloader.AccountConfig{
			{ID: "w1", Name: "Broken", Type: "wallet"},
		},
	}
	_, err := New(cfg, logger.NewSlogAdapter())
	require.Error(t, err)
}

func TestTFIAccountsAppended(t *testing.T) {
	cfg := &configloader.Config{
		TFIAccounts: []configloader.TFIAccountConfig{
			{ID: "ira", Name: "Retirement", Type: "broker", StatementValue: 31000},
			{Name: "No ID", StatementValue: 100},
		},
	}
	p, err := New(cfg, logger.NewSlogAdapter())
	require.NoError(t, err)

	accounts, err := p.GetAccounts()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	require.Equal(t, entity.AccountBroker, accounts[0].Type)
	require.Equal(t, "tfi", accounts[0].Source)
	require.Equal(t, entity.AccountBank, accounts[1].Type, "type defaults to bank")
	require.NotEmpty(t, accounts[1].ID)

	got, err := p.GetAccountByID("ira")
	require.NoError(t, err)
	require.Equal(t, "Retirement", got.Name)

	_, err = p.GetAccountByID("ghost")
	require.Error(t, err)
}
