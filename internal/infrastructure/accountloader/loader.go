package accountloader

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"portfolio_dashboard/internal/app/port"
	"portfolio_dashboard/internal/domain/entity"
	"portfolio_dashboard/internal/infrastructure/configloader"
)

// Loader implements port.AccountProvider from the static configuration plus
// an optional wallets file. The list is assembled once; accounts are never
// added or removed afterwards.
type Loader struct {
	accounts []entity.Account
	logger   port.Logger
}

// New builds the account list from the config's accounts, TFI accounts and
// the wallets file. Accounts without an explicit ID get a generated one.
func New(cfg *configloader.Config, logger port.Logger) (port.AccountProvider, error) {
	l := &Loader{logger: logger}

	for _, ac := range cfg.Accounts {
		acc, err := fromAccountConfig(ac)
		if err != nil {
			return nil, err
		}
		l.accounts = append(l.accounts, acc)
	}

	for _, tc := range cfg.TFIAccounts {
		accType := entity.AccountType(tc.Type)
		if accType == "" {
			accType = entity.AccountBank
		}
		id := tc.ID
		if id == "" {
			id = uuid.NewString()
		}
		l.accounts = append(l.accounts, entity.Account{
			ID:     id,
			Name:   tc.Name,
			Type:   accType,
			Source: "tfi",
		})
	}

	if cfg.WalletsFile != "" {
		wallets, err := l.loadWalletsFile(cfg.WalletsFile)
		if err != nil {
			return nil, err
		}
		l.accounts = append(l.accounts, wallets...)
	}

	seen := make(map[string]struct{}, len(l.accounts))
	for _, acc := range l.accounts {
		if _, dup := seen[acc.ID]; dup {
			return nil, fmt.Errorf("duplicate account id %q", acc.ID)
		}
		seen[acc.ID] = struct{}{}
	}

	logger.Info("Accounts loaded", "count", len(l.accounts))
	return l, nil
}

// GetAccounts implements port.AccountProvider.
func (l *Loader) GetAccounts() ([]entity.Account, error) {
	return append([]entity.Account(nil), l.accounts...), nil
}

// GetAccountByID implements port.AccountProvider.
func (l *Loader) GetAccountByID(id string) (*entity.Account, error) {
	for _, acc := range l.accounts {
		if acc.ID == id {
			found := acc
			return &found, nil
		}
	}
	return nil, fmt.Errorf("account with id %s not found", id)
}

func fromAccountConfig(ac configloader.AccountConfig) (entity.Account, error) {
	accType := entity.AccountType(ac.Type)
	acc := entity.Account{
		ID:        ac.ID,
		Name:      ac.Name,
		Type:      accType,
		Chain:     strings.ToLower(ac.Chain),
		PublicKey: ac.PublicKey,
		Status:    entity.WalletStatus(ac.Status),
		Platform:  strings.ToLower(ac.Platform),
	}
	if acc.ID == "" {
		acc.ID = uuid.NewString()
	}

	switch accType {
	case entity.AccountWallet:
		if acc.Chain == "" || acc.PublicKey == "" {
			return entity.Account{}, fmt.Errorf("wallet account %s needs chain and publicKey", acc.ID)
		}
		acc.Source = acc.Chain
	case entity.AccountCEX:
		if acc.Platform == "" {
			return entity.Account{}, fmt.Errorf("cex account %s needs a platform", acc.ID)
		}
		acc.Source = acc.Platform
	case entity.AccountBank, entity.AccountBroker, entity.AccountCredit, entity.AccountDebit:
		acc.Source = "tfi"
	default:
		return entity.Account{}, fmt.Errorf("account %s has unknown type %q", acc.ID, ac.Type)
	}
	return acc, nil
}

// loadWalletsFile reads extra wallet addresses, one per line in the form
// "<chain> <address> [name]". Bare 0x addresses default to ethereum. Blank
// lines and # comments are skipped, malformed lines are logged and skipped.
func (l *Loader) loadWalletsFile(path string) ([]entity.Account, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.Debug("Wallets file not present, skipping", "path", path)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open wallets file %s: %w", path, err)
	}
	defer file.Close()

	var accounts []entity.Account
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		chain, address := "ethereum", fields[0]
		name := ""
		if len(fields) >= 2 && !strings.HasPrefix(fields[0], "0x") {
			chain, address = strings.ToLower(fields[0]), fields[1]
			name = strings.Join(fields[2:], " ")
		} else if len(fields) >= 2 {
			name = strings.Join(fields[1:], " ")
		}
		if address == "" || (chain == "ethereum" && !(strings.HasPrefix(address, "0x") && len(address) == 42)) {
			l.logger.Warn("Skipping invalid wallet line", "path", path, "line_number", lineNum, "line", line)
			continue
		}
		if name == "" {
			name = shortAddress(address)
		}

		accounts = append(accounts, entity.Account{
			ID:        uuid.NewString(),
			Name:      name,
			Type:      entity.AccountWallet,
			Chain:     chain,
			PublicKey: address,
			Status:    entity.WalletActive,
			Source:    chain,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning wallets file %s: %w", path, err)
	}

	l.logger.Info("Wallets loaded from file", "count", len(accounts), "path", path)
	return accounts, nil
}

func shortAddress(address string) string {
	if len(address) <= 12 {
		return address
	}
	return address[:6] + "…" + address[len(address)-4:]
}
