package vault_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"frizo/isolation_vaults/internal/chain"
	"frizo/isolation_vaults/internal/config"
	"frizo/isolation_vaults/internal/logger"
	"frizo/isolation_vaults/internal/margin"
	"frizo/isolation_vaults/internal/num"
	"frizo/isolation_vaults/internal/system"
	"frizo/isolation_vaults/internal/vault"
)

var (
	alice  = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob    = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	lender = common.HexToAddress("0x000000000000000000000000000000000000f00d")
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func newSystem(t *testing.T, variant string, opts ...func(*config.VaultConfig)) *system.System {
	t.Helper()
	cfg := config.Default()
	cfg.Vault.Variant = variant
	for _, opt := range opts {
		opt(&cfg.Vault)
	}
	sys, err := system.New(cfg, logger.Discard())
	require.NoError(t, err)
	return sys
}

// openVault funds account with amount of the underlying and deposits all of
// it into account 0 of a new vault.
func openVault(t *testing.T, sys *system.System, account common.Address, amount uint64) *vault.Proxy {
	t.Helper()
	require.NoError(t, sys.Fund(account, amount))
	proxy, err := sys.CreateVault(account)
	require.NoError(t, err)
	require.NoError(t, sys.Chain.Transact(account, func(call *chain.Call) error {
		if err := sys.Underlying.Approve(call, proxy.Address(), u(amount)); err != nil {
			return err
		}
		return proxy.DepositIntoVaultForDolomiteMargin(call, vault.DefaultAccountNumber, u(amount))
	}))
	return proxy
}

// depositOther puts amount of symbol into account 0 of the vault via the
// owner's wallet.
func depositOther(t *testing.T, sys *system.System, proxy *vault.Proxy, symbol string, amount uint64) {
	t.Helper()
	owner := proxy.Owner()
	require.NoError(t, sys.FundOther(symbol, owner, amount))
	require.NoError(t, sys.Chain.Transact(owner, func(call *chain.Call) error {
		if err := sys.Others[symbol].Approve(call, sys.Factory.Address(), u(amount)); err != nil {
			return err
		}
		return proxy.DepositOtherTokenIntoDolomiteMarginForVaultOwner(call, vault.DefaultAccountNumber, sys.Markets[symbol], u(amount))
	}))
}

// supplyLiquidity gives the margin engine amount of symbol to lend.
func supplyLiquidity(t *testing.T, sys *system.System, symbol string, amount uint64) {
	t.Helper()
	require.NoError(t, sys.FundOther(symbol, lender, amount))
	require.NoError(t, sys.Chain.Transact(lender, func(call *chain.Call) error {
		if err := sys.Others[symbol].Approve(call, sys.Engine.Address(), u(amount)); err != nil {
			return err
		}
		return sys.Engine.Operate(call, []margin.AccountInfo{{Owner: lender}}, []margin.Action{{
			Type:            margin.Deposit,
			PrimaryMarketID: sys.Markets[symbol],
			OtherAddress:    lender,
			Amount:          u(amount),
		}})
	}))
}

func owner(sys *system.System, proxy *vault.Proxy, fn func(call *chain.Call) error) error {
	return sys.Chain.Transact(proxy.Owner(), fn)
}

func balance(sys *system.System, proxy *vault.Proxy, accountNumber, marketID uint64) num.Wei {
	return sys.Engine.Balance(proxy.Account(accountNumber), marketID)
}

func wei(v int64) num.Wei {
	if v < 0 {
		return num.NegWei(uint256.NewInt(uint64(-v)))
	}
	return num.NewWei(uint256.NewInt(uint64(v)))
}
