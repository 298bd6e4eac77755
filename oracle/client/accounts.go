package client

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"

	"github.com/GPTx-global/flightsurety/oracle/types"
)

const derivationPathFormat = "m/44'/60'/0'/0/%d"

// Accounts holds the ordered signing accounts of a node's wallet.
type Accounts struct {
	addresses []common.Address
	keys      map[common.Address]*ecdsa.PrivateKey
}

// NewAccounts derives the first count accounts of the mnemonic's wallet.
func NewAccounts(mnemonic string, count int) (*Accounts, error) {
	wallet, err := hdwallet.NewFromMnemonic(mnemonic)
	if err != nil {
		return nil, errorsmod.Wrapf(types.ErrConfig, "invalid mnemonic: %v", err)
	}

	keys := make([]*ecdsa.PrivateKey, 0, count)
	for i := 0; i < count; i++ {
		path := hdwallet.MustParseDerivationPath(fmt.Sprintf(derivationPathFormat, i))
		account, err := wallet.Derive(path, false)
		if err != nil {
			return nil, fmt.Errorf("failed to derive account %d: %w", i, err)
		}

		key, err := wallet.PrivateKey(account)
		if err != nil {
			return nil, fmt.Errorf("failed to get private key %d: %w", i, err)
		}
		keys = append(keys, key)
	}

	return NewAccountsFromKeys(keys...), nil
}

func NewAccountsFromKeys(keys ...*ecdsa.PrivateKey) *Accounts {
	a := &Accounts{
		addresses: make([]common.Address, 0, len(keys)),
		keys:      make(map[common.Address]*ecdsa.PrivateKey, len(keys)),
	}

	for _, key := range keys {
		address := crypto.PubkeyToAddress(key.PublicKey)
		a.addresses = append(a.addresses, address)
		a.keys[address] = key
	}

	return a
}

func (a *Accounts) Len() int {
	return len(a.addresses)
}

func (a *Accounts) Addresses() []common.Address {
	return append([]common.Address(nil), a.addresses...)
}

func (a *Accounts) At(i int) (common.Address, error) {
	if i < 0 || i >= len(a.addresses) {
		return common.Address{}, errorsmod.Wrapf(types.ErrUnknownAccount, "account index %d out of range (%d accounts)", i, len(a.addresses))
	}

	return a.addresses[i], nil
}

// Range returns n consecutive accounts starting at from.
func (a *Accounts) Range(from, n int) ([]common.Address, error) {
	if from < 0 || n < 0 || from+n > len(a.addresses) {
		return nil, errorsmod.Wrapf(types.ErrUnknownAccount, "accounts %d..%d out of range (%d accounts)", from, from+n-1, len(a.addresses))
	}

	return append([]common.Address(nil), a.addresses[from:from+n]...), nil
}

// TransactOpts builds fresh signing options for account on chainID.
func (a *Accounts) TransactOpts(account common.Address, chainID *big.Int) (*bind.TransactOpts, error) {
	key, ok := a.keys[account]
	if !ok {
		return nil, errorsmod.Wrap(types.ErrUnknownAccount, account.Hex())
	}

	return bind.NewKeyedTransactorWithChainID(key, chainID)
}
