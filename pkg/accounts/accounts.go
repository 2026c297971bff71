// Package accounts derives the funded development accounts of a chain from its
// mnemonic, following BIP-39 seed generation and BIP-32 key derivation along the
// Ethereum path m/44'/60'/0'/0/i.
package accounts

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/text/unicode/norm"
)

const hardened = hdkeychain.HardenedKeyStart

// BasePath is the derivation path prefix of every account; the account index is appended.
var BasePath = []uint32{44 + hardened, 60 + hardened, 0 + hardened, 0}

// ErrInvalidMnemonic reports a phrase with an unknown word, a bad length or a failing
// checksum.
var ErrInvalidMnemonic = errors.New("invalid mnemonic")

// Account is a derived development account.
type Account struct {
	Index      int
	Address    common.Address
	PrivateKey *ecdsa.PrivateKey
}

// PrivateKeyHex returns the account key as 0x-prefixed hex.
func (a Account) PrivateKeyHex() string {
	return "0x" + common.Bytes2Hex(crypto.FromECDSA(a.PrivateKey))
}

// Set is an ordered list of derived accounts.
type Set []Account

// Derive returns the first n accounts of mnemonic.
func Derive(mnemonic string, n int) (Set, error) {
	if n < 0 {
		return nil, fmt.Errorf("account count must not be negative: %d", n)
	}
	seed, err := Seed(mnemonic, "")
	if err != nil {
		return nil, err
	}
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("creating master key: %w", err)
	}
	parent, err := derivePath(master, BasePath)
	if err != nil {
		return nil, err
	}

	out := make(Set, 0, n)
	for i := 0; i < n; i++ {
		key, err := privateKey(parent, uint32(i))
		if err != nil {
			return nil, fmt.Errorf("deriving account %d: %w", i, err)
		}
		out = append(out, Account{
			Index:      i,
			Address:    crypto.PubkeyToAddress(key.PublicKey),
			PrivateKey: key,
		})
	}
	return out, nil
}

// Addresses returns the account addresses in order.
func (s Set) Addresses() []common.Address {
	out := make([]common.Address, len(s))
	for i, a := range s {
		out[i] = a.Address
	}
	return out
}

// Seed returns the BIP-39 seed of mnemonic protected by passphrase. Words may be
// separated by any whitespace.
func Seed(mnemonic, passphrase string) ([]byte, error) {
	phrase := norm.NFKD.String(strings.Join(strings.Fields(mnemonic), " "))
	seed, err := bip39.NewSeedWithErrorChecking(phrase, norm.NFKD.String(passphrase))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMnemonic, err)
	}
	return seed, nil
}

func derivePath(k *hdkeychain.ExtendedKey, path []uint32) (*hdkeychain.ExtendedKey, error) {
	for _, idx := range path {
		next, err := k.Derive(idx)
		if err != nil {
			return nil, fmt.Errorf("deriving path index %d: %w", idx, err)
		}
		k = next
	}
	return k, nil
}

func privateKey(parent *hdkeychain.ExtendedKey, idx uint32) (*ecdsa.PrivateKey, error) {
	child, err := parent.Derive(idx)
	if err != nil {
		return nil, err
	}
	priv, err := child.ECPrivKey()
	if err != nil {
		return nil, err
	}
	// re-parse on the go-ethereum curve so signing and address derivation agree
	return crypto.ToECDSA(priv.Serialize())
}
