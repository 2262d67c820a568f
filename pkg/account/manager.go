// Package account creates key pairs from mnemonics or raw keys and signs
// transfers. It never touches the network and never persists key material.
package account

import (
	"crypto/ecdsa"
	"math/big"
	"strings"

	"ethwallet/pkg/models"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip39"
	"go.uber.org/zap"
)

// DerivationPath is m/44'/60'/0'/0/0, the first Ethereum account.
var DerivationPath = []uint32{
	hdkeychain.HardenedKeyStart + 44,
	hdkeychain.HardenedKeyStart + 60,
	hdkeychain.HardenedKeyStart + 0,
	0,
	0,
}

// Account is an address together with the key that controls it.
type Account struct {
	address common.Address
	key     *ecdsa.PrivateKey
}

// Address returns the EIP-55 checksummed address.
func (a *Account) Address() string {
	return a.address.Hex()
}

func (a *Account) CommonAddress() common.Address {
	return a.address
}

// TransferIntent describes a plain value transfer to be signed.
type TransferIntent struct {
	ChainID   int64
	Nonce     uint64
	To        common.Address
	ValueWei  *big.Int
	GasLimit  uint64
	GasTipCap *big.Int
	GasFeeCap *big.Int
}

// SignedTransaction is the signed form of a TransferIntent.
type SignedTransaction struct {
	Tx  *types.Transaction
	Raw []byte
}

func (s SignedTransaction) Hash() string {
	return s.Tx.Hash().Hex()
}

type Manager struct {
	logger *zap.Logger
}

func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{logger: logger}
}

// NormalizeMnemonic lowercases the phrase and collapses whitespace.
func NormalizeMnemonic(phrase string) string {
	return strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
}

// ImportFromMnemonic derives the first Ethereum account of a BIP-39 phrase.
func (m *Manager) ImportFromMnemonic(phrase string) (*Account, error) {
	phrase = NormalizeMnemonic(phrase)
	if !bip39.IsMnemonicValid(phrase) {
		return nil, errors.Wrap(models.ErrInvalidCredential, "mnemonic failed word list or checksum validation")
	}
	seed, err := bip39.NewSeedWithErrorChecking(phrase, "")
	if err != nil {
		return nil, errors.Wrap(models.ErrInvalidCredential, err.Error())
	}

	key, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, errors.Wrap(err, "master key")
	}
	for _, idx := range DerivationPath {
		key, err = key.Derive(idx)
		if err != nil {
			return nil, errors.Wrap(err, "derive key")
		}
	}
	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, errors.Wrap(err, "private key")
	}
	ecKey, err := crypto.ToECDSA(priv.Serialize())
	if err != nil {
		return nil, errors.Wrap(err, "convert key")
	}

	acc := newAccount(ecKey)
	m.logger.Info("account imported", zap.String("method", "mnemonic"), zap.String("address", acc.Address()))
	return acc, nil
}

// ImportFromPrivateKey accepts a 32-byte hex key with or without 0x prefix.
func (m *Manager) ImportFromPrivateKey(hexKey string) (*Account, error) {
	hexKey = strings.TrimSpace(hexKey)
	hexKey = strings.TrimPrefix(strings.TrimPrefix(hexKey, "0x"), "0X")
	if len(hexKey) != 64 {
		return nil, errors.Wrap(models.ErrInvalidCredential, "private key must be 32 bytes of hex")
	}
	ecKey, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, errors.Wrap(models.ErrInvalidCredential, err.Error())
	}

	acc := newAccount(ecKey)
	m.logger.Info("account imported", zap.String("method", "private_key"), zap.String("address", acc.Address()))
	return acc, nil
}

// GenerateNew creates a fresh 12-word mnemonic and its account. The phrase is
// returned once and kept nowhere else.
func (m *Manager) GenerateNew() (*Account, string, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return nil, "", errors.Wrap(err, "entropy")
	}
	phrase, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, "", errors.Wrap(err, "mnemonic")
	}
	acc, err := m.ImportFromMnemonic(phrase)
	if err != nil {
		return nil, "", err
	}
	return acc, phrase, nil
}

// Sign signs intent with the account key. Signing is deterministic (RFC 6979),
// so the same account and intent always yield the same bytes.
func (m *Manager) Sign(acc *Account, intent TransferIntent) (SignedTransaction, error) {
	if acc == nil || acc.key == nil {
		return SignedTransaction{}, errors.Wrap(models.ErrInvalidInput, "no account to sign with")
	}
	if intent.ValueWei == nil || intent.GasFeeCap == nil || intent.GasTipCap == nil {
		return SignedTransaction{}, errors.Wrap(models.ErrInvalidInput, "incomplete transfer intent")
	}

	chainID := big.NewInt(intent.ChainID)
	to := intent.To
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     intent.Nonce,
		GasTipCap: intent.GasTipCap,
		GasFeeCap: intent.GasFeeCap,
		Gas:       intent.GasLimit,
		To:        &to,
		Value:     intent.ValueWei,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), acc.key)
	if err != nil {
		return SignedTransaction{}, errors.Wrap(err, "sign transaction")
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return SignedTransaction{}, errors.Wrap(err, "encode transaction")
	}
	return SignedTransaction{Tx: signed, Raw: raw}, nil
}

func newAccount(key *ecdsa.PrivateKey) *Account {
	return &Account{address: crypto.PubkeyToAddress(key.PublicKey), key: key}
}
