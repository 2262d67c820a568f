// Package submit signs and broadcasts plain ETH transfers. Submission is never
// retried: a failure is reported and the user decides what to do.
package submit

import (
	"context"
	"math/big"
	"strings"
	"time"

	"ethwallet/pkg/account"
	"ethwallet/pkg/models"
	"ethwallet/pkg/network"
	"ethwallet/pkg/rpc"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	TransferGasLimit = 21000
	etherDecimals    = 18
)

// SubmissionError carries the node's message verbatim.
type SubmissionError struct {
	Network models.NetworkID
	Err     error
}

func (e *SubmissionError) Error() string { return e.Err.Error() }

func (e *SubmissionError) Unwrap() error { return e.Err }

func (e *SubmissionError) Is(target error) bool { return target == models.ErrSubmissionFailed }

type Submitter struct {
	accounts *account.Manager
	catalog  *network.Catalog
	dial     rpc.Dialer
	timeout  time.Duration
	logger   *zap.Logger
}

func New(accounts *account.Manager, catalog *network.Catalog, dial rpc.Dialer, logger *zap.Logger) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{accounts: accounts, catalog: catalog, dial: dial, timeout: 30 * time.Second, logger: logger}
}

// Send transfers amountEth from acc to the recipient on networkID and returns
// the transaction hash once the node accepts it.
func (s *Submitter) Send(ctx context.Context, acc *account.Account, networkID models.NetworkID, to, amountEth string) (string, error) {
	recipient, err := ValidateRecipient(to)
	if err != nil {
		return "", err
	}
	value, err := ParseAmount(amountEth)
	if err != nil {
		return "", err
	}
	if acc == nil {
		return "", errors.Wrap(models.ErrInvalidInput, "no account loaded")
	}
	n, err := s.catalog.Resolve(networkID)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	log := s.logger.With(zap.String("network", string(n.ID)), zap.String("address", acc.Address()))

	hash, err := s.send(ctx, acc, n, recipient, value)
	if err != nil {
		log.Warn("transfer failed", zap.Error(err))
		return "", &SubmissionError{Network: n.ID, Err: err}
	}
	log.Info("transfer submitted", zap.String("hash", hash), zap.String("value_wei", value.String()))
	return hash, nil
}

func (s *Submitter) send(ctx context.Context, acc *account.Account, n models.NetworkDescriptor, to common.Address, value *big.Int) (string, error) {
	client, err := s.dial(ctx, n.RPCURL)
	if err != nil {
		return "", err
	}
	defer client.Close()

	if err := rpc.VerifyChain(ctx, client, n.ChainID); err != nil {
		return "", err
	}
	nonce, err := client.PendingNonceAt(ctx, acc.CommonAddress())
	if err != nil {
		return "", err
	}
	tip, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		return "", err
	}
	price, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return "", err
	}
	feeCap := new(big.Int).Mul(price, big.NewInt(2))
	if feeCap.Cmp(tip) < 0 {
		feeCap = new(big.Int).Set(tip)
	}

	signed, err := s.accounts.Sign(acc, account.TransferIntent{
		ChainID:   n.ChainID,
		Nonce:     nonce,
		To:        to,
		ValueWei:  value,
		GasLimit:  TransferGasLimit,
		GasTipCap: tip,
		GasFeeCap: feeCap,
	})
	if err != nil {
		return "", err
	}
	if err := client.SendTransaction(ctx, signed.Tx); err != nil {
		return "", err
	}
	return signed.Hash(), nil
}

// ValidateRecipient accepts a 20-byte hex address. Mixed-case input must carry
// a valid EIP-55 checksum.
func ValidateRecipient(to string) (common.Address, error) {
	to = strings.TrimSpace(to)
	if !strings.HasPrefix(to, "0x") || !common.IsHexAddress(to) {
		return common.Address{}, errors.Wrapf(models.ErrInvalidInput, "%q is not an address", to)
	}
	addr := common.HexToAddress(to)
	body := to[2:]
	if strings.ToLower(body) != body && strings.ToUpper(body) != body && addr.Hex() != to {
		return common.Address{}, errors.Wrapf(models.ErrInvalidInput, "%q has a bad checksum", to)
	}
	return addr, nil
}

// ParseAmount converts a decimal ETH amount into wei. It must be positive and
// have at most 18 fractional digits.
func ParseAmount(amountEth string) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amountEth))
	if err != nil {
		return nil, errors.Wrapf(models.ErrInvalidInput, "amount %q is not a number", amountEth)
	}
	if !d.IsPositive() {
		return nil, errors.Wrap(models.ErrInvalidInput, "amount must be positive")
	}
	wei := d.Shift(etherDecimals)
	if !wei.IsInteger() {
		return nil, errors.Wrap(models.ErrInvalidInput, "amount has more than 18 decimals")
	}
	return wei.BigInt(), nil
}
