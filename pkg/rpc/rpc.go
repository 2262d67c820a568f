package rpc

import (
	"context"
	"math/big"
	"time"

	"ethwallet/pkg/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
)

// ErrChainMismatch is returned when a provider serves a different chain than expected.
var ErrChainMismatch = errors.New("provider chain id does not match network")

// Provider is the part of a JSON-RPC node the wallet needs.
type Provider interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	Close()
}

// Dialer opens a Provider for an RPC URL.
type Dialer func(ctx context.Context, rpcURL string) (Provider, error)

// Dial connects with go-ethereum's ethclient.
func Dial(ctx context.Context, rpcURL string) (Provider, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", rpcURL)
	}
	return client, nil
}

// VerifyChain checks that p serves the expected chain id.
func VerifyChain(ctx context.Context, p Provider, expected int64) error {
	id, err := p.ChainID(ctx)
	if err != nil {
		return errors.Wrap(err, "chain id")
	}
	if id.Cmp(big.NewInt(expected)) != 0 {
		return errors.Wrapf(ErrChainMismatch, "expected %d, got %s", expected, id)
	}
	return nil
}

// FetchBalance dials the network's provider, verifies its chain id and reads
// the latest balance of address.
func FetchBalance(ctx context.Context, dial Dialer, network models.NetworkDescriptor, address string) (*big.Int, error) {
	client, err := dial(ctx, network.RPCURL)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	if err := VerifyChain(ctx, client, network.ChainID); err != nil {
		return nil, err
	}
	balance, err := client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, errors.Wrap(err, "balance")
	}
	return balance, nil
}

// ProbeChainID returns the chain id reported by rpcURL.
func ProbeChainID(ctx context.Context, dial Dialer, rpcURL string) (int64, error) {
	client, err := dial(ctx, rpcURL)
	if err != nil {
		return 0, err
	}
	defer client.Close()

	id, err := client.ChainID(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "chain id")
	}
	return id.Int64(), nil
}

// FetchGasPrice fetches the current gas price.
func FetchGasPrice(ctx context.Context, dial Dialer, network models.NetworkDescriptor) (models.GasPriceData, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := dial(ctx, network.RPCURL)
	if err != nil {
		return models.GasPriceData{Network: network.ID, Err: err}, err
	}
	defer client.Close()

	price, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return models.GasPriceData{Network: network.ID, Err: err}, err
	}
	return models.GasPriceData{Network: network.ID, Price: price}, nil
}

// FetchRPCLatency pings an RPC URL to measure latency.
func FetchRPCLatency(ctx context.Context, dial Dialer, rpcURL string) (models.RPCLatencyData, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client, err := dial(ctx, rpcURL)
	if err != nil {
		return models.RPCLatencyData{RPCURL: rpcURL, Err: err}, err
	}
	defer client.Close()

	if _, err := client.BlockNumber(ctx); err != nil {
		return models.RPCLatencyData{RPCURL: rpcURL, Err: err}, err
	}
	return models.RPCLatencyData{RPCURL: rpcURL, Latency: time.Since(start)}, nil
}
