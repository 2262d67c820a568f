package models

import (
	"encoding/json"
	"math/big"
	"time"
)

// NetworkID identifies a network in the catalog.
type NetworkID string

const (
	Mainnet NetworkID = "mainnet"
	Sepolia NetworkID = "sepolia"
)

// NetworkDescriptor holds the static endpoints of a single network.
type NetworkDescriptor struct {
	ID              NetworkID `json:"id" yaml:"id"`
	DisplayName     string    `json:"display_name" yaml:"display_name"`
	ChainID         int64     `json:"chain_id" yaml:"chain_id"`
	RPCURL          string    `json:"rpc_url" yaml:"rpc_url"`
	ExplorerBaseURL string    `json:"explorer_url" yaml:"explorer_url"`
	Symbol          string    `json:"symbol,omitempty" yaml:"symbol,omitempty"`
}

// BalanceSource tells where a balance figure came from.
type BalanceSource string

const (
	SourceProvider BalanceSource = "provider"
	SourceExplorer BalanceSource = "explorer"
	SourceNone     BalanceSource = "none"
)

// BalanceQueryResult is the balance of an address on one network.
type BalanceQueryResult struct {
	NetworkID  NetworkID     `json:"network_id"`
	BalanceWei *big.Int      `json:"balance_wei"`
	Source     BalanceSource `json:"source"`
	ObtainedAt time.Time     `json:"obtained_at"`
}

// TransactionRecord is a single entry of the explorer history.
type TransactionRecord struct {
	Hash      string    `json:"hash"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	ValueWei  *big.Int  `json:"value_wei"`
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	Network   NetworkID `json:"network"`
}

// Status is the verdict of a reconciliation run.
type Status string

const (
	StatusOK          Status = "ok"
	StatusRateLimited Status = "rate_limited"
	StatusNotFound    Status = "not_found"
	StatusError       Status = "error"
)

// Outcome is the reconciled view of an address across the catalog.
// Network is non-nil only when Status is StatusOK.
type Outcome struct {
	Status        Status              `json:"status"`
	Network       *NetworkDescriptor  `json:"network,omitempty"`
	Balance       BalanceQueryResult  `json:"balance"`
	Transactions  []TransactionRecord `json:"transactions"`
	ActivityCount int                 `json:"activity_count"`
	Diagnostic    json.RawMessage     `json:"diagnostic,omitempty"`
	Message       string              `json:"message"`
}

// Prediction is the structured summary extracted from an AI answer.
type Prediction struct {
	Predicted24h float64 `json:"predicted_24h"`
	Predicted7d  float64 `json:"predicted_7d"`
	Confidence   float64 `json:"confidence"`
	Method       string  `json:"method"`
}

// PricePoint is one sample of the price history.
type PricePoint struct {
	Time time.Time `json:"time"`
	USD  float64   `json:"usd"`
}

// PriceHistory contains the market chart used by the dashboard.
type PriceHistory struct {
	Prices       []PricePoint `json:"prices"`
	CurrentPrice float64      `json:"current_price"`
	Source       string       `json:"source"`
}

// TokenHolding is a naive per-contract aggregation of token transfers.
type TokenHolding struct {
	Contract string   `json:"contract"`
	Symbol   string   `json:"symbol"`
	Name     string   `json:"name"`
	Decimals int      `json:"decimals"`
	Balance  *big.Int `json:"balance"`
}

// GasPriceData contains the current gas price.
type GasPriceData struct {
	Network NetworkID
	Price   *big.Int
	Err     error
}

// RPCLatencyData contains the result of a latency check.
type RPCLatencyData struct {
	RPCURL  string
	Latency time.Duration
	Err     error
}

// NetworkCheck holds check results for a single network.
type NetworkCheck struct {
	ID              NetworkID `json:"id"`
	RPCURL          string    `json:"rpc_url"`
	Status          string    `json:"status"` // "ok" or "error"
	ConfigChainID   int64     `json:"config_chain_id"`
	ObservedChainID int64     `json:"observed_chain_id,omitempty"`
	LatencyMs       int64     `json:"latency_ms,omitempty"`
	Mismatch        bool      `json:"mismatch"`
	ChainIDUpdated  bool      `json:"chain_id_updated"`
	Error           string    `json:"error,omitempty"`
}

// CheckReport holds the results of the configuration check.
type CheckReport struct {
	ConfigPath       string         `json:"config_path"`
	ValidStructure   bool           `json:"valid_structure"`
	StructureErrors  []string       `json:"structure_errors,omitempty"`
	Networks         []NetworkCheck `json:"networks,omitempty"`
	MismatchNetworks []NetworkID    `json:"mismatch_networks,omitempty"`
	ConfigUpdated    bool           `json:"config_updated"`
	SaveError        string         `json:"save_error,omitempty"`
	DryRun           bool           `json:"dry_run"`
}
