// Package explorer talks to an Etherscan-compatible block explorer API, either
// directly or through a proxy that selects the upstream by network id.
package explorer

import (
	"context"
	"encoding/json"
	"math/big"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"ethwallet/pkg/models"

	"github.com/pkg/errors"
)

const (
	ActionTxList  = "txlist"
	ActionBalance = "balance"
	ActionTokenTx = "tokentx"
)

// Getter is the retrying JSON fetch the client is built on.
type Getter interface {
	Get(ctx context.Context, url string) (json.RawMessage, error)
}

// Response is the common explorer envelope.
type Response struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// OK reports an explorer success ("1").
func (r Response) OK() bool { return r.Status == "1" }

// ResultString returns result when it is a JSON string.
func (r Response) ResultString() (string, bool) {
	var s string
	if len(r.Result) == 0 || json.Unmarshal(r.Result, &s) != nil {
		return "", false
	}
	return s, true
}

// InvalidAPIKey reports an upstream rejection of the configured key.
func (r Response) InvalidAPIKey() bool {
	s, ok := r.ResultString()
	return ok && strings.Contains(strings.ToLower(s), "invalid api key")
}

type Client struct {
	getter   Getter
	proxyURL string
	apiKey   string
}

// NewClient builds a client. When proxyURL is set every request goes to it with
// a network parameter; otherwise each network's own explorer URL is used.
func NewClient(g Getter, proxyURL, apiKey string) *Client {
	return &Client{getter: g, proxyURL: proxyURL, apiKey: apiKey}
}

// URL builds the request URL for an account action.
func (c *Client) URL(network models.NetworkDescriptor, action, address string) string {
	q := url.Values{}
	base := network.ExplorerBaseURL
	if c.proxyURL != "" {
		base = c.proxyURL
		q.Set("network", string(network.ID))
	}
	q.Set("module", "account")
	q.Set("action", action)
	q.Set("address", address)
	if action != ActionBalance {
		q.Set("sort", "desc")
	} else {
		q.Set("tag", "latest")
	}
	if c.apiKey != "" && c.proxyURL == "" {
		q.Set("apikey", c.apiKey)
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + q.Encode()
}

// TxList returns the raw txlist body so callers can keep it as a diagnostic.
func (c *Client) TxList(ctx context.Context, network models.NetworkDescriptor, address string) (json.RawMessage, error) {
	return c.getter.Get(ctx, c.URL(network, ActionTxList, address))
}

// Balance queries the explorer balance endpoint. A non-success envelope is an error.
func (c *Client) Balance(ctx context.Context, network models.NetworkDescriptor, address string) (*big.Int, error) {
	raw, err := c.getter.Get(ctx, c.URL(network, ActionBalance, address))
	if err != nil {
		return nil, err
	}
	resp, err := ParseResponse(raw)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, errors.Errorf("explorer balance for %s: %s", network.ID, resp.Message)
	}
	s, ok := resp.ResultString()
	if !ok {
		return nil, errors.New("explorer balance result is not a string")
	}
	wei, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.Errorf("explorer balance %q is not an integer", s)
	}
	return wei, nil
}

// TokenTransfers returns the ERC-20 transfer log of address.
func (c *Client) TokenTransfers(ctx context.Context, network models.NetworkDescriptor, address string) ([]TokenTransfer, error) {
	raw, err := c.getter.Get(ctx, c.URL(network, ActionTokenTx, address))
	if err != nil {
		return nil, err
	}
	resp, err := ParseResponse(raw)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		if resp.InvalidAPIKey() {
			return nil, errors.New("explorer rejected the API key")
		}
		return nil, nil
	}
	var transfers []TokenTransfer
	if err := json.Unmarshal(resp.Result, &transfers); err != nil {
		return nil, errors.Wrap(err, "decode token transfers")
	}
	return transfers, nil
}

func ParseResponse(raw json.RawMessage) (Response, error) {
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, errors.Wrap(err, "decode explorer response")
	}
	return resp, nil
}

type rawTx struct {
	Hash      string `json:"hash"`
	From      string `json:"from"`
	To        string `json:"to"`
	Value     string `json:"value"`
	TimeStamp string `json:"timeStamp"`
	IsError   string `json:"isError"`
}

// Transactions decodes a successful txlist result. The records come back
// sorted by timestamp, newest first.
func Transactions(resp Response, network models.NetworkID) ([]models.TransactionRecord, error) {
	if !resp.OK() {
		return nil, nil
	}
	var raws []rawTx
	if err := json.Unmarshal(resp.Result, &raws); err != nil {
		return nil, errors.Wrap(err, "decode transaction list")
	}
	records := make([]models.TransactionRecord, 0, len(raws))
	for _, r := range raws {
		value, ok := new(big.Int).SetString(r.Value, 10)
		if !ok {
			value = new(big.Int)
		}
		secs, err := strconv.ParseInt(r.TimeStamp, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "transaction %s timestamp", r.Hash)
		}
		records = append(records, models.TransactionRecord{
			Hash:      r.Hash,
			From:      r.From,
			To:        r.To,
			ValueWei:  value,
			Timestamp: time.Unix(secs, 0).UTC(),
			Success:   r.IsError != "1",
			Network:   network,
		})
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	return records, nil
}

// HasActivity is true for a success envelope with a non-empty array result.
func HasActivity(resp Response) bool {
	if !resp.OK() {
		return false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(resp.Result, &items); err != nil {
		return false
	}
	return len(items) > 0
}
