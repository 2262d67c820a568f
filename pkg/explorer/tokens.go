package explorer

import (
	"math/big"
	"sort"
	"strconv"
	"strings"

	"ethwallet/pkg/models"
)

// TokenTransfer is one entry of the tokentx action.
type TokenTransfer struct {
	ContractAddress string `json:"contractAddress"`
	From            string `json:"from"`
	To              string `json:"to"`
	Value           string `json:"value"`
	TokenName       string `json:"tokenName"`
	TokenSymbol     string `json:"tokenSymbol"`
	TokenDecimal    string `json:"tokenDecimal"`
}

// AggregateTokenTransfers sums incoming minus outgoing transfers per contract.
// It does not consult the chain, so it is only as good as the transfer log.
// Contracts with a zero or negative net are omitted.
func AggregateTokenTransfers(address string, transfers []TokenTransfer) []models.TokenHolding {
	owner := strings.ToLower(address)
	holdings := make(map[string]*models.TokenHolding)
	var order []string

	for _, t := range transfers {
		value, ok := new(big.Int).SetString(t.Value, 10)
		if !ok {
			continue
		}
		contract := strings.ToLower(t.ContractAddress)
		h, seen := holdings[contract]
		if !seen {
			decimals, _ := strconv.Atoi(t.TokenDecimal)
			h = &models.TokenHolding{
				Contract: contract,
				Symbol:   t.TokenSymbol,
				Name:     t.TokenName,
				Decimals: decimals,
				Balance:  new(big.Int),
			}
			holdings[contract] = h
			order = append(order, contract)
		}
		if strings.ToLower(t.To) == owner {
			h.Balance.Add(h.Balance, value)
		}
		if strings.ToLower(t.From) == owner {
			h.Balance.Sub(h.Balance, value)
		}
	}

	out := make([]models.TokenHolding, 0, len(order))
	for _, c := range order {
		if holdings[c].Balance.Sign() > 0 {
			out = append(out, *holdings[c])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
