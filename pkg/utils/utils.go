package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

const etherDecimals = 18

func TruncateString(str string, num int) string {
	if len(str) <= num {
		return str
	}
	if num <= 3 {
		return str[:num]
	}
	return str[0:num-3] + "..."
}

// ShortAddress renders 0x1234...abcd.
func ShortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

func AddCommas(s string) string {
	if len(s) == 0 {
		return s
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")
	sign := ""
	if strings.HasPrefix(intPart, "-") {
		sign, intPart = "-", intPart[1:]
	}
	if len(intPart) <= 3 {
		return s
	}

	var b strings.Builder
	b.WriteString(sign)
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

func FormatFloat(f float64, decimals int) string {
	return AddCommas(fmt.Sprintf("%.*f", decimals, f))
}

// WeiToEther converts wei to an exact decimal ether amount.
func WeiToEther(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -etherDecimals)
}

// FormatWei renders wei as ether rounded to decimals places, with separators.
func FormatWei(wei *big.Int, decimals int) string {
	return AddCommas(WeiToEther(wei).StringFixed(int32(decimals)))
}

// FormatUnits renders a token amount with unitDecimals places of precision.
func FormatUnits(v *big.Int, unitDecimals, decimals int) string {
	if v == nil {
		return decimal.Zero.StringFixed(int32(decimals))
	}
	return AddCommas(decimal.NewFromBigInt(v, -int32(unitDecimals)).StringFixed(int32(decimals)))
}

// WeiToFloat is for charts and fiat conversion, where float precision is enough.
func WeiToFloat(wei *big.Int) float64 {
	f, _ := WeiToEther(wei).Float64()
	return f
}

// FormatGwei renders a gas price in gwei.
func FormatGwei(wei *big.Int) string {
	if wei == nil {
		return "-"
	}
	return decimal.NewFromBigInt(wei, -9).StringFixed(2) + " Gwei"
}
