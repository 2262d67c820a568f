package tui

import (
	"math/big"
	"time"

	"ethwallet/pkg/utils"

	tea "github.com/charmbracelet/bubbletea"
)

func (m model) displayWei(wei *big.Int) string {
	return utils.FormatWei(wei, m.config.TokenDecimals)
}

func (m model) displayFiat(v float64) string {
	return utils.FormatFloat(v, m.config.FiatDecimals)
}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}
