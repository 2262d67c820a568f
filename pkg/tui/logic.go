package tui

import (
	"strings"

	"ethwallet/pkg/market"
	"ethwallet/pkg/models"
	"ethwallet/pkg/utils"
	"ethwallet/pkg/watcher"

	tea "github.com/charmbracelet/bubbletea"
)

// portfolioValue is the active balance priced at the latest market price.
func (m model) portfolioValue() float64 {
	o := m.snapshot.Outcome
	if o == nil || o.Balance.BalanceWei == nil {
		return 0
	}
	return market.PortfolioValue(utils.WeiToFloat(o.Balance.BalanceWei), m.snapshot.History.CurrentPrice)
}

func (m model) getFilteredTransactions() []models.TransactionRecord {
	o := m.snapshot.Outcome
	if o == nil {
		return nil
	}
	if m.txFilter == "all" || m.txFilter == "" {
		return o.Transactions
	}
	var filtered []models.TransactionRecord
	for _, tx := range o.Transactions {
		isFrom := strings.EqualFold(tx.From, m.snapshot.Address)
		if m.txFilter == "in" && !isFrom {
			filtered = append(filtered, tx)
		} else if m.txFilter == "out" && isFrom {
			filtered = append(filtered, tx)
		}
	}
	return filtered
}

// defaultSendNetwork is the network the account was found on, else the first
// catalog entry.
func (m model) defaultSendNetwork() models.NetworkID {
	if o := m.snapshot.Outcome; o != nil && o.Network != nil {
		return o.Network.ID
	}
	if len(m.snapshot.Networks) > 0 {
		return m.snapshot.Networks[0].ID
	}
	return ""
}

func (m model) networkName(id models.NetworkID) string {
	for _, n := range m.snapshot.Networks {
		if n.ID == id {
			return n.DisplayName
		}
	}
	return string(id)
}

func listenForWatcher(sub watcher.Subscriber) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-sub
		if !ok {
			return nil
		}
		return ev
	}
}

func (m model) importMnemonicCmd(phrase string) tea.Cmd {
	return func() tea.Msg {
		acc, err := m.accounts.ImportFromMnemonic(phrase)
		return accountLoadedMsg{acc: acc, err: err}
	}
}

func (m model) importKeyCmd(key string) tea.Cmd {
	return func() tea.Msg {
		acc, err := m.accounts.ImportFromPrivateKey(key)
		return accountLoadedMsg{acc: acc, err: err}
	}
}

func (m model) enrollCmd() tea.Cmd {
	return func() tea.Msg {
		e, err := m.accounts.Enroll()
		return enrollmentMsg{enrollment: e, err: err}
	}
}

func (m model) sendCmd(network models.NetworkID, to, amount string) tea.Cmd {
	return func() tea.Msg {
		hash, err := m.watcher.Send(m.ctx, network, to, amount)
		return transferResultMsg{hash: hash, err: err}
	}
}

func (m model) askCmd(question string) tea.Cmd {
	return func() tea.Msg {
		answer, p, err := m.watcher.Ask(m.ctx, question)
		return askResultMsg{answer: answer, prediction: p, err: err}
	}
}
