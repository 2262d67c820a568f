package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"ethwallet/pkg/market"
	"ethwallet/pkg/models"
	"ethwallet/pkg/prediction"
	"ethwallet/pkg/utils"
)

func (m model) View() string {
	var content, footer string

	switch m.screen {
	case screenLogin:
		content, footer = m.viewLogin()
	case screenImportMnemonic:
		content, footer = m.viewImport("Import Recovery Phrase"), "enter: import • esc: back"
	case screenImportKey:
		content, footer = m.viewImport("Import Private Key"), "enter: import • esc: back"
	case screenReveal:
		content, footer = m.viewReveal()
	case screenConfirm:
		content, footer = m.viewConfirm()
	case screenDashboard:
		content, footer = m.viewDashboard()
	case screenTxList:
		content, footer = m.viewTxList()
	case screenSend:
		content, footer = m.viewSend()
	case screenMarket:
		content, footer = m.viewMarket()
	}

	parts := []string{content}
	if m.statusMessage != "" {
		parts = append(parts, "", m.renderStatus())
	}
	parts = append(parts, "", subtleStyle.Render(footer))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, lipgloss.JoinVertical(lipgloss.Center, parts...))
}

func (m model) renderStatus() string {
	if strings.HasPrefix(m.statusMessage, "Error") || strings.HasPrefix(m.statusMessage, "Send failed") || strings.HasPrefix(m.statusMessage, "Phrase does not match") {
		return errStyle.Render(m.statusMessage)
	}
	return infoStyle.Render(m.statusMessage)
}

func (m model) viewLogin() (string, string) {
	var rows []string
	for i, opt := range loginOptions {
		if i == m.loginIdx {
			rows = append(rows, selectedStyle.Render("> "+opt))
		} else {
			rows = append(rows, "  "+opt)
		}
	}
	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(fmt.Sprintf("ETH Wallet %s", Version)),
		"",
		strings.Join(rows, "\n"),
		"",
		subtleStyle.Render("Keys stay in memory and are forgotten on logout."),
	))
	return content, "↑/↓: select • enter: continue • q: quit"
}

func (m model) viewImport(title string) string {
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(title),
		"",
		m.secretInput.View(),
	))
}

func (m model) viewReveal() (string, string) {
	words := strings.Fields(m.revealed)
	var lines []string
	for i := 0; i < len(words); i += 4 {
		end := i + 4
		if end > len(words) {
			end = len(words)
		}
		var cells []string
		for j := i; j < end; j++ {
			cells = append(cells, fmt.Sprintf("%2d. %-10s", j+1, words[j]))
		}
		lines = append(lines, strings.Join(cells, " "))
	}
	address := ""
	if m.enrollment != nil {
		address = m.enrollment.Address()
	}
	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Your Recovery Phrase"),
		"",
		warnStyle.Render("Write these words down in order. They are shown only once."),
		"",
		secretStyle.Render(strings.Join(lines, "\n")),
		"",
		subtleStyle.Render("Address: "+address),
	))
	return content, "enter: I wrote it down • esc: cancel"
}

func (m model) viewConfirm() (string, string) {
	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Confirm Recovery Phrase"),
		"",
		"Type the phrase exactly as shown, words separated by single spaces.",
		"",
		m.confirmInput.View(),
	))
	return content, "enter: confirm • esc: cancel"
}

func (m model) viewDashboard() (string, string) {
	header := titleStyle.Render(fmt.Sprintf("Account %s", m.snapshot.Address))

	var body []string
	o := m.snapshot.Outcome
	switch {
	case o == nil || m.detectingGen != 0:
		body = append(body, fmt.Sprintf("%s Scanning %d networks...", m.spinner.View(), len(m.snapshot.Networks)))
		if o != nil {
			body = append(body, subtleStyle.Render("Previous: "+o.Message))
		}
	default:
		body = append(body, m.viewOutcome(*o)...)
	}

	footer := "r: refresh • c: copy address • t: transactions • s: send • m: market • l: logout • q: quit"
	if !m.lastUpdate.IsZero() {
		footer = fmt.Sprintf("Updated %s ago • %s", time.Since(m.lastUpdate).Round(time.Second), footer)
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, "", strings.Join(body, "\n"))), footer
}

func (m model) viewOutcome(o models.Outcome) []string {
	lines := []string{statusStyle(o.Status).Render(o.Message), ""}
	balance := fmt.Sprintf("Balance:   %s ETH", m.displayWei(o.Balance.BalanceWei))
	if o.Balance.Source != models.SourceNone {
		balance += subtleStyle.Render(fmt.Sprintf(" (%s)", o.Balance.Source))
	}
	lines = append(lines, balance)
	if price := m.snapshot.History.CurrentPrice; price > 0 {
		lines = append(lines, fmt.Sprintf("Value:     $%s @ $%s", m.displayFiat(m.portfolioValue()), m.displayFiat(price)))
	}
	if o.Network != nil {
		if gas, ok := m.snapshot.GasPrices[o.Network.ID]; ok {
			lines = append(lines, fmt.Sprintf("Gas:       %s", utils.FormatGwei(gas)))
		}
	}

	if len(o.Transactions) > 0 {
		lines = append(lines, "", tableHeaderStyle.Render(fmt.Sprintf("Recent activity (%d total)", o.ActivityCount)))
		limit := len(o.Transactions)
		if limit > 5 {
			limit = 5
		}
		for _, tx := range o.Transactions[:limit] {
			lines = append(lines, m.txRow(tx, "  "))
		}
	}
	return lines
}

func (m model) txRow(tx models.TransactionRecord, cursor string) string {
	dir := "IN "
	counterparty := tx.From
	if strings.EqualFold(tx.From, m.snapshot.Address) {
		dir = "OUT"
		counterparty = tx.To
	}
	row := fmt.Sprintf("%s%s %s %-13s %14s ETH  %s",
		cursor,
		tx.Timestamp.Format("2006-01-02 15:04"),
		dir,
		utils.ShortAddress(counterparty),
		m.displayWei(tx.ValueWei),
		utils.TruncateString(tx.Hash, 12),
	)
	if !tx.Success {
		row += errStyle.Render(" failed")
	}
	return row
}

func (m model) viewTxList() (string, string) {
	filterDisplay := "All"
	switch m.txFilter {
	case "in":
		filterDisplay = "Incoming"
	case "out":
		filterDisplay = "Outgoing"
	}
	header := titleStyle.Render(fmt.Sprintf("Transactions (%s)", filterDisplay))
	footer := "i: in • o: out • a: all • c: copy hash • q/esc: back"

	txs := m.getFilteredTransactions()
	if len(txs) == 0 {
		return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Center, header, "", "No transactions found.")), footer
	}

	var rows []string
	for i, tx := range txs {
		cursor := "  "
		if i == m.txListIdx {
			cursor = "> "
		}
		rows = append(rows, m.txRow(tx, cursor))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, "", strings.Join(rows, "\n"))), footer
}

func (m model) viewSend() (string, string) {
	labels := []string{"To", "Amount", "Network"}
	var inputs []string
	for i, label := range labels {
		inputs = append(inputs, fmt.Sprintf("%-8s %s", label, m.sendInputs[i].View()))
	}

	var networks []string
	for _, n := range m.snapshot.Networks {
		networks = append(networks, string(n.ID))
	}
	hint := "Networks: " + strings.Join(networks, ", ")
	network := models.NetworkID(strings.TrimSpace(m.sendInputs[2].Value()))
	if gas, ok := m.snapshot.GasPrices[network]; ok {
		hint += fmt.Sprintf(" • Gas on %s: %s", m.networkName(network), utils.FormatGwei(gas))
	}

	lines := []string{
		titleStyle.Render("Send ETH"),
		"",
		strings.Join(inputs, "\n"),
		"",
		subtleStyle.Render(hint),
	}
	if m.sending {
		lines = append(lines, "", fmt.Sprintf("%s Waiting for the node...", m.spinner.View()))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)), "tab: next field • enter: send • esc: back"
}

func (m model) viewMarket() (string, string) {
	h := m.snapshot.History
	header := titleStyle.Render("ETH Market")

	var lines []string
	if h.CurrentPrice > 0 {
		change := market.PriceChange(h.Prices)
		style := infoStyle
		if change < 0 {
			style = errStyle
		}
		lines = append(lines, fmt.Sprintf("Price: $%s  %s", m.displayFiat(h.CurrentPrice), style.Render(fmt.Sprintf("%+.2f%%", change))))
	}

	width := m.width - 20
	if width < 20 {
		width = 20
	}
	if chart := prediction.Render(h.Prices, m.snapshot.Prediction, width, 10); chart != "" {
		lines = append(lines, "", chart)
	} else {
		lines = append(lines, "", subtleStyle.Render("Price history unavailable."))
	}

	if p := m.snapshot.Prediction; p != nil {
		lines = append(lines, "", fmt.Sprintf("Forecast: 24h $%s • 7d $%s • confidence %.0f%% • %s",
			m.displayFiat(p.Predicted24h), m.displayFiat(p.Predicted7d), p.Confidence*100, p.Method))
	}

	if len(m.snapshot.News) > 0 {
		lines = append(lines, "", tableHeaderStyle.Render("News"))
		for _, n := range m.snapshot.News {
			lines = append(lines, "• "+utils.TruncateString(n, 90))
		}
	}

	lines = append(lines, "", m.askInput.View())
	if m.asking {
		lines = append(lines, fmt.Sprintf("%s Thinking...", m.spinner.View()))
	} else if m.answer != "" {
		lines = append(lines, m.viewport.View())
	}

	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, append([]string{header, ""}, lines...)...)), "enter: ask • pgup/pgdn: scroll answer • esc: back"
}
