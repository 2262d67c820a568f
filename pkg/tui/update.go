package tui

import (
	"fmt"
	"strings"
	"time"

	"ethwallet/pkg/market"
	"ethwallet/pkg/models"
	"ethwallet/pkg/watcher"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
)

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case watcher.Event:
		cmds = append(cmds, listenForWatcher(m.sub))
		m.snapshot = m.watcher.Snapshot()
		m.lastUpdate = time.Now()

		switch msg.Type {
		case watcher.EventDetectionStarted:
			if data, ok := msg.Data.(watcher.DetectionStarted); ok {
				m.detectingGen = data.Generation
			}
		case watcher.EventDetectionFinished:
			if data, ok := msg.Data.(watcher.DetectionFinished); ok && data.Generation == m.detectingGen {
				m.detectingGen = 0
				m.txListIdx = 0
			}
		case watcher.EventTransferSubmitted:
			if data, ok := msg.Data.(watcher.TransferSubmitted); ok {
				m.statusMessage = fmt.Sprintf("Transaction sent: %s", data.Hash)
				cmds = append(cmds, clearStatusAfter(5*time.Second))
			}
		case watcher.EventLoggedOut:
			m = m.resetToLogin()
		}
		return m, tea.Batch(cmds...)

	case accountLoadedMsg:
		m.secretInput.SetValue("")
		if msg.err != nil {
			m.statusMessage = fmt.Sprintf("Error: %v", msg.err)
			return m, nil
		}
		m.detectingGen = m.watcher.SetAccount(m.ctx, msg.acc)
		return m.enterDashboard(), nil

	case enrollmentMsg:
		if msg.err != nil {
			m.statusMessage = fmt.Sprintf("Error: %v", msg.err)
			return m, nil
		}
		phrase, err := msg.enrollment.Reveal()
		if err != nil {
			m.statusMessage = fmt.Sprintf("Error: %v", err)
			return m, nil
		}
		m.enrollment = msg.enrollment
		m.revealed = phrase
		m.screen = screenReveal
		m.statusMessage = ""
		return m, nil

	case transferResultMsg:
		m.sending = false
		if msg.err != nil {
			m.statusMessage = fmt.Sprintf("Send failed: %v", msg.err)
			return m, nil
		}
		for i := range m.sendInputs {
			m.sendInputs[i].SetValue("")
		}
		m.screen = screenDashboard
		m.statusMessage = fmt.Sprintf("Transaction sent: %s", msg.hash)
		return m, clearStatusAfter(5 * time.Second)

	case askResultMsg:
		m.asking = false
		if msg.err != nil {
			m.statusMessage = fmt.Sprintf("Assistant unavailable: %v", msg.err)
			return m, clearStatusAfter(5 * time.Second)
		}
		m.answer = msg.answer
		m.snapshot = m.watcher.Snapshot()
		if msg.prediction == nil {
			m.statusMessage = "No forecast in this answer"
			cmds = append(cmds, clearStatusAfter(3*time.Second))
		}
		m.updateAnswerViewport()
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = msg.Height / 4
		m.updateAnswerViewport()

	case clearStatusMsg:
		m.statusMessage = ""

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case uiTickMsg:
		cmds = append(cmds, tea.Tick(time.Second, func(t time.Time) tea.Msg { return uiTickMsg(t) }))
	}

	return m, tea.Batch(cmds...)
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.screen {
	case screenLogin:
		return m.updateLogin(msg)
	case screenImportMnemonic, screenImportKey:
		return m.updateImport(msg)
	case screenReveal:
		switch msg.String() {
		case "enter":
			m.revealed = ""
			m.screen = screenConfirm
			m.confirmInput.SetValue("")
			m.confirmInput.Focus()
			return m, textinput.Blink
		case "esc":
			return m.abandonEnrollment(), nil
		}
		return m, nil
	case screenConfirm:
		return m.updateConfirm(msg)
	case screenDashboard:
		return m.updateDashboard(msg)
	case screenTxList:
		return m.updateTxList(msg)
	case screenSend:
		return m.updateSend(msg)
	case screenMarket:
		return m.updateMarket(msg)
	}
	return m, nil
}

func (m model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.loginIdx > 0 {
			m.loginIdx--
		}
	case "down", "j":
		if m.loginIdx < len(loginOptions)-1 {
			m.loginIdx++
		}
	case "enter":
		m.statusMessage = ""
		switch m.loginIdx {
		case 0:
			m.screen = screenImportMnemonic
			m.secretInput.Placeholder = "twelve or twenty-four words"
			m.secretInput.EchoMode = textinput.EchoNormal
		case 1:
			m.screen = screenImportKey
			m.secretInput.Placeholder = "64 hex characters, 0x optional"
			m.secretInput.EchoMode = textinput.EchoPassword
		case 2:
			return m, m.enrollCmd()
		}
		m.secretInput.SetValue("")
		m.secretInput.Focus()
		return m, textinput.Blink
	}
	return m, nil
}

func (m model) updateImport(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.secretInput.SetValue("")
		m.secretInput.Blur()
		m.screen = screenLogin
		m.statusMessage = ""
		return m, nil
	case "enter":
		value := strings.TrimSpace(m.secretInput.Value())
		if value == "" {
			return m, nil
		}
		m.statusMessage = "Deriving account..."
		if m.screen == screenImportMnemonic {
			return m, m.importMnemonicCmd(value)
		}
		return m, m.importKeyCmd(value)
	}
	var cmd tea.Cmd
	m.secretInput, cmd = m.secretInput.Update(msg)
	return m, cmd
}

func (m model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m.abandonEnrollment(), nil
	case "enter":
		acc, err := m.enrollment.Confirm(m.confirmInput.Value())
		if err != nil {
			if errors.Is(err, models.ErrMnemonicMismatch) {
				m.statusMessage = "Phrase does not match. Check the word order and try again."
			} else {
				m.statusMessage = fmt.Sprintf("Error: %v", err)
			}
			return m, nil
		}
		m.confirmInput.SetValue("")
		m.confirmInput.Blur()
		m.enrollment = nil
		return m, func() tea.Msg { return accountLoadedMsg{acc: acc} }
	}
	var cmd tea.Cmd
	m.confirmInput, cmd = m.confirmInput.Update(msg)
	return m, cmd
}

func (m model) abandonEnrollment() model {
	if m.enrollment != nil {
		m.enrollment.Abandon()
	}
	m.enrollment = nil
	m.revealed = ""
	m.confirmInput.SetValue("")
	m.confirmInput.Blur()
	m.screen = screenLogin
	m.statusMessage = "Wallet creation cancelled"
	return m
}

func (m model) updateDashboard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "r":
		m.detectingGen = m.watcher.Refresh(m.ctx)
		m.statusMessage = "Refreshing..."
		return m, clearStatusAfter(2 * time.Second)
	case "c":
		if err := clipboard.WriteAll(m.snapshot.Address); err != nil {
			m.statusMessage = "Failed to copy to clipboard"
		} else {
			m.statusMessage = "Address copied to clipboard"
		}
		return m, clearStatusAfter(2 * time.Second)
	case "t":
		m.screen = screenTxList
		m.txListIdx = 0
	case "s":
		m.screen = screenSend
		m.sendFocus = 0
		if m.sendInputs[2].Value() == "" {
			m.sendInputs[2].SetValue(string(m.defaultSendNetwork()))
		}
		for i := range m.sendInputs {
			m.sendInputs[i].Blur()
		}
		m.sendInputs[0].Focus()
		return m, textinput.Blink
	case "m":
		m.screen = screenMarket
		m.askInput.Focus()
		m.updateAnswerViewport()
		return m, tea.Batch(textinput.Blink, func() tea.Msg {
			m.watcher.RefreshMarket(m.ctx)
			return nil
		})
	case "l":
		m.watcher.Logout()
		return m.resetToLogin(), nil
	}
	return m, nil
}

func (m model) updateTxList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		m.screen = screenDashboard
	case "i":
		m.txFilter = "in"
		m.txListIdx = 0
	case "o":
		m.txFilter = "out"
		m.txListIdx = 0
	case "a":
		m.txFilter = "all"
		m.txListIdx = 0
	case "up", "k":
		if m.txListIdx > 0 {
			m.txListIdx--
		}
	case "down", "j":
		if m.txListIdx < len(m.getFilteredTransactions())-1 {
			m.txListIdx++
		}
	case "c":
		txs := m.getFilteredTransactions()
		if m.txListIdx < len(txs) {
			if err := clipboard.WriteAll(txs[m.txListIdx].Hash); err != nil {
				m.statusMessage = "Failed to copy to clipboard"
			} else {
				m.statusMessage = "Transaction hash copied"
			}
			return m, clearStatusAfter(2 * time.Second)
		}
	}
	return m, nil
}

func (m model) updateSend(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.sending {
		return m, nil
	}
	switch msg.String() {
	case "esc":
		m.screen = screenDashboard
		m.statusMessage = ""
		return m, nil
	case "tab", "down":
		return m.focusSendInput((m.sendFocus + 1) % len(m.sendInputs)), nil
	case "shift+tab", "up":
		return m.focusSendInput((m.sendFocus + len(m.sendInputs) - 1) % len(m.sendInputs)), nil
	case "enter":
		if m.sendFocus < len(m.sendInputs)-1 {
			return m.focusSendInput(m.sendFocus + 1), nil
		}
		to := strings.TrimSpace(m.sendInputs[0].Value())
		amount := strings.TrimSpace(m.sendInputs[1].Value())
		network := models.NetworkID(strings.TrimSpace(m.sendInputs[2].Value()))
		m.sending = true
		m.statusMessage = fmt.Sprintf("Sending %s ETH on %s...", amount, m.networkName(network))
		return m, m.sendCmd(network, to, amount)
	}
	var cmd tea.Cmd
	m.sendInputs[m.sendFocus], cmd = m.sendInputs[m.sendFocus].Update(msg)
	return m, cmd
}

func (m model) focusSendInput(i int) model {
	m.sendInputs[m.sendFocus].Blur()
	m.sendFocus = i
	m.sendInputs[m.sendFocus].Focus()
	return m
}

func (m model) updateMarket(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.askInput.Blur()
		m.screen = screenDashboard
		return m, nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case "enter":
		if m.asking {
			return m, nil
		}
		question := strings.TrimSpace(m.askInput.Value())
		if question == "" {
			question = market.PredictionQuestion
		}
		m.askInput.SetValue("")
		m.asking = true
		return m, m.askCmd(question)
	}
	var cmd tea.Cmd
	m.askInput, cmd = m.askInput.Update(msg)
	return m, cmd
}

func (m model) enterDashboard() model {
	m.screen = screenDashboard
	m.statusMessage = ""
	m.snapshot = m.watcher.Snapshot()
	m.txFilter = "all"
	m.txListIdx = 0
	return m
}

func (m model) resetToLogin() model {
	m.screen = screenLogin
	m.loginIdx = 0
	m.detectingGen = 0
	m.answer = ""
	m.sending = false
	m.secretInput.SetValue("")
	for i := range m.sendInputs {
		m.sendInputs[i].SetValue("")
	}
	m.snapshot = m.watcher.Snapshot()
	return m
}

func (m *model) updateAnswerViewport() {
	if m.answer == "" {
		m.viewport.SetContent(subtleStyle.Render("Ask a question, or press enter for a forecast."))
		return
	}
	m.viewport.SetContent(m.answer)
	m.viewport.GotoTop()
}
