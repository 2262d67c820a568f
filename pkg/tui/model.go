package tui

import (
	"context"
	"time"

	"ethwallet/pkg/account"
	"ethwallet/pkg/config"
	"ethwallet/pkg/models"
	"ethwallet/pkg/watcher"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Version is set by Start()
var Version = "dev"

type screen int

const (
	screenLogin screen = iota
	screenImportMnemonic
	screenImportKey
	screenReveal
	screenConfirm
	screenDashboard
	screenTxList
	screenSend
	screenMarket
)

// --- Messages ---

type clearStatusMsg struct{}
type uiTickMsg time.Time

type accountLoadedMsg struct {
	acc *account.Account
	err error
}

type enrollmentMsg struct {
	enrollment *account.Enrollment
	err        error
}

type transferResultMsg struct {
	hash string
	err  error
}

type askResultMsg struct {
	answer     string
	prediction *models.Prediction
	err        error
}

var loginOptions = []string{
	"Import recovery phrase",
	"Import private key",
	"Generate new wallet",
}

// --- Model ---

type model struct {
	ctx      context.Context
	watcher  *watcher.Watcher
	accounts *account.Manager
	config   config.Config
	sub      watcher.Subscriber

	screen        screen
	loginIdx      int
	width         int
	height        int
	spinner       spinner.Model
	statusMessage string
	lastUpdate    time.Time

	secretInput  textinput.Model
	confirmInput textinput.Model
	enrollment   *account.Enrollment
	revealed     string

	sendInputs   []textinput.Model
	sendFocus    int
	sending      bool
	askInput     textinput.Model
	asking       bool
	answer       string
	viewport     viewport.Model
	txListIdx    int
	txFilter     string // "all", "in", "out"
	snapshot     watcher.Snapshot
	detectingGen uint64
}

func initialModel(ctx context.Context, w *watcher.Watcher, accounts *account.Manager, cfg config.Config) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	secret := textinput.New()
	secret.Width = 70
	secret.CharLimit = 512

	confirm := textinput.New()
	confirm.Placeholder = "re-enter your recovery phrase"
	confirm.Width = 70
	confirm.CharLimit = 512

	sis := make([]textinput.Model, 3)
	for i := range sis {
		sis[i] = textinput.New()
		sis[i].Width = 50
	}
	sis[0].Placeholder = "Recipient (0x...)"
	sis[1].Placeholder = "Amount in ETH (e.g. 0.05)"
	sis[2].Placeholder = "Network (e.g. sepolia)"

	ask := textinput.New()
	ask.Placeholder = "Ask about the ETH market (enter for a forecast)"
	ask.Width = 60
	ask.CharLimit = 280

	return model{
		ctx:          ctx,
		watcher:      w,
		accounts:     accounts,
		config:       cfg,
		sub:          w.Subscribe(),
		screen:       screenLogin,
		spinner:      s,
		secretInput:  secret,
		confirmInput: confirm,
		sendInputs:   sis,
		askInput:     ask,
		viewport:     viewport.New(0, 0),
		txFilter:     "all",
		snapshot:     w.Snapshot(),
	}
}

func (m model) Init() tea.Cmd {
	var cmds []tea.Cmd

	cmds = append(cmds, listenForWatcher(m.sub))
	cmds = append(cmds, m.spinner.Tick)
	cmds = append(cmds, tea.Tick(time.Second, func(t time.Time) tea.Msg { return uiTickMsg(t) }))
	return tea.Batch(cmds...)
}
