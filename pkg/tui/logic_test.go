package tui

import (
	"context"
	"math/big"
	"strings"
	"testing"
	"time"

	"ethwallet/pkg/account"
	"ethwallet/pkg/config"
	"ethwallet/pkg/models"
	"ethwallet/pkg/network"
	"ethwallet/pkg/watcher"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	hardhatKey     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	hardhatAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

type stubSource struct {
	outcome models.Outcome
}

func (s *stubSource) Detect(ctx context.Context, address string) models.Outcome {
	return s.outcome
}

func (s *stubSource) PriceHistory(ctx context.Context) (models.PriceHistory, error) {
	return models.PriceHistory{}, nil
}

func (s *stubSource) News(ctx context.Context) []string { return nil }

func (s *stubSource) AskAI(ctx context.Context, question string) (string, error) {
	return "", nil
}

func (s *stubSource) GasPrice(ctx context.Context, n models.NetworkDescriptor) (models.GasPriceData, error) {
	return models.GasPriceData{Network: n.ID, Price: big.NewInt(1)}, nil
}

func (s *stubSource) Send(ctx context.Context, acc *account.Account, n models.NetworkID, to, amount string) (string, error) {
	return "0xhash", nil
}

func newTestModel(t *testing.T, ds watcher.DataSource) model {
	t.Helper()
	cfg := config.Default()
	catalog, err := network.NewCatalog(cfg.Networks)
	require.NoError(t, err)
	w := watcher.NewWatcher(catalog, ds, time.Hour, nil)
	return initialModel(context.Background(), w, account.NewManager(nil), cfg)
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m model, s string) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(key(s))
	return next.(model), cmd
}

func deliver(t *testing.T, m model, msg tea.Msg) model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(model)
}

func TestGetFilteredTransactions(t *testing.T) {
	m := model{
		snapshot: watcher.Snapshot{
			Address: "0x123",
			Outcome: &models.Outcome{
				Transactions: []models.TransactionRecord{
					{From: "0x123", To: "0xabc", ValueWei: big.NewInt(1)},
					{From: "0xdef", To: "0x123", ValueWei: big.NewInt(2)},
				},
			},
		},
	}

	m.txFilter = "all"
	assert.Len(t, m.getFilteredTransactions(), 2)

	m.txFilter = "out"
	txs := m.getFilteredTransactions()
	require.Len(t, txs, 1)
	assert.Equal(t, "0x123", txs[0].From)

	m.txFilter = "in"
	txs = m.getFilteredTransactions()
	require.Len(t, txs, 1)
	assert.Equal(t, "0xdef", txs[0].From)

	m.snapshot.Outcome = nil
	assert.Empty(t, m.getFilteredTransactions())
}

func TestPortfolioValue(t *testing.T) {
	oneAndHalf, _ := new(big.Int).SetString("1500000000000000000", 10)
	m := model{
		snapshot: watcher.Snapshot{
			Outcome: &models.Outcome{Balance: models.BalanceQueryResult{BalanceWei: oneAndHalf}},
			History: models.PriceHistory{CurrentPrice: 2000},
		},
	}
	assert.InDelta(t, 3000.0, m.portfolioValue(), 1e-9)

	m.snapshot.Outcome = nil
	assert.Equal(t, 0.0, m.portfolioValue())
}

func TestImportPrivateKeyEntersDashboard(t *testing.T) {
	ds := &stubSource{outcome: models.Outcome{Status: models.StatusNotFound, Message: "Address not found on any configured network."}}
	m := newTestModel(t, ds)

	m, _ = press(t, m, "down")
	m, _ = press(t, m, "enter")
	require.Equal(t, screenImportKey, m.screen)

	m.secretInput.SetValue("0x" + hardhatKey)
	m, cmd := press(t, m, "enter")
	require.NotNil(t, cmd)

	m = deliver(t, m, cmd())
	assert.Equal(t, screenDashboard, m.screen)
	assert.Equal(t, hardhatAddress, m.snapshot.Address)
	assert.Empty(t, m.secretInput.Value())
	assert.NotZero(t, m.detectingGen)
	require.NotNil(t, m.watcher.Account())
	assert.Equal(t, hardhatAddress, m.watcher.Account().Address())
}

func TestImportInvalidKeyShowsError(t *testing.T) {
	m := newTestModel(t, &stubSource{})

	m, _ = press(t, m, "down")
	m, _ = press(t, m, "enter")
	m.secretInput.SetValue("not-a-key")
	m, cmd := press(t, m, "enter")
	require.NotNil(t, cmd)

	m = deliver(t, m, cmd())
	assert.Equal(t, screenImportKey, m.screen)
	assert.True(t, strings.HasPrefix(m.statusMessage, "Error:"))
	assert.Nil(t, m.watcher.Account())
}

func TestEnrollmentFlow(t *testing.T) {
	m := newTestModel(t, &stubSource{outcome: models.Outcome{Status: models.StatusNotFound}})

	m.loginIdx = 2
	m, cmd := press(t, m, "enter")
	require.NotNil(t, cmd)
	m = deliver(t, m, cmd())
	require.Equal(t, screenReveal, m.screen)

	phrase := m.revealed
	require.Len(t, strings.Fields(phrase), 12)
	assert.Contains(t, m.View(), strings.Fields(phrase)[0])

	m, _ = press(t, m, "enter")
	require.Equal(t, screenConfirm, m.screen)
	assert.Empty(t, m.revealed)

	m.confirmInput.SetValue("wrong words")
	m, _ = press(t, m, "enter")
	assert.Equal(t, screenConfirm, m.screen)
	assert.Contains(t, m.statusMessage, "does not match")
	assert.Equal(t, account.PendingConfirmation, m.enrollment.State())

	m.confirmInput.SetValue(phrase)
	m, cmd = press(t, m, "enter")
	require.NotNil(t, cmd)
	m = deliver(t, m, cmd())
	assert.Equal(t, screenDashboard, m.screen)

	expected, err := account.NewManager(nil).ImportFromMnemonic(phrase)
	require.NoError(t, err)
	assert.Equal(t, expected.Address(), m.snapshot.Address)
}

func TestEnrollmentCancelAbandons(t *testing.T) {
	m := newTestModel(t, &stubSource{})

	m.loginIdx = 2
	m, cmd := press(t, m, "enter")
	m = deliver(t, m, cmd())
	e := m.enrollment
	require.NotNil(t, e)

	m, _ = press(t, m, "esc")
	assert.Equal(t, screenLogin, m.screen)
	assert.Equal(t, account.Abandoned, e.State())
	assert.Empty(t, m.revealed)
}

func TestDetectionFinishedUpdatesDashboard(t *testing.T) {
	sepolia := config.DefaultNetworks()[1]
	ds := &stubSource{outcome: models.Outcome{
		Status:  models.StatusOK,
		Network: &sepolia,
		Balance: models.BalanceQueryResult{NetworkID: sepolia.ID, BalanceWei: big.NewInt(5e17), Source: models.SourceProvider},
		Transactions: []models.TransactionRecord{
			{Hash: "0xaa", From: "0xdef", To: hardhatAddress, ValueWei: big.NewInt(5e17), Success: true, Network: sepolia.ID},
		},
		ActivityCount: 1,
		Message:       "Active on Sepolia",
	}}
	m := newTestModel(t, ds)
	sub := m.watcher.Subscribe()
	defer m.watcher.Unsubscribe(sub)

	acc, err := m.accounts.ImportFromPrivateKey(hardhatKey)
	require.NoError(t, err)
	m = deliver(t, m, accountLoadedMsg{acc: acc})

	var finished watcher.Event
	timeout := time.After(2 * time.Second)
	for finished.Type != watcher.EventDetectionFinished {
		select {
		case finished = <-sub:
		case <-timeout:
			t.Fatal("detection did not finish")
		}
	}

	m = deliver(t, m, finished)
	assert.Zero(t, m.detectingGen)
	require.NotNil(t, m.snapshot.Outcome)
	assert.Equal(t, models.StatusOK, m.snapshot.Outcome.Status)
	assert.Contains(t, m.View(), "Active on Sepolia")

	m, _ = press(t, m, "s")
	assert.Equal(t, screenSend, m.screen)
	assert.Equal(t, "sepolia", m.sendInputs[2].Value())
}

func TestSendResult(t *testing.T) {
	m := newTestModel(t, &stubSource{})
	m.screen = screenSend
	m.sending = true
	m.sendInputs[0].SetValue("0xabc")

	failed := deliver(t, m, transferResultMsg{err: assert.AnError})
	assert.Equal(t, screenSend, failed.screen)
	assert.False(t, failed.sending)
	assert.Contains(t, failed.statusMessage, assert.AnError.Error())
	assert.Equal(t, "0xabc", failed.sendInputs[0].Value())

	ok := deliver(t, m, transferResultMsg{hash: "0xfeed"})
	assert.Equal(t, screenDashboard, ok.screen)
	assert.Contains(t, ok.statusMessage, "0xfeed")
	assert.Empty(t, ok.sendInputs[0].Value())
}

func TestTxListFilterKeys(t *testing.T) {
	m := newTestModel(t, &stubSource{})
	m.screen = screenTxList
	m.txListIdx = 3

	m, _ = press(t, m, "i")
	assert.Equal(t, "in", m.txFilter)
	assert.Zero(t, m.txListIdx)

	m, _ = press(t, m, "o")
	assert.Equal(t, "out", m.txFilter)

	m, _ = press(t, m, "a")
	assert.Equal(t, "all", m.txFilter)

	m, _ = press(t, m, "esc")
	assert.Equal(t, screenDashboard, m.screen)
}

func TestLogoutEventReturnsToLogin(t *testing.T) {
	m := newTestModel(t, &stubSource{})
	m.screen = screenMarket
	m.answer = "something"

	m = deliver(t, m, watcher.Event{Type: watcher.EventLoggedOut})
	assert.Equal(t, screenLogin, m.screen)
	assert.Empty(t, m.answer)
}
