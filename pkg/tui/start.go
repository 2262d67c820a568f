package tui

import (
	"context"

	"ethwallet/pkg/account"
	"ethwallet/pkg/config"
	"ethwallet/pkg/watcher"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
)

// Start runs the dashboard until the user quits.
func Start(ctx context.Context, w *watcher.Watcher, accounts *account.Manager, cfg config.Config, version string) error {
	Version = version
	m := initialModel(ctx, w, accounts, cfg)
	defer w.Unsubscribe(m.sub)

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return errors.Wrap(err, "dashboard")
	}
	return nil
}
