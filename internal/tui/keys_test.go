package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
)

func TestKeyRegistryScopeMatch(t *testing.T) {
	t.Parallel()
	reg := NewKeyRegistry(DefaultKeyBindings())

	require.Equal(t, actCreate, reg.Action(keys("n"), scopeDashboard))
	require.Equal(t, actNextPage, reg.Action(keys("n"), scopeTransactions))
	require.Empty(t, reg.Action(keys("n"), scopeLogin))

	require.True(t, reg.IsAction(keys("L"), actLogout, scopeAccount))
	require.False(t, reg.IsAction(keys("l"), actLogout, scopeAccount))

	require.Equal(t, actQuit, reg.Action(tea.KeyMsg{Type: tea.KeyEsc}, scopeLogin))
	require.Equal(t, actBack, reg.Action(tea.KeyMsg{Type: tea.KeyEsc}, scopeRegister))
	require.True(t, reg.IsAction(tea.KeyMsg{Type: tea.KeyCtrlX}, actDismiss, scopeModal))
}

func TestFooterListsScopeBindings(t *testing.T) {
	t.Parallel()
	reg := NewKeyRegistry(DefaultKeyBindings())

	footer := renderFooter(reg, scopeTransactions, 0)
	require.Contains(t, footer, "next page")
	require.Contains(t, footer, "filter")
	require.NotContains(t, footer, "new account")
}
