package tui

import (
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// Scopes name the view a binding applies to; "*" matches all of them.
const (
	scopeLogin        = "login"
	scopeRegister     = "register"
	scopeDashboard    = "dashboard"
	scopeAccount      = "account"
	scopeTransactions = "transactions"
	scopeModal        = "modal"
)

const (
	actQuit         = "quit"
	actUp           = "up"
	actDown         = "down"
	actOpen         = "open"
	actBack         = "back"
	actSubmit       = "submit"
	actNextField    = "next-field"
	actToggleAuth   = "toggle-auth"
	actDeposit      = "deposit"
	actWithdraw     = "withdraw"
	actTransfer     = "transfer"
	actCreate       = "create-account"
	actTransactions = "transactions"
	actRefresh      = "refresh"
	actLogout       = "logout"
	actNextPage     = "next-page"
	actPrevPage     = "prev-page"
	actPageSize     = "page-size"
	actFilter       = "filter"
	actClearFilter  = "clear-filters"
	actDismiss      = "dismiss"
)

type KeyBinding struct {
	Keys        []string
	Action      string
	Description string
	Scopes      []string
}

type KeyRegistry struct {
	bindings []KeyBinding
}

func NewKeyRegistry(bindings []KeyBinding) *KeyRegistry {
	return &KeyRegistry{bindings: slices.Clone(bindings)}
}

func (r *KeyRegistry) BindingsForScope(scope string) []KeyBinding {
	out := make([]KeyBinding, 0, len(r.bindings))
	for _, b := range r.bindings {
		if scopeMatch(scope, b.Scopes) {
			out = append(out, b)
		}
	}
	return out
}

// Action returns the action bound to msg in scope, or "" when none is.
func (r *KeyRegistry) Action(msg tea.KeyMsg, scope string) string {
	pressed := normalizeKey(msg.String())
	for _, b := range r.bindings {
		if !scopeMatch(scope, b.Scopes) {
			continue
		}
		for _, k := range b.Keys {
			if normalizeKey(k) == pressed {
				return b.Action
			}
		}
	}
	return ""
}

func (r *KeyRegistry) IsAction(msg tea.KeyMsg, action, scope string) bool {
	return r.Action(msg, scope) == action
}

// normalizeKey lower-cases named keys only, so "L" and "l" stay distinct.
func normalizeKey(k string) string {
	k = strings.TrimSpace(k)
	if len([]rune(k)) == 1 {
		return k
	}
	return strings.ToLower(k)
}

func scopeMatch(scope string, scopes []string) bool {
	if len(scopes) == 0 {
		return true
	}
	for _, s := range scopes {
		if s == "*" || s == scope {
			return true
		}
	}
	return false
}

func DefaultKeyBindings() []KeyBinding {
	main := []string{scopeDashboard, scopeAccount}
	return []KeyBinding{
		{Keys: []string{"enter"}, Action: actSubmit, Description: "submit", Scopes: []string{scopeLogin, scopeRegister, scopeModal}},
		{Keys: []string{"tab"}, Action: actNextField, Description: "next field", Scopes: []string{scopeLogin, scopeRegister, scopeModal}},
		{Keys: []string{"ctrl+r"}, Action: actToggleAuth, Description: "register", Scopes: []string{scopeLogin}},
		{Keys: []string{"ctrl+r"}, Action: actToggleAuth, Description: "log in", Scopes: []string{scopeRegister}},
		{Keys: []string{"esc"}, Action: actQuit, Description: "quit", Scopes: []string{scopeLogin}},
		{Keys: []string{"esc"}, Action: actBack, Description: "back", Scopes: []string{scopeRegister, scopeModal}},

		{Keys: []string{"k", "up"}, Action: actUp, Description: "up", Scopes: []string{scopeDashboard}},
		{Keys: []string{"j", "down"}, Action: actDown, Description: "down", Scopes: []string{scopeDashboard}},
		{Keys: []string{"enter"}, Action: actOpen, Description: "open", Scopes: []string{scopeDashboard}},
		{Keys: []string{"d"}, Action: actDeposit, Description: "deposit", Scopes: main},
		{Keys: []string{"w"}, Action: actWithdraw, Description: "withdraw", Scopes: main},
		{Keys: []string{"t"}, Action: actTransfer, Description: "transfer", Scopes: main},
		{Keys: []string{"n"}, Action: actCreate, Description: "new account", Scopes: []string{scopeDashboard}},
		{Keys: []string{"x"}, Action: actTransactions, Description: "transactions", Scopes: main},

		{Keys: []string{"n", "right", "l"}, Action: actNextPage, Description: "next page", Scopes: []string{scopeTransactions}},
		{Keys: []string{"p", "left", "h"}, Action: actPrevPage, Description: "prev page", Scopes: []string{scopeTransactions}},
		{Keys: []string{"s"}, Action: actPageSize, Description: "page size", Scopes: []string{scopeTransactions}},
		{Keys: []string{"f"}, Action: actFilter, Description: "filter", Scopes: []string{scopeTransactions}},
		{Keys: []string{"c"}, Action: actClearFilter, Description: "clear filters", Scopes: []string{scopeTransactions}},

		{Keys: []string{"r"}, Action: actRefresh, Description: "refresh", Scopes: []string{scopeDashboard, scopeAccount, scopeTransactions}},
		{Keys: []string{"esc", "backspace"}, Action: actBack, Description: "back", Scopes: []string{scopeAccount, scopeTransactions}},
		{Keys: []string{"L"}, Action: actLogout, Description: "logout", Scopes: main},
		{Keys: []string{"q"}, Action: actQuit, Description: "quit", Scopes: []string{scopeDashboard, scopeAccount, scopeTransactions}},
		{Keys: []string{"ctrl+x"}, Action: actDismiss, Description: "dismiss", Scopes: []string{"*"}},
	}
}
