package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/jask/ledgerview/internal/format"
	"github.com/jask/ledgerview/internal/ledger"
	"github.com/jask/ledgerview/internal/notify"
)

func (a *App) View() string {
	var body string
	switch a.state {
	case viewChecking:
		body = titleStyle.Render("Ledgerview") + "\nChecking your session..."
	case viewLogin:
		body = a.renderLogin()
	case viewRegister:
		body = a.renderRegister()
	case viewAccount:
		body = a.renderAccount()
	case viewTransactions:
		body = a.renderTransactions()
	default:
		body = a.renderDashboard()
	}
	if a.modal != modalNone && a.modalForm != nil {
		body += "\n\n" + modalStyle.Render(a.modalForm.render())
	}
	if n := a.renderNotifications(); n != "" {
		body += "\n\n" + n
	}
	if a.state != viewChecking {
		body += "\n\n" + renderFooter(a.keys, a.scope(), a.width)
	}
	return body
}

func (a *App) header() string {
	out := titleStyle.Render("Ledgerview")
	if u := a.deps.Session.State().User(); u != nil {
		out += fmt.Sprintf("  %s <%s>", u.Name, u.Email)
	}
	if a.deps.Mock {
		out += "  " + badgeStyle.Render("MOCK")
	}
	if a.deps.Ledger != nil && a.deps.Ledger.Busy() {
		out += "  " + mutedStyle.Render("working...")
	}
	return out
}

func (a *App) renderLogin() string {
	return a.header() + "\n\n" + a.form.render()
}

func (a *App) renderRegister() string {
	return a.header() + "\n\n" + a.form.render()
}

func (a *App) renderDashboard() string {
	out := a.header() + "\n\n" + titleStyle.Render("Accounts") + "\n"
	accts := a.deps.Accounts
	list := accts.List()
	active, hasActive := accts.Active()
	switch {
	case len(list) == 0 && accts.Loading():
		out += "  loading...\n"
	case len(list) == 0:
		out += "  (no accounts yet, press n to open one)\n"
	}
	for i, acct := range list {
		marker := " "
		if i == a.cursor {
			marker = "▶"
		}
		star := " "
		if hasActive && active.ID == acct.ID {
			star = "*"
		}
		line := fmt.Sprintf("%s%s %-12s %-4s %18s  v%s", marker, star, acct.ID, acct.Currency, format.Money(acct.Balance, acct.Currency), acct.Version)
		if i == a.cursor {
			line = selectedStyle.Render(line)
		}
		out += line + "\n"
	}
	if e := accts.Err(); e != "" {
		out += severityStyles[notify.Error].Render(e) + "\n"
	}
	return out
}

func (a *App) renderAccount() string {
	b := a.deps.Balances
	id := b.Scope()
	acct, _ := a.deps.Accounts.Lookup(id)
	cur := acct.Currency

	out := a.header() + "\n\n" + titleStyle.Render(fmt.Sprintf("Account %s (%s)", id, cur)) + "\n"
	bal, ok := b.Balance()
	if !ok {
		bal = acct.Balance
	}
	out += "Balance: " + selectedStyle.Render(format.Money(bal, cur))
	if v, ok := b.CurrentVersion(); ok {
		out += fmt.Sprintf("   version %d (current)", v.Version)
		if v.ChangedBy != "" {
			out += mutedStyle.Render(fmt.Sprintf("   last change by %s on %s", v.ChangedBy, format.DateTime(v.Timestamp)))
		}
	}
	out += "\n\n" + titleStyle.Render("Balance history") + "\n"

	versions := b.Versions()
	switch {
	case len(versions) == 0 && b.Loading():
		out += "  loading...\n"
	case len(versions) == 0:
		out += "  (no history)\n"
	}
	for _, v := range versions {
		delta := format.Delta(v.ChangeAmount, cur)
		if v.ChangeAmount.IsNegative() {
			delta = debitStyle.Render(delta)
		} else if v.ChangeAmount.IsPositive() {
			delta = creditStyle.Render(delta)
		}
		current := ""
		if v.IsCurrent {
			current = " ●"
		}
		out += fmt.Sprintf("  v%-4d %18s  %s  %-16s %s%s\n", v.Version, format.Money(v.Balance, cur), delta, v.ChangedBy, format.DateTime(v.Timestamp), current)
	}
	if e := b.Err(); e != "" {
		out += severityStyles[notify.Error].Render(e) + "\n"
	}
	return out
}

func (a *App) renderTransactions() string {
	tx := a.deps.Transactions
	id := tx.Scope()
	cur := a.currencyOf(id)
	page := tx.Page()

	out := a.header() + "\n\n" + titleStyle.Render("Transactions "+id) + "\n"
	pages := max(page.TotalPages, tx.CurrentPage(), 1)
	out += fmt.Sprintf("Page %d of %d  (%d total, %d per page)\n", tx.CurrentPage(), pages, page.Total, tx.PageSize())
	if f := tx.Filters(); !f.IsZero() {
		out += mutedStyle.Render("Filters: "+describeFilters(f)) + "\n"
	}
	out += "\n"
	switch {
	case len(page.Items) == 0 && tx.Loading():
		out += "  loading...\n"
	case len(page.Items) == 0:
		out += "  (no transactions)\n"
	}
	layout := a.deps.DateFormat
	for _, t := range page.Items {
		amount := t.Amount.Abs()
		var amt string
		if t.Type.Credit() {
			amt = creditStyle.Render(format.Delta(amount, cur))
		} else {
			amt = debitStyle.Render(format.Delta(amount.Neg(), cur))
		}
		out += fmt.Sprintf("  %-12s %-12s %s  %16s  %-14s %s\n",
			format.Date(t.CreatedAt, layout), t.Type.Label(), amt, format.Money(t.BalanceAfter, cur), t.Actor, t.Description)
	}
	if e := tx.Err(); e != "" {
		out += severityStyles[notify.Error].Render(e) + "\n"
	}
	return out
}

func (a *App) renderNotifications() string {
	list := a.deps.Notify.List()
	if len(list) == 0 {
		return ""
	}
	lines := make([]string, 0, len(list))
	for _, n := range list {
		st := severityStyles[n.Severity]
		lines = append(lines, st.Render(severityIcons[n.Severity]+" "+n.Message))
	}
	return strings.Join(lines, "\n")
}

func describeFilters(f ledger.TransactionFilters) string {
	var parts []string
	if f.Type != "" {
		parts = append(parts, "type "+f.Type.Label())
	}
	if !f.Start.IsZero() {
		parts = append(parts, "from "+filterDate(f.Start))
	}
	if !f.End.IsZero() {
		parts = append(parts, "to "+filterDate(f.End))
	}
	if f.Actor != "" {
		parts = append(parts, "by "+f.Actor)
	}
	return strings.Join(parts, ", ")
}

func filterType(t ledger.TxType) string {
	return strings.ToLower(string(t))
}

func filterDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(format.InputLayout)
}

func parseTxType(s string) (ledger.TxType, bool) {
	s = strings.ToUpper(strings.Join(strings.Fields(s), "_"))
	for _, t := range []ledger.TxType{ledger.Deposit, ledger.Withdrawal, ledger.TransferIn, ledger.TransferOut} {
		if s == string(t) {
			return t, true
		}
	}
	return "", false
}

// parseFilters reads the filter form. The end date is inclusive of its whole day.
func parseFilters(f *form) (ledger.TransactionFilters, error) {
	var out ledger.TransactionFilters
	if raw := strings.TrimSpace(f.value(0)); raw != "" {
		t, ok := parseTxType(raw)
		if !ok {
			return out, ledger.Validation("filters", fmt.Sprintf("Unknown transaction type %q", raw))
		}
		out.Type = t
	}
	start, err := format.ParseDate(f.value(1))
	if err != nil {
		return out, ledger.Validation("filters", "Start date must look like 2024-01-31")
	}
	end, err := format.ParseDate(f.value(2))
	if err != nil {
		return out, ledger.Validation("filters", "End date must look like 2024-01-31")
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return out, ledger.Validation("filters", "End date is before start date")
	}
	out.Start, out.End = start, format.EndOfDay(end)
	out.Actor = strings.TrimSpace(f.value(3))
	return out, nil
}
