package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

type field struct {
	label  string
	value  string
	hint   string
	secret bool
}

// form is a set of single-line text inputs edited one at a time.
type form struct {
	title  string
	fields []field
	cursor int
}

func newForm(title string, fields ...field) *form {
	return &form{title: title, fields: fields}
}

func (f *form) value(i int) string {
	if i < 0 || i >= len(f.fields) {
		return ""
	}
	return f.fields[i].value
}

func (f *form) set(i int, v string) {
	if i >= 0 && i < len(f.fields) {
		f.fields[i].value = v
	}
}

// handleKey edits the focused field. It reports true when the form is submitted.
func (f *form) handleKey(m tea.KeyMsg) bool {
	switch m.Type {
	case tea.KeyEnter:
		return true
	case tea.KeyTab, tea.KeyDown:
		f.cursor = (f.cursor + 1) % len(f.fields)
	case tea.KeyShiftTab, tea.KeyUp:
		f.cursor = (f.cursor - 1 + len(f.fields)) % len(f.fields)
	case tea.KeyBackspace, tea.KeyCtrlH, tea.KeyDelete:
		v := []rune(f.fields[f.cursor].value)
		if len(v) > 0 {
			f.fields[f.cursor].value = string(v[:len(v)-1])
		}
	case tea.KeyCtrlU:
		f.fields[f.cursor].value = ""
	case tea.KeySpace:
		f.fields[f.cursor].value += " "
	case tea.KeyRunes:
		f.fields[f.cursor].value += string(m.Runes)
	}
	return false
}

func (f *form) render() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(f.title))
	b.WriteString("\n")
	for i, fd := range f.fields {
		marker := " "
		if i == f.cursor {
			marker = "▶"
		}
		v := fd.value
		if fd.secret {
			v = strings.Repeat("*", len([]rune(v)))
		}
		if i == f.cursor {
			v += "_"
		}
		line := fmt.Sprintf("%s %-14s %s", marker, fd.label+":", v)
		if fd.hint != "" && fd.value == "" {
			line += "  " + mutedStyle.Render(fd.hint)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}
