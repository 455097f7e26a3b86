package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// form is a vertical stack of text inputs with tab focus cycling. Both the
// login screen and the new-peer screen are instances of it.
type form struct {
	title  string
	inputs []textinput.Model
	focus  int
}

func newForm(title string, fields ...textinput.Model) form {
	if len(fields) > 0 {
		fields[0].Focus()
	}
	return form{title: title, inputs: fields}
}

func textField(placeholder string, secret bool) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 128
	ti.Width = 40
	ti.Prompt = "> "
	if secret {
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '*'
	}
	return ti
}

func (f form) values() []string {
	out := make([]string, len(f.inputs))
	for i, in := range f.inputs {
		out[i] = strings.TrimSpace(in.Value())
	}
	return out
}

func (f form) reset() form {
	for i := range f.inputs {
		f.inputs[i].Reset()
		f.inputs[i].Blur()
	}
	f.focus = 0
	if len(f.inputs) > 0 {
		f.inputs[0].Focus()
	}
	return f
}

// update returns the new form state and whether enter was pressed on the
// last field (submit).
func (f form) update(msg tea.Msg) (form, tea.Cmd, bool) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "down":
			f.inputs[f.focus].Blur()
			f.focus = (f.focus + 1) % len(f.inputs)
			return f, f.inputs[f.focus].Focus(), false
		case "shift+tab", "up":
			f.inputs[f.focus].Blur()
			f.focus = (f.focus - 1 + len(f.inputs)) % len(f.inputs)
			return f, f.inputs[f.focus].Focus(), false
		case "enter":
			if f.focus == len(f.inputs)-1 {
				return f, nil, true
			}
			f.inputs[f.focus].Blur()
			f.focus++
			return f, f.inputs[f.focus].Focus(), false
		}
	}
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return f, cmd, false
}

func (f form) view() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(f.title))
	b.WriteString("\n\n")
	for _, in := range f.inputs {
		b.WriteString(in.View())
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("tab: next field  enter: submit  esc: back"))
	return b.String()
}
