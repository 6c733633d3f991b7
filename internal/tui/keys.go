package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings for the terminal dashboard.
type KeyMap struct {
	NextField key.Binding
	PrevField key.Binding
	Submit    key.Binding // Sign in on the auth panel, create issue on the form.
	SignUp    key.Binding

	Priority key.Binding // Cycle the form's priority.
	Filter   key.Binding // Cycle the status filter.

	Up     key.Binding
	Down   key.Binding
	Start  key.Binding // Move the selected issue to In Progress.
	Finish key.Binding // Move the selected issue to Done.

	SignOut key.Binding
	Yes     key.Binding
	No      key.Binding
	Quit    key.Binding
}

// DefaultKeyMap is the built-in key binding set. List keys only apply while
// the list has focus so they never swallow typed text.
var DefaultKeyMap = KeyMap{
	NextField: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
	PrevField: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("S-tab", "prev field")),
	Submit:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
	SignUp:    key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("C-r", "sign up")),
	Priority:  key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("C-p", "priority")),
	Filter:    key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "filter")),
	Up:        key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
	Down:      key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
	Start:     key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "work")),
	Finish:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "done")),
	SignOut:   key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("C-o", "sign out")),
	Yes:       key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "yes")),
	No:        key.NewBinding(key.WithKeys("n", "N", "esc"), key.WithHelp("n", "no")),
	Quit:      key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("C-c", "quit")),
}
