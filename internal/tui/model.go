// Package tui is the interactive terminal front end: a create form, the
// controller's error and loading state, and the bug list with inline edit
// and delete.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/joescharf/bugs/internal/models"
	"github.com/joescharf/bugs/internal/state"
)

// FocusRegion identifies which part of the screen receives keystrokes.
type FocusRegion int

const (
	// FocusForm routes keys to the create form.
	FocusForm FocusRegion = iota
	// FocusList moves the list cursor and triggers item actions.
	FocusList
	// FocusEdit routes keys to the inline edit form of one item.
	FocusEdit
)

// stateMsg delivers a controller snapshot after an action completes.
type stateMsg struct {
	state state.State
}

// Model is the bubbletea model for the bug tracker.
type Model struct {
	ctx   context.Context
	ctrl  *state.Controller
	keys  KeyMap
	theme Theme

	snap   state.State
	form   bugForm
	focus  FocusRegion
	cursor int

	// editing is the ID of the item in edit mode; every other item is
	// viewing.
	editing string
	edit    bugForm

	width int
}

// New creates a model driving ctrl. Init issues the first load.
func New(ctx context.Context, ctrl *state.Controller) Model {
	return Model{
		ctx:   ctx,
		ctrl:  ctrl,
		keys:  DefaultKeyMap,
		theme: DefaultTheme,
		snap:  ctrl.Snapshot(),
		form:  newBugForm(nil),
		focus: FocusForm,
	}
}

// Focus returns the focused region.
func (m Model) Focus() FocusRegion {
	return m.focus
}

// Editing returns the ID of the item being edited, or "".
func (m Model) Editing() string {
	return m.editing
}

func (m Model) Init() tea.Cmd {
	return m.run(func(ctx context.Context) error { return m.ctrl.Load(ctx) })
}

// run executes fn against the controller off the UI goroutine and reports
// the resulting snapshot. Errors are already recorded in the snapshot.
func (m Model) run(fn func(ctx context.Context) error) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		_ = fn(ctx)
		return stateMsg{state: ctrl.Snapshot()}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case stateMsg:
		m.applyState(msg.state)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.ForceQuit) {
			return m, tea.Quit
		}
		switch m.focus {
		case FocusForm:
			return m.updateForm(msg)
		case FocusList:
			return m.updateList(msg)
		case FocusEdit:
			return m.updateEdit(msg)
		}
	}
	return m, nil
}

func (m *Model) applyState(s state.State) {
	m.snap = s
	if m.cursor >= len(s.Bugs) {
		m.cursor = max(len(s.Bugs)-1, 0)
	}
	if m.editing != "" && m.indexOf(m.editing) < 0 {
		m.editing = ""
		if m.focus == FocusEdit {
			m.focus = FocusList
		}
	}
}

func (m Model) indexOf(id string) int {
	for i, b := range m.snap.Bugs {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func (m Model) selected() *models.Bug {
	if m.cursor < 0 || m.cursor >= len(m.snap.Bugs) {
		return nil
	}
	return m.snap.Bugs[m.cursor]
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Submit):
		if !m.form.complete() {
			return m, nil
		}
		in := m.form.input()
		m.form = newBugForm(nil)
		return m, m.run(func(ctx context.Context) error { return m.ctrl.Create(ctx, in) })

	case key.Matches(msg, m.keys.Cancel):
		m.form.blur()
		m.focus = FocusList
		return m, nil
	}

	m.form.handleKey(m.keys, msg)
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.snap.Bugs)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Edit):
		if b := m.selected(); b != nil {
			m.editing = b.ID
			m.edit = newBugForm(b)
			m.focus = FocusEdit
		}

	case key.Matches(msg, m.keys.Delete):
		if b := m.selected(); b != nil {
			id := b.ID
			return m, m.run(func(ctx context.Context) error { return m.ctrl.Delete(ctx, id) })
		}

	case key.Matches(msg, m.keys.Reload):
		return m, m.run(func(ctx context.Context) error { return m.ctrl.Load(ctx) })

	case key.Matches(msg, m.keys.NewBug):
		m.form.setFocus(fieldTitle)
		m.focus = FocusForm
	}
	return m, nil
}

func (m Model) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Submit):
		if !m.edit.complete() {
			return m, nil
		}
		id, in := m.editing, m.edit.input()
		m.editing = ""
		m.focus = FocusList
		return m, m.run(func(ctx context.Context) error { return m.ctrl.Update(ctx, id, in) })

	case key.Matches(msg, m.keys.Cancel):
		m.editing = ""
		m.focus = FocusList
		return m, nil
	}

	m.edit.handleKey(m.keys, msg)
	return m, nil
}

func (m Model) View() (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = m.theme.Error.Render(fmt.Sprintf("Something went wrong: %v", r)) + "\n"
		}
	}()

	var b strings.Builder
	t := m.theme

	b.WriteString(t.Title.Render("Bug Tracker") + "\n\n")
	b.WriteString(m.form.view(t, m.focus == FocusForm, "[ Report Bug ]"))
	b.WriteString("\n")

	if m.snap.Err != "" {
		b.WriteString(t.Error.Render(m.snap.Err) + "\n\n")
	}

	switch {
	case m.snap.Loading:
		b.WriteString(t.Muted.Render("Loading...") + "\n")
	case len(m.snap.Bugs) == 0:
		b.WriteString("No bugs reported.\n")
	default:
		for i, bug := range m.snap.Bugs {
			b.WriteString(m.renderItem(i, bug))
		}
	}

	b.WriteString("\n" + t.Muted.Render(m.help()) + "\n")
	return b.String()
}

func (m Model) renderItem(i int, bug *models.Bug) string {
	t := m.theme
	if bug.ID == m.editing {
		return m.edit.view(t, m.focus == FocusEdit, "[ Save ]  [ Cancel ]") + "\n"
	}

	marker := "  "
	title := t.BugTitle.Render(bug.Title)
	if m.focus == FocusList && i == m.cursor {
		marker = t.Selected.Render("▸ ")
		title = t.Selected.Render(bug.Title)
	}

	var b strings.Builder
	b.WriteString(marker + title + "\n")
	b.WriteString("  " + bug.Description + "\n")
	b.WriteString("  " + t.status(string(bug.Status)).Render("Status: "+string(bug.Status)) + "\n\n")
	return b.String()
}

func (m Model) help() string {
	var bindings []key.Binding
	switch m.focus {
	case FocusForm:
		bindings = []key.Binding{m.keys.Submit, m.keys.NextField, m.keys.StatusNext, m.keys.Cancel}
	case FocusList:
		bindings = []key.Binding{m.keys.Up, m.keys.Down, m.keys.Edit, m.keys.Delete, m.keys.NewBug, m.keys.Reload, m.keys.Quit}
	case FocusEdit:
		bindings = []key.Binding{m.keys.Submit, m.keys.NextField, m.keys.StatusNext, m.keys.Cancel}
	}

	parts := make([]string, 0, len(bindings))
	for _, kb := range bindings {
		h := kb.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " • ")
}

// Run starts the TUI on the terminal and blocks until the user quits.
func Run(ctx context.Context, ctrl *state.Controller) error {
	p := tea.NewProgram(New(ctx, ctrl), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
