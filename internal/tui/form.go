package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/joescharf/bugs/internal/models"
)

// MsgFieldsRequired is shown when a form is submitted without a title or
// description.
const MsgFieldsRequired = "Title and description are required."

type formField int

const (
	fieldTitle formField = iota
	fieldDescription
	fieldStatus
	fieldCount
)

// bugForm is the three-field editor shared by the create form and the
// inline edit form.
type bugForm struct {
	title       textinput.Model
	description textinput.Model
	status      models.BugStatus
	focus       formField
	err         string
}

// newBugForm returns an empty form, or one pre-populated from b.
func newBugForm(b *models.Bug) bugForm {
	f := bugForm{
		title:       newInput("Title"),
		description: newInput("Description"),
		status:      models.BugStatusOpen,
	}
	if b != nil {
		f.title.SetValue(b.Title)
		f.description.SetValue(b.Description)
		if b.Status.Valid() {
			f.status = b.Status
		}
	}
	f.setFocus(fieldTitle)
	return f
}

func newInput(placeholder string) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = ""
	ti.CharLimit = 512
	return ti
}

// setFocus moves input focus. Cursor blink commands are not needed and are
// dropped.
func (f *bugForm) setFocus(field formField) {
	f.focus = field
	f.title.Blur()
	f.description.Blur()
	switch field {
	case fieldTitle:
		_ = f.title.Focus()
	case fieldDescription:
		_ = f.description.Focus()
	}
}

func (f *bugForm) blur() {
	f.title.Blur()
	f.description.Blur()
}

// handleKey applies field navigation, status cycling and text entry. It does
// not handle submit or cancel.
func (f *bugForm) handleKey(keys KeyMap, msg tea.KeyMsg) {
	switch {
	case key.Matches(msg, keys.NextField):
		f.setFocus((f.focus + 1) % fieldCount)
	case key.Matches(msg, keys.PrevField):
		f.setFocus((f.focus + fieldCount - 1) % fieldCount)
	case f.focus == fieldStatus && key.Matches(msg, keys.StatusNext):
		f.status = f.status.Next()
	case f.focus == fieldStatus && key.Matches(msg, keys.StatusPrev):
		f.status = f.status.Prev()
	case f.focus == fieldTitle:
		f.title, _ = f.title.Update(msg)
	case f.focus == fieldDescription:
		f.description, _ = f.description.Update(msg)
	}
}

// complete reports whether title and description are non-blank. It records
// the form error as a side effect.
func (f *bugForm) complete() bool {
	if strings.TrimSpace(f.title.Value()) == "" || strings.TrimSpace(f.description.Value()) == "" {
		f.err = MsgFieldsRequired
		return false
	}
	f.err = ""
	return true
}

func (f bugForm) input() models.BugInput {
	return models.BugInput{
		Title:       f.title.Value(),
		Description: f.description.Value(),
		Status:      f.status,
	}
}

func (f bugForm) view(t Theme, active bool, buttons string) string {
	var b strings.Builder

	row := func(field formField, label, value string) {
		marker := "  "
		labelStyle := t.Label
		if active && f.focus == field {
			marker = t.Focused.Render("> ")
			labelStyle = t.Focused
		}
		fmt.Fprintf(&b, "%s%s %s\n", marker, labelStyle.Render(label), value)
	}

	row(fieldTitle, "Title:      ", f.title.View())
	row(fieldDescription, "Description:", f.description.View())
	row(fieldStatus, "Status:     ", "< "+t.status(string(f.status)).Render(string(f.status))+" >")

	b.WriteString("  " + t.Button.Render(buttons) + "\n")
	if f.err != "" {
		b.WriteString("  " + t.Error.Render(f.err) + "\n")
	}
	return b.String()
}
