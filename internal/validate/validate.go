// Package validate checks client-submitted bug documents before they reach the store.
package validate

import (
	"sort"
	"strings"

	"github.com/joescharf/bugs/internal/models"
)

// Field error messages returned to clients.
const (
	MsgTitleRequired       = "Title is required."
	MsgDescriptionRequired = "Description is required."
	MsgInvalidStatus       = "Invalid status."
)

// Errors maps a field name to its validation message.
type Errors map[string]string

// Messages returns the messages ordered by field name.
func (e Errors) Messages() []string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	msgs := make([]string, len(fields))
	for i, f := range fields {
		msgs[i] = e[f]
	}
	return msgs
}

// Bug validates a decoded JSON object. Every rule is evaluated, so title,
// description and status errors can be reported together. A status key that
// is absent or null is treated as not provided; any other value, including
// the empty string, must be one of the known statuses.
func Bug(input map[string]any) (bool, Errors) {
	errs := Errors{}

	if !nonBlankString(input["title"]) {
		errs["title"] = MsgTitleRequired
	}
	if !nonBlankString(input["description"]) {
		errs["description"] = MsgDescriptionRequired
	}
	if raw, ok := input["status"]; ok && raw != nil {
		s, isString := raw.(string)
		if !isString || !Status(s) {
			errs["status"] = MsgInvalidStatus
		}
	}

	return len(errs) == 0, errs
}

// Status reports whether s names a known bug status.
func Status(s string) bool {
	return models.BugStatus(s).Valid()
}

func nonBlankString(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) != ""
}
