package domain

import (
	"strings"
	"unicode/utf8"
)

const (
	maxNameLength  = 120
	maxNotesLength = 2000
)

// validator collects field-level failures so a single error reports all of them.
type validator struct {
	details map[string]string
}

func (v *validator) fail(field, message string) {
	if v.details == nil {
		v.details = make(map[string]string)
	}
	if _, exists := v.details[field]; !exists {
		v.details[field] = message
	}
}

func (v *validator) require(ok bool, field, message string) {
	if !ok {
		v.fail(field, message)
	}
}

func (v *validator) meta(m Meta) {
	v.require(strings.TrimSpace(m.ID) != "", "id", "must not be empty")
	v.require(strings.TrimSpace(m.ProfileID) != "", "profileId", "must not be empty")
}

func (v *validator) name(field, value string) {
	trimmed := strings.TrimSpace(value)
	switch {
	case trimmed == "":
		v.fail(field, "must not be empty")
	case utf8.RuneCountInString(trimmed) > maxNameLength:
		v.fail(field, "is too long")
	}
}

func (v *validator) text(field, value string) {
	if utf8.RuneCountInString(value) > maxNotesLength {
		v.fail(field, "is too long")
	}
}

func (v *validator) ref(field, value string) {
	v.require(strings.TrimSpace(value) != "", field, "must reference a record")
}

func (v *validator) idList(field string, ids []string) {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			v.fail(field, "contains an empty id")
			return
		}
		if _, dup := seen[id]; dup {
			v.fail(field, "contains duplicate id "+id)
			return
		}
		seen[id] = struct{}{}
	}
}

func (v *validator) result(entity EntityType, id string) error {
	if len(v.details) == 0 {
		return nil
	}
	return BusinessRule(entity, id, "invalid "+strings.ToLower(string(entity)), v.details)
}
