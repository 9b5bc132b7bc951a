package things

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxNameLength        = 255
	MaxDescriptionLength = 4096
)

// Thing is the single resource exposed by the server
type Thing struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers cannot mutate stored state
func (t *Thing) Clone() *Thing {
	c := *t
	if t.Description != nil {
		d := *t.Description
		c.Description = &d
	}
	return &c
}

// sameAttributes reports whether t and o carry the same user-editable fields
func (t *Thing) sameAttributes(o *Thing) bool {
	if t.Name != o.Name || (t.Description == nil) != (o.Description == nil) {
		return false
	}
	return t.DescriptionText() == o.DescriptionText()
}

// DescriptionText returns the description or an empty string
func (t *Thing) DescriptionText() string {
	if t.Description == nil {
		return ""
	}
	return *t.Description
}

// ThingParams holds the attributes submitted under the "thing" group of a request.
// A nil field was not submitted.
type ThingParams struct {
	Name        *string `json:"name" form:"name"`
	Description *string `json:"description" form:"description"`
}

// UnmarshalJSON keeps the difference between an absent key and an explicit null:
// a null value is submitted as an empty string, which clears the description.
func (p *ThingParams) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var err error
	if p.Name, err = optionalString(fields, "name"); err != nil {
		return err
	}
	if p.Description, err = optionalString(fields, "description"); err != nil {
		return err
	}
	return nil
}

func optionalString(fields map[string]json.RawMessage, key string) (*string, error) {
	raw, ok := fields[key]
	if !ok {
		return nil, nil
	}

	var v *string
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	if v == nil {
		empty := ""
		return &empty, nil
	}
	return v, nil
}

// ListThingsRequest represents a request to list or search things
type ListThingsRequest struct {
	Term string `form:"term"`
}

// ValidationErrors maps an attribute name to its error messages
type ValidationErrors map[string][]string

// Add appends a message for the given field
func (v ValidationErrors) Add(field, message string) {
	v[field] = append(v[field], message)
}

// FullMessages renders "Name can't be blank" style messages, name first
func (v ValidationErrors) FullMessages() []string {
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Slice(fields, func(i, j int) bool {
		if fields[i] == "name" || fields[j] == "name" {
			return fields[i] == "name"
		}
		return fields[i] < fields[j]
	})

	var out []string
	for _, field := range fields {
		for _, msg := range v[field] {
			out = append(out, humanize(field)+" "+msg)
		}
	}
	return out
}

func humanize(field string) string {
	s := strings.ReplaceAll(field, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// validate checks a fully populated thing before it is persisted
func validate(t *Thing) ValidationErrors {
	errs := ValidationErrors{}

	if strings.TrimSpace(t.Name) == "" {
		errs.Add("name", "can't be blank")
	} else if utf8.RuneCountInString(t.Name) > MaxNameLength {
		errs.Add("name", fmt.Sprintf("is too long (maximum is %d characters)", MaxNameLength))
	}

	if t.Description != nil && utf8.RuneCountInString(*t.Description) > MaxDescriptionLength {
		errs.Add("description", fmt.Sprintf("is too long (maximum is %d characters)", MaxDescriptionLength))
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}
