// Package handoff implements the ephemeral token handoff between the
// web intake and the Telegram redemption flow: payload normalization,
// token generation, the in-memory store with TTL sweep, and the admin
// notification formatter.
package handoff

import (
	"strings"

	"github.com/google/uuid"
)

// Program describes the tour program an inquiry refers to. All fields
// are optional; the formatter drops sections whose values are empty.
type Program struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// IsEmpty reports whether no program information was submitted at all.
func (p Program) IsEmpty() bool {
	return p.ID == "" && p.Title == "" && p.URL == ""
}

// InquiryPayload is one booking inquiry exactly as captured at intake.
// Immutable once stored. ID is an internal correlation id assigned at
// intake and carried through log events on both sides of the handoff.
type InquiryPayload struct {
	ID      string  `json:"-"`
	Name    string  `json:"name"`
	Contact string  `json:"contact"`
	Date    string  `json:"date"`
	Guests  string  `json:"guests"`
	Message string  `json:"message"`
	Program Program `json:"program"`
}

// Request is the wire shape of POST /prestart. The program may arrive
// as a nested object or through the legacy flat fields the older front
// end sends.
type Request struct {
	Name    string   `json:"name"`
	Contact string   `json:"contact"`
	Date    string   `json:"date"`
	Guests  string   `json:"guests"`
	Message string   `json:"message"`
	Program *Program `json:"program"`

	ProgramIDSnake    string `json:"program_id"`
	ProgramIDCamel    string `json:"programId"`
	ProgramTitleSnake string `json:"program_title"`
	ProgramTitleCamel string `json:"programTitle"`
	ProgramURLSnake   string `json:"program_url"`
	ProgramURLCamel   string `json:"programUrl"`
}

// MissingFieldError reports a required intake field that was empty
// after trimming. Its message is part of the HTTP contract.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return "Missing " + e.Field
}

// Payload trims every field, resolves the program fallbacks and checks
// the required fields. Required fields are validated in a fixed order
// so the reported field is deterministic.
func (r Request) Payload() (InquiryPayload, error) {
	program := Program{}
	if r.Program != nil {
		program = *r.Program
	} else {
		program = Program{
			ID:    firstNonEmpty(r.ProgramIDSnake, r.ProgramIDCamel),
			Title: firstNonEmpty(r.ProgramTitleSnake, r.ProgramTitleCamel),
			URL:   firstNonEmpty(r.ProgramURLSnake, r.ProgramURLCamel),
		}
	}
	program.ID = strings.TrimSpace(program.ID)
	program.Title = strings.TrimSpace(program.Title)
	program.URL = strings.TrimSpace(program.URL)

	p := InquiryPayload{
		Name:    strings.TrimSpace(r.Name),
		Contact: strings.TrimSpace(r.Contact),
		Date:    strings.TrimSpace(r.Date),
		Guests:  strings.TrimSpace(r.Guests),
		Message: strings.TrimSpace(r.Message),
		Program: program,
	}

	for _, f := range []struct {
		name  string
		value string
	}{
		{"name", p.Name},
		{"contact", p.Contact},
		{"date", p.Date},
		{"guests", p.Guests},
		{"message", p.Message},
	} {
		if f.value == "" {
			return InquiryPayload{}, &MissingFieldError{Field: f.name}
		}
	}

	p.ID = uuid.NewString()
	return p, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
