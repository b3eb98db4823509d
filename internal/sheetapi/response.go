package sheetapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/diticoms/service-desk/internal/errs"
	"github.com/diticoms/service-desk/internal/model"
)

// Response statuses reported by the sheet script.
const (
	StatusSuccess = "success"
	StatusUpdated = "updated"
	StatusDeleted = "deleted"
	StatusError   = "error"
)

func decodeBody(action string, raw []byte) (json.RawMessage, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%s: %w", action, errs.ErrEmptyResponse)
	}
	if v, ok := ExtractJSON(raw); ok {
		return v, nil
	}
	return nil, &errs.MalformedResponseError{Action: action, Snippet: snippet(raw, 120)}
}

// ExtractJSON returns raw when it is a JSON document, otherwise the span from the
// first '{' (or '[') to the last '}' (or ']'), whichever opener appears first,
// provided that span parses. The script endpoint sometimes wraps its JSON in
// log lines or HTML.
func ExtractJSON(raw []byte) (json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, false
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed), true
	}

	pairs := [2][2]byte{{'{', '}'}, {'[', ']'}}
	obj, arr := bytes.IndexByte(trimmed, '{'), bytes.IndexByte(trimmed, '[')
	if arr >= 0 && (obj < 0 || arr < obj) {
		pairs[0], pairs[1] = pairs[1], pairs[0]
	}
	for _, p := range pairs {
		start := bytes.IndexByte(trimmed, p[0])
		end := bytes.LastIndexByte(trimmed, p[1])
		if start < 0 || end <= start {
			continue
		}
		if span := trimmed[start : end+1]; json.Valid(span) {
			return json.RawMessage(span), true
		}
	}
	return nil, false
}

func snippet(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	cut := b[:max]
	for len(cut) > 0 && !utf8.Valid(cut) {
		cut = cut[:len(cut)-1]
	}
	return string(cut) + "…"
}

// Envelope is the object shape most actions answer with.
type Envelope struct {
	Status      string          `json:"status"`
	Error       string          `json:"error,omitempty"`
	Message     string          `json:"message,omitempty"`
	User        *model.User     `json:"user,omitempty"`
	Technicians json.RawMessage `json:"technicians,omitempty"`
}

func DecodeEnvelope(action string, raw json.RawMessage) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, &errs.MalformedResponseError{Action: action, Snippet: snippet(raw, 120)}
	}
	return env, nil
}

// Expect turns any status outside accepted into an ApplicationError.
func (e Envelope) Expect(action string, accepted ...string) error {
	for _, s := range accepted {
		if e.Status == s {
			return nil
		}
	}
	msg := e.Error
	if msg == "" {
		msg = e.Message
	}
	return &errs.ApplicationError{Action: action, Message: msg}
}
