package sheetapi

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/diticoms/service-desk/internal/errs"
	"github.com/diticoms/service-desk/internal/model"
)

// Row is a ticket as the sheet script stores it.
type Row struct {
	ID           string           `json:"id"`
	CreatedAt    string           `json:"created_at"`
	CustomerName string           `json:"customer_name"`
	Phone        string           `json:"phone"`
	Address      string           `json:"address"`
	Status       string           `json:"status"`
	Technician   string           `json:"technician"`
	Content      string           `json:"content"`
	WorkItems    []model.WorkItem `json:"work_items"`
	Revenue      int64            `json:"revenue"`
	Cost         int64            `json:"cost"`
	Debt         int64            `json:"debt"`
	SearchKey    string           `json:"search_key"`
}

// EncodeRow builds the create/update payload. Work items always go out as a
// real array so the script does not double-encode them.
func EncodeRow(t model.Ticket) Row {
	items := t.WorkItems
	if items == nil {
		items = []model.WorkItem{}
	}
	return Row{
		ID:           t.ID,
		CreatedAt:    t.CreatedAt,
		CustomerName: t.CustomerName,
		Phone:        t.Phone,
		Address:      t.Address,
		Status:       string(t.Status),
		Technician:   t.Technician,
		Content:      t.Content,
		WorkItems:    items,
		Revenue:      t.Revenue,
		Cost:         t.Cost,
		Debt:         t.Debt,
		SearchKey:    t.SearchKey(),
	}
}

// DecodeRows maps the `read` answer: a bare array, or an object wrapping the
// array under "data". An answer without any array is malformed so a caller
// never mistakes it for an empty sheet. Rows that are not objects are skipped.
func DecodeRows(raw json.RawMessage, now time.Time) ([]model.Ticket, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		var wrapped struct {
			Status string            `json:"status"`
			Error  string            `json:"error"`
			Data   []json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, &errs.MalformedResponseError{Action: "read", Snippet: snippet(raw, 120)}
		}
		if wrapped.Status == StatusError {
			return nil, &errs.ApplicationError{Action: "read", Message: wrapped.Error}
		}
		rows = wrapped.Data
	}
	if rows == nil {
		return nil, &errs.MalformedResponseError{Action: "read", Snippet: snippet(raw, 120)}
	}
	out := make([]model.Ticket, 0, len(rows))
	for _, r := range rows {
		t, ok := DecodeRow(r, now)
		if !ok {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// DecodeRow maps one raw row. Each field has an explicit fallback chain and
// degrades to its zero value instead of failing.
func DecodeRow(raw json.RawMessage, now time.Time) (model.Ticket, bool) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return model.Ticket{}, false
	}

	t := model.Ticket{
		ID:           asString(pick(m, "id")),
		CreatedAt:    asString(pick(m, "created_at", "createdAt", "date")),
		CustomerName: asString(pick(m, "customer_name", "customerName")),
		Phone:        strings.TrimPrefix(asString(pick(m, "phone")), "'"),
		Address:      asString(pick(m, "address")),
		Status:       model.TicketStatus(asString(pick(m, "status"))),
		Technician:   asString(pick(m, "technician")),
		Content:      asString(pick(m, "content")),
		WorkItems:    decodeWorkItems(pick(m, "work_items", "workItems")),
		Revenue:      model.LenientInt(pick(m, "revenue")),
		Cost:         model.LenientInt(pick(m, "cost")),
		Debt:         model.LenientInt(pick(m, "debt")),
	}
	if t.CreatedAt == "" {
		t.CreatedAt = now.UTC().Format(time.RFC3339Nano)
	}
	if t.Status == "" {
		t.Status = model.Statuses[0]
	}
	return t, true
}

// decodeWorkItems accepts a native array or a JSON-encoded string of one.
func decodeWorkItems(raw json.RawMessage) []model.WorkItem {
	items := []model.WorkItem{}
	if len(raw) == 0 {
		return items
	}
	src := []byte(raw)
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return items
		}
		s = strings.TrimSpace(s)
		if !strings.HasPrefix(s, "[") {
			return items
		}
		src = []byte(s)
	}
	if bytes.HasPrefix(src, []byte("[")) {
		var parsed []model.WorkItem
		if err := json.Unmarshal(src, &parsed); err == nil && parsed != nil {
			return parsed
		}
	}
	return items
}

// DecodeTechnicians reads the technician list from `read_settings`; the sheet
// stores it either as an array or as a JSON string of one.
func DecodeTechnicians(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return clean(list)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if err := json.Unmarshal([]byte(s), &list); err == nil {
			return clean(list)
		}
	}
	return []string{}
}

func clean(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// DecodePriceList reads `read_pricelist`; a non-array answer yields an empty list.
func DecodePriceList(raw json.RawMessage) []model.PriceItem {
	var rows []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return []model.PriceItem{}
	}
	out := make([]model.PriceItem, 0, len(rows))
	for _, r := range rows {
		name := asString(pick(r, "name"))
		if name == "" {
			continue
		}
		out = append(out, model.PriceItem{Name: name, Price: model.LenientInt(pick(r, "price"))})
	}
	return out
}

// pick returns the first key present with a non-null, non-empty value.
func pick(m map[string]json.RawMessage, keys ...string) json.RawMessage {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		s := string(bytes.TrimSpace(v))
		if s == "" || s == "null" || s == `""` {
			continue
		}
		return v
	}
	return nil
}

func asString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		if b {
			return "true"
		}
		return "false"
	}
	return ""
}
