package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type TicketStatus string

const (
	TicketStatusNew      TicketStatus = "Mới tiếp nhận"
	TicketStatusInRepair TicketStatus = "Đang sửa chữa"
	TicketStatusDone     TicketStatus = "Hoàn thành"
)

// Statuses in display order; the first one is the default for new tickets.
var Statuses = []TicketStatus{TicketStatusNew, TicketStatusInRepair, TicketStatusDone}

func (s TicketStatus) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

type User struct {
	Username       string `json:"username"`
	Name           string `json:"name"`
	Role           Role   `json:"role"`
	AssociatedTech string `json:"associatedTech,omitempty"`
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// ScopedTech returns the technician identity a restricted user is limited to,
// or "" when the user sees every ticket.
func (u User) ScopedTech() string {
	if u.IsAdmin() {
		return ""
	}
	return NormalizeIdentity(u.AssociatedTech)
}

// NormalizeIdentity trims and lowercases a technician name for comparison.
func NormalizeIdentity(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

type Ticket struct {
	ID           string       `json:"id"`
	CreatedAt    string       `json:"created_at"`
	CustomerName string       `json:"customer_name"`
	Phone        string       `json:"phone"`
	Address      string       `json:"address"`
	Status       TicketStatus `json:"status"`
	Technician   string       `json:"technician"`
	Content      string       `json:"content"`
	WorkItems    []WorkItem   `json:"work_items"`
	Revenue      int64        `json:"revenue"`
	Cost         int64        `json:"cost"`
	Debt         int64        `json:"debt"`
}

// Date is the YYYY-MM-DD part of CreatedAt.
func (t Ticket) Date() string {
	d, _, _ := strings.Cut(t.CreatedAt, "T")
	return d
}

// Estimate sums the work item totals.
func (t Ticket) Estimate() int64 {
	var sum int64
	for _, it := range t.WorkItems {
		sum += it.Total()
	}
	return sum
}

func (t Ticket) Profit() int64 { return t.Revenue - t.Cost }

// SettleDebt enforces the debt rule: a finished ticket owes nothing, anything
// else owes its revenue unless the debt was entered by hand.
func (t *Ticket) SettleDebt(overridden bool) {
	switch {
	case t.Status == TicketStatusDone:
		t.Debt = 0
	case !overridden:
		t.Debt = t.Revenue
	}
}

// SearchKey mirrors the key the sheet stores for server-side lookups.
func (t Ticket) SearchKey() string {
	return strings.ToLower(t.CustomerName + " " + t.Phone)
}

// WorkItem is one billable line. Total is derived and kept in sync by the setters.
type WorkItem struct {
	desc  string
	qty   int64
	price int64
	total int64
}

func NewWorkItem(desc string, qty, price int64) (WorkItem, error) {
	it := WorkItem{desc: desc, qty: 1}
	if err := it.SetQuantity(qty); err != nil {
		return WorkItem{}, err
	}
	if err := it.SetPrice(price); err != nil {
		return WorkItem{}, err
	}
	return it, nil
}

func (w WorkItem) Desc() string     { return w.desc }
func (w WorkItem) Quantity() int64  { return w.qty }
func (w WorkItem) Price() int64     { return w.price }
func (w WorkItem) Total() int64     { return w.total }
func (w *WorkItem) SetDesc(d string) { w.desc = d }

func (w *WorkItem) SetQuantity(q int64) error {
	if q < 1 {
		return fmt.Errorf("work item quantity must be positive, got %d", q)
	}
	w.qty = q
	w.total = w.qty * w.price
	return nil
}

func (w *WorkItem) SetPrice(p int64) error {
	if p < 0 {
		return fmt.Errorf("work item price must not be negative, got %d", p)
	}
	w.price = p
	w.total = w.qty * w.price
	return nil
}

type workItemJSON struct {
	Desc  string `json:"desc"`
	Qty   int64  `json:"qty"`
	Price int64  `json:"price"`
	Total int64  `json:"total"`
}

func (w WorkItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(workItemJSON{Desc: w.desc, Qty: w.qty, Price: w.price, Total: w.total})
}

// UnmarshalJSON is lenient: qty and price may arrive as numbers or formatted
// strings ("500.000"). A missing or non-positive qty becomes 1. The incoming
// total is ignored and recomputed.
func (w *WorkItem) UnmarshalJSON(b []byte) error {
	var raw struct {
		Desc  json.RawMessage `json:"desc"`
		Qty   json.RawMessage `json:"qty"`
		Price json.RawMessage `json:"price"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	qty := LenientInt(raw.Qty)
	if qty < 1 {
		qty = 1
	}
	price := LenientInt(raw.Price)
	if price < 0 {
		price = 0
	}
	*w = WorkItem{desc: lenientString(raw.Desc), qty: qty, price: price}
	w.total = qty * price
	return nil
}

// LenientInt decodes a JSON number or a string with thousands separators.
// Anything else is 0.
func LenientInt(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	// "500.000" is a Vietnamese-formatted 500000, not a decimal.
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ParseCurrency(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return int64(f)
		}
	}
	return 0
}

func lenientString(raw json.RawMessage) string {
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
	return ""
}

// ParseCurrency keeps only the digits of s ("1.500.000đ" -> 1500000).
func ParseCurrency(s string) int64 {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			return r
		}
		return -1
	}, s)
	if digits == "" {
		return 0
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

type FilterCriteria struct {
	DateFrom   string       `json:"date_from,omitempty"`
	DateTo     string       `json:"date_to,omitempty"`
	Search     string       `json:"search,omitempty"`
	Technician string       `json:"technician,omitempty"`
	Status     TicketStatus `json:"status,omitempty"`
	ViewAll    bool         `json:"view_all"`
}

type BankConfig struct {
	BankID      string `json:"bankId"`
	AccountNo   string `json:"accountNo"`
	AccountName string `json:"accountName"`
}

type AppConfig struct {
	SheetURL string      `json:"sheetUrl"`
	BankInfo *BankConfig `json:"bankInfo,omitempty"`
}

type PriceItem struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
}
