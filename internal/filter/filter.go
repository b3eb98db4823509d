// Package filter derives the visible, ordered ticket list from the cached
// collection, the active criteria and the acting user.
package filter

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/diticoms/service-desk/internal/model"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const dateLayout = "2006-01-02"

var epoch = time.Unix(0, 0).UTC()

// Apply returns a new slice; tickets is never modified.
func Apply(tickets []model.Ticket, c model.FilterCriteria, u model.User) []model.Ticket {
	scope := u.ScopedTech()
	search := Fold(strings.TrimSpace(c.Search))
	tech := strings.TrimSpace(c.Technician)

	out := make([]model.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if scope != "" && model.NormalizeIdentity(t.Technician) != scope {
			continue
		}
		if !c.ViewAll && !inRange(t.Date(), c.DateFrom, c.DateTo) {
			continue
		}
		if u.IsAdmin() && tech != "" && t.Technician != tech {
			continue
		}
		if c.Status != "" && t.Status != c.Status {
			continue
		}
		if search != "" && !matches(t, search) {
			continue
		}
		out = append(out, t)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return CreatedAt(out[i]).After(CreatedAt(out[j]))
	})
	return out
}

// Today seeds criteria covering the current local date.
func Today(now time.Time) model.FilterCriteria {
	d := now.Format(dateLayout)
	return model.FilterCriteria{DateFrom: d, DateTo: d}
}

// ISO dates compare correctly as strings.
func inRange(date, from, to string) bool {
	if from != "" && date < from {
		return false
	}
	if to != "" && date > to {
		return false
	}
	return true
}

func matches(t model.Ticket, folded string) bool {
	for _, f := range []string{t.CustomerName, t.Phone, t.Address} {
		if strings.Contains(Fold(f), folded) {
			return true
		}
	}
	return false
}

// CreatedAt parses the ticket timestamp; anything unparseable is the epoch.
func CreatedAt(t model.Ticket) time.Time {
	s := strings.TrimSpace(t.CreatedAt)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", dateLayout} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return epoch
}

// Fold lowercases s and strips Vietnamese diacritics so "Nguyễn Đức" matches "nguyen duc".
func Fold(s string) string {
	if s == "" {
		return s
	}
	tr := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(tr, s)
	if err != nil {
		folded = s
	}
	folded = strings.NewReplacer("đ", "d", "Đ", "d").Replace(folded)
	return strings.ToLower(folded)
}
