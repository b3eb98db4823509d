package service

import "github.com/diticoms/service-desk/internal/model"

// Summary aggregates the money columns of a ticket list.
type Summary struct {
	Count   int   `json:"count"`
	Revenue int64 `json:"revenue"`
	Cost    int64 `json:"cost"`
	Profit  int64 `json:"profit"`
	Debt    int64 `json:"debt"`
}

func Summarize(tickets []model.Ticket) Summary {
	s := Summary{Count: len(tickets)}
	for _, t := range tickets {
		s.Revenue += t.Revenue
		s.Cost += t.Cost
		s.Debt += t.Debt
	}
	s.Profit = s.Revenue - s.Cost
	return s
}
