package dto

import (
	"github.com/deskflow/helpdesk/internal/query"
)

// TicketListQuery captures the listing and export query string. Values are
// kept raw so malformed numbers fall back to defaults instead of failing.
type TicketListQuery struct {
	Page     string `query:"page"`
	Limit    string `query:"limit"`
	Status   string `query:"status"`
	Priority string `query:"priority"`
	Category string `query:"category"`
	Search   string `query:"search"`
	SortBy   string `query:"sortBy"`
	SortDir  string `query:"sortDir"`
	Format   string `query:"format"`
}

// Legacy reports whether the caller asked for the flat, unpaginated list.
func (q TicketListQuery) Legacy() bool {
	return q.Page == "" && q.Limit == ""
}

// Filter converts the query into a ticket filter.
func (q TicketListQuery) Filter() query.TicketFilter {
	return query.TicketFilter{
		Status:   q.Status,
		Priority: q.Priority,
		Category: q.Category,
		Search:   q.Search,
		SortBy:   query.ParseSortKey(q.SortBy),
		SortDir:  q.SortDir,
		Page:     query.ParseInt(q.Page),
		PageSize: query.ParseInt(q.Limit),
	}
}
