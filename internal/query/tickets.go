// Package query builds parameterized ticket listing queries from filter,
// sort and pagination requests.
package query

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/deskflow/helpdesk/internal/domain"
)

// All disables an equality filter.
const All = "all"

// SortKey selects the ticket ordering.
type SortKey string

const (
	SortCreatedAt SortKey = "createdAt"
	SortStatus    SortKey = "status"
	SortPriority  SortKey = "priority"
	SortCategory  SortKey = "category"
)

// DefaultPageSize applies when the requested size is not allowed.
const DefaultPageSize = 50

// AllowedPageSizes lists accepted page sizes.
var AllowedPageSizes = []int{20, 25, 50, 100}

// MaxPage keeps the row offset of any allowed page size within int range.
const MaxPage = math.MaxInt / 100

// TicketColumns is the column list scanned into domain.Ticket.
const TicketColumns = `t.id, t.title, t.description, t.status, t.priority, t.category_id, t.requester_id,
       t.notes, t.solution, t.template_id, t.created_at, t.updated_at, t.resolved_at, t.closed_at`

var searchJoins = []string{
	"LEFT JOIN contacts c ON c.id = t.requester_id",
	"LEFT JOIN categories cat ON cat.id = t.category_id",
	"LEFT JOIN comments cm ON cm.ticket_id = t.id",
	"LEFT JOIN ticket_tags tt ON tt.ticket_id = t.id",
	"LEFT JOIN tags tg ON tg.id = tt.tag_id",
	"LEFT JOIN custom_field_values cfv ON cfv.ticket_id = t.id",
}

var searchColumns = []string{
	"t.title", "t.description", "t.notes", "t.solution",
	"c.name", "c.email",
	"cat.label",
	"cm.content",
	"tg.name",
	"cfv.value",
}

// TicketFilter is a listing request. Zero values mean "not supplied".
type TicketFilter struct {
	Status   string
	Priority string
	Category string
	Search   string
	SortBy   SortKey
	SortDir  string
	Page     int
	PageSize int
	Paginate bool
}

// Plan is a built ticket query: a predicate with its bound arguments, the
// join set it needs, an ordering, and optional pagination.
type Plan struct {
	Where     string
	Args      []any
	Joins     []string
	OrderBy   string
	Paginated bool
	Page      int
	PageSize  int
}

// Offset returns the row offset of the requested page.
func (p Plan) Offset() int {
	if !p.Paginated {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

// SelectSQL returns the listing statement. With joins, matching ids are
// de-duplicated in a subquery so one ticket matched through several
// comments or tags appears once.
func (p Plan) SelectSQL() (string, []any) {
	args := append([]any(nil), p.Args...)
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(TicketColumns)
	b.WriteString("\nFROM tickets t\nWHERE ")
	if len(p.Joins) > 0 {
		b.WriteString("t.id IN (SELECT t.id FROM tickets t ")
		b.WriteString(strings.Join(p.Joins, " "))
		b.WriteString(" WHERE ")
		b.WriteString(p.Where)
		b.WriteString(")")
	} else {
		b.WriteString(p.Where)
	}
	b.WriteString("\nORDER BY ")
	b.WriteString(p.OrderBy)
	if p.Paginated {
		args = append(args, p.PageSize)
		fmt.Fprintf(&b, "\nLIMIT $%d", len(args))
		args = append(args, p.Offset())
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}
	return b.String(), args
}

// CountSQL returns the total-count statement over the same predicate and joins.
func (p Plan) CountSQL() (string, []any) {
	args := append([]any(nil), p.Args...)
	if len(p.Joins) > 0 {
		return "SELECT COUNT(DISTINCT t.id) FROM tickets t " + strings.Join(p.Joins, " ") + " WHERE " + p.Where, args
	}
	return "SELECT COUNT(*) FROM tickets t WHERE " + p.Where, args
}

// BuildTicketPlan translates f into a Plan. Without a status filter closed
// tickets are excluded; "all" disables a filter. Unknown sort keys and page
// sizes fall back to defaults.
func BuildTicketPlan(f TicketFilter) Plan {
	var preds []Predicate

	switch status := strings.TrimSpace(f.Status); status {
	case "":
		preds = append(preds, NotEq("t.status", string(domain.TicketStatusClosed)))
	case All:
	default:
		preds = append(preds, Eq("t.status", status))
	}
	if priority := strings.TrimSpace(f.Priority); priority != "" && priority != All {
		preds = append(preds, Eq("t.priority", priority))
	}
	if category := strings.TrimSpace(f.Category); category != "" && category != All {
		preds = append(preds, Eq("t.category_id", category))
	}

	var joins []string
	if search := strings.TrimSpace(f.Search); search != "" {
		joins = searchJoins
		preds = append(preds, ContainsAny(search, searchColumns...))
	}

	where, args := Render(And(preds...))
	plan := Plan{
		Where:   where,
		Args:    args,
		Joins:   joins,
		OrderBy: orderBy(f.SortBy, f.SortDir),
	}
	if f.Paginate {
		plan.Paginated = true
		plan.Page = ClampPage(f.Page)
		plan.PageSize = AllowPageSize(f.PageSize)
	}
	return plan
}

// BuildExportPlan applies f's filters without pagination, newest first.
func BuildExportPlan(f TicketFilter) Plan {
	f.SortBy = SortCreatedAt
	f.SortDir = "desc"
	f.Paginate = false
	return BuildTicketPlan(f)
}

// UnfilteredPlan lists every ticket, closed included, newest first.
func UnfilteredPlan() Plan {
	return BuildTicketPlan(TicketFilter{Status: All, SortBy: SortCreatedAt, SortDir: "desc"})
}

func orderBy(key SortKey, dir string) string {
	direction := "DESC"
	if strings.EqualFold(strings.TrimSpace(dir), "asc") {
		direction = "ASC"
	}
	switch key {
	case SortStatus:
		return rankCase("t.status", domain.TicketStatuses) + " " + direction + ", t.created_at DESC, t.id ASC"
	case SortPriority:
		return rankCase("t.priority", domain.TicketPriorities) + " " + direction + ", t.created_at DESC, t.id ASC"
	case SortCategory:
		return "t.category_id " + direction + ", t.created_at DESC, t.id ASC"
	default:
		return "t.created_at " + direction + ", t.id ASC"
	}
}

func rankCase[T ~string](column string, ordered []T) string {
	var b strings.Builder
	b.WriteString("CASE ")
	b.WriteString(column)
	for i, v := range ordered {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", string(v), i)
	}
	fmt.Fprintf(&b, " ELSE %d END", len(ordered))
	return b.String()
}

// ClampPage returns page limited to the range 1..MaxPage.
func ClampPage(page int) int {
	if page < 1 {
		return 1
	}
	if page > MaxPage {
		return MaxPage
	}
	return page
}

// AllowPageSize returns size when allowed, DefaultPageSize otherwise.
func AllowPageSize(size int) int {
	for _, allowed := range AllowedPageSizes {
		if size == allowed {
			return size
		}
	}
	return DefaultPageSize
}

// ParseSortKey maps raw input onto a SortKey, defaulting to createdAt.
func ParseSortKey(raw string) SortKey {
	switch key := SortKey(strings.TrimSpace(raw)); key {
	case SortStatus, SortPriority, SortCategory:
		return key
	default:
		return SortCreatedAt
	}
}

// ParseInt parses raw, returning 0 when it is blank or malformed.
func ParseInt(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return n
}

// PageInfo describes a returned page.
type PageInfo struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// NewPageInfo computes page navigation for total matching rows.
func NewPageInfo(page, limit, total int) PageInfo {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return PageInfo{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}
