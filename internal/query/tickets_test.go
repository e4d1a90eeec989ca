package query

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultStatusExcludesClosed(t *testing.T) {
	plan := BuildTicketPlan(TicketFilter{})
	assert.Equal(t, "t.status <> $1", plan.Where)
	assert.Equal(t, []any{"closed"}, plan.Args)
	assert.Empty(t, plan.Joins)
}

func TestStatusAllDisablesFilter(t *testing.T) {
	plan := BuildTicketPlan(TicketFilter{Status: "all", Priority: "all", Category: "all"})
	assert.Equal(t, "TRUE", plan.Where)
	assert.Empty(t, plan.Args)
}

func TestEqualityFilters(t *testing.T) {
	plan := BuildTicketPlan(TicketFilter{Status: "waiting", Priority: "high", Category: "cat-1"})
	assert.Equal(t, "(t.status = $1 AND t.priority = $2 AND t.category_id = $3)", plan.Where)
	assert.Equal(t, []any{"waiting", "high", "cat-1"}, plan.Args)
}

func TestSearchBindsTermAndJoins(t *testing.T) {
	plan := BuildTicketPlan(TicketFilter{Status: "all", Search: " 50%_off'; DROP TABLE tickets; -- "})

	require.Len(t, plan.Joins, 6)
	require.Len(t, plan.Args, 1)
	assert.Equal(t, `%50\%\_off'; DROP TABLE tickets; --%`, plan.Args[0])
	assert.NotContains(t, plan.Where, "DROP")
	for _, col := range []string{"t.title", "t.description", "t.notes", "t.solution", "c.name", "c.email", "cat.label", "cm.content", "tg.name", "cfv.value"} {
		assert.Contains(t, plan.Where, col+" ILIKE $1")
	}

	selectSQL, _ := plan.SelectSQL()
	assert.Contains(t, selectSQL, "t.id IN (SELECT t.id FROM tickets t LEFT JOIN contacts c")

	countSQL, countArgs := plan.CountSQL()
	assert.True(t, strings.HasPrefix(countSQL, "SELECT COUNT(DISTINCT t.id) FROM tickets t LEFT JOIN"))
	assert.Equal(t, plan.Args, countArgs)
}

func TestSearchCombinesWithDefaultStatus(t *testing.T) {
	plan := BuildTicketPlan(TicketFilter{Search: "vpn"})
	assert.True(t, strings.HasPrefix(plan.Where, "(t.status <> $1 AND (t.title ILIKE $2"))
	assert.Equal(t, []any{"closed", "%vpn%"}, plan.Args)
}

func TestOrdering(t *testing.T) {
	tests := []struct {
		key  SortKey
		dir  string
		want string
	}{
		{key: "", dir: "", want: "t.created_at DESC, t.id ASC"},
		{key: SortCreatedAt, dir: "asc", want: "t.created_at ASC, t.id ASC"},
		{key: "title; DROP", dir: "sideways", want: "t.created_at DESC, t.id ASC"},
		{key: SortStatus, dir: "asc", want: "CASE t.status WHEN 'open' THEN 0 WHEN 'in-progress' THEN 1 WHEN 'waiting' THEN 2 WHEN 'resolved' THEN 3 WHEN 'closed' THEN 4 ELSE 5 END ASC, t.created_at DESC, t.id ASC"},
		{key: SortPriority, dir: "desc", want: "CASE t.priority WHEN 'low' THEN 0 WHEN 'medium' THEN 1 WHEN 'high' THEN 2 WHEN 'critical' THEN 3 ELSE 4 END DESC, t.created_at DESC, t.id ASC"},
		{key: SortCategory, dir: "ASC", want: "t.category_id ASC, t.created_at DESC, t.id ASC"},
	}
	for _, tt := range tests {
		t.Run(string(tt.key)+"/"+tt.dir, func(t *testing.T) {
			plan := BuildTicketPlan(TicketFilter{SortBy: tt.key, SortDir: tt.dir})
			assert.Equal(t, tt.want, plan.OrderBy)
		})
	}
}

func TestPaginationBindsLimitAndOffset(t *testing.T) {
	plan := BuildTicketPlan(TicketFilter{Status: "open", Paginate: true, Page: 3, PageSize: 25})
	assert.Equal(t, 50, plan.Offset())

	sql, args := plan.SelectSQL()
	assert.True(t, strings.HasSuffix(sql, "LIMIT $2 OFFSET $3"))
	assert.Equal(t, []any{"open", 25, 50}, args)

	countSQL, countArgs := plan.CountSQL()
	assert.Equal(t, "SELECT COUNT(*) FROM tickets t WHERE t.status = $1", countSQL)
	assert.Equal(t, []any{"open"}, countArgs)
}

func TestPaginationDefaults(t *testing.T) {
	plan := BuildTicketPlan(TicketFilter{Paginate: true, Page: -4, PageSize: 33})
	assert.Equal(t, 1, plan.Page)
	assert.Equal(t, DefaultPageSize, plan.PageSize)
	assert.Equal(t, 0, plan.Offset())

	for _, size := range AllowedPageSizes {
		assert.Equal(t, size, AllowPageSize(size))
	}
}

func TestHugePageKeepsOffsetNonNegative(t *testing.T) {
	plan := BuildTicketPlan(TicketFilter{Paginate: true, Page: math.MaxInt64 / 10, PageSize: 100})
	assert.Equal(t, MaxPage, plan.Page)
	assert.GreaterOrEqual(t, plan.Offset(), 0)

	_, args := plan.SelectSQL()
	require.GreaterOrEqual(t, len(args), 2)
	assert.Equal(t, []any{100, plan.Offset()}, args[len(args)-2:])

	info := NewPageInfo(math.MaxInt64/10, 100, 5)
	assert.Equal(t, 1, info.TotalPages)
	assert.False(t, info.HasNext)
	assert.True(t, info.HasPrev)
}

func TestExportPlanIgnoresPaginationAndSort(t *testing.T) {
	plan := BuildExportPlan(TicketFilter{Status: "closed", SortBy: SortPriority, SortDir: "asc", Paginate: true, Page: 2, PageSize: 20})
	assert.False(t, plan.Paginated)
	assert.Equal(t, "t.created_at DESC, t.id ASC", plan.OrderBy)

	sql, args := plan.SelectSQL()
	assert.NotContains(t, sql, "LIMIT")
	assert.Equal(t, []any{"closed"}, args)
}

func TestUnfilteredPlan(t *testing.T) {
	plan := UnfilteredPlan()
	assert.Equal(t, "TRUE", plan.Where)
	assert.False(t, plan.Paginated)
}

func TestPageInfo(t *testing.T) {
	first := NewPageInfo(1, 20, 45)
	assert.Equal(t, 3, first.TotalPages)
	assert.True(t, first.HasNext)
	assert.False(t, first.HasPrev)

	last := NewPageInfo(3, 20, 45)
	assert.False(t, last.HasNext)
	assert.True(t, last.HasPrev)

	empty := NewPageInfo(1, 50, 0)
	assert.Equal(t, 0, empty.TotalPages)
	assert.False(t, empty.HasNext)

	exact := NewPageInfo(2, 25, 50)
	assert.False(t, exact.HasNext)
}

func TestParseHelpers(t *testing.T) {
	assert.Equal(t, SortPriority, ParseSortKey("priority"))
	assert.Equal(t, SortCreatedAt, ParseSortKey("title"))
	assert.Equal(t, 0, ParseInt("abc"))
	assert.Equal(t, 7, ParseInt(" 7 "))
}
