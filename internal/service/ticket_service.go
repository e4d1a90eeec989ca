package service

import (
	"context"

	"github.com/deskflow/helpdesk/internal/domain"
	"github.com/deskflow/helpdesk/internal/query"
	"github.com/deskflow/helpdesk/internal/repository"
	apperrors "github.com/deskflow/helpdesk/pkg/errorutil"
)

// TicketService serves ticket listings.
type TicketService struct {
	tickets repository.TicketRepository
}

// TicketPage is one page of a filtered ticket listing.
type TicketPage struct {
	Data       []domain.Ticket `json:"data"`
	Pagination query.PageInfo  `json:"pagination"`
}

// NewTicketService constructs the service.
func NewTicketService(tickets repository.TicketRepository) *TicketService {
	return &TicketService{tickets: tickets}
}

// ListTickets returns the requested page and the total match count.
func (s *TicketService) ListTickets(ctx context.Context, filter query.TicketFilter) (*TicketPage, error) {
	filter.Paginate = true
	plan := query.BuildTicketPlan(filter)

	total, err := s.tickets.Count(ctx, plan)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	tickets, err := s.tickets.List(ctx, plan)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &TicketPage{
		Data:       tickets,
		Pagination: query.NewPageInfo(plan.Page, plan.PageSize, total),
	}, nil
}

// ListAllTickets returns every ticket, newest first, closed ones included.
// It backs clients that request neither page nor limit.
func (s *TicketService) ListAllTickets(ctx context.Context) ([]domain.Ticket, error) {
	tickets, err := s.tickets.List(ctx, query.UnfilteredPlan())
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}
