package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/deskflow/helpdesk/internal/csvcodec"
	"github.com/deskflow/helpdesk/internal/domain"
	"github.com/deskflow/helpdesk/internal/events"
	"github.com/deskflow/helpdesk/internal/export"
	"github.com/deskflow/helpdesk/internal/observability"
	"github.com/deskflow/helpdesk/internal/query"
	"github.com/deskflow/helpdesk/internal/repository"
	apperrors "github.com/deskflow/helpdesk/pkg/errorutil"
)

// TicketExportColumns is the fixed column order of a ticket export.
var TicketExportColumns = []csvcodec.Column{
	{Key: "id", Header: "id"},
	{Key: "title", Header: "title"},
	{Key: "description", Header: "description"},
	{Key: "status", Header: "status"},
	{Key: "priority", Header: "priority"},
	{Key: "category", Header: "category"},
	{Key: "requester_name", Header: "requester_name"},
	{Key: "requester_email", Header: "requester_email"},
	{Key: "notes", Header: "notes"},
	{Key: "solution", Header: "solution"},
	{Key: "created_at", Header: "created_at"},
	{Key: "updated_at", Header: "updated_at"},
	{Key: "resolved_at", Header: "resolved_at"},
	{Key: "closed_at", Header: "closed_at"},
}

// ContactExportColumns is the fixed column order of a contact export.
var ContactExportColumns = []csvcodec.Column{
	{Key: "name", Header: "Namn"},
	{Key: "email", Header: "Email"},
	{Key: "phone", Header: "Telefon"},
	{Key: "company", Header: "Företag"},
}

// ExportFile is a rendered download.
type ExportFile struct {
	FileName    string
	ContentType string
	Body        []byte
	Rows        int
}

// ExportService renders ticket and contact downloads.
type ExportService struct {
	repos      repository.Repositories
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	clock      Clock
	ids        IDGenerator
}

// ExportDependencies bundles collaborators for ExportService.
type ExportDependencies struct {
	Repos      repository.Repositories
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Clock      Clock
	IDs        IDGenerator
}

// NewExportService constructs the service.
func NewExportService(deps ExportDependencies) *ExportService {
	svc := &ExportService{
		repos:      deps.Repos,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		clock:      deps.Clock,
		ids:        deps.IDs,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.clock == nil {
		svc.clock = SystemClock()
	}
	if svc.ids == nil {
		svc.ids = UUIDGenerator()
	}
	return svc
}

// ExportTickets renders every ticket matching filter, newest first.
// Category labels and requester details come from lookup maps loaded once.
func (s *ExportService) ExportTickets(ctx context.Context, filter query.TicketFilter, format export.Format) (*ExportFile, error) {
	tickets, err := s.repos.Tickets.List(ctx, query.BuildExportPlan(filter))
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	categories, err := s.repos.Categories.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	contacts, err := s.repos.Contacts.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	labels := make(map[string]string, len(categories))
	for _, cat := range categories {
		labels[cat.ID] = cat.Label
	}
	requesters := make(map[string]domain.Contact, len(contacts))
	for _, contact := range contacts {
		requesters[contact.ID] = contact
	}

	rows := make([]map[string]any, 0, len(tickets))
	for _, t := range tickets {
		row := map[string]any{
			"id":          t.ID,
			"title":       t.Title,
			"description": t.Description,
			"status":      string(t.Status),
			"priority":    string(t.Priority),
			"notes":       t.Notes,
			"solution":    t.Solution,
			"created_at":  t.CreatedAt,
			"updated_at":  t.UpdatedAt,
			"resolved_at": t.ResolvedAt,
			"closed_at":   t.ClosedAt,
		}
		if t.CategoryID != nil {
			row["category"] = labels[*t.CategoryID]
		}
		if t.RequesterID != nil {
			if contact, ok := requesters[*t.RequesterID]; ok {
				row["requester_name"] = contact.Name
				row["requester_email"] = contact.Email
			}
		}
		rows = append(rows, row)
	}

	return s.render(ctx, "tickets", "Ärenden", format, rows, TicketExportColumns)
}

// ExportContacts renders every contact ordered by name.
func (s *ExportService) ExportContacts(ctx context.Context, format export.Format) (*ExportFile, error) {
	contacts, err := s.repos.Contacts.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	rows := make([]map[string]any, 0, len(contacts))
	for _, c := range contacts {
		rows = append(rows, map[string]any{
			"name":    c.Name,
			"email":   c.Email,
			"phone":   c.Phone,
			"company": c.Company,
		})
	}
	return s.render(ctx, "contacts", "Kontakter", format, rows, ContactExportColumns)
}

func (s *ExportService) render(ctx context.Context, entity, sheet string, format export.Format, rows []map[string]any, columns []csvcodec.Column) (*ExportFile, error) {
	body, err := export.Render(format, sheet, rows, columns)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("render %s export: %w", entity, err))
	}

	s.metrics.RecordExport(entity, string(format), len(rows))
	if s.dispatcher != nil {
		event := events.Event{
			ID:        s.ids.NewID(),
			Type:      events.EventExportGenerated,
			Timestamp: s.clock.Now(),
			Payload:   events.ExportGeneratedPayload{Entity: entity, Format: string(format), Rows: len(rows)},
		}
		if err := s.dispatcher.Publish(ctx, event); err != nil {
			s.logger.Warn("publish event", zap.String("type", string(event.Type)), zap.Error(err))
		}
	}

	return &ExportFile{
		FileName:    fmt.Sprintf("%s-export-%s.%s", entity, s.clock.Now().Format("2006-01-02"), format),
		ContentType: format.ContentType(),
		Body:        body,
		Rows:        len(rows),
	}, nil
}
