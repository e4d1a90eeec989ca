package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/deskflow/helpdesk/internal/events"
)

// AuditService records pipeline events in the structured log.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{dispatcher: dispatcher, logger: logger}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventTicketsImported, a.handleImported)
	a.dispatcher.Subscribe(events.EventContactsImported, a.handleImported)
	a.dispatcher.Subscribe(events.EventExportGenerated, a.handleExportGenerated)
}

func (a *AuditService) handleImported(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.ImportCompletedPayload)
	a.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.String("batch_id", payload.BatchID),
		zap.String("entity", payload.Entity),
		zap.Int("created", payload.Created),
		zap.Int("failed", payload.Failed),
		zap.Int("contacts_created", payload.ContactsCreated),
		zap.Time("at", event.Timestamp))
	return nil
}

func (a *AuditService) handleExportGenerated(_ context.Context, event events.Event) error {
	a.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.Any("payload", event.Payload),
		zap.Time("at", event.Timestamp))
	return nil
}
