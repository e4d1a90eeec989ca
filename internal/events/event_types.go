package events

import (
	"time"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketsImported  EventType = "tickets_imported"
	EventContactsImported EventType = "contacts_imported"
	EventExportGenerated  EventType = "export_generated"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Subject   string      `json:"subject,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// ImportCompletedPayload describes a committed import batch.
type ImportCompletedPayload struct {
	Entity          string `json:"entity"`
	BatchID         string `json:"batch_id,omitempty"`
	Created         int    `json:"created"`
	Failed          int    `json:"failed"`
	ContactsCreated int    `json:"contacts_created,omitempty"`
}

// ExportGeneratedPayload describes a produced export file.
type ExportGeneratedPayload struct {
	Entity string `json:"entity"`
	Format string `json:"format"`
	Rows   int    `json:"rows"`
}
