package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/deskflow/helpdesk/internal/config"
	"github.com/deskflow/helpdesk/internal/csvcodec"
	"github.com/deskflow/helpdesk/internal/domain"
	"github.com/deskflow/helpdesk/internal/events"
	"github.com/deskflow/helpdesk/internal/importer"
	"github.com/deskflow/helpdesk/internal/observability"
	"github.com/deskflow/helpdesk/internal/repository"
	apperrors "github.com/deskflow/helpdesk/pkg/errorutil"
)

const msgEmptyFile = "CSV-filen är tom eller saknar datarader"

// ImportService runs the two-phase CSV import for tickets and contacts.
type ImportService struct {
	repos      repository.Repositories
	tx         repository.Transactor
	batches    repository.ImportBatchStore
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	clock      Clock
	ids        IDGenerator
	cfg        config.ImportConfig
}

// ImportDependencies bundles collaborators for ImportService. Batches,
// Dispatcher and Metrics are optional.
type ImportDependencies struct {
	Repos      repository.Repositories
	Transactor repository.Transactor
	Batches    repository.ImportBatchStore
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Clock      Clock
	IDs        IDGenerator
	Config     config.ImportConfig
}

// TicketPreview is the preview result for a ticket upload.
type TicketPreview struct {
	BatchID    string               `json:"batchId,omitempty"`
	Total      int                  `json:"total"`
	Valid      int                  `json:"valid"`
	Invalid    int                  `json:"invalid"`
	Duplicates int                  `json:"duplicates"`
	Results    []importer.TicketRow `json:"results"`
}

// maxReportedErrors bounds the errors listed in an import report.
const maxReportedErrors = 10

// ContactPreview is the preview result for a contact upload.
type ContactPreview struct {
	BatchID    string                `json:"batchId,omitempty"`
	Total      int                   `json:"total"`
	Valid      int                   `json:"valid"`
	Invalid    int                   `json:"invalid"`
	Duplicates int                   `json:"duplicates"`
	Results    []importer.ContactRow `json:"results"`
}

// TicketConfirmRequest carries the ticket drafts accepted by the user.
type TicketConfirmRequest struct {
	BatchID string                 `json:"batchId,omitempty"`
	Tickets []importer.TicketDraft `json:"tickets"`
}

// ContactConfirmRequest carries the contact drafts accepted by the user.
type ContactConfirmRequest struct {
	BatchID  string                  `json:"batchId,omitempty"`
	Contacts []importer.ContactDraft `json:"contacts"`
}

// ImportReport summarizes a committed confirmation.
type ImportReport struct {
	Success         bool     `json:"success"`
	Created         int      `json:"created"`
	Failed          int      `json:"failed"`
	Errors          []string `json:"errors"`
	ContactsCreated int      `json:"contactsCreated,omitempty"`
}

// NewImportService constructs the service.
func NewImportService(deps ImportDependencies) *ImportService {
	svc := &ImportService{
		repos:      deps.Repos,
		tx:         deps.Transactor,
		batches:    deps.Batches,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		clock:      deps.Clock,
		ids:        deps.IDs,
		cfg:        deps.Config,
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
	if svc.cfg.MaxReportedErrors <= 0 || svc.cfg.MaxReportedErrors > maxReportedErrors {
		svc.cfg.MaxReportedErrors = maxReportedErrors
	}
	return svc
}

// PreviewTickets validates an uploaded ticket CSV without writing tickets.
func (s *ImportService) PreviewTickets(ctx context.Context, fileName string, content []byte) (*TicketPreview, error) {
	records, err := decodeUpload(content)
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]string, len(records))
	ids := make([]string, 0, len(records))
	for i, rec := range records {
		rows[i] = importer.Normalize(importer.EntityTicket, rec)
		if id := strings.TrimSpace(rows[i][importer.FieldID]); id != "" {
			ids = append(ids, id)
		}
	}

	categories, err := s.repos.Categories.List(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("load categories: %w", err))
	}
	existing, err := s.repos.Tickets.ExistingIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("load ticket ids: %w", err))
	}
	snapshot := importer.NewTicketContext(categories, existing)

	preview := &TicketPreview{Total: len(rows), Results: make([]importer.TicketRow, 0, len(rows))}
	for _, row := range rows {
		result := importer.ValidateTicket(row, snapshot)
		if result.Valid {
			preview.Valid++
		} else {
			preview.Invalid++
		}
		if result.IsDuplicate {
			preview.Duplicates++
		}
		preview.Results = append(preview.Results, result)
	}

	preview.BatchID = s.saveBatch(ctx, importer.EntityTicket, fileName, preview.Total, preview.Valid, preview.Invalid, preview.Duplicates)
	return preview, nil
}

// PreviewContacts validates an uploaded contact CSV without writing contacts.
// An email repeated within the file is flagged on every occurrence after
// the first.
func (s *ImportService) PreviewContacts(ctx context.Context, fileName string, content []byte) (*ContactPreview, error) {
	records, err := decodeUpload(content)
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]string, len(records))
	emails := make([]string, 0, len(records))
	for i, rec := range records {
		rows[i] = importer.Normalize(importer.EntityContact, rec)
		if email := strings.TrimSpace(rows[i][importer.FieldEmail]); email != "" {
			emails = append(emails, email)
		}
	}

	existing, err := s.repos.Contacts.ExistingEmails(ctx, emails)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("load contact emails: %w", err))
	}
	snapshot := importer.NewContactContext(existing)

	preview := &ContactPreview{Total: len(rows), Results: make([]importer.ContactRow, 0, len(rows))}
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		result := importer.ValidateContact(row, snapshot)
		if email := result.Contact.Email; email != "" && !result.IsDuplicate {
			key := importer.Fold(email)
			if _, ok := seen[key]; ok {
				result.IsDuplicate = true
				result.Valid = false
				result.Errors = append(result.Errors, fmt.Sprintf("E-postadressen %q förekommer flera gånger i filen", email))
			}
			seen[key] = struct{}{}
		}
		if result.Valid {
			preview.Valid++
		} else {
			preview.Invalid++
		}
		if result.IsDuplicate {
			preview.Duplicates++
		}
		preview.Results = append(preview.Results, result)
	}

	preview.BatchID = s.saveBatch(ctx, importer.EntityContact, fileName, preview.Total, preview.Valid, preview.Invalid, preview.Duplicates)
	return preview, nil
}

// ConfirmTickets inserts the drafts in one transaction. Each row runs in its
// own savepoint so a failing row is reported without undoing the others.
func (s *ImportService) ConfirmTickets(ctx context.Context, req TicketConfirmRequest) (*ImportReport, error) {
	batch, err := s.claimBatch(ctx, importer.EntityTicket, req.BatchID)
	if err != nil {
		return nil, err
	}

	report := newImportReport()
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context, tx repository.TxScope) error {
		categories, err := tx.Repos().Categories.List(ctx)
		if err != nil {
			return fmt.Errorf("load categories: %w", err)
		}
		lookup := importer.NewTicketContext(categories, nil)

		for i, draft := range req.Tickets {
			if err := ctx.Err(); err != nil {
				return err
			}
			var contactCreated bool
			rowErr := tx.Isolate(ctx, func(ctx context.Context, repos repository.Repositories) error {
				created, err := s.insertTicket(ctx, repos, lookup, draft)
				contactCreated = created
				return err
			})
			if isFatal(rowErr) {
				return rowErr
			}
			if rowErr != nil {
				s.recordFailure(report, i, draft.Title, rowErr)
				continue
			}
			report.Created++
			if contactCreated {
				report.ContactsCreated++
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.abortBatch(ctx, batch, importer.EntityTicket, err)
	}

	s.finishBatch(ctx, batch, importer.EntityTicket, report)
	return report, nil
}

// ConfirmContacts inserts the contact drafts in one transaction with the
// same per-row isolation as ConfirmTickets.
func (s *ImportService) ConfirmContacts(ctx context.Context, req ContactConfirmRequest) (*ImportReport, error) {
	batch, err := s.claimBatch(ctx, importer.EntityContact, req.BatchID)
	if err != nil {
		return nil, err
	}

	report := newImportReport()
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context, tx repository.TxScope) error {
		for i, draft := range req.Contacts {
			if err := ctx.Err(); err != nil {
				return err
			}
			rowErr := tx.Isolate(ctx, func(ctx context.Context, repos repository.Repositories) error {
				return s.insertContact(ctx, repos, draft)
			})
			if isFatal(rowErr) {
				return rowErr
			}
			if rowErr != nil {
				label := draft.Email
				if strings.TrimSpace(label) == "" {
					label = draft.Name
				}
				s.recordFailure(report, i, label, rowErr)
				continue
			}
			report.Created++
		}
		return nil
	})
	if err != nil {
		return nil, s.abortBatch(ctx, batch, importer.EntityContact, err)
	}

	s.finishBatch(ctx, batch, importer.EntityContact, report)
	return report, nil
}

func (s *ImportService) insertTicket(ctx context.Context, repos repository.Repositories, lookup *importer.TicketContext, draft importer.TicketDraft) (bool, error) {
	title := strings.TrimSpace(draft.Title)
	if title == "" {
		return false, errors.New("Titel saknas")
	}
	status, err := importer.ParseStatus(string(draft.Status))
	if err != nil {
		return false, err
	}
	priority, err := importer.ParsePriority(string(draft.Priority))
	if err != nil {
		return false, err
	}
	description := strings.TrimSpace(draft.Description)
	if description == "" {
		description = title
	}

	var categoryID *string
	if label := strings.TrimSpace(draft.Category); label != "" {
		if cat, ok := lookup.ResolveCategory(label); ok {
			id := cat.ID
			categoryID = &id
		}
	} else if draft.CategoryID != nil {
		if cat, ok := lookup.CategoryByID(*draft.CategoryID); ok {
			id := cat.ID
			categoryID = &id
		}
	}

	requesterID, contactCreated, err := s.resolveRequester(ctx, repos.Contacts,
		strings.TrimSpace(draft.RequesterName), strings.TrimSpace(draft.RequesterEmail))
	if err != nil {
		return false, err
	}

	now := s.clock.Now()
	ticket := &domain.Ticket{
		ID:          s.ids.NewID(),
		Title:       title,
		Description: description,
		Priority:    priority,
		CategoryID:  categoryID,
		RequesterID: requesterID,
		Notes:       strings.TrimSpace(draft.Notes),
		Solution:    strings.TrimSpace(draft.Solution),
		CreatedAt:   now,
	}
	ticket.ApplyStatus(status, now)

	if err := repos.Tickets.Create(ctx, ticket); err != nil {
		return false, err
	}
	return contactCreated, nil
}

// resolveRequester links a ticket to an existing contact, matching by email
// when one is given and by name otherwise. A contact is created only when
// both name and a well-formed email are present and no email match exists.
func (s *ImportService) resolveRequester(ctx context.Context, contacts repository.ContactRepository, name, email string) (*string, bool, error) {
	if email != "" {
		existing, err := contacts.FindByEmail(ctx, email)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return &existing.ID, false, nil
		}
		if name == "" || !importer.ValidEmail(email) {
			return nil, false, nil
		}
		contact := &domain.Contact{
			ID:        s.ids.NewID(),
			Name:      name,
			Email:     email,
			CreatedAt: s.clock.Now(),
		}
		if err := contacts.Create(ctx, contact); err != nil {
			return nil, false, fmt.Errorf("create contact: %w", err)
		}
		return &contact.ID, true, nil
	}
	if name == "" {
		return nil, false, nil
	}
	existing, err := contacts.FindByName(ctx, name)
	if err != nil || existing == nil {
		return nil, false, err
	}
	return &existing.ID, false, nil
}

func (s *ImportService) insertContact(ctx context.Context, repos repository.Repositories, draft importer.ContactDraft) error {
	name := strings.TrimSpace(draft.Name)
	email := strings.TrimSpace(draft.Email)
	switch {
	case name == "":
		return errors.New("Namn saknas")
	case email == "":
		return errors.New("E-post saknas")
	case !importer.ValidEmail(email):
		return fmt.Errorf("Ogiltig e-postadress %q", email)
	}

	existing, err := repos.Contacts.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return errors.New(importer.DuplicateEmailMessage(email))
	}
	return repos.Contacts.Create(ctx, &domain.Contact{
		ID:        s.ids.NewID(),
		Name:      name,
		Email:     email,
		Phone:     strings.TrimSpace(draft.Phone),
		Company:   strings.TrimSpace(draft.Company),
		CreatedAt: s.clock.Now(),
	})
}

func (s *ImportService) recordFailure(report *ImportReport, index int, label string, err error) {
	report.Failed++
	if len(report.Errors) >= s.cfg.MaxReportedErrors {
		return
	}
	label = strings.TrimSpace(label)
	if label == "" {
		label = "-"
	}
	report.Errors = append(report.Errors, fmt.Sprintf("Rad %d (%s): %v", index+1, label, err))
}

func newImportReport() *ImportReport {
	return &ImportReport{Errors: []string{}}
}

// isFatal reports whether a row error means the surrounding transaction is
// no longer usable.
func isFatal(err error) bool {
	if err == nil {
		return false
	}
	var txErr *repository.TxError
	return errors.As(err, &txErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func decodeUpload(content []byte) ([]csvcodec.Record, error) {
	text := strings.ToValidUTF8(string(content), "\uFFFD")
	records := csvcodec.Decode(text)
	if len(records) == 0 {
		return nil, apperrors.NewValidationError(msgEmptyFile, nil)
	}
	return records, nil
}

func (s *ImportService) saveBatch(ctx context.Context, entity importer.Entity, fileName string, total, valid, invalid, duplicates int) string {
	if s.batches == nil {
		return ""
	}
	batch := domain.ImportBatch{
		ID:         s.ids.NewID(),
		Entity:     string(entity),
		State:      domain.ImportBatchPreviewed,
		FileName:   fileName,
		Total:      total,
		Valid:      valid,
		Invalid:    invalid,
		Duplicates: duplicates,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.batches.Save(ctx, batch, s.cfg.PreviewTTL()); err != nil {
		s.logger.Warn("store import batch", zap.String("entity", string(entity)), zap.Error(err))
		return ""
	}
	return batch.ID
}

// claimBatch reserves a previewed batch for this confirmation. An empty id
// or a missing store yields a nil batch and the confirm proceeds untracked.
func (s *ImportService) claimBatch(ctx context.Context, entity importer.Entity, id string) (*domain.ImportBatch, error) {
	id = strings.TrimSpace(id)
	if id == "" || s.batches == nil {
		return nil, nil
	}
	batch, err := s.batches.Get(ctx, id)
	if errors.Is(err, repository.ErrBatchNotFound) {
		return nil, apperrors.NewNotFound("import batch", map[string]any{"batchId": id})
	}
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("load import batch: %w", err))
	}
	if batch.Entity != string(entity) {
		return nil, apperrors.NewValidationError("import batch belongs to another entity", map[string]any{"batchId": id})
	}
	if batch.State == domain.ImportBatchConfirmed {
		return nil, apperrors.NewConflict("import batch already confirmed", map[string]any{"batchId": id})
	}
	err = s.batches.Claim(ctx, id, s.cfg.PreviewTTL())
	if errors.Is(err, repository.ErrBatchAlreadyConfirmed) {
		return nil, apperrors.NewConflict("import batch already confirmed", map[string]any{"batchId": id})
	}
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("claim import batch: %w", err))
	}
	return batch, nil
}

func (s *ImportService) abortBatch(ctx context.Context, batch *domain.ImportBatch, entity importer.Entity, err error) error {
	s.logger.Error("import confirm failed", zap.String("entity", string(entity)), zap.Error(err))
	if batch != nil {
		if relErr := s.batches.Release(context.WithoutCancel(ctx), batch.ID); relErr != nil {
			s.logger.Warn("release import batch", zap.String("batch_id", batch.ID), zap.Error(relErr))
		}
	}
	return apperrors.NewInternalError(err)
}

func (s *ImportService) finishBatch(ctx context.Context, batch *domain.ImportBatch, entity importer.Entity, report *ImportReport) {
	report.Success = true
	s.metrics.RecordImport(string(entity), report.Created, report.Failed)

	batchID := ""
	if batch != nil {
		batchID = batch.ID
		now := s.clock.Now()
		batch.State = domain.ImportBatchConfirmed
		batch.Created = report.Created
		batch.Failed = report.Failed
		batch.ConfirmedAt = &now
		if err := s.batches.MarkConfirmed(ctx, *batch); err != nil {
			s.logger.Warn("mark import batch confirmed", zap.String("batch_id", batchID), zap.Error(err))
		}
	}

	s.logger.Info("import confirmed",
		zap.String("entity", string(entity)),
		zap.String("batch_id", batchID),
		zap.Int("created", report.Created),
		zap.Int("failed", report.Failed),
		zap.Int("contacts_created", report.ContactsCreated))

	eventType := events.EventTicketsImported
	if entity == importer.EntityContact {
		eventType = events.EventContactsImported
	}
	s.publish(ctx, events.Event{
		Type:    eventType,
		Subject: batchID,
		Payload: events.ImportCompletedPayload{
			Entity:          string(entity),
			BatchID:         batchID,
			Created:         report.Created,
			Failed:          report.Failed,
			ContactsCreated: report.ContactsCreated,
		},
	})
}

func (s *ImportService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = s.ids.NewID()
	event.Timestamp = s.clock.Now()
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event", zap.String("type", string(event.Type)), zap.Error(err))
	}
}
