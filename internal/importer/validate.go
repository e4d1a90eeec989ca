package importer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/deskflow/helpdesk/internal/domain"
)

// PlaceholderDescription fills description when both it and title are blank.
const PlaceholderDescription = "Importerat ärende"

const (
	msgTitleMissing = "Titel saknas"
	msgNameMissing  = "Namn saknas"
	msgEmailMissing = "E-post saknas"
)

var validate = validator.New()

// TicketDraft is the ticket an import row would create.
type TicketDraft struct {
	ID             string                `json:"id,omitempty"`
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	Status         domain.TicketStatus   `json:"status"`
	Priority       domain.TicketPriority `json:"priority"`
	Category       string                `json:"category,omitempty"`
	CategoryID     *string               `json:"categoryId"`
	RequesterName  string                `json:"requesterName,omitempty"`
	RequesterEmail string                `json:"requesterEmail,omitempty"`
	Notes          string                `json:"notes,omitempty"`
	Solution       string                `json:"solution,omitempty"`
}

// ContactDraft is the contact an import row would create.
type ContactDraft struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Company string `json:"company,omitempty"`
}

// TicketRow is the preview verdict for one ticket row.
type TicketRow struct {
	Valid       bool        `json:"valid"`
	Errors      []string    `json:"errors"`
	Ticket      TicketDraft `json:"ticket"`
	IsDuplicate bool        `json:"isDuplicate"`
}

// ContactRow is the preview verdict for one contact row.
type ContactRow struct {
	Valid       bool         `json:"valid"`
	Errors      []string     `json:"errors"`
	Contact     ContactDraft `json:"contact"`
	IsDuplicate bool         `json:"isDuplicate"`
}

// TicketContext is the reference data snapshot ticket rows validate against.
// It is read-only after construction.
type TicketContext struct {
	categories  map[string]domain.Category
	labels      []string
	existingIDs map[string]struct{}
}

// NewTicketContext indexes categories by folded label. existingIDs are
// matched exactly.
func NewTicketContext(categories []domain.Category, existingIDs []string) *TicketContext {
	sorted := append([]domain.Category(nil), categories...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })

	ctx := &TicketContext{
		categories:  make(map[string]domain.Category, len(sorted)),
		labels:      make([]string, 0, len(sorted)),
		existingIDs: make(map[string]struct{}, len(existingIDs)),
	}
	for _, cat := range sorted {
		key := Fold(cat.Label)
		if _, ok := ctx.categories[key]; ok {
			continue
		}
		ctx.categories[key] = cat
		ctx.labels = append(ctx.labels, cat.Label)
	}
	for _, id := range existingIDs {
		ctx.existingIDs[id] = struct{}{}
	}
	return ctx
}

// ResolveCategory finds a category by case-insensitive label.
func (c *TicketContext) ResolveCategory(label string) (domain.Category, bool) {
	if c == nil || strings.TrimSpace(label) == "" {
		return domain.Category{}, false
	}
	cat, ok := c.categories[Fold(label)]
	return cat, ok
}

// CategoryByID reports whether id names a known category.
func (c *TicketContext) CategoryByID(id string) (domain.Category, bool) {
	if c == nil {
		return domain.Category{}, false
	}
	for _, cat := range c.categories {
		if cat.ID == id {
			return cat, true
		}
	}
	return domain.Category{}, false
}

// Labels returns known category labels in position order.
func (c *TicketContext) Labels() []string {
	if c == nil {
		return nil
	}
	return c.labels
}

func (c *TicketContext) idExists(id string) bool {
	if c == nil {
		return false
	}
	_, ok := c.existingIDs[id]
	return ok
}

// ContactContext holds folded emails of contacts already stored.
type ContactContext struct {
	existingEmails map[string]struct{}
}

// NewContactContext indexes existing emails case-insensitively.
func NewContactContext(existingEmails []string) *ContactContext {
	ctx := &ContactContext{existingEmails: make(map[string]struct{}, len(existingEmails))}
	for _, email := range existingEmails {
		ctx.existingEmails[Fold(email)] = struct{}{}
	}
	return ctx
}

func (c *ContactContext) emailExists(email string) bool {
	if c == nil {
		return false
	}
	_, ok := c.existingEmails[Fold(email)]
	return ok
}

// ParseStatus accepts an enumerated status in any letter case. Blank input
// defaults to open.
func ParseStatus(raw string) (domain.TicketStatus, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return domain.TicketStatusOpen, nil
	}
	status := domain.TicketStatus(value)
	if !status.Valid() {
		return "", fmt.Errorf("Ogiltig status %q. Giltiga värden: %s", raw, joinValues(domain.TicketStatuses))
	}
	return status, nil
}

// ParsePriority accepts an enumerated priority in any letter case. Blank
// input defaults to medium.
func ParsePriority(raw string) (domain.TicketPriority, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return domain.TicketPriorityMedium, nil
	}
	priority := domain.TicketPriority(value)
	if !priority.Valid() {
		return "", fmt.Errorf("Ogiltig prioritet %q. Giltiga värden: %s", raw, joinValues(domain.TicketPriorities))
	}
	return priority, nil
}

// ValidateTicket checks a normalized ticket row against ctx.
func ValidateTicket(row map[string]string, ctx *TicketContext) TicketRow {
	draft := TicketDraft{
		ID:             strings.TrimSpace(row[FieldID]),
		Title:          strings.TrimSpace(row[FieldTitle]),
		Description:    strings.TrimSpace(row[FieldDescription]),
		Category:       strings.TrimSpace(row[FieldCategory]),
		RequesterName:  strings.TrimSpace(row[FieldRequesterName]),
		RequesterEmail: strings.TrimSpace(row[FieldRequesterEmail]),
		Notes:          strings.TrimSpace(row[FieldNotes]),
		Solution:       strings.TrimSpace(row[FieldSolution]),
	}
	errs := []string{}

	if draft.Title == "" {
		errs = append(errs, msgTitleMissing)
	}
	if draft.Description == "" {
		draft.Description = draft.Title
		if draft.Description == "" {
			draft.Description = PlaceholderDescription
		}
	}

	status, err := ParseStatus(row[FieldStatus])
	if err != nil {
		errs = append(errs, err.Error())
	}
	draft.Status = status

	priority, err := ParsePriority(row[FieldPriority])
	if err != nil {
		errs = append(errs, err.Error())
	}
	draft.Priority = priority

	if draft.Category != "" {
		if cat, ok := ctx.ResolveCategory(draft.Category); ok {
			id := cat.ID
			draft.CategoryID = &id
		} else {
			errs = append(errs, unknownCategoryMessage(draft.Category, ctx.Labels()))
		}
	}

	duplicate := false
	if draft.ID != "" && ctx.idExists(draft.ID) {
		duplicate = true
		errs = append(errs, fmt.Sprintf("Ärende med ID %q finns redan (ett nytt ID skapas vid import)", draft.ID))
	}

	return TicketRow{
		Valid:       len(errs) == 0,
		Errors:      errs,
		Ticket:      draft,
		IsDuplicate: duplicate,
	}
}

// ValidateContact checks a normalized contact row against ctx.
func ValidateContact(row map[string]string, ctx *ContactContext) ContactRow {
	draft := ContactDraft{
		Name:    strings.TrimSpace(row[FieldName]),
		Email:   strings.TrimSpace(row[FieldEmail]),
		Phone:   strings.TrimSpace(row[FieldPhone]),
		Company: strings.TrimSpace(row[FieldCompany]),
	}
	errs := []string{}
	duplicate := false

	if draft.Name == "" {
		errs = append(errs, msgNameMissing)
	}
	switch {
	case draft.Email == "":
		errs = append(errs, msgEmailMissing)
	case !ValidEmail(draft.Email):
		errs = append(errs, fmt.Sprintf("Ogiltig e-postadress %q", draft.Email))
	case ctx.emailExists(draft.Email):
		duplicate = true
		errs = append(errs, DuplicateEmailMessage(draft.Email))
	}

	return ContactRow{
		Valid:       len(errs) == 0,
		Errors:      errs,
		Contact:     draft,
		IsDuplicate: duplicate,
	}
}

// ValidEmail reports whether email is RFC 5322 shaped.
func ValidEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}

// DuplicateEmailMessage is reported for a contact email that already exists.
func DuplicateEmailMessage(email string) string {
	return fmt.Sprintf("Kontakt med e-post %q finns redan", email)
}

func unknownCategoryMessage(label string, available []string) string {
	if len(available) == 0 {
		return fmt.Sprintf("Kategorin %q finns inte. Inga kategorier är skapade", label)
	}
	return fmt.Sprintf("Kategorin %q finns inte. Tillgängliga kategorier: %s", label, strings.Join(available, ", "))
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
