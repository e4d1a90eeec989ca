// Package importer turns decoded CSV records into validated ticket and
// contact drafts.
package importer

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Entity selects a header alias table.
type Entity string

const (
	EntityTicket  Entity = "ticket"
	EntityContact Entity = "contact"
)

// Canonical ticket fields.
const (
	FieldID             = "id"
	FieldTitle          = "title"
	FieldDescription    = "description"
	FieldStatus         = "status"
	FieldPriority       = "priority"
	FieldCategory       = "category"
	FieldRequesterName  = "requester_name"
	FieldRequesterEmail = "requester_email"
	FieldNotes          = "notes"
	FieldSolution       = "solution"
)

// Canonical contact fields.
const (
	FieldName    = "name"
	FieldEmail   = "email"
	FieldPhone   = "phone"
	FieldCompany = "company"
)

var ticketAliases = map[string]string{
	"id":              FieldID,
	"ärende-id":       FieldID,
	"ticket id":       FieldID,
	"title":           FieldTitle,
	"titel":           FieldTitle,
	"rubrik":          FieldTitle,
	"subject":         FieldTitle,
	"description":     FieldDescription,
	"beskrivning":     FieldDescription,
	"status":          FieldStatus,
	"priority":        FieldPriority,
	"prioritet":       FieldPriority,
	"category":        FieldCategory,
	"kategori":        FieldCategory,
	"requester_name":  FieldRequesterName,
	"requester name":  FieldRequesterName,
	"requester":       FieldRequesterName,
	"beställare":      FieldRequesterName,
	"kontakt":         FieldRequesterName,
	"kontaktnamn":     FieldRequesterName,
	"requester_email": FieldRequesterEmail,
	"requester email": FieldRequesterEmail,
	"email":           FieldRequesterEmail,
	"e-post":          FieldRequesterEmail,
	"epost":           FieldRequesterEmail,
	"notes":           FieldNotes,
	"anteckningar":    FieldNotes,
	"solution":        FieldSolution,
	"lösning":         FieldSolution,
}

var contactAliases = map[string]string{
	"name":          FieldName,
	"namn":          FieldName,
	"email":         FieldEmail,
	"e-mail":        FieldEmail,
	"e-post":        FieldEmail,
	"epost":         FieldEmail,
	"e-postadress":  FieldEmail,
	"phone":         FieldPhone,
	"telefon":       FieldPhone,
	"telefonnummer": FieldPhone,
	"company":       FieldCompany,
	"företag":       FieldCompany,
	"organisation":  FieldCompany,
}

func aliasesFor(entity Entity) map[string]string {
	if entity == EntityContact {
		return contactAliases
	}
	return ticketAliases
}

// Normalize maps the headers of row onto canonical field names for entity.
// Unknown headers pass through lower-cased. When several headers collapse
// onto one field, a header already spelled canonically wins, then the first
// non-blank value in header order. Normalize is idempotent.
func Normalize(entity Entity, row map[string]string) map[string]string {
	aliases := aliasesFor(entity)
	headers := make([]string, 0, len(row))
	for header := range row {
		headers = append(headers, header)
	}
	sort.Strings(headers)

	out := make(map[string]string, len(row))
	assign := func(key, value string) {
		if existing, ok := out[key]; ok && strings.TrimSpace(existing) != "" {
			return
		}
		out[key] = value
	}
	for _, header := range headers {
		key := headerKey(header)
		if canonical, ok := aliases[key]; ok && canonical == key {
			assign(key, row[header])
		}
	}
	for _, header := range headers {
		canonical, ok := aliases[headerKey(header)]
		switch {
		case !ok:
			assign(strings.ToLower(header), row[header])
		case canonical != headerKey(header):
			assign(canonical, row[header])
		}
	}
	return out
}

func headerKey(header string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(header)))
}

// Fold returns the case-insensitive lookup key for s.
func Fold(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}
