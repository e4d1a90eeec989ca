package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/deskflow/helpdesk/internal/api/http/handlers"
	"github.com/deskflow/helpdesk/internal/auth"
	"github.com/deskflow/helpdesk/internal/config"
	"github.com/deskflow/helpdesk/internal/domain"
	"github.com/deskflow/helpdesk/internal/observability"
	"github.com/deskflow/helpdesk/internal/query"
	"github.com/deskflow/helpdesk/internal/repository"
	"github.com/deskflow/helpdesk/internal/service"
)

type stubTickets struct {
	tickets []domain.Ticket
	plans   []query.Plan
}

func (s *stubTickets) Create(_ context.Context, t *domain.Ticket) error {
	s.tickets = append(s.tickets, *t)
	return nil
}

func (s *stubTickets) List(_ context.Context, plan query.Plan) ([]domain.Ticket, error) {
	s.plans = append(s.plans, plan)
	return append([]domain.Ticket{}, s.tickets...), nil
}

func (s *stubTickets) Count(context.Context, query.Plan) (int, error) { return len(s.tickets), nil }

func (s *stubTickets) ExistingIDs(context.Context, []string) ([]string, error) { return nil, nil }

type stubContacts struct{ contacts []domain.Contact }

func (s *stubContacts) Create(_ context.Context, c *domain.Contact) error {
	s.contacts = append(s.contacts, *c)
	return nil
}

func (s *stubContacts) List(context.Context) ([]domain.Contact, error) {
	return append([]domain.Contact{}, s.contacts...), nil
}

func (s *stubContacts) FindByEmail(_ context.Context, email string) (*domain.Contact, error) {
	for i := range s.contacts {
		if strings.EqualFold(s.contacts[i].Email, email) {
			return &s.contacts[i], nil
		}
	}
	return nil, nil
}

func (s *stubContacts) FindByName(context.Context, string) (*domain.Contact, error) { return nil, nil }

func (s *stubContacts) ExistingEmails(context.Context, []string) ([]string, error) { return nil, nil }

type stubCategories struct{}

func (stubCategories) List(context.Context) ([]domain.Category, error) {
	return []domain.Category{{ID: "cat-1", Label: "Nätverk"}}, nil
}

type directTx struct{ repos repository.Repositories }

func (d directTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.TxScope) error) error {
	return fn(ctx, d)
}

func (d directTx) Repos() repository.Repositories { return d.repos }

func (d directTx) Isolate(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	return fn(ctx, d.repos)
}

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Date(2024, 5, 17, 10, 0, 0, 0, time.UTC) }

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type testServer struct {
	app      *fiber.App
	tickets  *stubTickets
	contacts *stubContacts
	tokens   *auth.TokenManager
}

type serverOptions struct {
	maxUpload int64
	withAuth  bool
	redisDown bool
}

func newTestServer(t *testing.T, opts serverOptions) *testServer {
	t.Helper()
	if opts.maxUpload == 0 {
		opts.maxUpload = 1 << 20
	}
	ts := &testServer{
		tickets:  &stubTickets{tickets: []domain.Ticket{{ID: "t-1", Title: "Första", Status: domain.TicketStatusOpen, Priority: domain.TicketPriorityLow}}},
		contacts: &stubContacts{contacts: []domain.Contact{{ID: "c-1", Name: "Anna", Email: "anna@x.se"}}},
		tokens:   auth.NewTokenManager("test-secret", 5),
	}
	repos := repository.Repositories{Tickets: ts.tickets, Contacts: ts.contacts, Categories: stubCategories{}}
	logger := zaptest.NewLogger(t)
	metrics := observability.NewMetrics()

	imports := service.NewImportService(service.ImportDependencies{
		Repos:      repos,
		Transactor: directTx{repos: repos},
		Metrics:    metrics,
		Logger:     logger,
		Clock:      fixedClock{},
		Config:     config.ImportConfig{MaxUploadBytes: opts.maxUpload, MaxReportedErrors: 10},
	})
	exports := service.NewExportService(service.ExportDependencies{Repos: repos, Metrics: metrics, Logger: logger, Clock: fixedClock{}})

	redisPing := pingFunc(func(context.Context) error { return nil })
	if opts.redisDown {
		redisPing = func(context.Context) error { return errors.New("connection refused") }
	}
	routes := RouteConfig{
		Health: handlers.NewHealthHandler("helpdesk", "test", map[string]handlers.Pinger{
			"postgres": pingFunc(func(context.Context) error { return nil }),
			"redis":    redisPing,
		}),
		Tickets:  handlers.NewTicketsHandler(service.NewTicketService(ts.tickets), exports, imports, opts.maxUpload),
		Contacts: handlers.NewContactsHandler(exports, imports, opts.maxUpload),
		Metrics:  metrics,
	}
	if opts.withAuth {
		routes.AuthMiddleware = auth.NewAuthMiddleware(ts.tokens)
	}

	ts.app = fiber.New()
	RegisterMiddlewares(ts.app, logger, metrics, time.Second)
	RegisterRoutes(ts.app, routes)
	return ts
}

func (ts *testServer) do(t *testing.T, method, target string, body io.Reader, contentType string) (int, []byte, map[string]string) {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	headers := map[string]string{
		"Content-Type":        resp.Header.Get("Content-Type"),
		"Content-Disposition": resp.Header.Get("Content-Disposition"),
	}
	return resp.StatusCode, data, headers
}

func multipartCSV(t *testing.T, fileName, content string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	return payload.Error.Code
}

func TestListTicketsLegacyArray(t *testing.T) {
	ts := newTestServer(t, serverOptions{})

	status, body, _ := ts.do(t, fiber.MethodGet, "/api/tickets", nil, "")
	require.Equal(t, fiber.StatusOK, status)

	var tickets []domain.Ticket
	require.NoError(t, json.Unmarshal(body, &tickets))
	assert.Len(t, tickets, 1)
	require.Len(t, ts.tickets.plans, 1)
	assert.False(t, ts.tickets.plans[0].Paginated)
}

func TestListTicketsPaginated(t *testing.T) {
	ts := newTestServer(t, serverOptions{})

	status, body, _ := ts.do(t, fiber.MethodGet, "/api/tickets?page=1&limit=999&sortBy=priority&search=vpn", nil, "")
	require.Equal(t, fiber.StatusOK, status)

	var page service.TicketPage
	require.NoError(t, json.Unmarshal(body, &page))
	assert.Len(t, page.Data, 1)
	assert.Equal(t, query.DefaultPageSize, page.Pagination.Limit)
	assert.Equal(t, 1, page.Pagination.Total)
	assert.False(t, page.Pagination.HasNext)
	require.Len(t, ts.tickets.plans, 1)
	assert.NotEmpty(t, ts.tickets.plans[0].Joins)
}

func TestExportTicketsDownload(t *testing.T) {
	ts := newTestServer(t, serverOptions{})

	status, body, headers := ts.do(t, fiber.MethodGet, "/api/tickets/export?status=all", nil, "")
	require.Equal(t, fiber.StatusOK, status)

	assert.Equal(t, "text/csv; charset=utf-8", headers["Content-Type"])
	assert.Equal(t, `attachment; filename="tickets-export-2024-05-17.csv"`, headers["Content-Disposition"])
	assert.True(t, strings.HasPrefix(string(body), "\uFEFFid,title,"))
	assert.Contains(t, string(body), "t-1,Första,")
}

func TestExportContactsXLSX(t *testing.T) {
	ts := newTestServer(t, serverOptions{})

	status, body, headers := ts.do(t, fiber.MethodGet, "/api/contacts/export?format=xlsx", nil, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, `attachment; filename="contacts-export-2024-05-17.xlsx"`, headers["Content-Disposition"])
	assert.NotEmpty(t, body)
}

func TestPreviewTicketUpload(t *testing.T) {
	ts := newTestServer(t, serverOptions{})
	body, contentType := multipartCSV(t, "import.CSV", "Titel,Status,Kategori\nSkrivare,open,nätverk\nTrasig,okänd,\n")

	status, resp, _ := ts.do(t, fiber.MethodPost, "/api/tickets/import/preview", body, contentType)
	require.Equal(t, fiber.StatusOK, status, string(resp))

	var preview service.TicketPreview
	require.NoError(t, json.Unmarshal(resp, &preview))
	assert.Equal(t, 2, preview.Total)
	assert.Equal(t, 1, preview.Valid)
	assert.Equal(t, 1, preview.Invalid)
	assert.Empty(t, preview.BatchID)
}

func TestPreviewRejectsBadUploads(t *testing.T) {
	ts := newTestServer(t, serverOptions{maxUpload: 32})

	body, contentType := multipartCSV(t, "import.xlsx", "title\nA\n")
	status, resp, _ := ts.do(t, fiber.MethodPost, "/api/tickets/import/preview", body, contentType)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, resp))

	body, contentType = multipartCSV(t, "import.csv", "title\n"+strings.Repeat("x", 64)+"\n")
	status, resp, _ = ts.do(t, fiber.MethodPost, "/api/contacts/import/preview", body, contentType)
	assert.Equal(t, fiber.StatusRequestEntityTooLarge, status)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", errorCode(t, resp))

	body, contentType = multipartCSV(t, "empty.csv", "title\n")
	status, _, _ = ts.do(t, fiber.MethodPost, "/api/tickets/import/preview", body, contentType)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _, _ = ts.do(t, fiber.MethodPost, "/api/tickets/import/preview", strings.NewReader("{}"), fiber.MIMEApplicationJSON)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestConfirmTicketImport(t *testing.T) {
	ts := newTestServer(t, serverOptions{})
	payload := `{"tickets":[{"title":"Ny","requesterName":"Bo","requesterEmail":"bo@x.se"},{"title":""}]}`

	status, resp, _ := ts.do(t, fiber.MethodPost, "/api/tickets/import/confirm", strings.NewReader(payload), fiber.MIMEApplicationJSON)
	require.Equal(t, fiber.StatusOK, status, string(resp))

	var report service.ImportReport
	require.NoError(t, json.Unmarshal(resp, &report))
	assert.True(t, report.Success)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.ContactsCreated)
	assert.Len(t, ts.tickets.tickets, 2)
	assert.Len(t, ts.contacts.contacts, 2)
}

func TestConfirmRequiresRows(t *testing.T) {
	ts := newTestServer(t, serverOptions{})

	status, _, _ := ts.do(t, fiber.MethodPost, "/api/contacts/import/confirm", strings.NewReader(`{"contacts":[]}`), fiber.MIMEApplicationJSON)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _, _ = ts.do(t, fiber.MethodPost, "/api/tickets/import/confirm", strings.NewReader(`{not json`), fiber.MIMEApplicationJSON)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestAPIGroupRequiresTokenWhenEnabled(t *testing.T) {
	ts := newTestServer(t, serverOptions{withAuth: true})

	status, resp, _ := ts.do(t, fiber.MethodGet, "/api/tickets", nil, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, resp))

	status, _, _ = ts.do(t, fiber.MethodGet, "/health/live", nil, "")
	assert.Equal(t, fiber.StatusOK, status)

	token, _, err := ts.tokens.GenerateToken("agent-1", "Agent", "agent")
	require.NoError(t, err)
	req := httptest.NewRequest(fiber.MethodGet, "/api/tickets", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)
}

func TestReadinessReportsDependencies(t *testing.T) {
	status, _, _ := newTestServer(t, serverOptions{}).do(t, fiber.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, fiber.StatusOK, status)

	status, body, _ := newTestServer(t, serverOptions{redisDown: true}).do(t, fiber.MethodGet, "/health/ready", nil, "")
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Contains(t, string(body), "connection refused")
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, serverOptions{})
	ts.do(t, fiber.MethodGet, "/api/tickets/export", nil, "")

	status, body, _ := ts.do(t, fiber.MethodGet, "/metrics", nil, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(body), "helpdesk_http_requests_total")
	assert.Contains(t, string(body), `helpdesk_export_rows_total{entity="tickets",format="csv"} 1`)
}

func TestMetricsLabelsUseRouteTemplates(t *testing.T) {
	ts := newTestServer(t, serverOptions{})
	ts.do(t, fiber.MethodGet, "/api/scan-7f3a91/admin.php", nil, "")
	ts.do(t, fiber.MethodGet, "/wp-login-4c2e.php", nil, "")
	ts.do(t, fiber.MethodGet, "/api/tickets?page=2&limit=20", nil, "")

	status, body, _ := ts.do(t, fiber.MethodGet, "/metrics", nil, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.NotContains(t, string(body), "scan-7f3a91")
	assert.NotContains(t, string(body), "wp-login-4c2e")
	assert.Contains(t, string(body), `route="/api/tickets"`)
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	ts := newTestServer(t, serverOptions{})

	status, body, _ := ts.do(t, fiber.MethodGet, "/api/nope", nil, "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "HTTP_ERROR", errorCode(t, body))
}
