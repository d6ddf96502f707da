package http

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/support-relay/relay/internal/api/http/handlers"
	"github.com/support-relay/relay/internal/auth"
	"github.com/support-relay/relay/internal/events"
	"github.com/support-relay/relay/internal/observability"
	"github.com/support-relay/relay/internal/persistence"
	"github.com/support-relay/relay/internal/realtime"
	"github.com/support-relay/relay/internal/repository"
	"github.com/support-relay/relay/internal/service"
	"github.com/support-relay/relay/internal/upload"
)

const testCode = "open-sesame"

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	registry := repository.NewTicketRegistry()
	directory := repository.NewModeratorDirectory()
	store := persistence.NewMemoryStore()
	flusher := persistence.NewFlusher(persistence.FlusherDependencies{
		Backend:    store,
		Tickets:    registry,
		Moderators: directory,
		Clock:      clockwork.NewFakeClock(),
		Logger:     logger,
	})
	tickets := service.NewTicketService(service.TicketDependencies{
		Tickets:    registry,
		Moderators: directory,
		Scheduler:  flusher,
		Router:     events.NewRouter(),
		Logger:     logger,
	})
	authSvc := service.NewAuthService(service.AuthDependencies{
		Tokens:     auth.NewTokenManager("http-secret", time.Hour),
		Codes:      auth.NewCodeVerifier(testCode, ""),
		Moderators: directory,
		Scheduler:  flusher,
		Logger:     logger,
	})
	uploadDir := t.TempDir()
	storage, err := upload.NewLocalStorage(uploadDir, "/uploads")
	if err != nil {
		t.Fatalf("storage: %v", err)
	}

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("relay", "test", store, nil, metrics),
		Tickets:        handlers.NewTicketsHandler(tickets),
		Moderators:     handlers.NewModeratorHandler(authSvc),
		Uploads:        handlers.NewUploadHandler(upload.NewService(storage, 1024, logger)),
		Hub:            realtime.NewHub(realtime.HubDependencies{Tickets: tickets, Verifier: authSvc, Logger: logger}),
		AuthMiddleware: auth.NewAuthMiddleware(authSvc),
		UploadDir:      uploadDir,
		UploadPrefix:   "/uploads",
	})
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out := map[string]any{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

func errorCode(body map[string]any) string {
	errObj, _ := body["error"].(map[string]any)
	code, _ := errObj["code"].(string)
	return code
}

func register(t *testing.T, app *fiber.App, name string) string {
	t.Helper()
	status, body := doJSON(t, app, "POST", "/api/moderator/register", "", map[string]string{"code": testCode, "displayName": name})
	if status != fiber.StatusOK {
		t.Fatalf("register: status %d body %v", status, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("no token in %v", body)
	}
	return token
}

func TestRegisterModerator(t *testing.T) {
	app := newTestApp(t)

	status, body := doJSON(t, app, "POST", "/api/moderator/register", "", map[string]string{"displayName": "Alice"})
	if status != fiber.StatusBadRequest || errorCode(body) != "VALIDATION_FAILED" {
		t.Fatalf("missing code: %d %v", status, body)
	}
	status, body = doJSON(t, app, "POST", "/api/moderator/register", "", map[string]string{"code": "nope"})
	if status != fiber.StatusForbidden || errorCode(body) != "FORBIDDEN" {
		t.Fatalf("wrong code: %d %v", status, body)
	}
	status, body = doJSON(t, app, "POST", "/api/moderator/register", "", map[string]string{"code": testCode, "displayName": "Alice"})
	if status != fiber.StatusOK || body["displayName"] != "Alice" {
		t.Fatalf("register: %d %v", status, body)
	}
}

func TestTicketFlowOverHTTP(t *testing.T) {
	app := newTestApp(t)
	alice := register(t, app, "Alice")
	bob := register(t, app, "Bob")

	status, _ := doJSON(t, app, "GET", "/api/tickets", "", nil)
	if status != fiber.StatusUnauthorized {
		t.Fatalf("list without token: %d", status)
	}
	status, _ = doJSON(t, app, "GET", "/api/tickets", "garbage", nil)
	if status != fiber.StatusUnauthorized {
		t.Fatalf("list with bad token: %d", status)
	}

	status, body := doJSON(t, app, "POST", "/api/tickets/new", "", nil)
	if status != fiber.StatusOK {
		t.Fatalf("create: %d %v", status, body)
	}
	ticketID, _ := body["ticketId"].(string)

	status, body = doJSON(t, app, "GET", "/api/tickets", alice, nil)
	list, _ := body["tickets"].([]any)
	if status != fiber.StatusOK || len(list) != 1 {
		t.Fatalf("list: %d %v", status, body)
	}

	status, body = doJSON(t, app, "GET", "/api/tickets/status?id="+ticketID, "", nil)
	if status != fiber.StatusOK || body["status"] != "open" || body["claimedByName"] != nil {
		t.Fatalf("status: %d %v", status, body)
	}

	action := map[string]string{"ticketId": ticketID}
	if status, body = doJSON(t, app, "POST", "/api/tickets/claim", alice, action); status != fiber.StatusOK || body["ok"] != true {
		t.Fatalf("claim: %d %v", status, body)
	}
	if status, body = doJSON(t, app, "POST", "/api/tickets/claim", bob, action); status != fiber.StatusConflict {
		t.Fatalf("contested claim: %d %v", status, body)
	}
	status, body = doJSON(t, app, "GET", "/api/tickets/status?id="+ticketID, "", nil)
	if body["status"] != "assigned" || body["claimedByName"] != "Alice" {
		t.Fatalf("status after claim: %d %v", status, body)
	}

	if status, _ = doJSON(t, app, "POST", "/api/tickets/close", bob, action); status != fiber.StatusOK {
		t.Fatalf("close: %d", status)
	}
	if status, body = doJSON(t, app, "POST", "/api/tickets/claim", alice, action); status != fiber.StatusBadRequest || errorCode(body) != "ALREADY_CLOSED" {
		t.Fatalf("claim closed: %d %v", status, body)
	}

	status, body = doJSON(t, app, "GET", "/api/tickets", alice, nil)
	list, _ = body["tickets"].([]any)
	if len(list) != 0 {
		t.Fatalf("closed ticket still listed: %v", body)
	}
}

func TestTicketNotFound(t *testing.T) {
	app := newTestApp(t)
	token := register(t, app, "Alice")

	if status, _ := doJSON(t, app, "GET", "/api/tickets/status?id=missing", "", nil); status != fiber.StatusNotFound {
		t.Fatalf("status unknown: %d", status)
	}
	if status, _ := doJSON(t, app, "POST", "/api/tickets/claim", token, map[string]string{"ticketId": "missing"}); status != fiber.StatusNotFound {
		t.Fatalf("claim unknown: %d", status)
	}
	if status, _ := doJSON(t, app, "POST", "/api/tickets/close", token, map[string]string{"ticketId": "missing"}); status != fiber.StatusNotFound {
		t.Fatalf("close unknown: %d", status)
	}
	if status, _ := doJSON(t, app, "POST", "/api/tickets/close", "", map[string]string{"ticketId": "missing"}); status != fiber.StatusUnauthorized {
		t.Fatalf("close without token: %d", status)
	}
}

func TestUploadEndpoint(t *testing.T) {
	app := newTestApp(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "notes.txt")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = part.Write([]byte("some notes"))
	_ = writer.Close()

	req := httptest.NewRequest("POST", "/api/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("upload status %d", resp.StatusCode)
	}
	var desc upload.Descriptor
	if err := json.NewDecoder(resp.Body).Decode(&desc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(desc.URL, "/uploads/") || desc.Name != "notes.txt" || desc.Size != 10 {
		t.Fatalf("unexpected descriptor %+v", desc)
	}

	served, err := app.Test(httptest.NewRequest("GET", desc.URL, nil))
	if err != nil {
		t.Fatalf("fetch upload: %v", err)
	}
	if served.StatusCode != fiber.StatusOK {
		t.Fatalf("uploaded file not served: %d", served.StatusCode)
	}

	status, body := doJSON(t, app, "POST", "/api/upload", "", map[string]string{})
	if status != fiber.StatusBadRequest {
		t.Fatalf("upload without file: %d %v", status, body)
	}
}

func TestUploadEndpointAcceptsEmptyFile(t *testing.T) {
	app := newTestApp(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if _, err := writer.CreateFormFile("file", "empty.bin"); err != nil {
		t.Fatalf("form file: %v", err)
	}
	_ = writer.Close()

	req := httptest.NewRequest("POST", "/api/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("empty upload status %d", resp.StatusCode)
	}
	var desc upload.Descriptor
	if err := json.NewDecoder(resp.Body).Decode(&desc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if desc.Size != 0 || desc.Name != "empty.bin" {
		t.Fatalf("unexpected descriptor %+v", desc)
	}
}

func TestUnknownRouteRendersError(t *testing.T) {
	app := newTestApp(t)
	status, body := doJSON(t, app, "GET", "/nope", "", nil)
	if status != fiber.StatusNotFound || errorCode(body) != "NOT_FOUND" {
		t.Fatalf("unknown route: %d %v", status, body)
	}
}

func TestWebsocketRouteRequiresUpgrade(t *testing.T) {
	app := newTestApp(t)
	status, _ := doJSON(t, app, "GET", "/ws?role=user&ticketId=x", "", nil)
	if status != fiber.StatusUpgradeRequired {
		t.Fatalf("plain request to /ws: %d", status)
	}
}

func TestHealthEndpoints(t *testing.T) {
	app := newTestApp(t)
	if status, body := doJSON(t, app, "GET", "/health/live", "", nil); status != fiber.StatusOK || body["status"] != "alive" {
		t.Fatalf("live: %d %v", status, body)
	}
	status, body := doJSON(t, app, "GET", "/health/ready", "", nil)
	deps, _ := body["dependencies"].(map[string]any)
	if status != fiber.StatusOK || deps["redis"] != "disabled" || deps["storage"] != "ok" {
		t.Fatalf("ready: %d %v", status, body)
	}
	if status, _ := doJSON(t, app, "GET", "/health/metrics", "", nil); status != fiber.StatusOK {
		t.Fatalf("metrics: %d", status)
	}
}
