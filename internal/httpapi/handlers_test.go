package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"bakeryerp/backend/internal/cache"
	"bakeryerp/backend/internal/domain"
	"bakeryerp/backend/internal/numbering"
	"bakeryerp/backend/internal/service"
	"bakeryerp/backend/internal/settings"
	"bakeryerp/backend/internal/store"
	"bakeryerp/backend/internal/store/memory"
)

const testSecret = "test-secret-key"

var testNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

// newTestAPI builds a full API over a seeded memory store so handler tests
// exercise the complete request path.
func newTestAPI(t *testing.T) (*API, *TokenVerifier) {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	st := memory.NewSeeded()
	var cfg settings.Settings
	err := st.View(t.Context(), func(repo store.Repository) error {
		var err error
		cfg, err = settings.Load(t.Context(), repo)
		return err
	})
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}

	gen := numbering.NewGenerator(cfg.Prefixes, cache.NoopPrefixCache{}, time.Minute, logger)
	svc := service.New(st, cfg, gen, service.Options{
		Logger: logger,
		Now:    func() time.Time { return testNow },
	})
	verifier := NewTokenVerifier(testSecret, "")
	return New(svc, verifier, "*", logger), verifier
}

func mustToken(t *testing.T, verifier *TokenVerifier, role string) string {
	t.Helper()
	token, err := verifier.Sign(domain.Actor{Username: "baker1", Role: role, Platform: "web"}, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func breadSale() domain.SaveRequest {
	return domain.SaveRequest{
		Document: domain.Document{
			LocationID:          memory.SeedHeadOffice,
			TransactionDateTime: testNow,
			Cash:                decimal.RequireFromString("118"),
		},
		Lines: []domain.Line{{
			ItemID:      memory.SeedBread,
			Quantity:    decimal.NewFromInt(2),
			Rate:        decimal.NewFromInt(50),
			CGSTPercent: decimal.NewFromInt(9),
			SGSTPercent: decimal.NewFromInt(9),
		}},
	}
}

func do(t *testing.T, api *API, token string, method string, path string, body any) *httptest.ResponseRecorder {
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
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return out
}

func TestHandleHealth(t *testing.T) {
	api, _ := newTestAPI(t)

	rec := do(t, api, "", http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody[map[string]any](t, rec)
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestSaveAndReadDocument(t *testing.T) {
	api, verifier := newTestAPI(t)
	token := mustToken(t, verifier, "cashier")

	rec := do(t, api, token, http.MethodPost, "/api/v1/documents/sale", breadSale())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[domain.DocumentResponse](t, rec)
	if created.Document.TransactionNo != "HO25S000001" {
		t.Fatalf("unexpected number %q", created.Document.TransactionNo)
	}
	if created.Document.Type != domain.DocSale {
		t.Fatalf("expected type from path, got %q", created.Document.Type)
	}
	if created.Document.CreatedBy != "baker1" || created.Document.CreatedPlatform != "web" {
		t.Fatalf("expected audit from token, got %q/%q", created.Document.CreatedBy, created.Document.CreatedPlatform)
	}

	rec = do(t, api, token, http.MethodGet, "/api/v1/documents/sale/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	read := decodeBody[domain.DocumentResponse](t, rec)
	if len(read.Lines) != 1 || !read.Document.TotalAmount.Equal(decimal.NewFromInt(118)) {
		t.Fatalf("unexpected document %+v", read)
	}

	rec = do(t, api, token, http.MethodGet, "/api/v1/documents/sale/1/voucher", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected voucher 200, got %d: %s", rec.Code, rec.Body.String())
	}
	voucher := decodeBody[domain.Voucher](t, rec)
	if voucher.TransactionNo != "HO25ACC000001" {
		t.Fatalf("unexpected voucher number %q", voucher.TransactionNo)
	}
}

func TestUpdateReturnsOK(t *testing.T) {
	api, verifier := newTestAPI(t)
	token := mustToken(t, verifier, "cashier")

	if rec := do(t, api, token, http.MethodPost, "/api/v1/documents/sale", breadSale()); rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	req := breadSale()
	req.Document.ID = 1
	rec := do(t, api, token, http.MethodPost, "/api/v1/documents/sale", req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on update, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody[domain.DocumentResponse](t, rec).Document.TransactionNo; got != "HO25S000001" {
		t.Fatalf("update should keep the number, got %q", got)
	}
}

func TestDeleteAndRecover(t *testing.T) {
	api, verifier := newTestAPI(t)
	token := mustToken(t, verifier, "manager")

	if rec := do(t, api, token, http.MethodPost, "/api/v1/documents/sale", breadSale()); rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}

	rec := do(t, api, token, http.MethodPost, "/api/v1/documents/sale/1/delete", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body.String())
	}
	if doc := decodeBody[domain.Document](t, rec); doc.Status != domain.StateReversed {
		t.Fatalf("expected reversed, got %q", doc.Status)
	}

	if rec := do(t, api, token, http.MethodGet, "/api/v1/documents/sale/1/voucher", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected no voucher after delete, got %d", rec.Code)
	}
	if rec := do(t, api, token, http.MethodPost, "/api/v1/documents/sale/1/delete", nil); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on second delete, got %d", rec.Code)
	}

	rec = do(t, api, token, http.MethodPost, "/api/v1/documents/sale/1/recover", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("recover: %d %s", rec.Code, rec.Body.String())
	}
	recovered := decodeBody[domain.DocumentResponse](t, rec)
	if recovered.Document.Status != domain.StateActive || recovered.Document.TransactionNo != "HO25S000001" {
		t.Fatalf("unexpected recovered document %+v", recovered.Document)
	}
}

func TestReversalsRequireManager(t *testing.T) {
	api, verifier := newTestAPI(t)
	cashier := mustToken(t, verifier, "cashier")

	if rec := do(t, api, cashier, http.MethodPost, "/api/v1/documents/sale", breadSale()); rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	for _, path := range []string{"/api/v1/documents/sale/1/delete", "/api/v1/documents/sale/1/recover", "/api/v1/documents/sale/1/delete/"} {
		if rec := do(t, api, cashier, http.MethodPost, path, nil); rec.Code != http.StatusForbidden {
			t.Fatalf("%s: expected 403 for cashier, got %d", path, rec.Code)
		}
	}
	if rec := do(t, api, cashier, http.MethodGet, "/api/v1/documents/sale/1", nil); rec.Code != http.StatusOK {
		t.Fatalf("cashier read: expected 200, got %d", rec.Code)
	}
	if rec := do(t, api, mustToken(t, verifier, "admin"), http.MethodPost, "/api/v1/documents/sale/1/delete", nil); rec.Code != http.StatusOK {
		t.Fatalf("admin delete: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestErrorStatuses(t *testing.T) {
	api, verifier := newTestAPI(t)
	token := mustToken(t, verifier, "manager")

	locked := breadSale()
	locked.Document.FinancialYearID = memory.SeedLockedYear

	noLines := breadSale()
	noLines.Lines = nil

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"locked year", http.MethodPost, "/api/v1/documents/sale", locked, http.StatusLocked},
		{"invalid body", http.MethodPost, "/api/v1/documents/sale", noLines, http.StatusBadRequest},
		{"type mismatch", http.MethodPost, "/api/v1/documents/purchase", domain.SaveRequest{Document: domain.Document{Type: domain.DocSale}}, http.StatusBadRequest},
		{"missing document", http.MethodGet, "/api/v1/documents/sale/99", nil, http.StatusNotFound},
		{"unknown type", http.MethodGet, "/api/v1/documents/accounting/1", nil, http.StatusNotFound},
		{"bad id", http.MethodGet, "/api/v1/documents/sale/abc", nil, http.StatusBadRequest},
		{"unknown action", http.MethodPost, "/api/v1/documents/sale/1/void", nil, http.StatusNotFound},
		{"recover missing", http.MethodPost, "/api/v1/documents/sale/99/recover", nil, http.StatusNotFound},
		{"wrong method", http.MethodGet, "/api/v1/documents/sale", nil, http.StatusMethodNotAllowed},
		{"no voucher type", http.MethodGet, "/api/v1/documents/stock-transfer/1/voucher", nil, http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := do(t, api, token, tc.method, tc.path, tc.body)
		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d: %s", tc.name, tc.want, rec.Code, rec.Body.String())
		}
	}
}

func TestValidationErrorCarriesDetails(t *testing.T) {
	api, verifier := newTestAPI(t)
	req := breadSale()
	req.Lines[0].Quantity = decimal.Zero

	rec := do(t, api, mustToken(t, verifier, "cashier"), http.MethodPost, "/api/v1/documents/sale", req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := decodeBody[map[string]any](t, rec)
	details, ok := body["details"].([]any)
	if !ok || len(details) == 0 {
		t.Fatalf("expected validation details, got %v", body)
	}
}

func TestClosingStockEndpoint(t *testing.T) {
	api, verifier := newTestAPI(t)
	token := mustToken(t, verifier, "cashier")

	if rec := do(t, api, token, http.MethodPost, "/api/v1/documents/sale", breadSale()); rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}

	rec := do(t, api, token, http.MethodGet, "/api/v1/stock/product/closing?location_id=1&from=2025-05-01&to=2025-07-01", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Items []domain.StockSummary `json:"items"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Items) != 1 || body.Items[0].ItemID != memory.SeedBread || !body.Items[0].Outward.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("unexpected summary %+v", body.Items)
	}

	for _, path := range []string{
		"/api/v1/stock/product/closing",
		"/api/v1/stock/product/closing?location_id=1&from=yesterday",
		"/api/v1/stock/widgets/closing?location_id=1",
	} {
		if rec := do(t, api, token, http.MethodGet, path, nil); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, rec.Code)
		}
	}
}
