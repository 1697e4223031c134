package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"bakeryerp/backend/internal/domain"
	"bakeryerp/backend/internal/service"
	"bakeryerp/backend/internal/store"
)

const (
	documentsPrefix = "/api/v1/documents/"
	stockPrefix     = "/api/v1/stock/"

	maxBodyBytes = 1 << 20
)

// reversalRoles may delete and recover documents.
var reversalRoles = []string{"admin", "manager"}

type API struct {
	service       *service.Service
	verifier      *TokenVerifier
	allowedOrigin string
	logger        *logrus.Logger
}

func New(svc *service.Service, verifier *TokenVerifier, allowedOrigin string, logger *logrus.Logger) *API {
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &API{
		service:       svc,
		verifier:      verifier,
		allowedOrigin: allowedOrigin,
		logger:        logger,
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	documents := a.requireAuth(a.handleDocuments)
	reversals := a.requireAuth(a.handleDocuments, reversalRoles...)

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc(documentsPrefix, func(w http.ResponseWriter, r *http.Request) {
		if isReversalPath(r.URL.Path) {
			reversals(w, r)
			return
		}
		documents(w, r)
	})
	mux.HandleFunc(stockPrefix, a.requireAuth(a.handleClosingStock))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.verifier.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

// isReversalPath reports whether path ends in a delete or recover action.
func isReversalPath(path string) bool {
	path = strings.TrimSuffix(path, "/")
	return strings.HasSuffix(path, "/delete") || strings.HasSuffix(path, "/recover")
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleDocuments serves everything under /api/v1/documents/:
//
//	POST {type}                 save
//	GET  {type}/{id}            read
//	POST {type}/{id}/delete     delete
//	POST {type}/{id}/recover    recover
//	GET  {type}/{id}/voucher    voucher
func (a *API) handleDocuments(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, documentsPrefix), "/"), "/")
	docType, ok := parseDocumentType(parts[0])
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown document type %q", parts[0]))
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		a.handleSave(w, r, docType)
		return
	}

	id, err := strconv.Atoi(parts[1])
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, errors.New("invalid document id"))
		return
	}

	action := ""
	if len(parts) == 3 {
		action = parts[2]
	} else if len(parts) > 3 {
		writeError(w, http.StatusNotFound, errors.New("unknown document action"))
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		resp, err := a.service.Document(r.Context(), docType, id)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	case "voucher":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		voucher, err := a.service.Voucher(r.Context(), docType, id)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, voucher)
	case "delete":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		doc, err := a.service.Delete(r.Context(), docType, id)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	case "recover":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		resp, err := a.service.Recover(r.Context(), docType, id)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown document action"))
	}
}

func (a *API) handleSave(w http.ResponseWriter, r *http.Request, docType domain.DocumentType) {
	var req domain.SaveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Document.Type == "" {
		req.Document.Type = docType
	}
	if req.Document.Type != docType {
		writeError(w, http.StatusBadRequest, fmt.Errorf("document type %q does not match path", req.Document.Type))
		return
	}

	status := http.StatusOK
	if req.Document.ID == 0 {
		status = http.StatusCreated
	}
	resp, err := a.service.Save(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, status, resp)
}

// handleClosingStock serves GET /api/v1/stock/{ledger}/closing.
func (a *API) handleClosingStock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, stockPrefix), "/")
	if !strings.HasSuffix(rest, "/closing") {
		writeError(w, http.StatusNotFound, errors.New("invalid stock path"))
		return
	}
	ledger := domain.StockLedger(strings.ReplaceAll(strings.TrimSuffix(rest, "/closing"), "-", "_"))

	query := r.URL.Query()
	locationID, err := strconv.Atoi(strings.TrimSpace(query.Get("location_id")))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("location_id is required"))
		return
	}
	from, err := parseTimeParam(query.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid from: %w", err))
		return
	}
	to, err := parseTimeParam(query.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid to: %w", err))
		return
	}

	summary, err := a.service.ClosingStock(r.Context(), ledger, locationID, from, to)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ledger":      ledger,
		"location_id": locationID,
		"items":       summary,
	})
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		a.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(startedAt).String(),
		}).Debug("request")
	})
}

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrFinancialYearLocked):
		return http.StatusLocked
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidDocument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, store.ErrDuplicateTransactionNo):
		return http.StatusConflict
	case errors.Is(err, domain.ErrCodeGenerationExhausted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		a.logger.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": status,
		}).WithError(err).Error("request failed")
	}

	var verr *domain.ValidationError
	if errors.As(err, &verr) && len(verr.Details) > 0 {
		writeJSON(w, status, map[string]any{
			"error":   verr.Err.Error(),
			"details": verr.Details,
		})
		return
	}
	writeError(w, status, err)
}

// parseDocumentType accepts path forms such as "sale-return" or "SALE_RETURN".
func parseDocumentType(raw string) (domain.DocumentType, bool) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), "-", "_"))
	return domain.ParseDocumentType(normalized)
}

func parseTimeParam(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", raw)
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("invalid json body: %w", err)
	}
	return nil
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies stay generic; the cause is logged by the caller.
	msg := err.Error()
	if status >= 500 {
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
