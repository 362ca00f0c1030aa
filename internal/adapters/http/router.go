package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/kirillkom/efaktur-validator/internal/adapters/http/openapi"
	"github.com/kirillkom/efaktur-validator/internal/config"
	"github.com/kirillkom/efaktur-validator/internal/core/domain"
	"github.com/kirillkom/efaktur-validator/internal/core/ports"
	"github.com/kirillkom/efaktur-validator/internal/infrastructure/report/xlsx"
	"github.com/kirillkom/efaktur-validator/internal/observability/metrics"
)

const (
	serviceName  = "efaktur-api"
	xlsxMimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type Router struct {
	cfg       config.Config
	validator ports.InvoiceValidator
	metrics   *metrics.HTTPServerMetrics
}

// NewRouter builds the HTTP boundary. httpMetrics may be nil.
func NewRouter(cfg config.Config, validator ports.InvoiceValidator, httpMetrics *metrics.HTTPServerMetrics) *Router {
	return &Router{
		cfg:       cfg,
		validator: validator,
		metrics:   httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", rt.root)
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/openapi.json", rt.openAPI)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	validate := rt.limit(http.HandlerFunc(rt.validateEfaktur))
	mux.Handle("/validate-efaktur", validate)
	mux.Handle("/v1/efaktur/validate", validate)
	mux.Handle("/v1/efaktur/validate/report", rt.limit(http.HandlerFunc(rt.validationReport)))

	var handler http.Handler = corsMiddleware(mux)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) limit(next http.Handler) http.Handler {
	next = backpressureMiddleware(next, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait, rt.rejected("backpressure"))
	return rateLimitMiddleware(next, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.rejected("rate_limited"))
}

func (rt *Router) rejected(reason string) func() {
	return func() {
		if rt.metrics != nil {
			rt.metrics.RecordRejected(serviceName, reason)
		}
	}
}

func (rt *Router) root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "E-Faktur Validation Service is running"})
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) openAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	doc, err := openapi.JSON()
	if err != nil {
		slog.Error("openapi_document_failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "openapi document unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func (rt *Router) validateEfaktur(w http.ResponseWriter, r *http.Request) {
	result, ok := rt.runValidation(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) validationReport(w http.ResponseWriter, r *http.Request) {
	result, ok := rt.runValidation(w, r)
	if !ok {
		return
	}
	report, err := xlsx.Render(result)
	if err != nil {
		rt.writeDomainError(w, r, fmt.Errorf("render report: %w", err))
		return
	}
	w.Header().Set("Content-Type", xlsxMimeType)
	w.Header().Set("Content-Disposition", `attachment; filename="efaktur-validation.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(report)
}

// runValidation reads the upload and validates it, writing the error
// response itself when it returns false.
func (rt *Router) runValidation(w http.ResponseWriter, r *http.Request) (*domain.ValidationResult, bool) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return nil, false
	}
	if rt.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes)
	}

	filename, content, err := readUpload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		case domain.IsKind(err, domain.ErrUnsupportedFileType):
			rt.writeDomainError(w, r, err)
		default:
			writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		}
		return nil, false
	}

	start := time.Now()
	result, err := rt.validator.Validate(r.Context(), filename, content)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return nil, false
	}
	if rt.metrics != nil {
		rt.metrics.RecordValidation(serviceName, result, time.Since(start))
	}
	return result, true
}

var errNoFilePart = errors.New("no file part")

// readUpload streams the multipart body to the "file" part and checks its
// extension before reading the content.
func readUpload(r *http.Request) (string, []byte, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return "", nil, err
	}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return "", nil, errNoFilePart
		}
		if err != nil {
			return "", nil, err
		}
		if part.FormName() != "file" {
			_ = part.Close()
			continue
		}
		return readFilePart(part)
	}
}

func readFilePart(part *multipart.Part) (string, []byte, error) {
	defer part.Close()

	filename := part.FileName()
	if filename == "" {
		return "", nil, errNoFilePart
	}
	if _, ok := domain.DetectFileKind(filename); !ok {
		return "", nil, domain.WrapError(domain.ErrUnsupportedFileType, "upload", fmt.Errorf("filename %q", filename))
	}
	content, err := io.ReadAll(part)
	if err != nil {
		return "", nil, err
	}
	return filename, content, nil
}

func (rt *Router) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := mapError(err)
	if rt.metrics != nil {
		rt.metrics.RecordValidationFailure(serviceName, err)
	}
	attrs := []any{
		"request_id", domain.RequestIDFromContext(r.Context()),
		"status", status,
		"error", err.Error(),
	}
	if status >= http.StatusInternalServerError {
		slog.Error("validation_failed", attrs...)
	} else {
		slog.Warn("validation_rejected", attrs...)
	}
	writeError(w, status, message)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
