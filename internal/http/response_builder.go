package http

import (
	"encoding/json"
	"net/http"

	"expenses/internal/core"
	"expenses/internal/log"
)

// JSONResponse builds the API envelope. Every body carries "success";
// the remaining fields are merged at the top level.
type JSONResponse struct {
	statusCode int
	success    bool
	fields     map[string]any
	headers    map[string]string
}

// NewJSONResponse starts a successful 200 response.
func NewJSONResponse() *JSONResponse {
	return &JSONResponse{
		statusCode: http.StatusOK,
		success:    true,
		fields:     make(map[string]any),
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponse) Status(code int) *JSONResponse {
	b.statusCode = code
	return b
}

// Field adds a top-level field to the envelope.
func (b *JSONResponse) Field(name string, value any) *JSONResponse {
	b.fields[name] = value
	return b
}

// Message sets the human readable message.
func (b *JSONResponse) Message(msg string) *JSONResponse {
	return b.Field("message", msg)
}

// Data sets the "data" field.
func (b *JSONResponse) Data(v any) *JSONResponse {
	return b.Field("data", v)
}

// Header adds a custom header to the response.
func (b *JSONResponse) Header(name, value string) *JSONResponse {
	b.headers[name] = value
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponse) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	body := make(map[string]any, len(b.fields)+1)
	for k, v := range b.fields {
		body[k] = v
	}
	body["success"] = b.success

	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// ErrorResponse maps err onto its status code and public message. When
// debug is set the raw error text is attached as "error".
func ErrorResponse(err error, debug bool) *JSONResponse {
	b := NewJSONResponse().Status(core.StatusCode(err)).Message(core.Message(err))
	b.success = false
	if debug {
		b.Field("error", err.Error())
	}
	return b
}

// writeError writes err as a JSON envelope and logs server side failures.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := core.StatusCode(err)
	logger := log.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		fields := log.NewFields().WithUser(userID(r))
		fields[log.FieldErrorKind] = core.KindOf(err)
		fields[log.FieldPath] = r.URL.Path
		log.NewStructuredLogger(logger).LogError(r.Context(), "Request failed", err, log.ComponentHTTP, r.Method, fields)
	} else {
		logger.DebugContext(r.Context(), "Request rejected",
			log.FieldError, err, log.FieldErrorKind, core.KindOf(err), log.FieldPath, r.URL.Path)
	}
	ErrorResponse(err, !s.production).Write(w)
}
