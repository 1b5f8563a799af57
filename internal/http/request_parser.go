package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"expenses/internal/core"
	"expenses/internal/receipts"
	"expenses/internal/services"
)

const (
	// multipartMemory is how much of a multipart body is kept in memory
	// before file parts spill to temporary files.
	multipartMemory = 1 << 20

	// multipartOverhead is allowed on top of the receipt size limit for the
	// other form fields and part headers.
	multipartOverhead = 1 << 20

	maxJSONBody = 1 << 20
)

var (
	errBodyTooLarge = core.NewError(core.KindValidation, "Request body too large", nil)
	errInvalidBody  = core.NewError(core.KindValidation, "Invalid request body", nil)
)

// RequestBodyParser reads a JSON, urlencoded or multipart body and exposes
// its fields through one accessor set.
type RequestBodyParser struct {
	r        *http.Request
	jsonData map[string]any
	parsed   bool
	err      error
}

// NewRequestBodyParser limits the body of r to limit bytes.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request, limit int64) *RequestBodyParser {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	return &RequestBodyParser{r: r}
}

// Parse decodes the body once. Failures are validation errors.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	mediaType, _, _ := mime.ParseMediaType(p.r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		p.err = bodyError(p.r.ParseMultipartForm(multipartMemory))
	case "application/x-www-form-urlencoded":
		p.err = bodyError(p.r.ParseForm())
	default:
		p.jsonData = make(map[string]any)
		dec := json.NewDecoder(p.r.Body)
		dec.UseNumber()
		if err := dec.Decode(&p.jsonData); err != nil && !errors.Is(err, io.EOF) {
			p.err = bodyError(err)
		}
	}
	return p.err
}

func bodyError(err error) error {
	if err == nil {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errBodyTooLarge
	}
	return core.NewError(core.KindValidation, errInvalidBody.Message, err)
}

// Close removes temporary files of a multipart body.
func (p *RequestBodyParser) Close() {
	if p.r.MultipartForm != nil {
		_ = p.r.MultipartForm.RemoveAll()
	}
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// Has reports whether key was sent at all.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	_, ok := p.r.Form[key]
	if !ok && p.r.MultipartForm != nil {
		_, ok = p.r.MultipartForm.Value[key]
	}
	return ok
}

// Get returns a trimmed string value.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		return strings.TrimSpace(sanitizeInput(stringValue(p.jsonData[key])))
	}
	return strings.TrimSpace(sanitizeInput(p.r.FormValue(key)))
}

// Strings returns a list field. JSON accepts an array or a single string;
// forms accept repeated keys, "key[]" and JSON encoded arrays.
func (p *RequestBodyParser) Strings(key string) []string {
	if p.jsonData != nil {
		switch v := p.jsonData[key].(type) {
		case []any:
			out := make([]string, 0, len(v))
			for _, item := range v {
				out = append(out, sanitizeInput(stringValue(item)))
			}
			return out
		case nil:
			return nil
		default:
			return []string{sanitizeInput(stringValue(v))}
		}
	}

	var values []string
	if p.r.Form != nil {
		values = append(values, p.r.Form[key]...)
		values = append(values, p.r.Form[key+"[]"]...)
	}
	if len(values) == 1 && strings.HasPrefix(strings.TrimSpace(values[0]), "[") {
		var arr []string
		if err := json.Unmarshal([]byte(values[0]), &arr); err == nil {
			values = arr
		}
	}
	for i := range values {
		values[i] = sanitizeInput(values[i])
	}
	return values
}

// Object decodes a nested object into dst. Forms carry it as a JSON string.
func (p *RequestBodyParser) Object(key string, dst any) error {
	var raw []byte
	if p.jsonData != nil {
		v, ok := p.jsonData[key]
		if !ok || v == nil {
			return nil
		}
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		raw = b
	} else {
		s := strings.TrimSpace(p.r.FormValue(key))
		if s == "" {
			return nil
		}
		raw = []byte(s)
	}
	return json.Unmarshal(raw, dst)
}

// File returns the uploaded file in field, or nil when none was sent. The
// caller closes the returned body.
func (p *RequestBodyParser) File(field string) (*receipts.Upload, io.Closer, error) {
	if p.r.MultipartForm == nil {
		return nil, nil, nil
	}
	headers := p.r.MultipartForm.File[field]
	if len(headers) == 0 {
		return nil, nil, nil
	}
	fh := headers[0]
	f, err := fh.Open()
	if err != nil {
		return nil, nil, core.Internal("Failed to read uploaded file", err)
	}
	return &receipts.Upload{
		Filename:    fh.Filename,
		ContentType: fileContentType(fh),
		Size:        fh.Size,
		Body:        f,
	}, f, nil
}

func fileContentType(fh *multipart.FileHeader) string {
	if ct := fh.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		return ct
	}
	return receipts.ContentTypeFor(fh.Filename)
}

// parseExpenseInput maps the body onto an expense input. Missing or
// malformed amounts and dates are validation errors.
func parseExpenseInput(p *RequestBodyParser) (services.ExpenseInput, error) {
	in := services.ExpenseInput{
		Description:   p.Get("description"),
		Category:      core.Category(p.Get("category")),
		PaymentMethod: core.PaymentMethod(p.Get("paymentMethod")),
		Tags:          p.Strings("tags"),
		Notes:         p.Get("notes"),
	}

	cents, err := core.ParseDecimalToCents(p.Get("amount"))
	if err != nil {
		return in, core.Validation(core.ErrInvalidAmount)
	}
	in.Amount = core.Money{Cents: cents}

	if raw := p.Get("date"); raw != "" {
		d, err := core.ParseDate(raw)
		if err != nil {
			return in, core.Validation(core.ErrInvalidDate)
		}
		in.Date = &d
	}

	if p.Get("isRecurring") != "false" {
		var rec core.Recurring
		if err := p.Object("recurringDetails", &rec); err != nil {
			return in, core.Validation(fmt.Errorf("invalid recurringDetails: %w", core.ErrInvalidFrequency))
		}
		if rec.Frequency != "" {
			in.Recurring = &rec
		}
	}
	return in, nil
}

// decodeJSON decodes a JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return bodyError(err)
	}
	return nil
}

// stringValue converts a decoded JSON value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput removes control characters except tab and newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
