package http

import (
	"fmt"
	"io"
	"mime"
	"net/http"

	"expenses/internal/filter"
	"expenses/internal/log"
	"expenses/internal/receipts"
	"expenses/internal/services"
)

// receiptField is the multipart field carrying the receipt file.
const receiptField = "receipt"

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	page, err := s.expenses.List(r.Context(), userID(r), filter.Parse(r.URL.Query()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(page).Write(w)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.expenses.Get(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(e).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r, s.receiptMaxBytes+multipartOverhead)
	defer p.Close()

	in, upload, closer, err := s.readExpense(p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if closer != nil {
		defer closer.Close()
	}

	e, err := s.expenses.Create(r.Context(), userID(r), in, upload)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).
		Message("Expense added successfully").
		Data(e).
		Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r, s.receiptMaxBytes+multipartOverhead)
	defer p.Close()

	in, upload, closer, err := s.readExpense(p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if closer != nil {
		defer closer.Close()
	}

	e, err := s.expenses.Update(r.Context(), userID(r), r.PathValue("id"), in, upload)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Message("Expense updated successfully").Data(e).Write(w)
}

func (s *Server) readExpense(p *RequestBodyParser) (in services.ExpenseInput, upload *receipts.Upload, closer io.Closer, err error) {
	if err = p.Parse(); err != nil {
		return in, nil, nil, err
	}
	if in, err = parseExpenseInput(p); err != nil {
		return in, nil, nil, err
	}
	upload, closer, err = p.File(receiptField)
	return in, upload, closer, err
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.expenses.Delete(r.Context(), userID(r), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Message("Expense deleted successfully").Write(w)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	summary, err := s.expenses.Analytics(r.Context(), userID(r), filter.Parse(r.URL.Query()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(summary).Write(w)
}

// handleReceipt streams a receipt inline with its stored content type.
func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	rf, err := s.expenses.OpenReceipt(r.Context(), userID(r), r.PathValue("filename"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer rf.File.Close()

	info, err := rf.File.Stat()
	if err != nil {
		s.writeError(w, r, fmt.Errorf("stat receipt: %w", err))
		return
	}

	w.Header().Set("Content-Type", rf.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": rf.Filename}))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	log.FromContext(r.Context()).DebugContext(r.Context(), "Serving receipt", log.FieldFilename, rf.Filename, log.FieldSize, info.Size())
	http.ServeContent(w, r, rf.Filename, info.ModTime(), rf.File)
}
