package http

import (
	"net/http"

	"expenses/internal/core"
	"expenses/internal/services"
	"expenses/internal/storage"
)

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tasks, err := s.tasks.List(r.Context(), userID(r), storage.TaskFilter{
		Status:   core.TaskStatus(q.Get("status")),
		Priority: core.TaskPriority(q.Get("priority")),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Field("count", len(tasks)).Data(tasks).Write(w)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var in services.TaskInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.tasks.Create(r.Context(), userID(r), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(t).Write(w)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var p services.TaskPatch
	if err := decodeJSON(w, r, &p); err != nil {
		s.writeError(w, r, err)
		return
	}
	t, err := s.tasks.Update(r.Context(), userID(r), r.PathValue("id"), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(t).Write(w)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.tasks.Delete(r.Context(), userID(r), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Message("Task deleted successfully").Write(w)
}
