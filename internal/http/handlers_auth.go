package http

import (
	"net/http"
	"strings"

	"expenses/internal/services"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in services.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.auth.Register(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).
		Field("token", sess.Token).
		Field("user", sess.User).
		Write(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Field("token", sess.Token).Field("user", sess.User).Write(w)
}

func (s *Server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Credential string `json:"credential"`
		IDToken    string `json:"idToken"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	token := in.Credential
	if token == "" {
		token = in.IDToken
	}
	sess, err := s.auth.GoogleLogin(r.Context(), strings.TrimSpace(token))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Field("token", sess.Token).Field("user", sess.User).Write(w)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.auth.Me(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Field("user", u).Write(w)
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.auth.ForgotPassword(r.Context(), in.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Message("If an account exists for that email, a password reset link has been sent").
		Write(w)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.auth.ResetPassword(r.Context(), r.PathValue("token"), in.Password); err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Message("Password has been reset successfully").Write(w)
}
