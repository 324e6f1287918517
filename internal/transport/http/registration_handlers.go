package http

import (
	"net/http"
	"strings"

	"levelup-sidequest/internal/app"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in app.RegistrationInput
	if !decodeJSON(w, r, &in) {
		return
	}
	reg, err := s.registration.Register(r.Context(), in)
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":      "Registration successful!",
		"registration": reg,
	})
}

func (s *Server) handleCheckEmail(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "validation failed", Fields: map[string]string{"email": "The email field is required."}})
		return
	}
	taken, err := s.registration.EmailTaken(r.Context(), email)
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"exists": taken})
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.registration.Count(r.Context())
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (s *Server) handleByUID(w http.ResponseWriter, r *http.Request) {
	reg, err := s.registration.ByUID(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

func (s *Server) handleRegistrations(w http.ResponseWriter, r *http.Request) {
	search, page, perPage := pageQuery(r)
	regs, err := s.registration.Search(r.Context(), search, page, perPage)
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, regs)
}

func (s *Server) handleGenerateUIDs(w http.ResponseWriter, r *http.Request) {
	n, err := s.registration.BackfillUIDs(r.Context())
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}
