package http

import (
	"net/http"
	"strconv"

	"levelup-sidequest/internal/domain"
)

// pageQuery reads search, page and per_page; bad numbers fall back to the defaults.
func pageQuery(r *http.Request) (string, int, int) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	return q.Get("search"), page, perPage
}

func (s *Server) handleAdminList(w http.ResponseWriter, r *http.Request) {
	search, page, perPage := pageQuery(r)
	quests, err := s.admin.Search(r.Context(), search, page, perPage)
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quests)
}

func (s *Server) handleAdminGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "questID")
	if err != nil {
		writeError(w, s.logger, r, domain.ErrQuestNotFound)
		return
	}
	quest, err := s.admin.Get(r.Context(), id)
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quest)
}

func (s *Server) handleAdminCreate(w http.ResponseWriter, r *http.Request) {
	var quest domain.Quest
	if !decodeJSON(w, r, &quest) {
		return
	}
	quest.ID = 0
	created, err := s.admin.Create(r.Context(), quest)
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleAdminUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "questID")
	if err != nil {
		writeError(w, s.logger, r, domain.ErrQuestNotFound)
		return
	}
	var quest domain.Quest
	if !decodeJSON(w, r, &quest) {
		return
	}
	updated, err := s.admin.Update(r.Context(), id, quest)
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleAdminDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "questID")
	if err != nil {
		writeError(w, s.logger, r, domain.ErrQuestNotFound)
		return
	}
	if err := s.admin.Delete(r.Context(), id); err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
