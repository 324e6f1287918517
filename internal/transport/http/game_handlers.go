package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"levelup-sidequest/internal/domain"

	"github.com/go-chi/chi/v5"
)

type loginRequest struct {
	UID string `json:"uid"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.auth.Login(r.Context(), req.UID)
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    res.Token,
		Path:     "/",
		Expires:  res.ExpiresAt,
		HttpOnly: true,
		Secure:   s.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(r.Context(), *PrincipalFrom(r.Context())); err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.SecureCookie,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	reg, err := s.auth.Current(r.Context(), PrincipalFrom(r.Context()))
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	board, err := s.quests.Board(r.Context(), PrincipalFrom(r.Context()))
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

type questResponse struct {
	domain.Quest
	Completed bool `json:"completed"`
}

func (s *Server) handleQuest(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "questID")
	if err != nil {
		writeError(w, s.logger, r, domain.ErrQuestNotFound)
		return
	}
	quest, completed, err := s.quests.Quest(r.Context(), PrincipalFrom(r.Context()), id)
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, questResponse{Quest: quest, Completed: completed})
}

// validateRequest accepts both the camelCase keys and the snake_case keys older clients send.
type validateRequest struct {
	QuestHeaderID int64                    `json:"questHeaderId"`
	HeaderID      int64                    `json:"header_id"`
	Answers       []domain.SubmittedAnswer `json:"answers"`
	Inputs        []domain.SubmittedAnswer `json:"inputs"`
}

func (v validateRequest) questID() int64 {
	if v.QuestHeaderID != 0 {
		return v.QuestHeaderID
	}
	return v.HeaderID
}

func (v validateRequest) answers() []domain.SubmittedAnswer {
	if v.Answers != nil {
		return v.Answers
	}
	return v.Inputs
}

type validateResponse struct {
	Success     bool                `json:"success"`
	Results     []domain.LineResult `json:"results"`
	Errors      []*string           `json:"errors"`
	TotalPoints int                 `json:"total_points"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.questID() == 0 {
		writeError(w, s.logger, r, domain.FieldErrors{"header_id": "The header id field is required."})
		return
	}
	outcome, err := s.quests.ValidateQuest(r.Context(), req.questID(), req.answers(), PrincipalFrom(r.Context()))
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	status := http.StatusOK
	if !outcome.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, validateResponse{
		Success:     outcome.Success,
		Results:     outcome.Results,
		Errors:      outcome.Errors(),
		TotalPoints: outcome.TotalPoints,
	})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := s.leaderboard.Snapshot(r.Context())
	if err != nil {
		writeError(w, s.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func parseID(r *http.Request, param string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}
