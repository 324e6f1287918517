package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"levelup-sidequest/internal/app"
	"levelup-sidequest/internal/domain"
	"levelup-sidequest/internal/infra/memory"

	"github.com/gorilla/websocket"
)

const testAdminKey = "admin-secret"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	birthday := time.Date(2000, time.May, 1, 0, 0, 0, 0, time.UTC)
	inviter := "Kuya Jigs"
	registrants := memory.NewRegistrantStore(
		domain.Registrant{Name: "Jane", Email: "jane@example.com", UID: "LVLUPJANE", Birthday: &birthday},
		domain.Registrant{Name: "Player One", Email: "p1@example.com", UID: "LVLUPP001", InvitedBy: &inviter},
	)
	answer := "JIGGER"
	store := memory.NewQuestStore(
		domain.Quest{ID: 1, Question: "Find Kuya Jigs", Lines: []domain.QuestLine{
			{InputType: "text", IsQuestion: true, Answer: &answer, ValidationRule: domain.RuleRequired, Points: 30},
		}},
		domain.Quest{ID: 2, Question: "Meet someone", Lines: []domain.QuestLine{
			{InputType: "text", ValidationRule: domain.RuleNameExists, Points: 10},
			{InputType: "date", ValidationRule: domain.RuleBirthdayIsCorrect, Points: 10},
		}},
	)
	quests := memory.NewQuestRepository(store, time.Minute)
	scores := memory.NewScoreStore(registrants)
	leaderboard := app.NewLeaderboardService(scores, logger)

	srv := NewServer(
		app.NewQuestService(quests, registrants, scores, memory.NewCompletedCache(time.Minute), logger, app.WithScoreNotifier(leaderboard)),
		app.NewAuthService(registrants, memory.NewSessionStore(), "test-secret", time.Hour, logger),
		app.NewRegistrationService(registrants, logger),
		leaderboard,
		app.NewQuestAdmin(store, quests, logger),
		logger,
		Options{AdminKey: testAdminKey},
	)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, token string, body any, headers ...string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func login(t *testing.T, ts *httptest.Server, uid string) string {
	t.Helper()
	resp, body := do(t, http.MethodPost, ts.URL+"/game/login", "", map[string]string{"uid": uid})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status %d: %s", resp.StatusCode, body)
	}
	var res app.LoginResult
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return res.Token
}

func TestValidateQuestFlow(t *testing.T) {
	ts := newTestServer(t)
	token := login(t, ts, "lvlupp001")

	resp, body := do(t, http.MethodPost, ts.URL+"/game/quests/validate", token, map[string]any{
		"questHeaderId": 1,
		"answers":       []map[string]any{{"value": "wrong"}},
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", resp.StatusCode, body)
	}
	var failed validateResponse
	_ = json.Unmarshal(body, &failed)
	if failed.Success || failed.TotalPoints != 0 || len(failed.Errors) != 1 || failed.Errors[0] == nil {
		t.Fatalf("unexpected failure body %s", body)
	}

	resp, body = do(t, http.MethodPost, ts.URL+"/game/quests/validate", token, map[string]any{
		"header_id": 1,
		"inputs":    []map[string]any{{"value": "JIGGER", "validation_rule": "required", "points": 999}},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var ok validateResponse
	_ = json.Unmarshal(body, &ok)
	if !ok.Success || ok.TotalPoints != 30 || ok.Errors[0] != nil || ok.Results[0].InputValue != "JIGGER" {
		t.Fatalf("unexpected success body %s", body)
	}

	resp, body = do(t, http.MethodGet, ts.URL+"/game/quests", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("board status %d", resp.StatusCode)
	}
	var board app.QuestBoard
	_ = json.Unmarshal(body, &board)
	if len(board.CompletedQuestIDs) != 1 || board.TotalPoints != 30 {
		t.Fatalf("unexpected board %s", body)
	}
	if strings.Contains(string(body), "JIGGER") {
		t.Fatalf("board must not leak answers: %s", body)
	}

	resp, body = do(t, http.MethodGet, ts.URL+"/game/quests/1", token, nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"completed":true`) {
		t.Fatalf("expected completed quest, got %d %s", resp.StatusCode, body)
	}
}

func TestValidateErrors(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := do(t, http.MethodPost, ts.URL+"/game/quests/validate", "", map[string]any{"questHeaderId": 1, "answers": []any{}})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodPost, ts.URL+"/game/quests/validate", "not-a-token", map[string]any{"questHeaderId": 1})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", resp.StatusCode)
	}

	token := login(t, ts, "LVLUPP001")
	resp, _ = do(t, http.MethodPost, ts.URL+"/game/quests/validate", token, map[string]any{"questHeaderId": 99})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown quest, got %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodPost, ts.URL+"/game/quests/validate", token, map[string]any{})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 without quest id, got %d", resp.StatusCode)
	}
}

func TestLoginAndLogout(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := do(t, http.MethodPost, ts.URL+"/game/login", "", map[string]string{"uid": "LVLUPNOPE"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unknown uid, got %d", resp.StatusCode)
	}

	token := login(t, ts, "LVLUPP001")
	resp, body := do(t, http.MethodGet, ts.URL+"/game/me", token, nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "Player One") {
		t.Fatalf("expected current registrant, got %d %s", resp.StatusCode, body)
	}
	resp, _ = do(t, http.MethodPost, ts.URL+"/game/logout", token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 on logout, got %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodGet, ts.URL+"/game/me", token, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected revoked token to be rejected, got %d", resp.StatusCode)
	}
}

func TestSessionCookieAuthenticates(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := do(t, http.MethodPost, ts.URL+"/game/login", "", map[string]string{"uid": "LVLUPP001"})
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "sidequest_session" {
			cookie = c
		}
	}
	if cookie == nil || !cookie.HttpOnly {
		t.Fatalf("expected http-only session cookie, got %v", resp.Cookies())
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/game/me", nil)
	req.AddCookie(cookie)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected cookie session to authenticate, got %d", res.StatusCode)
	}
}

func TestRegistrationEndpoints(t *testing.T) {
	ts := newTestServer(t)
	mobile := "09123456789"
	in := app.RegistrationInput{
		Name: "New Friend", Email: "friend@example.com", Birthday: "2004-01-15",
		Salvationist: "no", InvitedBy: strPtr("Jane"), MobileNumber: &mobile,
	}
	in.Age = time.Now().Year() - 2004

	resp, body := do(t, http.MethodPost, ts.URL+"/api/register", "", in)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, body)
	}
	var created struct {
		Registration domain.Registrant `json:"registration"`
	}
	_ = json.Unmarshal(body, &created)
	if !strings.HasPrefix(created.Registration.UID, "LVLUP") {
		t.Fatalf("expected generated uid, got %s", body)
	}

	resp, body = do(t, http.MethodPost, ts.URL+"/api/register", "", in)
	if resp.StatusCode != http.StatusUnprocessableEntity || !strings.Contains(string(body), "email") {
		t.Fatalf("expected duplicate email 422, got %d: %s", resp.StatusCode, body)
	}

	_, body = do(t, http.MethodGet, ts.URL+"/api/check-email?email=friend@example.com", "", nil)
	if !strings.Contains(string(body), `"exists":true`) {
		t.Fatalf("expected email to exist, got %s", body)
	}
	_, body = do(t, http.MethodGet, ts.URL+"/api/registrations/count", "", nil)
	if !strings.Contains(string(body), `"count":3`) {
		t.Fatalf("expected count 3, got %s", body)
	}
	resp, _ = do(t, http.MethodGet, ts.URL+"/api/registrations/uid/"+strings.ToLower(created.Registration.UID), "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected lookup by uid, got %d", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodGet, ts.URL+"/api/registrations/uid/LVLUPNOPE", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown uid, got %d", resp.StatusCode)
	}
}

func TestAdminQuests(t *testing.T) {
	ts := newTestServer(t)
	quest := map[string]any{
		"question": "Ask someone their birthday month",
		"lines": []map[string]any{
			{"inputType": "text", "validationRule": "validate_if_name_exist", "points": 5},
			{"inputType": "text", "validationRule": "validate_same_bday", "points": 5},
		},
	}

	resp, _ := do(t, http.MethodPost, ts.URL+"/admin/quests", "", quest)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 without key, got %d", resp.StatusCode)
	}
	resp, body := do(t, http.MethodPost, ts.URL+"/admin/quests", "", quest, "X-Admin-Key", testAdminKey)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, body)
	}
	var created domain.Quest
	_ = json.Unmarshal(body, &created)
	if created.ID == 0 || created.Lines[1].NameRef == nil || *created.Lines[1].NameRef != 0 {
		t.Fatalf("expected normalised quest, got %s", body)
	}

	bad := map[string]any{"question": "Broken", "lines": []map[string]any{{"validationRule": "validate_magic"}}}
	resp, _ = do(t, http.MethodPost, ts.URL+"/admin/quests", "", bad, "X-Admin-Key", testAdminKey)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unknown rule, got %d", resp.StatusCode)
	}

	resp, body = do(t, http.MethodGet, ts.URL+"/admin/quests", "", nil, "X-Admin-Key", testAdminKey)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "JIGGER") {
		t.Fatalf("expected admin list with answers, got %d %s", resp.StatusCode, body)
	}

	resp, _ = do(t, http.MethodDelete, ts.URL+"/admin/quests/1", "", nil, "X-Admin-Key", testAdminKey)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 on delete, got %d", resp.StatusCode)
	}
	token := login(t, ts, "LVLUPP001")
	resp, _ = do(t, http.MethodGet, ts.URL+"/game/quests/1", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected deleted quest to be gone from the cache, got %d", resp.StatusCode)
	}
}

func TestAdminQuestUpdateAndSearch(t *testing.T) {
	ts := newTestServer(t)
	token := login(t, ts, "LVLUPP001")

	// Load quest 1 through the game route so the cache holds the old version.
	resp, body := do(t, http.MethodGet, ts.URL+"/game/quests/1", token, nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "Find Kuya Jigs") {
		t.Fatalf("expected quest 1, got %d %s", resp.StatusCode, body)
	}

	update := map[string]any{
		"question": "Find Ate Sweet",
		"lines": []map[string]any{
			{"inputType": "text", "isQuestion": true, "answer": "SWEET", "validationRule": "required", "points": 25},
		},
	}
	resp, _ = do(t, http.MethodPut, ts.URL+"/admin/quests/1", "", update)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 without key, got %d", resp.StatusCode)
	}
	resp, body = do(t, http.MethodPut, ts.URL+"/admin/quests/1", "", update, "X-Admin-Key", testAdminKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	resp, _ = do(t, http.MethodPut, ts.URL+"/admin/quests/99", "", update, "X-Admin-Key", testAdminKey)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown quest, got %d", resp.StatusCode)
	}

	resp, body = do(t, http.MethodPost, ts.URL+"/game/quests/validate", token, map[string]any{
		"questHeaderId": 1,
		"answers":       []map[string]any{{"value": "SWEET"}},
	})
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"total_points":25`) {
		t.Fatalf("expected the updated quest to be served, got %d %s", resp.StatusCode, body)
	}

	resp, body = do(t, http.MethodGet, ts.URL+"/admin/quests/1", "", nil, "X-Admin-Key", testAdminKey)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "SWEET") {
		t.Fatalf("expected admin view with answer, got %d %s", resp.StatusCode, body)
	}

	resp, body = do(t, http.MethodGet, ts.URL+"/admin/quests?search=meet&per_page=5", "", nil, "X-Admin-Key", testAdminKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var page domain.Page[domain.Quest]
	if err := json.Unmarshal(body, &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if len(page.Data) != 1 || page.Data[0].Question != "Meet someone" || page.Pagination.PerPage != 5 || page.Pagination.Total != 1 {
		t.Fatalf("unexpected search page %s", body)
	}
}

func TestRegistrationListing(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := do(t, http.MethodGet, ts.URL+"/api/registrations", "", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 without key, got %d", resp.StatusCode)
	}

	resp, body := do(t, http.MethodGet, ts.URL+"/api/registrations?search=kuya&page=1&per_page=10", "", nil, "X-Admin-Key", testAdminKey)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var page domain.Page[domain.Registrant]
	if err := json.Unmarshal(body, &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if len(page.Data) != 1 || page.Data[0].UID != "LVLUPP001" || page.Pagination.Total != 1 {
		t.Fatalf("expected the player invited by Kuya Jigs, got %s", body)
	}
	if !strings.Contains(string(body), `"current_page":1`) || !strings.Contains(string(body), `"last_page":1`) {
		t.Fatalf("expected pagination keys in body, got %s", body)
	}
}

func TestLeaderboardWebSocket(t *testing.T) {
	ts := newTestServer(t)

	u := "ws" + ts.URL[len("http"):] + "/ws/leaderboard"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	initial := readLeaderboard(t, conn)
	if len(initial.Entries) != 0 {
		t.Fatalf("expected empty leaderboard, got %+v", initial)
	}

	token := login(t, ts, "LVLUPP001")
	resp, body := do(t, http.MethodPost, ts.URL+"/game/quests/validate", token, map[string]any{
		"questHeaderId": 2,
		"answers":       []map[string]any{{"value": "Jane"}, {"value": "2000-05-01"}},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	update := readLeaderboard(t, conn)
	if len(update.Entries) != 1 || update.Entries[0].Name != "Player One" || update.Entries[0].TotalPoints != 20 {
		t.Fatalf("unexpected leaderboard update %+v", update)
	}

	_, body = do(t, http.MethodGet, ts.URL+"/game/leaderboard", "", nil)
	if !strings.Contains(string(body), `"totalPoints":20`) {
		t.Fatalf("expected rest leaderboard to match, got %s", body)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, body := do(t, http.MethodGet, ts.URL+"/healthz", "", nil)
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("unexpected health %d %q", resp.StatusCode, body)
	}
}

func readLeaderboard(t *testing.T, conn *websocket.Conn) domain.Leaderboard {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg outboundMessage[domain.Leaderboard]
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "leaderboard" {
		t.Fatalf("expected leaderboard message, got %s", msg.Type)
	}
	return msg.Payload
}

func strPtr(s string) *string { return &s }
