package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"livequiz-service/internal/app"
	"livequiz-service/internal/broadcast"
	"livequiz-service/internal/domain"
	"livequiz-service/internal/infra/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	hub := broadcast.NewHub()
	coord := app.NewCoordinator(
		memory.NewGameRegistry(),
		memory.NewQuizRepository(memory.NewStaticQuizLoader(sampleQuizzes()), time.Minute, 8),
		memory.NewStateStore(),
		hub,
	)
	gateway := NewGateway(coord, hub)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gateway.ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func dial(t *testing.T, server *httptest.Server, role string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws?role=" + role
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", role, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendAction(t *testing.T, conn *websocket.Conn, action string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": action, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", action, err)
	}
}

// readUntil drains events until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want domain.EventType) map[string]any {
	t.Helper()
	for i := 0; i < 20; i++ {
		var msg struct {
			Type    domain.EventType `json:"type"`
			Payload json.RawMessage  `json:"payload"`
		}
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read while waiting for %s: %v", want, err)
		}
		if msg.Type != want {
			// Skipped payloads are not all objects (score-update carries an
			// array), so only the wanted one gets decoded.
			continue
		}
		payload := map[string]any{}
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				t.Fatalf("decode %s payload: %v", want, err)
			}
		}
		return payload
	}
	t.Fatalf("no %s event within 20 messages", want)
	return nil
}

func TestHostedGameOverWebsocket(t *testing.T) {
	server := newTestServer(t)

	host := dial(t, server, "host")
	sendAction(t, host, "create-game", map[string]any{"quizId": "quiz-1", "autoAdmit": true})
	created := readUntil(t, host, domain.EventGameCreated)
	code, _ := created["code"].(string)
	if code == "" {
		t.Fatalf("no session code in %v", created)
	}
	readUntil(t, host, domain.EventStateSnapshot)

	player := dial(t, server, "player")
	sendAction(t, player, "join", map[string]any{"code": code, "name": "Alice", "language": "en"})
	status := readUntil(t, player, domain.EventAdmissionStatusChange)
	if status["admission"] != string(domain.AdmissionAdmitted) {
		t.Fatalf("expected auto-admission, got %v", status)
	}
	playerID, _ := status["playerId"].(string)
	readUntil(t, player, domain.EventStateSnapshot)
	readUntil(t, host, domain.EventPlayerJoined)

	sendAction(t, host, "start-game", nil)
	question := readUntil(t, player, domain.EventQuestionStarted)
	questionID, _ := question["id"].(string)
	if questionID == "" {
		t.Fatalf("no question id in %v", question)
	}
	if _, leaked := question["answers"].([]any)[0].(map[string]any)["correct"]; leaked {
		t.Fatalf("player view leaked correctness: %v", question)
	}

	sendAction(t, player, "answer", map[string]any{"questionId": questionID, "answerIds": []string{"b"}})
	result := readUntil(t, player, domain.EventAnswerResult)
	if result["correct"] != true {
		t.Fatalf("expected correct answer, got %v", result)
	}
	detail := readUntil(t, host, domain.EventAnswerDetail)
	if detail["playerId"] != playerID {
		t.Fatalf("host detail for wrong player: %v", detail)
	}

	sendAction(t, host, "skip-timer", nil)
	reveal := readUntil(t, player, domain.EventQuestionEnded)
	ids, _ := reveal["correctAnswerIds"].([]any)
	if len(ids) != 1 || ids[0] != "b" {
		t.Fatalf("unexpected reveal %v", reveal)
	}

	sendAction(t, host, "end-game", nil)
	finish := readUntil(t, player, domain.EventGameFinished)
	if _, ok := finish["winners"]; !ok {
		t.Fatalf("no winners in %v", finish)
	}
}

func TestAdmissionOverWebsocket(t *testing.T) {
	server := newTestServer(t)

	host := dial(t, server, "host")
	sendAction(t, host, "create-game", map[string]any{"quizId": "quiz-1", "autoAdmit": false})
	created := readUntil(t, host, domain.EventGameCreated)
	code := created["code"].(string)

	player := dial(t, server, "player")
	sendAction(t, player, "join", map[string]any{"code": code, "name": "Bob"})
	status := readUntil(t, player, domain.EventAdmissionStatusChange)
	if status["admission"] != string(domain.AdmissionPending) {
		t.Fatalf("expected pending, got %v", status)
	}

	knock := readUntil(t, host, domain.EventAdmissionRequested)
	sendAction(t, host, "admit-player", map[string]any{"playerId": knock["playerId"]})

	status = readUntil(t, player, domain.EventAdmissionStatusChange)
	if status["admission"] != string(domain.AdmissionAdmitted) {
		t.Fatalf("expected admitted, got %v", status)
	}
}

func TestActionsRequireSession(t *testing.T) {
	server := newTestServer(t)

	host := dial(t, server, "host")
	sendAction(t, host, "start-game", nil)
	errEv := readUntil(t, host, domain.EventError)
	if errEv["message"] == "" {
		t.Fatalf("expected error payload, got %v", errEv)
	}

	player := dial(t, server, "player")
	sendAction(t, player, "join", map[string]any{"code": "ZZZZZZ", "name": "Ghost"})
	errEv = readUntil(t, player, domain.EventError)
	if errEv["code"] != "session-not-found" {
		t.Fatalf("expected session-not-found, got %v", errEv)
	}
}

// A failed join must leave the connection usable for a retry, not tear it
// down.
func TestJoinRetriesAfterUnknownCode(t *testing.T) {
	server := newTestServer(t)

	host := dial(t, server, "host")
	sendAction(t, host, "create-game", map[string]any{"quizId": "quiz-1", "autoAdmit": true})
	created := readUntil(t, host, domain.EventGameCreated)
	code := created["code"].(string)

	player := dial(t, server, "player")
	sendAction(t, player, "join", map[string]any{"code": "ZZZZZZ", "name": "Alice"})
	errEv := readUntil(t, player, domain.EventError)
	if errEv["code"] != "session-not-found" {
		t.Fatalf("expected session-not-found, got %v", errEv)
	}

	sendAction(t, player, "join", map[string]any{"code": code, "name": "Alice"})
	status := readUntil(t, player, domain.EventAdmissionStatusChange)
	if status["admission"] != string(domain.AdmissionAdmitted) {
		t.Fatalf("expected admission after retry, got %v", status)
	}
}

func TestRoleRequired(t *testing.T) {
	server := newTestServer(t)
	resp, err := http.Get(server.URL + "/ws")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without role, got %d", resp.StatusCode)
	}
}

func sampleQuizzes() map[string]domain.Quiz {
	raw := `{
		"id": "quiz-1",
		"title": "Basics",
		"questions": [
			{
				"id": "q1",
				"type": "single_select",
				"text": "What is 2 + 2?",
				"timeLimitSec": 30,
				"points": 100,
				"answers": [
					{"id": "a", "text": "3"},
					{"id": "b", "text": "4", "correct": true},
					{"id": "c", "text": "5"}
				]
			}
		]
	}`
	var quiz domain.Quiz
	if err := json.Unmarshal([]byte(raw), &quiz); err != nil {
		panic(err)
	}
	return map[string]domain.Quiz{"quiz-1": quiz}
}
