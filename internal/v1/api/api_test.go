package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovidtrivia/quizroom/internal/v1/events"
	"github.com/ovidtrivia/quizroom/internal/v1/questions"
	"github.com/ovidtrivia/quizroom/internal/v1/room"
	"github.com/ovidtrivia/quizroom/internal/v1/session"
)

type fakeBroadcaster struct {
	mu      sync.Mutex
	evicted []string
	emitted int
}

func (b *fakeBroadcaster) Emit(pin string, event events.Name, data any, skip string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.emitted++
}

func (b *fakeBroadcaster) EvictParticipant(pin, participantID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.evicted = append(b.evicted, pin+":"+participantID)
}

type fakeProvider struct{ need int }

func (p *fakeProvider) Generate(context.Context, string, int) questions.Result {
	qs := make([]room.Question, p.need)
	for i := range qs {
		qs[i] = room.Question{
			QuestionID:    "q",
			Text:          "text",
			Options:       [4]string{"a", "b", "c", "d"},
			CorrectOption: 0,
		}
	}
	return questions.Result{Questions: qs, Source: "fallback"}
}

func newTestRouter(t *testing.T) (*gin.Engine, *room.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg := room.NewRegistry(nil, nil, nil)
	sessions := session.NewStore(nil)
	h := NewHandlers(reg, sessions, &fakeProvider{need: 14}, nil, "", false)

	r := gin.New()
	rg := r.Group("/api/v1")
	h.RegisterRoutes(rg)
	return r, reg
}

func doJSON(r *gin.Engine, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func sessionCookieFrom(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == sessionCookieName {
			return ck
		}
	}
	return nil
}

func TestCreateRoom_SetsSessionCookieAnd201(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(r, http.MethodPost, "/api/v1/rooms", createRoomRequest{
		HostName: "Alice", Topic: "science", QuestionsPerTeam: 7, MaxParticipants: 8, TimerSeconds: 30,
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	ck := sessionCookieFrom(rec)
	require.NotNil(t, ck)
	assert.True(t, ck.HttpOnly)
}

func TestCreateRoom_RejectsInvalidQuestionsPerTeam(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(r, http.MethodPost, "/api/v1/rooms", createRoomRequest{
		HostName: "Alice", Topic: "science", QuestionsPerTeam: 3, MaxParticipants: 8, TimerSeconds: 30,
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestJoinRoom_UnknownPinIs404(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doJSON(r, http.MethodPost, "/api/v1/rooms/ZZZZZZ/join", joinRoomRequest{PlayerName: "Bob"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetRoom_WithoutSessionIsForbidden(t *testing.T) {
	r, reg := newTestRouter(t)
	rm, _, err := reg.CreateRoom("Alice", "science", 5, 8, 30)
	require.NoError(t, err)

	rec := doJSON(r, http.MethodGet, "/api/v1/rooms/"+rm.Pin, nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateThenGetRoom_WithCookieSucceeds(t *testing.T) {
	r, _ := newTestRouter(t)

	createRec := doJSON(r, http.MethodPost, "/api/v1/rooms", createRoomRequest{
		HostName: "Alice", Topic: "science", QuestionsPerTeam: 5, MaxParticipants: 8, TimerSeconds: 30,
	})
	require.Equal(t, http.StatusCreated, createRec.Code)

	var created struct {
		Room struct {
			Pin string `json:"pin"`
		} `json:"room"`
	}
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))
	ck := sessionCookieFrom(createRec)
	require.NotNil(t, ck)

	getRec := doJSON(r, http.MethodGet, "/api/v1/rooms/"+created.Room.Pin, nil, ck)
	assert.Equal(t, http.StatusOK, getRec.Code)
}

func TestStartGame_NonHostIsForbidden(t *testing.T) {
	_, reg := newTestRouter(t)
	rm, _, err := reg.CreateRoom("Alice", "science", 5, 8, 30)
	require.NoError(t, err)
	_, bob, err := reg.JoinRoom(rm.Pin, "Bob")
	require.NoError(t, err)

	sessions := session.NewStore(nil)
	sess := sessions.Create(rm.Pin, bob.ParticipantID, bob.Name, bob.Role)

	h := NewHandlers(reg, sessions, &fakeProvider{need: 10}, nil, "", false)
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h.RegisterRoutes(router.Group("/api/v1"))

	rec := doJSON(router, http.MethodPost, "/api/v1/rooms/"+rm.Pin+"/start", nil, &http.Cookie{Name: sessionCookieName, Value: sess.SessionID})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAnswer_RejectsOutOfRangeOption(t *testing.T) {
	_, reg := newTestRouter(t)
	rm, host, err := reg.CreateRoom("Alice", "science", 5, 8, 30)
	require.NoError(t, err)

	sessions := session.NewStore(nil)
	sess := sessions.Create(rm.Pin, host.ParticipantID, host.Name, host.Role)
	h := NewHandlers(reg, sessions, &fakeProvider{need: 10}, nil, "", false)
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h.RegisterRoutes(router.Group("/api/v1"))

	rec := doJSON(router, http.MethodPost, "/api/v1/rooms/"+rm.Pin+"/answer", answerRequest{OptionIndex: 9}, &http.Cookie{Name: sessionCookieName, Value: sess.SessionID})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestLeaveRoom_EvictsSocketBinding(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := room.NewRegistry(nil, nil, nil)
	sessions := session.NewStore(nil)
	bc := &fakeBroadcaster{}
	h := NewHandlers(reg, sessions, &fakeProvider{need: 10}, bc, "", false)
	router := gin.New()
	h.RegisterRoutes(router.Group("/api/v1"))

	r, host, err := reg.CreateRoom("Alice", "science", 5, 8, 30)
	require.NoError(t, err)
	sess := sessions.Create(r.Pin, host.ParticipantID, host.Name, host.Role)

	rec := doJSON(router, http.MethodPost, "/api/v1/rooms/"+r.Pin+"/leave", nil, &http.Cookie{Name: sessionCookieName, Value: sess.SessionID})
	assert.Equal(t, http.StatusOK, rec.Code)

	bc.mu.Lock()
	defer bc.mu.Unlock()
	require.Len(t, bc.evicted, 1)
	assert.Equal(t, r.Pin+":"+host.ParticipantID, bc.evicted[0])
}

func TestQR_UnknownPinIs404(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := doJSON(r, http.MethodGet, "/api/v1/rooms/ZZZZZZ/qr", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQR_KnownPinReturnsPNG(t *testing.T) {
	r, reg := newTestRouter(t)
	rm, _, err := reg.CreateRoom("Alice", "science", 5, 8, 30)
	require.NoError(t, err)

	rec := doJSON(r, http.MethodGet, "/api/v1/rooms/"+rm.Pin+"/qr", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
}
