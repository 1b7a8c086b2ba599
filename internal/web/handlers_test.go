package web

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"Viral-Card/server/internal/assets"
	"Viral-Card/server/internal/engine"
	"Viral-Card/server/internal/generators/generatortest"
	"Viral-Card/server/internal/interfaces"
	"Viral-Card/server/internal/models"
)

type testServer struct {
	router   http.Handler
	sessions *Sessions
	hub      *EventHub
}

func newTestServer(t *testing.T, gen interfaces.Generator) *testServer {
	t.Helper()
	log := zap.NewNop()
	hub := NewEventHub(log)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	sessions := NewSessions(func(id string) *engine.CardEngine {
		store := assets.NewStore("http://test/api/v1/sessions/" + id + "/assets")
		return engine.NewCardEngine(id, gen, store,
			engine.WithNotifier(hub),
			engine.WithDispatcher(engine.SyncDispatcher{}),
			engine.WithLogger(log))
	}, log)

	return &testServer{
		router:   NewRouter(NewHandlers(sessions, hub, log), log),
		sessions: sessions,
		hub:      hub,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var resp Response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func decodeData[T any](t *testing.T, resp Response) T {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func (s *testServer) createSession(t *testing.T) string {
	t.Helper()
	rec, resp := s.do(t, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	state := decodeData[CardState](t, resp)
	require.NotEmpty(t, state.SessionID)
	return state.SessionID
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t, &generatortest.Fake{})

	rec, resp := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
}

func TestListVoices(t *testing.T) {
	s := newTestServer(t, &generatortest.Fake{})

	_, resp := s.do(t, http.MethodGet, "/api/v1/voices", nil)
	voices := decodeData[[]models.VoiceInfo](t, resp)
	assert.Len(t, voices, 5)
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t, &generatortest.Fake{})
	id := s.createSession(t)

	rec, resp := s.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/card", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decodeData[CardState](t, resp)
	assert.Equal(t, models.SeedCard(), state.Card)
	assert.Equal(t, engine.StatusIdle, state.Flows[engine.FlowStory])

	rec, _ = s.do(t, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp = s.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/card", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, resp.Success)
}

func TestUnknownSession(t *testing.T) {
	s := newTestServer(t, &generatortest.Fake{})

	for _, path := range []string{"/card", "/director", "/assets/x.wav"} {
		rec, _ := s.do(t, http.MethodGet, "/api/v1/sessions/missing"+path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
	rec, _ := s.do(t, http.MethodPost, "/api/v1/sessions/missing/generate/story", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEditCard(t *testing.T) {
	s := newTestServer(t, &generatortest.Fake{})
	id := s.createSession(t)

	rec, resp := s.do(t, http.MethodPatch, "/api/v1/sessions/"+id+"/card",
		[]byte(`{"username":"Ava","theme":"dark","mainAudioUrl":null}`))
	require.Equal(t, http.StatusOK, rec.Code)
	card := decodeData[models.Card](t, resp)
	assert.Equal(t, "Ava", card.Username)
	assert.Equal(t, models.ThemeDark, card.Theme)

	rec, _ = s.do(t, http.MethodPatch, "/api/v1/sessions/"+id+"/card", []byte(`{"theme":"neon"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateStoryEndpoint(t *testing.T) {
	fake := &generatortest.Fake{
		StoryFn: func(ctx context.Context, req *interfaces.StoryRequest) (*interfaces.Story, error) {
			assert.Equal(t, models.LengthShort, req.Length)
			return &interfaces.Story{Title: "T", Story: "S"}, nil
		},
	}
	s := newTestServer(t, fake)
	id := s.createSession(t)

	rec, resp := s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/generate/story", StoryRequest{Topic: "x", Length: "short"})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeData[engine.FlowResult](t, resp)
	assert.Equal(t, engine.OutcomeUpdated, res.Outcome)
	assert.Equal(t, "T", res.Card.Content)

	rec, _ = s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/generate/story", StoryRequest{Length: "epic"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFlowSurvivesClientDisconnect(t *testing.T) {
	fake := &generatortest.Fake{
		StoryFn: func(ctx context.Context, req *interfaces.StoryRequest) (*interfaces.Story, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(50 * time.Millisecond):
				return &interfaces.Story{Title: "Kept", Story: "S"}, nil
			}
		},
	}
	s := newTestServer(t, fake)
	id := s.createSession(t)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/generate/story", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	time.AfterFunc(10*time.Millisecond, cancel)
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	e, err := s.sessions.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "Kept", e.Card().Content)
}

func TestBusyFlowReturnsConflict(t *testing.T) {
	started := make(chan struct{})
	unblock := make(chan struct{})
	fake := &generatortest.Fake{
		StoryFn: func(ctx context.Context, req *interfaces.StoryRequest) (*interfaces.Story, error) {
			close(started)
			<-unblock
			return &interfaces.Story{Title: "T", Story: "S"}, nil
		},
	}
	s := newTestServer(t, fake)
	id := s.createSession(t)
	path := "/api/v1/sessions/" + id + "/generate/story"

	done := make(chan int)
	go func() {
		rec, _ := s.do(t, http.MethodPost, path, nil)
		done <- rec.Code
	}()
	<-started

	rec, resp := s.do(t, http.MethodPost, path, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, engine.OutcomeBusy, decodeData[engine.FlowResult](t, resp).Outcome)

	close(unblock)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestNoCredentialReturnsUnavailable(t *testing.T) {
	s := newTestServer(t, &generatortest.Fake{NoCredential: true})
	id := s.createSession(t)

	rec, _ := s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/generate/content", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/voice/preview", VoiceRequest{Voice: "Puck"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDirectorEndpoint(t *testing.T) {
	fake := &generatortest.Fake{
		DirectorFn: func(ctx context.Context, req *interfaces.DirectorRequest) (*interfaces.DirectorReply, error) {
			return &interfaces.DirectorReply{Message: "Done.", Updates: models.Patch{AccentColor: models.String("#00ff00")}}, nil
		},
	}
	s := newTestServer(t, fake)
	id := s.createSession(t)

	_, resp := s.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/director", nil)
	assert.Len(t, decodeData[DirectorState](t, resp).Transcript, 1)

	rec, resp := s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/director", DirectorRequest{Message: "make it green"})
	require.Equal(t, http.StatusOK, rec.Code)
	state := decodeData[DirectorState](t, resp)
	assert.Len(t, state.Transcript, 3)
	require.NotNil(t, state.Result)
	assert.Equal(t, "#00ff00", state.Result.Card.AccentColor)
}

func TestSpeechAssetAndAudioExport(t *testing.T) {
	s := newTestServer(t, &generatortest.Fake{})
	id := s.createSession(t)
	base := "/api/v1/sessions/" + id

	rec, _ := s.do(t, http.MethodPost, base+"/exports/audio", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, resp := s.do(t, http.MethodPost, base+"/generate/speech", VoiceRequest{Voice: "zephyr"})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeData[engine.FlowResult](t, resp)
	require.NotNil(t, res.Card.MainAudioURL)

	rec, resp = s.do(t, http.MethodPost, base+"/exports/audio", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	exp := decodeData[ExportResponse](t, resp)
	assert.Regexp(t, `^story-audio-\d+\.wav$`, exp.Filename)
	assert.Contains(t, exp.DownloadURL, "download=1")

	path := strings.TrimPrefix(exp.DownloadURL, "http://test")
	rec, _ = s.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/wav", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), exp.Filename)
	assert.Equal(t, "RIFF", rec.Body.String()[:4])
}

func TestAssetDownloadNameIsEncoded(t *testing.T) {
	s := newTestServer(t, &generatortest.Fake{})
	id := s.createSession(t)

	rec, resp := s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/generate/speech", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeData[engine.FlowResult](t, resp)
	require.NotNil(t, res.Card.MainAudioURL)

	name := "a\"b\r\nX-Injected: 1.wav"
	q := url.Values{"download": {"1"}, "filename": {name}}
	path := strings.TrimPrefix(*res.Card.MainAudioURL, "http://test") + "?" + q.Encode()
	rec, _ = s.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	header := rec.Header().Get("Content-Disposition")
	assert.NotContains(t, header, "\r")
	assert.NotContains(t, header, "\n")
	disposition, params, err := mime.ParseMediaType(header)
	require.NoError(t, err)
	assert.Equal(t, "attachment", disposition)
	assert.Equal(t, name, params["filename"])
	assert.Empty(t, rec.Header().Get("X-Injected"))
}

func TestImageExport(t *testing.T) {
	s := newTestServer(t, &generatortest.Fake{})
	id := s.createSession(t)
	path := "/api/v1/sessions/" + id + "/exports/image"

	rec, resp := s.do(t, http.MethodPost, path, []byte("not an image"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, engine.ImageExportNotice, resp.Error)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	rec, resp = s.do(t, http.MethodPost, path, buf.Bytes())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Regexp(t, `^social-post-\d+\.png$`, decodeData[ExportResponse](t, resp).Filename)
}

func TestEventsStream(t *testing.T) {
	s := newTestServer(t, &generatortest.Fake{})
	srv := httptest.NewServer(s.router)
	t.Cleanup(srv.Close)
	id := s.createSession(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws?session=" + id
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	readEvent := func() engine.Event {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var ev engine.Event
		require.NoError(t, conn.ReadJSON(&ev))
		return ev
	}

	first := readEvent()
	assert.Equal(t, engine.EventCardUpdated, first.Type)
	assert.Equal(t, id, first.SessionID)

	require.Eventually(t, func() bool { return s.hub.ClientCount(id) == 1 }, time.Second, 5*time.Millisecond)

	rec, _ := s.do(t, http.MethodPatch, "/api/v1/sessions/"+id+"/card", []byte(`{"username":"Live"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	ev := readEvent()
	assert.Equal(t, engine.EventCardUpdated, ev.Type)
	data, ok := ev.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"username"}, data["fields"])
}

func TestEventsUnknownSession(t *testing.T) {
	s := newTestServer(t, &generatortest.Fake{})

	rec, _ := s.do(t, http.MethodGet, "/api/v1/ws?session=nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type fakeHistory struct {
	session string
	limit   int
}

func (f *fakeHistory) Recent(ctx context.Context, sessionID string, limit int) ([]models.ExportRecord, error) {
	f.session, f.limit = sessionID, limit
	return []models.ExportRecord{{ID: "r1", SessionID: sessionID, Kind: models.ExportImage, Filename: "social-post-1.png"}}, nil
}

func TestListExports(t *testing.T) {
	s := newTestServer(t, &generatortest.Fake{})
	id := s.createSession(t)

	_, resp := s.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/exports", nil)
	assert.Empty(t, decodeData[[]models.ExportRecord](t, resp))

	hist := &fakeHistory{}
	log := zap.NewNop()
	router := NewRouter(NewHandlers(s.sessions, s.hub, log, WithExportHistory(hist)), log)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id+"/exports?limit=5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, hist.session)
	assert.Equal(t, 5, hist.limit)
	assert.Contains(t, rec.Body.String(), "social-post-1.png")
}
