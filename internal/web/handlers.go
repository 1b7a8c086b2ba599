package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"Viral-Card/server/internal/assets"
	"Viral-Card/server/internal/engine"
	"Viral-Card/server/internal/generators"
	"Viral-Card/server/internal/models"
)

const maxImageUpload = 20 << 20

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Response is the JSON envelope of every API reply
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ExportHistory lists recorded exports of a session
type ExportHistory interface {
	Recent(ctx context.Context, sessionID string, limit int) ([]models.ExportRecord, error)
}

// CacheStats reports speech cache effectiveness
type CacheStats interface {
	Stats() generators.SpeechCacheStats
}

type Handlers struct {
	sessions *Sessions
	hub      *EventHub
	history  ExportHistory
	cache    CacheStats
	log      *zap.Logger
}

// HandlerOption enables optional backing services
type HandlerOption func(*Handlers)

func WithExportHistory(hist ExportHistory) HandlerOption {
	return func(h *Handlers) { h.history = hist }
}

func WithCacheStats(c CacheStats) HandlerOption {
	return func(h *Handlers) { h.cache = c }
}

func NewHandlers(sessions *Sessions, hub *EventHub, log *zap.Logger, opts ...HandlerOption) *Handlers {
	h := &Handlers{sessions: sessions, hub: hub, log: log}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Response{Success: false, Error: msg})
}

// decodeBody decodes an optional JSON body; an empty body leaves dst as is
func decodeBody(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// writeFlow maps a flow outcome to a status code
// flowContext detaches a flow from its request. A client that goes away
// does not abort the remote call; the engine's flow timeout bounds it.
func flowContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func writeFlow(w http.ResponseWriter, res engine.FlowResult) {
	switch res.Outcome {
	case engine.OutcomeBusy:
		writeJSON(w, http.StatusConflict, Response{Success: false, Data: res, Error: "flow already in progress"})
	case engine.OutcomeNoCredential:
		writeJSON(w, http.StatusServiceUnavailable, Response{Success: false, Data: res, Error: "no API credential configured"})
	default:
		writeData(w, res)
	}
}

// session resolves the {id} URL parameter, writing 404 when unknown
func (h *Handlers) session(w http.ResponseWriter, r *http.Request) (*engine.CardEngine, bool) {
	e, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return e, true
}

func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":   "ok",
		"service":  "viral-card",
		"sessions": h.sessions.Count(),
		"clients":  h.hub.ClientCount(""),
	}
	if h.cache != nil {
		status["speech_cache"] = h.cache.Stats()
	}
	writeData(w, status)
}

func (h *Handlers) ListVoices(w http.ResponseWriter, r *http.Request) {
	writeData(w, models.Voices)
}

// CardState is a card snapshot with the session's flow status
type CardState struct {
	SessionID string                     `json:"session_id"`
	Card      models.Card                `json:"card"`
	Flows     map[engine.FlowKind]string `json:"flows"`
	Voice     models.Voice               `json:"voice"`
}

func cardState(e *engine.CardEngine) CardState {
	return CardState{SessionID: e.SessionID(), Card: e.Card(), Flows: e.FlowStatus(), Voice: e.Voice()}
}

func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	e := h.sessions.Create()
	writeJSON(w, http.StatusCreated, Response{Success: true, Data: cardState(e)})
}

func (h *Handlers) EndSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.End(chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeData(w, map[string]string{"status": "ended"})
}

func (h *Handlers) GetCard(w http.ResponseWriter, r *http.Request) {
	e, ok := h.session(w, r)
	if !ok {
		return
	}
	writeData(w, cardState(e))
}

// EditCard merges a direct edit
func (h *Handlers) EditCard(w http.ResponseWriter, r *http.Request) {
	e, ok := h.session(w, r)
	if !ok {
		return
	}

	var patch models.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	card, err := e.Merge(patch)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeData(w, card)
}

func (h *Handlers) GenerateContent(w http.ResponseWriter, r *http.Request) {
	e, ok := h.session(w, r)
	if !ok {
		return
	}
	writeFlow(w, e.GeneratePostContent(flowContext(r)))
}

type IdentityRequest struct {
	Gender string `json:"gender"`
}

func (h *Handlers) GenerateIdentity(w http.ResponseWriter, r *http.Request) {
	e, ok := h.session(w, r)
	if !ok {
		return
	}

	var req IdentityRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	gender, err := models.ParseGender(req.Gender)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeFlow(w, e.GenerateIdentity(flowContext(r), gender))
}

type StoryRequest struct {
	Topic  string `json:"topic"`
	Length string `json:"length"`
}

func (h *Handlers) GenerateStory(w http.ResponseWriter, r *http.Request) {
	e, ok := h.session(w, r)
	if !ok {
		return
	}

	var req StoryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	length, err := models.ParseStoryLength(req.Length)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeFlow(w, e.GenerateStory(flowContext(r), req.Topic, length))
}

type VoiceRequest struct {
	Voice string `json:"voice"`
}

// voice reads an optional voice; empty means the session's current voice
func (h *Handlers) voice(w http.ResponseWriter, r *http.Request) (models.Voice, bool) {
	var req VoiceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return "", false
	}
	if req.Voice == "" {
		return "", true
	}
	v, err := models.ParseVoice(req.Voice)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return v, true
}

func (h *Handlers) GenerateSpeech(w http.ResponseWriter, r *http.Request) {
	e, ok := h.session(w, r)
	if !ok {
		return
	}
	v, ok := h.voice(w, r)
	if !ok {
		return
	}
	writeFlow(w, e.GenerateSpeech(flowContext(r), v))
}

func (h *Handlers) GenerateMetadata(w http.ResponseWriter, r *http.Request) {
	e, ok := h.session(w, r)
	if !ok {
		return
	}
	writeFlow(w, e.GenerateYouTubeMetadata(flowContext(r)))
}

func (h *Handlers) RandomizeMetrics(w http.ResponseWriter, r *http.Request) {
	e, ok := h.session(w, r)
	if !ok {
		return
	}
	card, err := e.RandomizeMetrics()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, card)
}

func (h *Handlers) PreviewVoice(w http.ResponseWriter, r *http.Request) {
	e, ok := h.session(w, r)
	if !ok {
		return
	}
	v, ok := h.voice(w, r)
	if !ok {
		return
	}

	asset, err := e.PreviewVoice(r.Context(), v)
	switch {
	case errors.Is(err, generators.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "no API credential configured")
	case err != nil:
		writeError(w, http.StatusBadGateway, "voice preview failed")
	default:
		writeData(w, asset)
	}
}

type DirectorRequest struct {
	Message string `json:"message"`
}

// DirectorState is the transcript with the result of the last turn
type DirectorState struct {
	Transcript []models.ChatMessage `json:"transcript"`
	Result     *engine.FlowResult   `json:"result,omitempty"`
}

func (h *Handlers) GetTranscript(w http.ResponseWriter, r *http.Request) {
	e, ok := h.session(w, r)
	if !ok {
		return
	}
	writeData(w, DirectorState{Transcript: e.Transcript()})
}

func (h *Handlers) SendDirectorMessage(w http.ResponseWriter, r *http.Request) {
	e, ok := h.session(w, r)
	if !ok {
		return
	}

	var req DirectorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res := e.SendDirectorMessage(flowContext(r), req.Message)
	switch res.Outcome {
	case engine.OutcomeBusy, engine.OutcomeNoCredential:
		writeFlow(w, res)
	default:
		writeData(w, DirectorState{Transcript: e.Transcript(), Result: &res})
	}
}

// ServeAsset streams a registered asset. ?download=1 makes it an attachment
// named by ?filename or the asset id.
func (h *Handlers) ServeAsset(w http.ResponseWriter, r *http.Request) {
	e, ok := h.session(w, r)
	if !ok {
		return
	}

	asset, data, err := e.Assets().Get(chi.URLParam(r, "assetID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "asset not found")
		return
	}

	w.Header().Set("Content-Type", asset.MIMEType)
	if r.URL.Query().Get("download") == "1" {
		name := r.URL.Query().Get("filename")
		if name == "" {
			name = asset.ID + asset.Extension
		}
		disposition := mime.FormatMediaType("attachment", map[string]string{"filename": name})
		if disposition == "" {
			disposition = mime.FormatMediaType("attachment", map[string]string{"filename": asset.ID + asset.Extension})
		}
		w.Header().Set("Content-Disposition", disposition)
	}
	http.ServeContent(w, r, asset.ID+asset.Extension, asset.CreatedAt, bytes.NewReader(data))
}

// ExportResponse points the renderer at a downloadable artifact
type ExportResponse struct {
	Filename    string       `json:"filename"`
	DownloadURL string       `json:"download_url"`
	Asset       assets.Asset `json:"asset"`
}

func exportResponse(exp engine.Export) ExportResponse {
	q := url.Values{"download": {"1"}, "filename": {exp.Filename}}
	return ExportResponse{
		Filename:    exp.Filename,
		DownloadURL: exp.Asset.Handle + "?" + q.Encode(),
		Asset:       exp.Asset,
	}
}

func (h *Handlers) ExportAudio(w http.ResponseWriter, r *http.Request) {
	e, ok := h.session(w, r)
	if !ok {
		return
	}

	exp, err := e.ExportAudio(r.Context())
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeData(w, exportResponse(exp))
}

// ListExports returns the session's recorded exports, newest first. Without
// a ledger the list is empty.
func (h *Handlers) ListExports(w http.ResponseWriter, r *http.Request) {
	e, ok := h.session(w, r)
	if !ok {
		return
	}
	if h.history == nil {
		writeData(w, []models.ExportRecord{})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := h.history.Recent(r.Context(), e.SessionID(), limit)
	if err != nil {
		h.log.Error("failed to list exports", zap.String("session", e.SessionID()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list exports")
		return
	}
	writeData(w, records)
}

// ExportImage accepts the card rasterized by the renderer as a PNG body
func (h *Handlers) ExportImage(w http.ResponseWriter, r *http.Request) {
	e, ok := h.session(w, r)
	if !ok {
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImageUpload))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, engine.ImageExportNotice)
		return
	}
	exp, err := e.ExportImage(r.Context(), data)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, engine.ImageExportNotice)
		return
	}
	writeData(w, exportResponse(exp))
}

// Events upgrades to a websocket streaming the session's events. The first
// message carries the current card.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	e, err := h.sessions.Get(r.URL.Query().Get("session"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		ID:        uuid.NewString(),
		SessionID: e.SessionID(),
		Conn:      conn,
		Send:      make(chan []byte, sendBuffer),
		Hub:       h.hub,
	}

	welcome, _ := json.Marshal(engine.Event{
		Type:      engine.EventCardUpdated,
		SessionID: e.SessionID(),
		Data:      engine.CardUpdated{Card: e.Card()},
		At:        time.Now(),
	})
	client.Send <- welcome

	h.hub.Register(client)
	go client.readPump()
}

// requestLogger logs every request with zap once the handler returns
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("uri", r.RequestURI),
				zap.String("remote_ip", r.RemoteAddr),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("latency", time.Since(start)),
			}
			if id := middleware.GetReqID(r.Context()); id != "" {
				fields = append(fields, zap.String("request_id", id))
			}

			switch n := ww.Status(); {
			case n >= http.StatusInternalServerError:
				log.Error("server error", fields...)
			case n >= http.StatusBadRequest:
				log.Warn("client error", fields...)
			default:
				log.Info("request", fields...)
			}
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		w.Header().Set("Access-Control-Max-Age", "300")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func NewRouter(h *Handlers, log *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(log.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/voices", h.ListVoices)
		r.Get("/ws", h.Events)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.CreateSession)

			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", h.EndSession)

				r.Get("/card", h.GetCard)
				r.Patch("/card", h.EditCard)

				r.Route("/generate", func(r chi.Router) {
					r.Post("/content", h.GenerateContent)
					r.Post("/identity", h.GenerateIdentity)
					r.Post("/story", h.GenerateStory)
					r.Post("/speech", h.GenerateSpeech)
					r.Post("/metadata", h.GenerateMetadata)
				})

				r.Post("/metrics/randomize", h.RandomizeMetrics)
				r.Post("/voice/preview", h.PreviewVoice)

				r.Get("/director", h.GetTranscript)
				r.Post("/director", h.SendDirectorMessage)

				r.Get("/assets/{assetID}", h.ServeAsset)

				r.Get("/exports", h.ListExports)
				r.Post("/exports/audio", h.ExportAudio)
				r.Post("/exports/image", h.ExportImage)
			})
		})
	})

	return r
}
