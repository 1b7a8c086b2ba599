package engine

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"Viral-Card/server/internal/assets"
	"Viral-Card/server/internal/interfaces"
	"Viral-Card/server/internal/models"
)

// FlowKind names a generation flow. Each kind has its own busy flag.
type FlowKind string

const (
	FlowContent  FlowKind = "content"
	FlowIdentity FlowKind = "identity"
	FlowStory    FlowKind = "story"
	FlowSpeech   FlowKind = "speech"
	FlowMetadata FlowKind = "metadata"
	FlowDirector FlowKind = "director"
)

// Flows lists every flow kind
var Flows = []FlowKind{FlowContent, FlowIdentity, FlowStory, FlowSpeech, FlowMetadata, FlowDirector}

// Outcome is how a flow invocation resolved
type Outcome string

const (
	OutcomeUpdated      Outcome = "updated"
	OutcomeNoop         Outcome = "noop"
	OutcomeBusy         Outcome = "busy"
	OutcomeNoCredential Outcome = "no_credential"
)

// Flow status values
const (
	StatusIdle       = "idle"
	StatusRequesting = "requesting"
)

const defaultFlowTimeout = 120 * time.Second

// FlowResult is returned by every flow. Generation errors never escape as
// Go errors; they resolve to OutcomeNoop with a Reason.
type FlowResult struct {
	Flow    FlowKind     `json:"flow"`
	Outcome Outcome      `json:"outcome"`
	Card    *models.Card `json:"card,omitempty"`
	Reason  string       `json:"reason,omitempty"`
}

// Option configures a CardEngine
type Option func(*CardEngine)

func WithLogger(log *zap.Logger) Option {
	return func(e *CardEngine) { e.log = log }
}

func WithNotifier(n Notifier) Option {
	return func(e *CardEngine) { e.notifier = n }
}

// WithDispatcher sets how follow-up work such as the director's speech
// regeneration is scheduled
func WithDispatcher(d Dispatcher) Option {
	return func(e *CardEngine) { e.dispatcher = d }
}

// WithTopicPicker replaces the random post-content topic selection
func WithTopicPicker(pick func() string) Option {
	return func(e *CardEngine) { e.pickTopic = pick }
}

func WithRand(r *rand.Rand) Option {
	return func(e *CardEngine) { e.rnd = r }
}

// WithFlowTimeout bounds every flow's remote calls
func WithFlowTimeout(d time.Duration) Option {
	return func(e *CardEngine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *CardEngine) { e.now = now }
}

// CardEngine owns the card of one editing session. The card changes only
// through Merge; flows communicate exclusively through patches.
type CardEngine struct {
	sessionID  string
	gen        interfaces.Generator
	store      *assets.Store
	log        *zap.Logger
	notifier   Notifier
	dispatcher Dispatcher
	recorder   Recorder
	pickTopic  func() string
	timeout    time.Duration
	now        func() time.Time

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu         sync.RWMutex
	card       models.Card
	transcript []models.ChatMessage
	voice      models.Voice

	busy   map[FlowKind]*atomic.Bool
	closed atomic.Bool
}

// NewCardEngine creates an engine holding the seed card and a transcript
// seeded with the director greeting
func NewCardEngine(sessionID string, gen interfaces.Generator, store *assets.Store, opts ...Option) *CardEngine {
	e := &CardEngine{
		sessionID:  sessionID,
		gen:        gen,
		store:      store,
		log:        zap.NewNop(),
		notifier:   nopNotifier{},
		dispatcher: GoDispatcher{},
		timeout:    defaultFlowTimeout,
		now:        time.Now,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
		card:       models.SeedCard(),
		voice:      models.DefaultVoice,
		busy:       make(map[FlowKind]*atomic.Bool, len(Flows)),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.pickTopic == nil {
		e.pickTopic = e.randomTopic
	}
	e.log = e.log.With(zap.String("session", sessionID))
	for _, f := range Flows {
		e.busy[f] = atomic.NewBool(false)
	}
	e.transcript = []models.ChatMessage{{
		Role:      models.RoleAssistant,
		Text:      models.DirectorGreeting,
		CreatedAt: e.now(),
	}}
	return e
}

func (e *CardEngine) SessionID() string {
	return e.sessionID
}

// Assets exposes the session asset store
func (e *CardEngine) Assets() *assets.Store {
	return e.store
}

// Card returns a snapshot that shares nothing with engine state
func (e *CardEngine) Card() models.Card {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.card.Clone()
}

// Merge applies p atomically and publishes the new card. An empty patch
// leaves the card identical and publishes nothing.
func (e *CardEngine) Merge(p models.Patch) (models.Card, error) {
	if err := p.Validate(); err != nil {
		return models.Card{}, err
	}
	if p.IsEmpty() {
		return e.Card(), nil
	}

	e.mu.Lock()
	e.card = e.card.Apply(p)
	snapshot := e.card.Clone()
	e.mu.Unlock()

	fields := p.Fields()
	e.log.Debug("card merged", zap.Strings("fields", fields))
	e.publish(EventCardUpdated, CardUpdated{Card: snapshot, Fields: fields})
	return snapshot, nil
}

// Transcript returns a copy of the director transcript
func (e *CardEngine) Transcript() []models.ChatMessage {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]models.ChatMessage(nil), e.transcript...)
}

func (e *CardEngine) appendMessage(role models.ChatRole, text string) models.ChatMessage {
	msg := models.ChatMessage{Role: role, Text: text, CreatedAt: e.now()}
	e.mu.Lock()
	e.transcript = append(e.transcript, msg)
	e.mu.Unlock()
	e.publish(EventTranscriptAppended, msg)
	return msg
}

// SelectVoice records the voice used by follow-up speech generation
func (e *CardEngine) SelectVoice(v models.Voice) {
	e.mu.Lock()
	e.voice = v
	e.mu.Unlock()
}

// Voice returns the last selected voice
func (e *CardEngine) Voice() models.Voice {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.voice
}

// FlowStatus reports idle or requesting for every flow
func (e *CardEngine) FlowStatus() map[FlowKind]string {
	out := make(map[FlowKind]string, len(e.busy))
	for kind, flag := range e.busy {
		if flag.Load() {
			out[kind] = StatusRequesting
		} else {
			out[kind] = StatusIdle
		}
	}
	return out
}

// Busy reports whether kind is in flight
func (e *CardEngine) Busy(kind FlowKind) bool {
	return e.busy[kind].Load()
}

func (e *CardEngine) tryAcquire(kind FlowKind) bool {
	if !e.busy[kind].CompareAndSwap(false, true) {
		return false
	}
	e.publish(EventFlowStatus, FlowStatusChanged{Flow: kind, Status: StatusRequesting})
	return true
}

func (e *CardEngine) release(kind FlowKind) {
	e.busy[kind].Store(false)
	e.publish(EventFlowStatus, FlowStatusChanged{Flow: kind, Status: StatusIdle})
}

// Close revokes every asset of the session. Flows triggered afterwards no-op.
func (e *CardEngine) Close() int {
	if !e.closed.CompareAndSwap(false, true) {
		return 0
	}
	n := e.store.RevokeAll()
	e.log.Info("session closed", zap.Int("revoked_assets", n))
	return n
}

func (e *CardEngine) Closed() bool {
	return e.closed.Load()
}

// runFlow is the shared flow skeleton: credential check, busy guard with
// guaranteed release, bounded context, then a single merge of the patch the
// body produced. A body returning a reason resolves to a no-op.
func (e *CardEngine) runFlow(ctx context.Context, kind FlowKind, body func(ctx context.Context, log *zap.Logger) (models.Patch, string)) FlowResult {
	log := e.log.With(zap.String("flow", string(kind)))

	if e.closed.Load() {
		return FlowResult{Flow: kind, Outcome: OutcomeNoop, Reason: "session closed"}
	}
	if !e.gen.Configured() {
		log.Warn("no credential configured, skipping")
		return FlowResult{Flow: kind, Outcome: OutcomeNoCredential}
	}
	if !e.tryAcquire(kind) {
		log.Debug("already in flight, ignoring trigger")
		return FlowResult{Flow: kind, Outcome: OutcomeBusy}
	}
	defer e.release(kind)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := e.now()
	patch, reason := body(ctx, log)
	if reason != "" {
		log.Info("flow resolved without update", zap.String("reason", reason), zap.Duration("elapsed", e.now().Sub(start)))
		return FlowResult{Flow: kind, Outcome: OutcomeNoop, Reason: reason}
	}

	card, err := e.Merge(patch)
	if err != nil {
		log.Warn("rejected flow patch", zap.Error(err))
		return FlowResult{Flow: kind, Outcome: OutcomeNoop, Reason: err.Error()}
	}
	log.Info("flow merged", zap.Strings("fields", patch.Fields()), zap.Duration("elapsed", e.now().Sub(start)))
	return FlowResult{Flow: kind, Outcome: OutcomeUpdated, Card: &card}
}

func (e *CardEngine) intn(n int) int {
	e.rndMu.Lock()
	defer e.rndMu.Unlock()
	return e.rnd.Intn(n)
}

func (e *CardEngine) randFloat() float64 {
	e.rndMu.Lock()
	defer e.rndMu.Unlock()
	return e.rnd.Float64()
}
