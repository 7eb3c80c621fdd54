package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/teslashibe/agrivoice/pkg/hub"
	"github.com/teslashibe/agrivoice/pkg/language"
	"github.com/teslashibe/agrivoice/pkg/protocol"
	"github.com/teslashibe/agrivoice/pkg/reasoning"
	"github.com/teslashibe/agrivoice/pkg/stt"
	"github.com/teslashibe/agrivoice/pkg/transcript"
	"github.com/teslashibe/agrivoice/pkg/tts"
)

// Reasoner answers a query. *reasoning.Gateway implements it.
type Reasoner interface {
	ProcessQuery(ctx context.Context, query, lang, location string) (*reasoning.Result, error)
}

// Speaker plays answers. *tts.Synthesizer implements it.
type Speaker interface {
	IsSupported() bool
	Speak(ctx context.Context, text, lang string, opts tts.Options) (*tts.Playback, error)
	Stop()
}

// Recorder receives transcript entries. *transcript.Logger implements it.
type Recorder interface {
	EnsureSession(userID string, meta transcript.Metadata) (string, error)
	LogUserInput(transcript.UserInput) string
	LogAIResponse(transcript.AIResponse) string
	LogTTSPlayback(transcript.TTSPlayback) string
	LogError(transcript.ErrorEntry) string
}

// Publisher fans events out to stream clients. *hub.Hub implements it.
type Publisher interface {
	Publish(t protocol.MessageType, data any) error
}

var (
	_ Reasoner  = (*reasoning.Gateway)(nil)
	_ Speaker   = (*tts.Synthesizer)(nil)
	_ Recorder  = (*transcript.Logger)(nil)
	_ Publisher = (*hub.Hub)(nil)
)

// Deps are the services an Orchestrator coordinates. Transcripts and
// Events are optional.
type Deps struct {
	Recognizer  stt.Recognizer
	Synthesizer Speaker
	Gateway     Reasoner
	Transcripts Recorder
	Events      Publisher
}

// Transcription is an interim or final recognition result.
type Transcription struct {
	Text         string
	Language     string
	Confidence   float64
	IsFinal      bool
	Alternatives []stt.Alternative
}

// Response is a gateway answer delivered to the UI.
type Response struct {
	Query    string
	Text     string
	Language string
	Result   *reasoning.Result
}

// Failure is a localized error reported to the UI.
type Failure struct {
	Kind     ErrorKind
	Message  string
	Language string
	Err      error
}

// Callbacks receive orchestrator events. Any field may be nil.
type Callbacks struct {
	OnStateChange    func(state, previous State)
	OnTranscription  func(Transcription)
	OnResponse       func(Response)
	OnError          func(Failure)
	OnLanguageChange func(lang, previous string, auto bool)
}

// Status is a snapshot of the orchestrator.
type Status struct {
	State                State  `json:"state"`
	Language             string `json:"language"`
	Location             string `json:"location"`
	VoiceOutput          bool   `json:"voiceOutput"`
	AutoLanguage         bool   `json:"autoLanguage"`
	CanStart             bool   `json:"canStart"`
	Recognizer           string `json:"recognizer"`
	RecognitionSupported bool   `json:"recognitionSupported"`
	SynthesisSupported   bool   `json:"synthesisSupported"`
	Turn                 uint64 `json:"turn"`
}

// Orchestrator runs voice and text turns through recognition, reasoning
// and synthesis. One turn is in flight at a time; starting a new one
// cancels the current one.
type Orchestrator struct {
	rec     stt.Recognizer
	synth   Speaker
	gw      Reasoner
	log     Recorder
	events  Publisher
	cfg     *Config
	logger  *slog.Logger
	metrics *MetricsCollector

	base     context.Context
	shutdown context.CancelFunc

	mu          sync.Mutex
	state       State
	lang        string
	location    string
	voiceOut    bool
	turn        uint64
	turnCtx     context.Context
	cancel      context.CancelFunc
	lastInterim string
	streakLang  string
	streakN     int
	cb          Callbacks
	outbox      []func()

	delivering sync.Mutex
}

// New creates an orchestrator in the idle state.
func New(deps Deps, opts ...Option) (*Orchestrator, error) {
	if deps.Recognizer == nil || deps.Synthesizer == nil || deps.Gateway == nil {
		return nil, ErrMissingDependency
	}
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base, shutdown := context.WithCancel(context.Background())
	return &Orchestrator{
		rec:      deps.Recognizer,
		synth:    deps.Synthesizer,
		gw:       deps.Gateway,
		log:      deps.Transcripts,
		events:   deps.Events,
		cfg:      cfg,
		logger:   cfg.Logger.With("component", "voice.orchestrator"),
		metrics:  NewMetricsCollector(),
		base:     base,
		shutdown: shutdown,
		state:    StateIdle,
		lang:     cfg.Language,
		location: cfg.Location,
		voiceOut: cfg.VoiceOutput,
		turnCtx:  base,
	}, nil
}

// SetCallbacks replaces the UI callbacks.
func (o *Orchestrator) SetCallbacks(cb Callbacks) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cb = cb
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// CanStart reports whether the mic button should be enabled.
func (o *Orchestrator) CanStart() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state == StateIdle || o.state == StateListening
}

// Language returns the active language.
func (o *Orchestrator) Language() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lang
}

// Location returns the location sent to the gateway.
func (o *Orchestrator) Location() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.location
}

// Metrics returns the latency collector.
func (o *Orchestrator) Metrics() *MetricsCollector { return o.metrics }

// Status returns a snapshot for the UI.
func (o *Orchestrator) Status() Status {
	recOK, synthOK := o.rec.IsSupported(), o.synth.IsSupported()
	o.mu.Lock()
	defer o.mu.Unlock()
	return Status{
		State:                o.state,
		Language:             o.lang,
		Location:             o.location,
		VoiceOutput:          o.voiceOut,
		AutoLanguage:         o.cfg.AutoLanguage,
		CanStart:             o.state == StateIdle || o.state == StateListening,
		Recognizer:           o.rec.Name(),
		RecognitionSupported: recOK,
		SynthesisSupported:   synthOK,
		Turn:                 o.turn,
	}
}

// SetLanguage changes the language of later turns. Unsupported codes are
// ignored with a warning.
func (o *Orchestrator) SetLanguage(code string) error {
	if !language.IsSupported(code) {
		o.logger.Warn("ignoring unsupported language", "language", code)
		return fmt.Errorf("%w: %q", ErrUnsupportedLanguage, code)
	}
	defer o.flush()
	o.mu.Lock()
	defer o.mu.Unlock()
	o.streakLang, o.streakN = "", 0
	if code != o.lang {
		o.setLanguageLocked(code, false)
	}
	return nil
}

// SetLocation sets the place forwarded to the gateway.
func (o *Orchestrator) SetLocation(place string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.location = place
}

// SetVoiceOutput turns spoken answers on or off.
func (o *Orchestrator) SetVoiceOutput(on bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.voiceOut = on
}

// StartVoiceInteraction starts listening. While a turn is in flight it
// stops that turn instead and returns to idle.
func (o *Orchestrator) StartVoiceInteraction() error {
	defer o.flush()

	if !o.rec.IsSupported() && !o.synth.IsSupported() {
		o.mu.Lock()
		f := o.failLocked(o.turn, ErrUnsupported, "voice", false)
		o.mu.Unlock()
		o.afterFailure(f)
		return ErrUnsupported
	}

	o.mu.Lock()
	if o.state.Busy() {
		stop := o.stopLocked()
		o.mu.Unlock()
		stop()
		return nil
	}
	turn, ctx := o.beginLocked("voice")
	o.lastInterim = ""
	o.setStateLocked(StateListening)
	lang := o.lang
	o.mu.Unlock()

	o.logger.Debug("listening", "turn", turn, "language", lang, "recognizer", o.rec.Name())
	if err := o.rec.Start(ctx, lang, o.recognizerCallbacks(turn)); err != nil {
		o.mu.Lock()
		var f *failure
		if o.turn == turn && o.state == StateListening {
			f = o.failLocked(turn, err, "stt", false)
		}
		o.mu.Unlock()
		o.afterFailure(f)
		return err
	}
	return nil
}

// StopVoiceInteraction cancels capture and playback and returns to idle.
// Gateway calls in flight finish but their answers are discarded. It is
// a no-op while idle.
func (o *Orchestrator) StopVoiceInteraction() {
	defer o.flush()
	o.mu.Lock()
	stop := o.stopLocked()
	o.mu.Unlock()
	stop()
}

// ProcessTextQuery answers a typed query. It skips capture and otherwise
// behaves like a voice turn: the answer is logged, reported and, with
// voice output on, spoken. lang may be empty to use the active language.
func (o *Orchestrator) ProcessTextQuery(ctx context.Context, text, lang string) (*reasoning.Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyQuery
	}
	if lang != "" && !language.IsSupported(lang) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}

	o.mu.Lock()
	stop := o.stopLocked()
	turn, _ := o.beginLocked("text")
	if lang == "" {
		lang = processingLanguage(text, o.lang)
	}
	o.setStateLocked(StateProcessing)
	location := o.location
	o.mu.Unlock()
	stop()
	o.flush()

	o.record(func(r Recorder) {
		o.ensureSession(r, lang, location)
		r.LogUserInput(transcript.UserInput{
			Transcript: text,
			Confidence: 1,
			Language:   language.Detect(text),
			Method:     "text",
		})
	})
	return o.answer(ctx, turn, text, lang, location)
}

// Close stops any turn and releases the orchestrator.
func (o *Orchestrator) Close() error {
	o.StopVoiceInteraction()
	o.shutdown()
	return nil
}

func (o *Orchestrator) recognizerCallbacks(turn uint64) stt.Callbacks {
	return stt.Callbacks{
		OnStart:  func() { o.logger.Debug("capture started", "turn", turn) },
		OnResult: func(ev stt.Event) { o.onResult(turn, ev) },
		OnError:  func(err error) { o.onCaptureError(turn, err) },
		OnEnd:    func() { o.onCaptureEnd(turn) },
	}
}

func (o *Orchestrator) onResult(turn uint64, ev stt.Event) {
	defer o.flush()
	o.mu.Lock()
	if o.turn != turn || o.state != StateListening {
		o.mu.Unlock()
		return
	}

	text := ev.Transcript()
	lang := ev.DetectedLanguage
	if lang == "" {
		lang = o.lang
	}
	t := Transcription{
		Text:         text,
		Language:     lang,
		Confidence:   ev.Confidence,
		IsFinal:      ev.IsFinal,
		Alternatives: ev.Alternatives,
	}
	o.emitLocked(func(cb Callbacks) {
		if cb.OnTranscription != nil {
			cb.OnTranscription(t)
		}
	}, protocol.TypeTranscription, protocol.TranscriptionData{
		Text:       text,
		Language:   lang,
		Confidence: ev.Confidence,
		IsFinal:    ev.IsFinal,
	})

	if ev.Interim != "" {
		o.lastInterim = ev.Interim
	}
	if !ev.IsFinal || ev.Final == "" {
		o.mu.Unlock()
		return
	}

	query := ev.Final
	procLang := processingLanguage(query, o.lang)
	interim := o.lastInterim
	location := o.location
	o.setStateLocked(StateProcessing)
	o.metrics.MarkTranscript(turn)
	o.mu.Unlock()

	if err := o.rec.Stop(); err != nil {
		o.logger.Debug("recognizer stop failed", "error", err)
	}

	alts := make([]transcript.Alternative, 0, len(ev.Alternatives))
	for _, a := range ev.Alternatives {
		alts = append(alts, transcript.Alternative{Text: a.Text, Confidence: a.Confidence})
	}
	o.record(func(r Recorder) {
		o.ensureSession(r, procLang, location)
		r.LogUserInput(transcript.UserInput{
			Transcript:        query,
			InterimTranscript: interim,
			Confidence:        ev.Confidence,
			Language:          language.Detect(query),
			Alternatives:      alts,
			Method:            o.rec.Name(),
			ProcessingTimeMs:  o.metrics.Current().ListenLatency.Milliseconds(),
		})
	})

	go func() {
		_, _ = o.answer(o.base, turn, query, procLang, location)
	}()
}

func (o *Orchestrator) onCaptureError(turn uint64, err error) {
	defer o.flush()
	o.mu.Lock()
	if o.turn != turn || o.state != StateListening {
		o.mu.Unlock()
		return
	}
	f := o.failLocked(turn, err, "stt", false)
	o.mu.Unlock()
	o.afterFailure(f)
}

// onCaptureEnd returns to idle when capture ends without a final result.
func (o *Orchestrator) onCaptureEnd(turn uint64) {
	defer o.flush()
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.turn == turn && o.state == StateListening {
		o.setStateLocked(StateIdle)
	}
}

// answer runs the gateway round-trip for turn and applies the outcome.
func (o *Orchestrator) answer(parent context.Context, turn uint64, query, lang, location string) (*reasoning.Result, error) {
	ctx, cancel := context.WithTimeout(parent, o.cfg.GatewayTimeout)
	res, err := o.gw.ProcessQuery(ctx, query, lang, location)
	cancel()

	synthOK := o.synth.IsSupported()

	defer o.flush()
	o.mu.Lock()
	if o.turn != turn || o.state != StateProcessing {
		o.mu.Unlock()
		o.logger.Debug("discarding stale answer", "turn", turn, "query", query)
		return nil, ErrSuperseded
	}
	if err != nil {
		f := o.failLocked(turn, err, "reasoning", true)
		o.mu.Unlock()
		o.afterFailure(f)
		return nil, err
	}

	o.metrics.MarkResponse(turn, res.Language, res.Provider, res.Fallback)
	r := Response{Query: query, Text: res.Response, Language: res.Language, Result: res}
	o.emitLocked(func(cb Callbacks) {
		if cb.OnResponse != nil {
			cb.OnResponse(r)
		}
	}, protocol.TypeResponse, protocol.ResponseData{
		Query:     query,
		Response:  res.Response,
		Language:  res.Language,
		Provider:  res.Provider,
		Fallback:  res.Fallback,
		LatencyMs: res.LatencyMs,
	})
	o.adoptLanguageLocked(res.Language)

	speak := o.voiceOut && synthOK
	playCtx := o.turnCtx
	if speak {
		o.setStateLocked(StateSpeaking)
	} else {
		o.setStateLocked(StateIdle)
		o.metrics.Done(turn)
	}
	o.mu.Unlock()

	o.record(func(rec Recorder) {
		rec.LogAIResponse(transcript.AIResponse{
			Response:   res.Response,
			Query:      query,
			Language:   res.Language,
			Weather:    res.Weather,
			Provider:   res.Provider,
			Fallback:   res.Fallback,
			LatencyMs:  res.LatencyMs,
			TokensUsed: res.Usage.TotalTokens,
		})
	})
	if speak {
		go o.speak(playCtx, turn, res.Response, res.Language)
	}
	return res, nil
}

// speak plays the answer for turn and returns to idle when it ends.
func (o *Orchestrator) speak(ctx context.Context, turn uint64, text, lang string) {
	defer o.flush()

	pb, err := o.synth.Speak(ctx, text, lang, o.cfg.Playback)
	if err == nil {
		err = pb.Wait(ctx)
	}

	o.mu.Lock()
	if o.turn != turn || o.state != StateSpeaking {
		o.mu.Unlock()
		return
	}
	if err != nil {
		f := o.failLocked(turn, err, "tts", false)
		o.mu.Unlock()
		o.afterFailure(f)
		return
	}
	o.metrics.MarkSpeech(turn)
	o.setStateLocked(StateIdle)
	o.metrics.Done(turn)
	o.mu.Unlock()

	o.record(func(r Recorder) {
		r.LogTTSPlayback(transcript.TTSPlayback{
			Text:       pb.Text,
			Language:   pb.Language,
			Voice:      pb.Voice.ID,
			Rate:       pb.Options.Rate,
			Pitch:      pb.Options.Pitch,
			Volume:     pb.Options.Volume,
			DurationMs: pb.Duration().Milliseconds(),
		})
	})
}

// beginLocked opens a new turn, cancelling the previous one.
func (o *Orchestrator) beginLocked(source string) (uint64, context.Context) {
	o.turn++
	if o.cancel != nil {
		o.cancel()
	}
	o.turnCtx, o.cancel = context.WithCancel(o.base)
	o.metrics.Begin(o.turn, source)
	return o.turn, o.turnCtx
}

// stopLocked ends the active turn. The returned func stops the engines
// and must be called without the lock held.
func (o *Orchestrator) stopLocked() func() {
	if !o.state.Busy() {
		return func() {}
	}
	o.turn++
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.setStateLocked(StateIdle)
	return func() {
		if err := o.rec.Stop(); err != nil {
			o.logger.Debug("recognizer stop failed", "error", err)
		}
		o.synth.Stop()
	}
}

type failure struct {
	Failure
	component string
	speak     bool
	ctx       context.Context
}

// failLocked reports err for turn and returns to idle. The result is
// passed to afterFailure once the lock is released.
func (o *Orchestrator) failLocked(turn uint64, err error, component string, speak bool) *failure {
	kind := KindOf(err)
	f := &failure{
		Failure: Failure{
			Kind:     kind,
			Message:  Message(kind, o.lang),
			Language: o.lang,
			Err:      err,
		},
		component: component,
		speak:     speak && o.cfg.SpeakErrors && o.voiceOut,
		ctx:       o.turnCtx,
	}
	o.logger.Warn("turn failed", "turn", turn, "component", component, "kind", kind, "error", err)

	entered := CanTransition(o.state, StateError) && o.setStateLocked(StateError)
	ev := f.Failure
	o.emitLocked(func(cb Callbacks) {
		if cb.OnError != nil {
			cb.OnError(ev)
		}
	}, protocol.TypeError, protocol.ErrorEvent{Kind: string(kind), Message: ev.Message, Language: ev.Language})
	if entered {
		o.setStateLocked(StateIdle)
		o.metrics.Done(turn)
	}
	return f
}

// afterFailure logs f and speaks its message when requested.
func (o *Orchestrator) afterFailure(f *failure) {
	if f == nil {
		return
	}
	severity := "error"
	if f.Kind == KindNoSpeech {
		severity = "warning"
	}
	location := o.Location()
	o.record(func(r Recorder) {
		o.ensureSession(r, f.Language, location)
		r.LogError(transcript.ErrorEntry{
			Message:   errorText(f.Err),
			Context:   string(f.Kind),
			Component: f.component,
			Severity:  severity,
		})
	})
	if f.speak && o.synth.IsSupported() {
		go func() {
			if _, err := o.synth.Speak(f.ctx, f.Message, f.Language, o.cfg.Playback); err != nil {
				o.logger.Debug("error message not spoken", "error", err)
			}
		}()
	}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// adoptLanguageLocked switches to lang once SwitchThreshold consecutive
// answers arrive in it. An answer in the active language resets the
// streak.
func (o *Orchestrator) adoptLanguageLocked(lang string) {
	if !o.cfg.AutoLanguage || !language.IsSupported(lang) {
		return
	}
	if lang == o.lang {
		o.streakLang, o.streakN = "", 0
		return
	}
	if lang == o.streakLang {
		o.streakN++
	} else {
		o.streakLang, o.streakN = lang, 1
	}
	if o.streakN >= o.cfg.SwitchThreshold {
		o.streakLang, o.streakN = "", 0
		o.setLanguageLocked(lang, true)
	}
}

func (o *Orchestrator) setLanguageLocked(lang string, auto bool) {
	prev := o.lang
	o.lang = lang
	o.logger.Info("language changed", "language", lang, "previous", prev, "auto", auto)
	o.emitLocked(func(cb Callbacks) {
		if cb.OnLanguageChange != nil {
			cb.OnLanguageChange(lang, prev, auto)
		}
	}, protocol.TypeLanguage, protocol.LanguageData{Language: lang, Previous: prev, Auto: auto})
}

// setStateLocked moves to state if the edge is legal.
func (o *Orchestrator) setStateLocked(to State) bool {
	from := o.state
	if from == to {
		return false
	}
	if !CanTransition(from, to) {
		o.logger.Warn("illegal state transition", "from", from, "to", to)
		return false
	}
	o.state = to
	o.logger.Debug("state", "from", from, "to", to, "turn", o.turn)
	o.emitLocked(func(cb Callbacks) {
		if cb.OnStateChange != nil {
			cb.OnStateChange(to, from)
		}
	}, protocol.TypeState, protocol.StateData{State: string(to), Previous: string(from), Language: o.lang})
	return true
}

// emitLocked queues a callback and a hub event for delivery by flush.
func (o *Orchestrator) emitLocked(fn func(Callbacks), t protocol.MessageType, data any) {
	cb := o.cb
	o.outbox = append(o.outbox, func() {
		fn(cb)
		if o.events != nil {
			if err := o.events.Publish(t, data); err != nil {
				o.logger.Debug("event publish failed", "type", t, "error", err)
			}
		}
	})
}

// flush delivers queued events in order, outside the state lock. Only one
// goroutine delivers at a time; a nested or concurrent flush leaves its
// events to the active deliverer.
func (o *Orchestrator) flush() {
	for {
		if !o.delivering.TryLock() {
			return
		}
		for {
			o.mu.Lock()
			batch := o.outbox
			o.outbox = nil
			o.mu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, fn := range batch {
				o.safeCall(fn)
			}
		}
		o.delivering.Unlock()

		o.mu.Lock()
		pending := len(o.outbox) > 0
		o.mu.Unlock()
		if !pending {
			return
		}
	}
}

func (o *Orchestrator) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("callback panicked", "panic", r)
		}
	}()
	fn()
}

// record forwards an entry to the transcript log. Failures are logged and
// never reach the turn.
func (o *Orchestrator) record(fn func(Recorder)) {
	if o.log == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn("transcript logging failed", "panic", r)
		}
	}()
	fn(o.log)
}

// ensureSession opens a session owned by the configured user when none is
// open, so entries are not filed under the anonymous default.
func (o *Orchestrator) ensureSession(r Recorder, lang, location string) {
	if _, err := r.EnsureSession(o.cfg.UserID, transcript.Metadata{
		Locale:   language.Locale(lang),
		Location: location,
	}); err != nil {
		o.logger.Warn("transcript session not opened", "error", err)
	}
}

// processingLanguage picks the language a query is answered in: the
// script's language when it is not Latin, otherwise current. A current
// language that shares the script (mr with hi, as with bn) is kept.
func processingLanguage(text, current string) string {
	matches := language.Matches(text)
	if len(matches) == 0 || slices.Contains(matches, current) {
		return current
	}
	if d := language.Detect(text); d != language.English {
		return d
	}
	return current
}

// IsSuperseded reports whether err means the turn was replaced.
func IsSuperseded(err error) bool { return errors.Is(err, ErrSuperseded) }
