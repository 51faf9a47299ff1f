package speech

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

const (
	// DefaultPacing is the gap kept between consecutive utterances
	DefaultPacing = 300 * time.Millisecond

	// notifyTimeout bounds each lifecycle notification to the server
	notifyTimeout = 5 * time.Second

	// inboxSize is the buffer of pending commands to the queue goroutine
	inboxSize = 64

	// notifyBufferSize is the buffer of lifecycle notifications
	notifyBufferSize = 64
)

// Request is one utterance waiting to be played
type Request struct {
	Text       string    `json:"text"`
	SpeakerID  string    `json:"speakerId"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// Status is a read-only view of the queue for diagnostics
type Status struct {
	Supported              bool `json:"supported"`
	Enabled                bool `json:"enabled"`
	Speaking               bool `json:"speaking"`
	Pending                int  `json:"pending"`
	VoiceCount             int  `json:"voiceCount"`
	ConfiguredSpeakerCount int  `json:"configuredSpeakerCount"`
}

// QueueConfig holds the queue's tunables
type QueueConfig struct {
	Pacing  time.Duration
	Enabled bool
}

// Queue plays utterances strictly one at a time in submission order.
// All queue state is owned by its goroutine; the exported methods only
// send it commands.
type Queue struct {
	synth    Synthesizer
	voices   *Registry
	notifier Notifier
	logger   *slog.Logger
	pacing   time.Duration

	inbox  chan queueMsg
	notes  chan lifecycleNote
	ctx    context.Context
	cancel context.CancelFunc

	// Owned by run
	pending  []Request
	current  *Request
	enabled  bool
	speaking bool
	stopPlay context.CancelFunc
	started  <-chan struct{}
	finished <-chan error
	pace     <-chan time.Time
}

type queueMsg interface{ isQueueMsg() }

type enqueueMsg struct{ req Request }

type stopMsg struct{ reply chan struct{} }

type enableMsg struct {
	enabled bool
	reply   chan struct{}
}

type statusMsg struct{ reply chan Status }

func (enqueueMsg) isQueueMsg() {}
func (stopMsg) isQueueMsg()    {}
func (enableMsg) isQueueMsg()  {}
func (statusMsg) isQueueMsg()  {}

type lifecycleNote struct {
	started bool
	speaker string
	text    string
}

// NewQueue creates a queue and starts its goroutine. The queue shuts down
// when ctx is cancelled or Close is called. notifier may be nil.
func NewQueue(ctx context.Context, synth Synthesizer, voices *Registry, notifier Notifier, cfg QueueConfig, logger *slog.Logger) *Queue {
	if cfg.Pacing <= 0 {
		cfg.Pacing = DefaultPacing
	}

	ctx, cancel := context.WithCancel(ctx)
	q := &Queue{
		synth:    synth,
		voices:   voices,
		notifier: notifier,
		logger:   logger,
		pacing:   cfg.Pacing,
		inbox:    make(chan queueMsg, inboxSize),
		notes:    make(chan lifecycleNote, notifyBufferSize),
		ctx:      ctx,
		cancel:   cancel,
		enabled:  cfg.Enabled && synth != nil && synth.Supported(),
	}

	go q.run()
	go q.notifyLoop()

	return q
}

// Enqueue appends an utterance. It is dropped silently when speech is
// disabled or unsupported, or when text is empty.
func (q *Queue) Enqueue(text, speakerID string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	q.send(enqueueMsg{req: Request{Text: text, SpeakerID: speakerID, EnqueuedAt: time.Now()}})
}

// Stop cancels the utterance in flight and discards everything queued.
// The queue is idle when Stop returns.
func (q *Queue) Stop() {
	reply := make(chan struct{})
	if q.send(stopMsg{reply: reply}) {
		q.wait(reply)
	}
}

// SetEnabled switches speech on or off. Switching off also stops playback.
// Speech cannot be enabled on an unsupported backend.
func (q *Queue) SetEnabled(enabled bool) bool {
	reply := make(chan struct{})
	if q.send(enableMsg{enabled: enabled, reply: reply}) {
		q.wait(reply)
	}
	return q.Status().Enabled
}

// IsSpeaking reports whether an utterance is between started and ended
func (q *Queue) IsSpeaking() bool {
	return q.Status().Speaking
}

// Status returns a snapshot of the queue
func (q *Queue) Status() Status {
	reply := make(chan Status, 1)
	if !q.send(statusMsg{reply: reply}) {
		return Status{Supported: q.supported()}
	}
	select {
	case s := <-reply:
		return s
	case <-q.ctx.Done():
		return Status{Supported: q.supported()}
	}
}

// Test plays a sample utterance on behalf of the user. Unlike Enqueue it
// reports why nothing would be heard.
func (q *Queue) Test(text string) error {
	if !q.supported() {
		return ErrUnsupported
	}
	if !q.Status().Enabled {
		return ErrDisabled
	}
	if strings.TrimSpace(text) == "" {
		text = "Speech test"
	}
	q.Enqueue(text, "")
	return nil
}

// Close stops the queue goroutine, cancelling any playback
func (q *Queue) Close() {
	q.cancel()
}

func (q *Queue) supported() bool {
	return q.synth != nil && q.synth.Supported()
}

func (q *Queue) send(m queueMsg) bool {
	select {
	case q.inbox <- m:
		return true
	case <-q.ctx.Done():
		return false
	}
}

func (q *Queue) wait(reply <-chan struct{}) {
	select {
	case <-reply:
	case <-q.ctx.Done():
	}
}

// run is the queue goroutine. A nil channel disables its select case, so
// started/finished/pace only fire while the matching stage is live.
func (q *Queue) run() {
	defer q.cancelPlayback()

	for {
		select {
		case <-q.ctx.Done():
			return

		case m := <-q.inbox:
			switch msg := m.(type) {
			case enqueueMsg:
				if !q.enabled {
					q.logger.Debug("speech skipped", "speaker", msg.req.SpeakerID, "supported", q.supported())
					continue
				}
				q.pending = append(q.pending, msg.req)
				q.advance()

			case stopMsg:
				q.stop()
				close(msg.reply)

			case enableMsg:
				q.enabled = msg.enabled && q.supported()
				if !q.enabled {
					q.stop()
				}
				close(msg.reply)

			case statusMsg:
				msg.reply <- q.status()
			}

		case <-q.started:
			q.started = nil
			q.speaking = true
			q.logger.Debug("speech started", "speaker", q.current.SpeakerID)
			if len(q.pending) == 0 {
				q.note(true, *q.current)
			}

		case err := <-q.finished:
			if err != nil {
				q.logger.Warn("speech playback failed", "speaker", q.current.SpeakerID, "error", err)
			} else {
				q.logger.Debug("speech ended", "speaker", q.current.SpeakerID)
			}
			q.finish()
			q.pace = time.After(q.pacing)

		case <-q.pace:
			q.pace = nil
			q.advance()
		}
	}
}

// advance starts the head of the queue if nothing is playing or pacing
func (q *Queue) advance() {
	if q.current != nil || q.pace != nil || len(q.pending) == 0 {
		return
	}

	req := q.pending[0]
	q.pending = q.pending[1:]

	profile := q.voices.Resolve(req.SpeakerID)
	ctx, cancel := context.WithCancel(q.ctx)
	playback := q.synth.Speak(ctx, Utterance{
		Text:    req.Text,
		Speaker: req.SpeakerID,
		Voice:   profile.Voice,
		Pitch:   profile.Pitch,
		Rate:    profile.Rate,
		Volume:  profile.Volume,
	})

	q.current = &req
	q.stopPlay = cancel
	q.started = playback.Started
	q.finished = playback.Done
}

// finish clears the in-flight utterance and reports it ended
func (q *Queue) finish() {
	req := *q.current
	q.cancelPlayback()
	q.current = nil
	q.speaking = false
	q.started = nil
	q.finished = nil
	q.note(false, req)
}

// stop drops the queue and any playback. An interrupted utterance still
// reports ended so the server is not left waiting on it.
func (q *Queue) stop() {
	q.pending = nil
	q.pace = nil
	if q.current != nil {
		q.finish()
	}
}

func (q *Queue) cancelPlayback() {
	if q.stopPlay != nil {
		q.stopPlay()
		q.stopPlay = nil
	}
}

func (q *Queue) status() Status {
	s := Status{
		Supported:              q.supported(),
		Enabled:                q.enabled,
		Speaking:               q.speaking,
		Pending:                len(q.pending),
		ConfiguredSpeakerCount: q.voices.Count(),
	}
	if s.Supported {
		s.VoiceCount = len(q.synth.Voices())
	}
	return s
}

// note queues a lifecycle notification for the server. Utterances without
// a speaker (speech tests) are not the server's business.
func (q *Queue) note(started bool, req Request) {
	if q.notifier == nil || req.SpeakerID == "" {
		return
	}
	select {
	case q.notes <- lifecycleNote{started: started, speaker: req.SpeakerID, text: req.Text}:
	default:
		q.logger.Warn("speech notification queue full, dropping", "speaker", req.SpeakerID, "started", started)
	}
}

// notifyLoop delivers lifecycle notifications in order, off the queue goroutine
func (q *Queue) notifyLoop() {
	for {
		select {
		case <-q.ctx.Done():
			return
		case n := <-q.notes:
			ctx, cancel := context.WithTimeout(q.ctx, notifyTimeout)
			var err error
			if n.started {
				err = q.notifier.SpeechStarted(ctx, n.speaker, n.text)
			} else {
				err = q.notifier.SpeechEnded(ctx, n.speaker, n.text)
			}
			cancel()
			if err != nil {
				q.logger.Debug("speech notification failed", "speaker", n.speaker, "started", n.started, "error", err)
			}
		}
	}
}
