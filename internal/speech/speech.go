// Package speech plays queued utterances one at a time through a
// text-to-speech backend and reports playback lifecycle to the game server.
package speech

import (
	"context"
	"errors"
)

var (
	// ErrUnsupported is returned when no speech backend is available
	ErrUnsupported = errors.New("speech playback not supported")

	// ErrDisabled is returned when speech has been switched off
	ErrDisabled = errors.New("speech playback disabled")
)

// Voice is one entry of a backend's voice catalog
type Voice struct {
	Name string `json:"name"`
	Lang string `json:"lang"`
}

// Utterance is what the backend is asked to play
type Utterance struct {
	Text    string
	Speaker string
	Voice   string
	Pitch   float64
	Rate    float64
	Volume  float64
}

// Playback tracks one utterance handed to a backend. Started fires when
// audio begins. Done receives exactly once: nil when playback ended, the
// failure otherwise. Both channels have capacity 1 so the backend never
// blocks on a consumer that stopped listening.
type Playback struct {
	Started <-chan struct{}
	Done    <-chan error
}

// NewPlayback returns a playback and the send sides a backend reports on
func NewPlayback() (*Playback, chan<- struct{}, chan<- error) {
	started := make(chan struct{}, 1)
	done := make(chan error, 1)
	return &Playback{Started: started, Done: done}, started, done
}

// Synthesizer is the speech capability the queue drives
type Synthesizer interface {
	// Supported reports whether the backend can play anything at all
	Supported() bool

	// Voices returns the available voice catalog
	Voices() []Voice

	// Speak starts playing u. Cancelling ctx stops playback; Done then
	// receives the cancellation error.
	Speak(ctx context.Context, u Utterance) *Playback
}

// Notifier is told when a speaker's audio starts and ends so the server can
// pace turn-taking. Calls are best effort and nobody waits on them.
type Notifier interface {
	SpeechStarted(ctx context.Context, speaker, text string) error
	SpeechEnded(ctx context.Context, speaker, text string) error
}
