package speech

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// Engines the exec synthesizer knows how to drive, in detection order
var execEngines = []string{"espeak-ng", "espeak", "say"}

// Baselines the profile multipliers scale
const (
	espeakBasePitch = 50  // espeak pitch 0-99
	espeakBaseSpeed = 175 // words per minute
	espeakBaseAmp   = 100 // amplitude 0-200
	sayBaseRate     = 175 // words per minute
)

// sayVoiceLine matches "Name   en_US    # sample text" from `say -v ?`
var sayVoiceLine = regexp.MustCompile(`^(.+?)\s+([a-z]{2,3}[_-][A-Za-z0-9]+)\s+#`)

// ExecSynthesizer speaks through a command line TTS engine
type ExecSynthesizer struct {
	engine string
	path   string
	voices []Voice
}

// NewExecSynthesizer looks up engine on PATH and reads its voice catalog.
// An empty engine picks the first available of espeak-ng, espeak and say.
// The synthesizer reports itself unsupported when nothing is found.
func NewExecSynthesizer(engine string) *ExecSynthesizer {
	candidates := execEngines
	if engine != "" {
		candidates = []string{engine}
	}

	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			s := &ExecSynthesizer{engine: name, path: path}
			s.voices = s.loadVoices()
			return s
		}
	}
	return &ExecSynthesizer{engine: engine}
}

// Engine returns the engine name in use
func (s *ExecSynthesizer) Engine() string {
	return s.engine
}

// Supported implements Synthesizer
func (s *ExecSynthesizer) Supported() bool {
	return s.path != ""
}

// Voices implements Synthesizer. The catalog is read once, at construction.
func (s *ExecSynthesizer) Voices() []Voice {
	return s.voices
}

// Speak implements Synthesizer
func (s *ExecSynthesizer) Speak(ctx context.Context, u Utterance) *Playback {
	playback, started, done := NewPlayback()
	if !s.Supported() {
		done <- ErrUnsupported
		return playback
	}

	cmd := exec.CommandContext(ctx, s.path, s.args(u)...)
	go func() {
		if err := cmd.Start(); err != nil {
			done <- fmt.Errorf("start %s: %w", s.engine, err)
			return
		}
		started <- struct{}{}
		if err := cmd.Wait(); err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			done <- fmt.Errorf("%s: %w", s.engine, err)
			return
		}
		done <- nil
	}()

	return playback
}

func (s *ExecSynthesizer) args(u Utterance) []string {
	var args []string
	if s.engine == "say" {
		if u.Voice != "" {
			args = append(args, "-v", u.Voice)
		}
		args = append(args, "-r", scaled(sayBaseRate, u.Rate))
		return append(args, "--", u.Text)
	}

	if u.Voice != "" {
		args = append(args, "-v", u.Voice)
	}
	args = append(args,
		"-p", scaled(espeakBasePitch, min(u.Pitch, 99.0/espeakBasePitch)),
		"-s", scaled(espeakBaseSpeed, u.Rate),
		"-a", scaled(espeakBaseAmp, u.Volume),
		"--", u.Text,
	)
	return args
}

// scaled renders base*factor as a whole number argument
func scaled(base int, factor float64) string {
	return strconv.Itoa(int(math.Round(float64(base) * factor)))
}

func (s *ExecSynthesizer) loadVoices() []Voice {
	var out []byte
	var err error
	if s.engine == "say" {
		out, err = exec.Command(s.path, "-v", "?").Output()
	} else {
		out, err = exec.Command(s.path, "--voices").Output()
	}
	if err != nil {
		return nil
	}

	if s.engine == "say" {
		return parseSayVoices(out)
	}
	return parseEspeakVoices(out)
}

// parseEspeakVoices reads the table printed by `espeak --voices`:
// Pty Language Age/Gender VoiceName File Other Languages
func parseEspeakVoices(out []byte) []Voice {
	var voices []Voice
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || fields[0] == "Pty" {
			continue
		}
		voices = append(voices, Voice{Name: fields[3], Lang: fields[1]})
	}
	return voices
}

// parseSayVoices reads the list printed by `say -v ?`
func parseSayVoices(out []byte) []Voice {
	var voices []Voice
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		m := sayVoiceLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		voices = append(voices, Voice{Name: strings.TrimSpace(m[1]), Lang: m[2]})
	}
	return voices
}
