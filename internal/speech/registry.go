package speech

import (
	"strings"
	"sync"
)

// Parameter bounds accepted by backends
const (
	MinPitch  = 0.5
	MaxPitch  = 2.0
	MinRate   = 0.5
	MaxRate   = 2.0
	MinVolume = 0.0
	MaxVolume = 1.0
)

// Profile is the voice configuration for one speaker
type Profile struct {
	Voice  string  `json:"voice,omitempty" yaml:"voice,omitempty"`
	Pitch  float64 `json:"pitch" yaml:"pitch"`
	Rate   float64 `json:"rate" yaml:"rate"`
	Volume float64 `json:"volume" yaml:"volume"`
}

// DefaultProfile is used for any speaker without a configured profile
var DefaultProfile = Profile{Pitch: 1, Rate: 1, Volume: 1}

// Presets is the rotation handed out by PreconfigureRoster
var Presets = []Profile{
	{Pitch: 1.2, Rate: 0.9, Volume: 1.0},  // high, slow
	{Pitch: 0.8, Rate: 1.1, Volume: 0.9},  // low, fast
	{Pitch: 1.0, Rate: 1.0, Volume: 1.0},  // neutral
	{Pitch: 0.9, Rate: 0.8, Volume: 0.95}, // low, slow
	{Pitch: 1.3, Rate: 1.2, Volume: 0.9},  // high, fast
}

// VoiceCatalog supplies the voices a hint is resolved against
type VoiceCatalog interface {
	Voices() []Voice
}

// Registry maps speakers to voice profiles. It is read by the queue's
// goroutine and written from the session loop, hence the lock.
type Registry struct {
	catalog  VoiceCatalog
	language string
	profiles map[string]Profile
	mu       sync.RWMutex
}

// NewRegistry creates a registry resolving voices against catalog, falling
// back to the first voice for language (e.g. "zh", "en")
func NewRegistry(catalog VoiceCatalog, language string) *Registry {
	return &Registry{
		catalog:  catalog,
		language: language,
		profiles: make(map[string]Profile),
	}
}

// Configure sets the speaker's profile, replacing any previous one.
// voiceHint is matched against the catalog by exact name, then by
// substring; an unmatched or empty hint selects the language default.
func (r *Registry) Configure(speaker, voiceHint string, pitch, rate, volume float64) Profile {
	p := Profile{
		Voice:  r.resolveVoice(voiceHint),
		Pitch:  clamp(pitch, MinPitch, MaxPitch),
		Rate:   clamp(rate, MinRate, MaxRate),
		Volume: clamp(volume, MinVolume, MaxVolume),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[speaker] = p
	return p
}

// ConfigureProfile sets the speaker's profile from a prepared value
func (r *Registry) ConfigureProfile(speaker string, p Profile) Profile {
	return r.Configure(speaker, p.Voice, p.Pitch, p.Rate, p.Volume)
}

// PreconfigureRoster gives each speaker a preset chosen by roster position
func (r *Registry) PreconfigureRoster(speakers []string) {
	for i, speaker := range speakers {
		preset := Presets[i%len(Presets)]
		r.Configure(speaker, "", preset.Pitch, preset.Rate, preset.Volume)
	}
}

// Resolve returns the speaker's profile, or the default profile with the
// language default voice when the speaker was never configured
func (r *Registry) Resolve(speaker string) Profile {
	r.mu.RLock()
	p, ok := r.profiles[speaker]
	r.mu.RUnlock()

	if !ok {
		p = DefaultProfile
	}
	if p.Voice == "" {
		p.Voice = r.defaultVoice()
	}
	return p
}

// Count returns the number of configured speakers
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}

// resolveVoice finds the catalog voice a hint names
func (r *Registry) resolveVoice(hint string) string {
	if hint != "" && r.catalog != nil {
		voices := r.catalog.Voices()
		for _, v := range voices {
			if v.Name == hint {
				return v.Name
			}
		}
		for _, v := range voices {
			if strings.Contains(v.Name, hint) {
				return v.Name
			}
		}
	}
	return r.defaultVoice()
}

// defaultVoice picks the first voice for the configured language, else the
// first voice in the catalog
func (r *Registry) defaultVoice() string {
	if r.catalog == nil {
		return ""
	}

	voices := r.catalog.Voices()
	if len(voices) == 0 {
		return ""
	}
	for _, v := range voices {
		if r.language != "" && strings.HasPrefix(strings.ToLower(v.Lang), strings.ToLower(r.language)) {
			return v.Name
		}
	}
	return voices[0].Name
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
