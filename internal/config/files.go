package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"avalon/internal/domain"
	"avalon/internal/speech"
)

// VoicesFile is the YAML file of per-speaker voice profiles
type VoicesFile struct {
	Language string                    `yaml:"language"`
	Speakers map[string]speech.Profile `yaml:"speakers"`
}

// RosterFile is the YAML file of players registered before start
type RosterFile struct {
	Players []RosterPlayer `yaml:"players"`
}

// RosterPlayer is one roster file entry
type RosterPlayer struct {
	Name   string `yaml:"name"`
	AI     bool   `yaml:"ai"`
	Engine string `yaml:"engine"`
}

// LoadVoices reads a voice profile file. Profiles missing a field take the
// default profile's value for it.
func LoadVoices(path string) (*VoicesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file VoicesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	for speaker, p := range file.Speakers {
		if p.Pitch == 0 {
			p.Pitch = speech.DefaultProfile.Pitch
		}
		if p.Rate == 0 {
			p.Rate = speech.DefaultProfile.Rate
		}
		if p.Volume == 0 {
			p.Volume = speech.DefaultProfile.Volume
		}
		file.Speakers[speaker] = p
	}
	return &file, nil
}

// Apply configures every profile in the file on the registry
func (f *VoicesFile) Apply(registry *speech.Registry) {
	for speaker, p := range f.Speakers {
		registry.ConfigureProfile(speaker, p)
	}
}

// LoadRoster reads a roster file, applying the same rules as adding the
// players one at a time
func LoadRoster(path string) ([]domain.RosterEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file RosterFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	roster := domain.NewRoster()
	for i, p := range file.Players {
		if _, err := roster.Add(p.Name, p.AI, p.Engine); err != nil {
			return nil, fmt.Errorf("%s: player %d: %w", path, i+1, err)
		}
	}
	return roster.Entries(), nil
}
