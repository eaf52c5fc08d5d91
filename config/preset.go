package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/opd-ai/avatarfx/av"
	"github.com/opd-ai/avatarfx/av/audio"
	"github.com/opd-ai/avatarfx/av/video"
	"gopkg.in/yaml.v3"
)

// Preset is a partial settings change stored as YAML. Absent sections
// and fields leave the live settings untouched:
//
//	beauty:
//	  enabled: true
//	  smoothing: 0.7
//	  lipstick:
//	    color: "#b0304a"
//	voice:
//	  pitch_shift: 5
//	smoothing_factor: 0.4
type Preset struct {
	Beauty          *video.BeautyUpdate `yaml:"beauty"`
	Voice           *audio.VoiceUpdate  `yaml:"voice"`
	SmoothingFactor *float64            `yaml:"smoothing_factor"`
}

// DecodePreset parses a preset. Unknown keys are rejected; an empty
// document is an empty preset.
func DecodePreset(r io.Reader) (*Preset, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var p Preset
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode preset: %w", err)
	}
	return &p, nil
}

// LoadPreset reads and parses the preset file at path.
func LoadPreset(path string) (*Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read preset: %w", err)
	}
	return DecodePreset(bytes.NewReader(data))
}

// Empty reports whether the preset changes nothing.
func (p *Preset) Empty() bool {
	return p.Beauty == nil && p.Voice == nil && p.SmoothingFactor == nil
}

// ApplyTo applies the preset to a session's live settings.
func (p *Preset) ApplyTo(s *av.Session) {
	if p.Beauty != nil {
		s.Beauty().Update(*p.Beauty)
	}
	if p.Voice != nil {
		s.Voice().Update(*p.Voice)
	}
	if p.SmoothingFactor != nil {
		s.Smoother().SetFactor(*p.SmoothingFactor)
	}
}
