// Package filter provides the closed catalog of audio filter presets.
package filter

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

// ErrUnknownFilter is returned when a preset name is not in the catalog.
var ErrUnknownFilter = errors.New("unknown filter")

// Timescale changes speed, pitch and rate.
type Timescale struct {
	Speed float64 `json:"speed" validate:"gt=0"`
	Pitch float64 `json:"pitch" validate:"gt=0"`
	Rate  float64 `json:"rate" validate:"gt=0"`
}

// Rotation pans audio around the listener.
type Rotation struct {
	RotationHz float64 `json:"rotationHz" validate:"gt=0"`
}

// Tremolo oscillates the volume.
type Tremolo struct {
	Frequency float64 `json:"frequency" validate:"gt=0"`
	Depth     float64 `json:"depth" validate:"gt=0,lte=1"`
}

// Vibrato oscillates the pitch.
type Vibrato struct {
	Frequency float64 `json:"frequency" validate:"gt=0,lte=14"`
	Depth     float64 `json:"depth" validate:"gt=0,lte=1"`
}

// Karaoke suppresses a frequency band, usually vocals.
type Karaoke struct {
	Level       float64 `json:"level" validate:"gte=0,lte=1"`
	MonoLevel   float64 `json:"monoLevel" validate:"gte=0,lte=1"`
	FilterBand  float64 `json:"filterBand" validate:"gt=0"`
	FilterWidth float64 `json:"filterWidth" validate:"gt=0"`
}

// LowPass suppresses higher frequencies.
type LowPass struct {
	Smoothing float64 `json:"smoothing" validate:"gt=1"`
}

// Band is one equalizer band adjustment.
type Band struct {
	Band int     `json:"band" validate:"gte=0,lte=14"`
	Gain float64 `json:"gain" validate:"gte=-0.25,lte=1"`
}

// Distortion applies a trigonometric waveshaper.
type Distortion struct {
	SinOffset float64 `json:"sinOffset"`
	SinScale  float64 `json:"sinScale"`
	CosOffset float64 `json:"cosOffset"`
	CosScale  float64 `json:"cosScale"`
	TanOffset float64 `json:"tanOffset"`
	TanScale  float64 `json:"tanScale"`
	Offset    float64 `json:"offset"`
	Scale     float64 `json:"scale" validate:"gt=0"`
}

// Params is the typed parameter set of a preset. Unset stages are omitted
// from the engine payload.
type Params struct {
	Timescale  *Timescale  `json:"timescale,omitempty"`
	Rotation   *Rotation   `json:"rotation,omitempty"`
	Tremolo    *Tremolo    `json:"tremolo,omitempty"`
	Vibrato    *Vibrato    `json:"vibrato,omitempty"`
	Karaoke    *Karaoke    `json:"karaoke,omitempty"`
	LowPass    *LowPass    `json:"lowPass,omitempty"`
	Equalizer  []Band      `json:"equalizer,omitempty" validate:"omitempty,max=15,dive"`
	Distortion *Distortion `json:"distortion,omitempty"`
}

// Preset is a named filter variant.
type Preset struct {
	Name        string `validate:"required"`
	Label       string `validate:"required"`
	Description string
	Params      Params
}

// Payload renders the preset as the engine's filter configuration.
func (p Preset) Payload() ([]byte, error) {
	b, err := json.Marshal(p.Params)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode filter %s", p.Name)
	}
	return b, nil
}

// Validate checks the preset parameters.
func (p Preset) Validate() error {
	if err := validator.New().Struct(p); err != nil {
		return errors.Wrapf(err, "invalid filter preset %s", p.Name)
	}
	return nil
}

// catalog holds presets in presentation order.
var (
	catalog []Preset
	index   = make(map[string]int)
)

// register adds a preset to the catalog. It panics on a duplicate name or
// invalid parameters since the catalog is fixed at build time.
func register(p Preset) {
	if err := p.Validate(); err != nil {
		panic(err)
	}
	if _, exists := index[p.Name]; exists {
		panic("duplicate filter preset: " + p.Name)
	}
	index[p.Name] = len(catalog)
	catalog = append(catalog, p)
}

// Lookup returns the preset with the given name (case-insensitive).
func Lookup(name string) (Preset, error) {
	i, ok := index[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Preset{}, errors.Wrapf(ErrUnknownFilter, "name=%s", name)
	}
	return catalog[i], nil
}

// All returns every preset in catalog order.
func All() []Preset {
	out := make([]Preset, len(catalog))
	copy(out, catalog)
	return out
}

// Names returns the preset names in catalog order.
func Names() []string {
	names := make([]string, len(catalog))
	for i, p := range catalog {
		names[i] = p.Name
	}
	return names
}
