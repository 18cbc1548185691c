// Package params holds the live-tunable scene parameters: the values, their
// ranges, a keyboard panel over them and TOML persistence with hot reload.
package params

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnknownParam is returned for a key no knob answers to.
var ErrUnknownParam = errors.New("unknown parameter")

// Values are the parameters the renderers read each frame.
type Values struct {
	EnvIntensity        float64 `toml:"env_intensity"`
	BackgroundBlur      float64 `toml:"background_blur"`
	BackgroundIntensity float64 `toml:"background_intensity"`
	BackgroundRotation  float64 `toml:"background_rotation"`
	EnvRotation         float64 `toml:"env_rotation"`
	Roughness           float64 `toml:"roughness"`
	Metalness           float64 `toml:"metalness"`
	GodRayMix           float64 `toml:"god_ray_mix"`
}

// Defaults returns the startup parameters.
func Defaults() Values {
	return Values{
		EnvIntensity:        4,
		BackgroundBlur:      0,
		BackgroundIntensity: 1,
		BackgroundRotation:  0,
		EnvRotation:         2.442,
		Roughness:           0.1,
		Metalness:           0.8,
		GodRayMix:           0.25,
	}
}

// Knob describes one editable parameter.
type Knob struct {
	Key   string
	Label string
	Min   float64
	Max   float64
	Step  float64

	field func(*Values) *float64
}

// Knobs lists the parameters in panel order.
var Knobs = []Knob{
	{"env_intensity", "Env intensity", 0, 10, 0.1, func(v *Values) *float64 { return &v.EnvIntensity }},
	{"background_blur", "Background blur", 0, 1, 0.02, func(v *Values) *float64 { return &v.BackgroundBlur }},
	{"background_intensity", "Background intensity", 0, 10, 0.1, func(v *Values) *float64 { return &v.BackgroundIntensity }},
	{"background_rotation", "Background rotation", 0, 2 * math.Pi, math.Pi / 36, func(v *Values) *float64 { return &v.BackgroundRotation }},
	{"env_rotation", "Env rotation", 0, 2 * math.Pi, math.Pi / 36, func(v *Values) *float64 { return &v.EnvRotation }},
	{"roughness", "Roughness", 0, 1, 0.01, func(v *Values) *float64 { return &v.Roughness }},
	{"metalness", "Metalness", 0, 1, 0.01, func(v *Values) *float64 { return &v.Metalness }},
	{"god_ray_mix", "God ray mix", 0, 1, 0.01, func(v *Values) *float64 { return &v.GodRayMix }},
}

// Lookup returns the knob for key.
func Lookup(key string) (Knob, bool) {
	for _, k := range Knobs {
		if k.Key == key {
			return k, true
		}
	}
	return Knob{}, false
}

// Clamp limits x to the knob's range. NaN becomes Min.
func (k Knob) Clamp(x float64) float64 {
	if math.IsNaN(x) {
		return k.Min
	}
	return math.Max(k.Min, math.Min(k.Max, x))
}

// Get reads the knob from v.
func (k Knob) Get(v *Values) float64 { return *k.field(v) }

// Set writes the clamped x into v and returns the stored value.
func (k Knob) Set(v *Values, x float64) float64 {
	x = k.Clamp(x)
	*k.field(v) = x
	return x
}

// Set assigns parameter key, clamped to its range.
func (v *Values) Set(key string, x float64) error {
	k, ok := Lookup(key)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownParam, key)
	}
	k.Set(v, x)
	return nil
}

// Get reads parameter key.
func (v *Values) Get(key string) (float64, error) {
	k, ok := Lookup(key)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownParam, key)
	}
	return k.Get(v), nil
}

// Clamped returns v with every parameter inside its range.
func (v Values) Clamped() Values {
	for _, k := range Knobs {
		k.Set(&v, k.Get(&v))
	}
	return v
}
