// Package hotspot issues captive-portal voucher codes on router-family
// devices and renders them for printing.
package hotspot

import (
	"errors"
	"sort"
	"strings"
)

// ErrUnknownPreset reports a preset name outside the fixed table. Treated
// as caller input error, not a fault.
var ErrUnknownPreset = errors.New("hotspot: unknown preset")

// DefaultCodeLength is the number of random characters after the preset
// prefix when the caller does not pick a length.
const DefaultCodeLength = 8

// Preset is one fixed voucher rate plan. Validity uses RouterOS duration
// syntax; RateLimit is the RouterOS rx/tx pair.
type Preset struct {
	Name      string `json:"name"`
	Validity  string `json:"validity"`
	RateLimit string `json:"rate_limit"`
}

var presets = map[string]Preset{
	"1hour":  {Name: "1hour", Validity: "1h", RateLimit: "5M/5M"},
	"1day":   {Name: "1day", Validity: "1d", RateLimit: "10M/10M"},
	"1week":  {Name: "1week", Validity: "7d", RateLimit: "10M/10M"},
	"1month": {Name: "1month", Validity: "30d", RateLimit: "20M/20M"},
}

// PresetByName looks up one preset.
func PresetByName(name string) (Preset, error) {
	p, ok := presets[name]
	if !ok {
		return Preset{}, ErrUnknownPreset
	}
	return p, nil
}

// Presets lists the preset table in stable order.
func Presets() []Preset {
	out := make([]Preset, 0, len(presets))
	for _, p := range presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Prefix derives the code prefix from a preset name: the first two
// characters, uppercased.
func (p Preset) Prefix() string {
	if len(p.Name) < 2 {
		return strings.ToUpper(p.Name)
	}
	return strings.ToUpper(p.Name[:2])
}
