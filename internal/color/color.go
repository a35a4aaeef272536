// Package color converts light colors between the normalized hue/saturation/
// brightness model used by the dashboard and the Hue bridge's integer ranges.
package color

import (
	"encoding/json"
	"fmt"
	"math"
)

// Vendor ranges used by the Hue v1 API.
const (
	VendorHueRange = 65535
	VendorSatRange = 254
	VendorBriRange = 254

	HueRange = 360
)

// dimmableSat is the saturation reported for lights without a hue channel.
const dimmableSat = 24.5 / VendorSatRange

// Color is an immutable normalized color. Hue is in degrees [0,360],
// saturation and brightness are in [0,1].
type Color struct {
	Hue float64 `json:"hue"`
	Sat float64 `json:"sat"`
	Bri float64 `json:"bri"`
}

// Vendor is the bridge encoding of a Color.
type Vendor struct {
	Hue uint16 `json:"hue"`
	Sat uint8  `json:"sat"`
	Bri uint8  `json:"bri"`
}

// New builds a Color from normalized components, clamping them into range.
func New(hue, sat, bri float64) Color {
	return Color{Hue: hue, Sat: sat, Bri: bri}.Clamp()
}

// FromVendor converts bridge integers into a normalized Color.
func FromVendor(hue uint16, sat, bri uint8) Color {
	return New(
		float64(hue)/VendorHueRange*HueRange,
		float64(sat)/VendorSatRange,
		float64(bri)/VendorBriRange,
	)
}

// FromDimmable converts the brightness of a light that has no hue channel.
func FromDimmable(bri uint8) Color {
	return New(0, dimmableSat, float64(bri)/VendorBriRange)
}

// Vendor returns the bridge encoding, each field rounded to the nearest step.
func (c Color) Vendor() Vendor {
	c = c.Clamp()
	return Vendor{
		Hue: uint16(math.Round(c.Hue / HueRange * VendorHueRange)),
		Sat: uint8(math.Round(c.Sat * VendorSatRange)),
		Bri: uint8(math.Round(c.Bri * VendorBriRange)),
	}
}

// Clamp forces every field into its valid range. NaN becomes zero.
func (c Color) Clamp() Color {
	return Color{
		Hue: clamp(c.Hue, 0, HueRange),
		Sat: clamp(c.Sat, 0, 1),
		Bri: clamp(c.Bri, 0, 1),
	}
}

// SameVendor reports whether both colors encode to the same bridge values.
func (c Color) SameVendor(other Color) bool {
	return c.Vendor() == other.Vendor()
}

// String returns the JSON text form used for persistence.
func (c Color) String() string {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Sprintf(`{"hue":%g,"sat":%g,"bri":%g}`, c.Hue, c.Sat, c.Bri)
	}
	return string(data)
}

// Parse reads the JSON text form produced by String.
func Parse(s string) (Color, error) {
	var c Color
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return Color{}, fmt.Errorf("failed to parse color %q: %w", s, err)
	}
	return c.Clamp(), nil
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(hi, math.Max(lo, v))
}
