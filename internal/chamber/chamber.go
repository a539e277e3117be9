// Package chamber models the measurement chamber geometry used to convert a
// concentration slope into an areal flux.
package chamber

import (
	"fmt"
	"math"
)

// Shape is the chamber form factor.
type Shape int

const (
	Cylinder Shape = iota
	Box
)

func (s Shape) String() string {
	switch s {
	case Cylinder:
		return "cylinder"
	case Box:
		return "box"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// ParseShape maps the stored string form back to a Shape.
func ParseShape(s string) (Shape, error) {
	switch s {
	case "cylinder":
		return Cylinder, nil
	case "box":
		return Box, nil
	default:
		return Cylinder, fmt.Errorf("unknown chamber shape %q", s)
	}
}

// Chamber describes one closed chamber. Heights and the snow correction are
// in meters; volume is derived, never stored.
type Chamber struct {
	Shape Shape

	// Cylinder
	DiameterM float64

	// Box
	WidthM  float64
	LengthM float64

	HeightM    float64
	SnowDepthM float64
	ExtraVolM3 float64 // tubing, collars etc.
}

// Default returns a 30 cm cylinder chamber of 30 cm height, the bench
// reference geometry.
func Default() Chamber {
	return Chamber{Shape: Cylinder, DiameterM: 0.3, HeightM: 0.3}
}

// AreaM2 returns the footprint area.
func (c Chamber) AreaM2() float64 {
	switch c.Shape {
	case Cylinder:
		r := c.DiameterM / 2
		return math.Pi * r * r
	default:
		return c.WidthM * c.LengthM
	}
}

// InternalHeightM returns the headspace height after snow correction,
// clamped at zero.
func (c Chamber) InternalHeightM() float64 {
	h := c.HeightM - c.SnowDepthM
	if h < 0 {
		return 0
	}
	return h
}

// AdjustedVolumeM3 returns the effective headspace volume.
func (c Chamber) AdjustedVolumeM3() float64 {
	return c.AreaM2()*c.InternalHeightM() + c.ExtraVolM3
}
