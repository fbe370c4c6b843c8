package dam

import (
	"math"

	"golang.org/x/exp/constraints"
)

// FracBits is the number of fractional bits in a Fixed value.
const FracBits = 16

// FracUnit is 1.0 in fixed point.
const FracUnit Fixed = 1 << FracBits

// Fixed is a 16.16 fixed point number. Map coordinates and heights keep this
// representation so blockmap cell math matches the lump data bit for bit.
type Fixed int32

// IntToFixed converts whole map units to fixed point.
func IntToFixed[T constraints.Integer](n T) Fixed {
	return Fixed(int32(n) << FracBits)
}

// FloatToFixed converts a float in map units to fixed point, truncating.
func FloatToFixed(f float64) Fixed {
	return Fixed(f * float64(FracUnit))
}

// Int returns the whole map unit part, rounding toward negative infinity.
func (f Fixed) Int() int {
	return int(f >> FracBits)
}

// Float returns f in map units.
func (f Fixed) Float() float64 {
	return float64(f) / float64(FracUnit)
}

// Angle is a binary angle measurement: the full circle is 2^32.
type Angle uint32

const (
	Angle45  Angle = 0x20000000
	Angle90  Angle = 0x40000000
	Angle180 Angle = 0x80000000
)

// PointToAngle returns the angle of the vector (dx, dy). Both components
// must be in the same unit.
func PointToAngle[T constraints.Integer | constraints.Float](dx, dy T) Angle {
	if dx == 0 && dy == 0 {
		return 0
	}
	a := math.Atan2(float64(dy), float64(dx))
	if a < 0 {
		a += 2 * math.Pi
	}
	return Angle(uint64(math.Round(a*(1<<32)/(2*math.Pi))) & math.MaxUint32)
}

// Radians converts a to radians in [0, 2*Pi).
func (a Angle) Radians() float64 {
	return float64(a) * (2 * math.Pi) / (1 << 32)
}

// degreesToAngle converts thing angles, which are stored in degrees, the way
// the game does: snapped down to a multiple of 45.
func degreesToAngle[T constraints.Integer](n T) Angle {
	return Angle45 * Angle(int64(n)/45)
}

// inRange reports whether i is a valid index into a collection of length n.
func inRange[T constraints.Integer](i T, n int) bool {
	return i >= 0 && int64(i) < int64(n)
}
