package hazard

import (
	"math"
	"strings"
)

// Label is the closed set of object classes the engine reasons about.
type Label string

const (
	LabelCar        Label = "car"
	LabelTruck      Label = "truck"
	LabelBus        Label = "bus"
	LabelMotorcycle Label = "motorcycle"
	LabelBicycle    Label = "bicycle"
	LabelPerson     Label = "person"
	LabelOther      Label = "other"
)

var labelAliases = map[string]Label{
	"car":        LabelCar,
	"van":        LabelCar,
	"suv":        LabelCar,
	"truck":      LabelTruck,
	"lorry":      LabelTruck,
	"bus":        LabelBus,
	"motorcycle": LabelMotorcycle,
	"motorbike":  LabelMotorcycle,
	"bicycle":    LabelBicycle,
	"bike":       LabelBicycle,
	"cyclist":    LabelBicycle,
	"person":     LabelPerson,
	"pedestrian": LabelPerson,
}

// ParseLabel maps detector class text onto a Label. Unknown text maps to
// LabelOther.
func ParseLabel(s string) Label {
	if l, ok := labelAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return l
	}
	return LabelOther
}

// IsVehicle reports whether the label is a motor vehicle.
func (l Label) IsVehicle() bool {
	switch l {
	case LabelCar, LabelTruck, LabelBus, LabelMotorcycle:
		return true
	}
	return false
}

// IsVulnerable reports whether the label is a vulnerable road user
// (pedestrian or cyclist).
func (l Label) IsVulnerable() bool {
	switch l {
	case LabelPerson, LabelBicycle:
		return true
	}
	return false
}

// DisplayName is the capitalised name used in event descriptions.
func (l Label) DisplayName() string {
	switch l {
	case LabelCar:
		return "Car"
	case LabelTruck:
		return "Truck"
	case LabelBus:
		return "Bus"
	case LabelMotorcycle:
		return "Motorcycle"
	case LabelBicycle:
		return "Bicycle"
	case LabelPerson:
		return "Person"
	}
	return "Object"
}

// Point is a frame-normalised position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vector is a frame-normalised displacement or velocity (units per second
// when used as a velocity).
type Vector struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// Speed returns the vector magnitude.
func (v Vector) Speed() float64 {
	return math.Hypot(v.DX, v.DY)
}

// Scale returns v multiplied by k.
func (v Vector) Scale(k float64) Vector {
	return Vector{DX: v.DX * k, DY: v.DY * k}
}

// Add returns p displaced by v.
func (p Point) Add(v Vector) Point {
	return Point{X: p.X + v.DX, Y: p.Y + v.DY}
}

func distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Box is a normalised bounding box with a top-left origin.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Detection is one labelled, confidence-scored box from the detector.
type Detection struct {
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// Area returns the box area as a fraction of the frame.
func (d Detection) Area() float64 {
	return d.Box.W * d.Box.H
}

// Center returns the box midpoint.
func (d Detection) Center() Point {
	return Point{X: d.Box.X + d.Box.W/2, Y: d.Box.Y + d.Box.H/2}
}

// finite reports whether every numeric field is a finite number.
func (d Detection) finite() bool {
	for _, v := range [...]float64{d.Confidence, d.Box.X, d.Box.Y, d.Box.W, d.Box.H} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
