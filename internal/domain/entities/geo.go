package entities

import (
	"fmt"
	"math"
)

// BoundingBox is a lat/lon rectangle in degrees
type BoundingBox struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Validate rejects non-finite bounds. A degenerate but finite box is valid.
func (b BoundingBox) Validate() error {
	for name, v := range map[string]float64{"north": b.North, "south": b.South, "east": b.East, "west": b.West} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s bound is not a finite number", name)
		}
	}
	return nil
}

// IsDegenerate reports whether the box has no area
func (b BoundingBox) IsDegenerate() bool {
	return b.North <= b.South || b.East <= b.West
}

// Contains reports whether the point lies inside the box, edges included
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat <= b.North && lat >= b.South && lon <= b.East && lon >= b.West
}

// Element kinds returned by the upstream map database
const (
	ElementKindNode     = "node"
	ElementKindWay      = "way"
	ElementKindRelation = "relation"
)

// RawElement is one tagged geographic element as returned by the upstream source
type RawElement struct {
	ExternalID      string            `json:"external_id"`
	ExternalKind    string            `json:"external_kind"`
	Tags            map[string]string `json:"tags"`
	Latitude        *float64          `json:"latitude,omitempty"`
	Longitude       *float64          `json:"longitude,omitempty"`
	CenterLatitude  *float64          `json:"center_latitude,omitempty"`
	CenterLongitude *float64          `json:"center_longitude,omitempty"`
}
