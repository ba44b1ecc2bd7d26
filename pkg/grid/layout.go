// Package grid maps well indices to plate geometry: 2-D grid positions,
// pixel centers on the panoramic image, pointer hit-testing, and navigation
// targets.
package grid

import (
	"math"

	"platecore/pkg/domain"
)

// Direction is a single navigation step on the plate grid.
type Direction string

// Navigation directions.
const (
	DirUp    Direction = "up"
	DirDown  Direction = "down"
	DirLeft  Direction = "left"
	DirRight Direction = "right"
)

// Config parameterizes the plate geometry: the pixel center of well 1, the
// center-to-center spacing, the well diameter, and the lowest well index
// available for annotation in the current session.
type Config struct {
	FirstX     float64 `json:"first_hole_x"`
	FirstY     float64 `json:"first_hole_y"`
	SpacingX   float64 `json:"horizontal_spacing"`
	SpacingY   float64 `json:"vertical_spacing"`
	Diameter   float64 `json:"hole_diameter"`
	StartIndex int     `json:"start_hole_number"`
}

// DefaultConfig returns the geometry observed on the standard plate layout.
func DefaultConfig() Config {
	return Config{
		FirstX:     750,
		FirstY:     392,
		SpacingX:   145,
		SpacingY:   145,
		Diameter:   90,
		StartIndex: 25,
	}
}

// Validate checks spacing, diameter, and the start index bound.
func (c Config) Validate() error {
	if c.SpacingX <= 0 || c.SpacingY <= 0 {
		return domain.ValidationError{Field: "spacing", Value: "", Reason: "must be positive"}
	}
	if c.Diameter <= 0 {
		return domain.ValidationError{Field: "hole_diameter", Value: "", Reason: "must be positive"}
	}
	if c.StartIndex < domain.MinWellIndex || c.StartIndex > domain.MaxWellIndex {
		return domain.RangeError{What: "start_hole_number", Got: c.StartIndex, Min: domain.MinWellIndex, Max: domain.MaxWellIndex}
	}
	return nil
}

// Layout is an immutable view of the plate under one configuration.
type Layout struct {
	cfg Config
}

// NewLayout validates the configuration and returns a layout over it.
func NewLayout(cfg Config) (Layout, error) {
	if err := cfg.Validate(); err != nil {
		return Layout{}, err
	}
	return Layout{cfg: cfg}, nil
}

// Config returns the configuration the layout was built from.
func (l Layout) Config() Config { return l.cfg }

// Available reports whether the well participates in this session, i.e. its
// index is at or above the configured start index.
func (l Layout) Available(index int) bool {
	return index >= l.cfg.StartIndex && index <= domain.MaxWellIndex
}

// FirstAvailable returns the lowest annotatable well index.
func (l Layout) FirstAvailable() int { return l.cfg.StartIndex }

// CenterPixel returns the pixel center of the well on the unscaled
// panoramic image.
func (l Layout) CenterPixel(index int) (x, y float64, err error) {
	row, col, err := domain.IndexToPosition(index)
	if err != nil {
		return 0, 0, err
	}
	return l.cfg.FirstX + float64(col)*l.cfg.SpacingX, l.cfg.FirstY + float64(row)*l.cfg.SpacingY, nil
}

// HitTest inverse-maps a pointer coordinate through the render scale and
// offset into image space and returns the well whose center lies within
// diameter/2 of it. Scale and offset come from the rendering surface so the
// layout stays agnostic of viewport fitting.
func (l Layout) HitTest(px, py, scale, offsetX, offsetY float64) (int, bool) {
	if scale <= 0 {
		return 0, false
	}
	ix := (px - offsetX) / scale
	iy := (py - offsetY) / scale

	radius := l.cfg.Diameter / 2
	best := 0
	bestDist := math.Inf(1)
	for index := domain.MinWellIndex; index <= domain.MaxWellIndex; index++ {
		cx, cy, _ := l.CenterPixel(index)
		d := math.Hypot(ix-cx, iy-cy)
		if d <= radius && d < bestDist {
			best, bestDist = index, d
		}
	}
	if best == 0 || !l.Available(best) {
		return 0, false
	}
	return best, true
}

// Adjacent returns the well one grid step away in the given direction, or
// false at a grid boundary or when the target falls below the session start
// index.
func (l Layout) Adjacent(index int, dir Direction) (int, bool, error) {
	row, col, err := domain.IndexToPosition(index)
	if err != nil {
		return 0, false, err
	}
	switch dir {
	case DirUp:
		row--
	case DirDown:
		row++
	case DirLeft:
		col--
	case DirRight:
		col++
	default:
		return 0, false, domain.ValidationError{Field: "direction", Value: string(dir), Reason: "unknown direction"}
	}
	target, err := domain.PositionToIndex(row, col)
	if err != nil {
		return 0, false, nil
	}
	if !l.Available(target) {
		return 0, false, nil
	}
	return target, true, nil
}

// CenteredTarget jumps to the middle of the adjacent row (up/down) or the
// middle of the adjacent column (left/right) instead of single-stepping.
// Useful on large plate images where single-step arrow navigation is slow.
func (l Layout) CenteredTarget(index int, dir Direction) (int, bool, error) {
	row, col, err := domain.IndexToPosition(index)
	if err != nil {
		return 0, false, err
	}
	midCol := (domain.GridCols - 1) / 2
	midRow := (domain.GridRows - 1) / 2
	switch dir {
	case DirUp:
		row, col = row-1, midCol
	case DirDown:
		row, col = row+1, midCol
	case DirLeft:
		row, col = midRow, col-1
	case DirRight:
		row, col = midRow, col+1
	default:
		return 0, false, domain.ValidationError{Field: "direction", Value: string(dir), Reason: "unknown direction"}
	}
	target, err := domain.PositionToIndex(row, col)
	if err != nil {
		return 0, false, nil
	}
	if !l.Available(target) {
		return 0, false, nil
	}
	return target, true, nil
}

// GradientSequence lists the wells sharing the given well's row (horizontal)
// or column (vertical), in ascending index order. Rows on this plate hold
// drug concentration gradients, so reviewers step through them as a unit.
func (l Layout) GradientSequence(index int, horizontal bool) ([]int, error) {
	row, col, err := domain.IndexToPosition(index)
	if err != nil {
		return nil, err
	}
	var out []int
	if horizontal {
		for c := 0; c < domain.GridCols; c++ {
			i, _ := domain.PositionToIndex(row, c)
			out = append(out, i)
		}
		return out, nil
	}
	for r := 0; r < domain.GridRows; r++ {
		i, _ := domain.PositionToIndex(r, col)
		out = append(out, i)
	}
	return out, nil
}
