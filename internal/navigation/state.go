// Package navigation implements the review session state machine: which
// specimen and well is current, and how directional moves, jumps, and
// specimen switches transition it. Every transition persists the current
// annotation before the position changes, so a failed persist never loses
// the reviewer's place.
package navigation

import (
	"platecore/internal/dataset"
	"platecore/pkg/domain"
	"platecore/pkg/grid"
)

// PersistFunc saves the annotation at the given position. Returning an
// error vetoes the pending move.
type PersistFunc func(specimenID string, wellIndex int) error

// Position is the machine's current location. The zero value means idle.
type Position struct {
	SpecimenID string
	WellIndex  int
}

// Idle reports whether the position denotes no selection.
func (p Position) Idle() bool { return p.SpecimenID == "" }

// State is the navigation state machine. It is idle until a specimen is
// selected and stays live for the rest of the session; only Reset returns
// it to idle.
type State struct {
	store   *dataset.Store
	layout  grid.Layout
	persist PersistFunc
	pos     Position
}

// New builds an idle machine over the given store and layout. persist may
// be nil when the embedding system has nothing to save on move.
func New(store *dataset.Store, layout grid.Layout, persist PersistFunc) *State {
	return &State{store: store, layout: layout, persist: persist}
}

// Current returns the machine's position.
func (s *State) Current() Position { return s.pos }

// Reset returns the machine to idle, e.g. after a dataset reload.
func (s *State) Reset() { s.pos = Position{} }

// SelectSpecimen enters the first available well of the specimen. Unknown
// specimens are rejected and leave the state unchanged.
func (s *State) SelectSpecimen(id string) error {
	if !s.knownSpecimen(id) {
		return domain.NotFoundError{Kind: "specimen", Key: id}
	}
	target := s.firstAvailableWell(id)
	if err := s.persistCurrent(); err != nil {
		return err
	}
	s.pos = Position{SpecimenID: id, WellIndex: target}
	return nil
}

// Move steps one well in the given direction. A boundary or a target below
// the session start index is a no-op, not an error. The current annotation
// is persisted before the position changes.
func (s *State) Move(dir grid.Direction) error {
	return s.moveTo(func() (int, bool, error) {
		return s.layout.Adjacent(s.pos.WellIndex, dir)
	})
}

// MoveCentered jumps to the middle of the adjacent row or column. Same
// no-op and persist semantics as Move.
func (s *State) MoveCentered(dir grid.Direction) error {
	return s.moveTo(func() (int, bool, error) {
		return s.layout.CenteredTarget(s.pos.WellIndex, dir)
	})
}

// JumpToWell moves directly to the given well of the current specimen.
func (s *State) JumpToWell(index int) error {
	if s.pos.Idle() {
		return domain.NotFoundError{Kind: "specimen", Key: ""}
	}
	if index < domain.MinWellIndex || index > domain.MaxWellIndex {
		return domain.RangeError{What: "well index", Got: index, Min: domain.MinWellIndex, Max: domain.MaxWellIndex}
	}
	if !s.layout.Available(index) {
		return domain.NotFoundError{Kind: "well", Key: wellKey(s.pos.SpecimenID, index)}
	}
	if err := s.persistCurrent(); err != nil {
		return err
	}
	s.pos.WellIndex = index
	return nil
}

// NextSpecimen advances cyclically through the sorted specimen list,
// landing on the first available well of the target.
func (s *State) NextSpecimen() error { return s.stepSpecimen(1) }

// PrevSpecimen is the cyclic counterpart of NextSpecimen.
func (s *State) PrevSpecimen() error { return s.stepSpecimen(-1) }

// ResumeLastAnnotated jumps to the specimen's most recently annotated
// well, falling back to the first available well when no record carries a
// timestamp.
func (s *State) ResumeLastAnnotated(id string) error {
	if !s.knownSpecimen(id) {
		return domain.NotFoundError{Kind: "specimen", Key: id}
	}
	target, ok := s.store.LastAnnotatedWell(id)
	if !ok || !s.layout.Available(target) {
		target = s.firstAvailableWell(id)
	}
	if err := s.persistCurrent(); err != nil {
		return err
	}
	s.pos = Position{SpecimenID: id, WellIndex: target}
	return nil
}

func (s *State) moveTo(resolve func() (int, bool, error)) error {
	if s.pos.Idle() {
		return domain.NotFoundError{Kind: "specimen", Key: ""}
	}
	target, ok, err := resolve()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := s.persistCurrent(); err != nil {
		return err
	}
	s.pos.WellIndex = target
	return nil
}

func (s *State) stepSpecimen(delta int) error {
	if s.pos.Idle() {
		return domain.NotFoundError{Kind: "specimen", Key: ""}
	}
	ids := s.store.Specimens()
	if len(ids) == 0 {
		return domain.NotFoundError{Kind: "specimen", Key: s.pos.SpecimenID}
	}
	at := -1
	for i, id := range ids {
		if id == s.pos.SpecimenID {
			at = i
			break
		}
	}
	if at < 0 {
		return domain.NotFoundError{Kind: "specimen", Key: s.pos.SpecimenID}
	}
	next := ids[((at+delta)%len(ids)+len(ids))%len(ids)]
	if err := s.persistCurrent(); err != nil {
		return err
	}
	s.pos = Position{SpecimenID: next, WellIndex: s.firstAvailableWell(next)}
	return nil
}

func (s *State) persistCurrent() error {
	if s.persist == nil || s.pos.Idle() {
		return nil
	}
	if err := s.persist(s.pos.SpecimenID, s.pos.WellIndex); err != nil {
		return domain.PersistenceError{Op: "persist current annotation", Err: err}
	}
	return nil
}

func (s *State) knownSpecimen(id string) bool {
	for _, known := range s.store.Specimens() {
		if known == id {
			return true
		}
	}
	return false
}

func (s *State) firstAvailableWell(string) int {
	return s.layout.FirstAvailable()
}

func wellKey(specimenID string, index int) string {
	label, err := domain.WellLabel(index)
	if err != nil {
		label = "?"
	}
	return specimenID + "/" + label
}
