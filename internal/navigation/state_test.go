package navigation

import (
	"errors"
	"testing"
	"time"

	"platecore/internal/dataset"
	"platecore/pkg/domain"
	"platecore/pkg/grid"
)

func seededStore(t *testing.T, specimens ...string) *dataset.Store {
	t.Helper()
	s := dataset.NewStore()
	for _, id := range specimens {
		rec, err := domain.NewAnnotationRecord(id, 25, domain.MicrobeBacteria, domain.GrowthNegative, domain.SourceManual)
		if err != nil {
			t.Fatalf("NewAnnotationRecord: %v", err)
		}
		if err := s.Upsert(rec); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	return s
}

func openLayout(t *testing.T) grid.Layout {
	t.Helper()
	cfg := grid.DefaultConfig()
	cfg.StartIndex = 1
	l, err := grid.NewLayout(cfg)
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	return l
}

func TestSelectSpecimen(t *testing.T) {
	store := seededStore(t, "EB1")
	cfg := grid.DefaultConfig() // start index 25
	layout, err := grid.NewLayout(cfg)
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	nav := New(store, layout, nil)

	if !nav.Current().Idle() {
		t.Fatal("machine must start idle")
	}
	if err := nav.SelectSpecimen("EB1"); err != nil {
		t.Fatalf("SelectSpecimen: %v", err)
	}
	if pos := nav.Current(); pos.SpecimenID != "EB1" || pos.WellIndex != 25 {
		t.Fatalf("position = %+v, want EB1 well 25", pos)
	}

	err = nav.SelectSpecimen("missing")
	var nf domain.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if pos := nav.Current(); pos.SpecimenID != "EB1" {
		t.Fatalf("failed select changed state: %+v", pos)
	}
}

func TestPersistBeforeMove(t *testing.T) {
	store := seededStore(t, "EB1")
	var persisted []Position
	var positionAtPersist Position

	nav := New(store, openLayout(t), nil)
	nav.persist = func(specimenID string, wellIndex int) error {
		persisted = append(persisted, Position{specimenID, wellIndex})
		positionAtPersist = nav.Current()
		return nil
	}
	if err := nav.SelectSpecimen("EB1"); err != nil {
		t.Fatalf("SelectSpecimen: %v", err)
	}
	if err := nav.JumpToWell(10); err != nil {
		t.Fatalf("JumpToWell: %v", err)
	}
	persisted = nil

	if err := nav.Move(grid.DirRight); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if len(persisted) != 1 {
		t.Fatalf("persist called %d times, want exactly once", len(persisted))
	}
	if persisted[0].WellIndex != 10 {
		t.Fatalf("persisted well %d, want 10", persisted[0].WellIndex)
	}
	// The callback must observe the pre-move state.
	if positionAtPersist.WellIndex != 10 {
		t.Fatalf("state at persist time was well %d, want 10", positionAtPersist.WellIndex)
	}
	if nav.Current().WellIndex != 11 {
		t.Fatalf("position after move = %d, want 11", nav.Current().WellIndex)
	}
}

func TestPersistFailureVetoesMove(t *testing.T) {
	store := seededStore(t, "EB1")
	nav := New(store, openLayout(t), func(string, int) error {
		return errors.New("disk full")
	})
	nav.pos = Position{SpecimenID: "EB1", WellIndex: 10}

	err := nav.Move(grid.DirRight)
	var pe domain.PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if nav.Current().WellIndex != 10 {
		t.Fatalf("failed persist moved the position to %d", nav.Current().WellIndex)
	}
}

func TestBoundaryMoveIsNoOp(t *testing.T) {
	store := seededStore(t, "EB1")
	calls := 0
	nav := New(store, openLayout(t), func(string, int) error {
		calls++
		return nil
	})
	nav.pos = Position{SpecimenID: "EB1", WellIndex: 1}

	if err := nav.Move(grid.DirLeft); err != nil {
		t.Fatalf("Move at boundary: %v", err)
	}
	if nav.Current().WellIndex != 1 {
		t.Fatal("boundary move changed position")
	}
	if calls != 0 {
		t.Fatal("no-op move must not persist")
	}
}

func TestMoveCentered(t *testing.T) {
	store := seededStore(t, "EB1")
	nav := New(store, openLayout(t), nil)
	from, _ := domain.PositionToIndex(3, 0)
	want, _ := domain.PositionToIndex(2, 5)
	nav.pos = Position{SpecimenID: "EB1", WellIndex: from}

	if err := nav.MoveCentered(grid.DirUp); err != nil {
		t.Fatalf("MoveCentered: %v", err)
	}
	if nav.Current().WellIndex != want {
		t.Fatalf("centered move landed on %d, want %d", nav.Current().WellIndex, want)
	}
}

func TestJumpToWellValidation(t *testing.T) {
	store := seededStore(t, "EB1")
	cfg := grid.DefaultConfig() // start index 25
	layout, err := grid.NewLayout(cfg)
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	nav := New(store, layout, nil)
	if err := nav.SelectSpecimen("EB1"); err != nil {
		t.Fatalf("SelectSpecimen: %v", err)
	}

	var re domain.RangeError
	if err := nav.JumpToWell(121); !errors.As(err, &re) {
		t.Fatalf("expected RangeError, got %v", err)
	}
	var nf domain.NotFoundError
	if err := nav.JumpToWell(10); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError for well below start index, got %v", err)
	}
	if nav.Current().WellIndex != 25 {
		t.Fatalf("failed jumps changed position to %d", nav.Current().WellIndex)
	}
	if err := nav.JumpToWell(60); err != nil {
		t.Fatalf("JumpToWell: %v", err)
	}
	if nav.Current().WellIndex != 60 {
		t.Fatalf("position = %d, want 60", nav.Current().WellIndex)
	}
}

func TestSpecimenCycling(t *testing.T) {
	store := seededStore(t, "EB2", "EB1", "EB3")
	nav := New(store, openLayout(t), nil)
	if err := nav.SelectSpecimen("EB3"); err != nil {
		t.Fatalf("SelectSpecimen: %v", err)
	}
	if err := nav.NextSpecimen(); err != nil {
		t.Fatalf("NextSpecimen: %v", err)
	}
	if nav.Current().SpecimenID != "EB1" {
		t.Fatalf("cyclic next from EB3 = %s, want EB1", nav.Current().SpecimenID)
	}
	if err := nav.PrevSpecimen(); err != nil {
		t.Fatalf("PrevSpecimen: %v", err)
	}
	if nav.Current().SpecimenID != "EB3" {
		t.Fatalf("cyclic prev from EB1 = %s, want EB3", nav.Current().SpecimenID)
	}
}

func TestMovesRequireSelection(t *testing.T) {
	store := seededStore(t, "EB1")
	nav := New(store, openLayout(t), nil)
	if err := nav.Move(grid.DirRight); err == nil {
		t.Fatal("move while idle accepted")
	}
	if err := nav.JumpToWell(30); err == nil {
		t.Fatal("jump while idle accepted")
	}
	if err := nav.NextSpecimen(); err == nil {
		t.Fatal("specimen step while idle accepted")
	}
}

func TestResumeLastAnnotated(t *testing.T) {
	store := seededStore(t, "EB1")
	rec, err := domain.NewAnnotationRecord("EB1", 77, domain.MicrobeBacteria, domain.GrowthPositive, domain.SourceManual)
	if err != nil {
		t.Fatalf("NewAnnotationRecord: %v", err)
	}
	rec.Timestamp = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if err := store.Upsert(rec); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	nav := New(store, openLayout(t), nil)
	if err := nav.ResumeLastAnnotated("EB1"); err != nil {
		t.Fatalf("ResumeLastAnnotated: %v", err)
	}
	if nav.Current().WellIndex != 77 {
		t.Fatalf("resumed at well %d, want 77", nav.Current().WellIndex)
	}
}

func TestReset(t *testing.T) {
	store := seededStore(t, "EB1")
	nav := New(store, openLayout(t), nil)
	if err := nav.SelectSpecimen("EB1"); err != nil {
		t.Fatalf("SelectSpecimen: %v", err)
	}
	nav.Reset()
	if !nav.Current().Idle() {
		t.Fatal("Reset did not return to idle")
	}
}
