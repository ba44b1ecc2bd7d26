package grid

import (
	"testing"

	"platecore/pkg/domain"
)

func mustLayout(t *testing.T, cfg Config) Layout {
	t.Helper()
	l, err := NewLayout(cfg)
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	return l
}

// fullLayout makes every well available so navigation tests can exercise
// the raw grid boundaries.
func fullLayout(t *testing.T) Layout {
	cfg := DefaultConfig()
	cfg.StartIndex = 1
	return mustLayout(t, cfg)
}

func TestConfigValidation(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	bad := cfg
	bad.SpacingX = 0
	if err := bad.Validate(); err == nil {
		t.Fatal("zero spacing accepted")
	}
	bad = cfg
	bad.Diameter = -1
	if err := bad.Validate(); err == nil {
		t.Fatal("negative diameter accepted")
	}
	bad = cfg
	bad.StartIndex = 121
	if err := bad.Validate(); err == nil {
		t.Fatal("start index 121 accepted")
	}
}

func TestCenterPixel(t *testing.T) {
	l := fullLayout(t)
	cases := []struct {
		index int
		x, y  float64
	}{
		{1, 750, 392},
		{2, 895, 392},
		{13, 750, 537},
		{120, 750 + 11*145, 392 + 9*145},
	}
	for _, tc := range cases {
		x, y, err := l.CenterPixel(tc.index)
		if err != nil {
			t.Fatalf("CenterPixel(%d): %v", tc.index, err)
		}
		if x != tc.x || y != tc.y {
			t.Fatalf("CenterPixel(%d) = (%v, %v), want (%v, %v)", tc.index, x, y, tc.x, tc.y)
		}
	}
	if _, _, err := l.CenterPixel(0); err == nil {
		t.Fatal("expected range error for well 0")
	}
}

func TestHitTest(t *testing.T) {
	l := fullLayout(t)

	// Dead on the center of well 14 (row 1, col 1), identity transform.
	if got, ok := l.HitTest(895, 537, 1, 0, 0); !ok || got != 14 {
		t.Fatalf("HitTest center = (%d, %v), want (14, true)", got, ok)
	}
	// Just inside the radius.
	if got, ok := l.HitTest(895+44, 537, 1, 0, 0); !ok || got != 14 {
		t.Fatalf("HitTest edge = (%d, %v), want (14, true)", got, ok)
	}
	// Just outside the radius of every well.
	if _, ok := l.HitTest(895+46, 537+46, 1, 0, 0); ok {
		t.Fatal("HitTest matched a point outside every well")
	}
	// Scale-to-fit rendering: half scale plus a letterbox offset.
	if got, ok := l.HitTest(895*0.5+30, 537*0.5+12, 0.5, 30, 12); !ok || got != 14 {
		t.Fatalf("HitTest scaled = (%d, %v), want (14, true)", got, ok)
	}
	// Degenerate scale never matches.
	if _, ok := l.HitTest(895, 537, 0, 0, 0); ok {
		t.Fatal("HitTest accepted zero scale")
	}
}

func TestHitTestRespectsStartIndex(t *testing.T) {
	l := mustLayout(t, DefaultConfig()) // start index 25
	// Well 1 is below the session start and must not be reported.
	if _, ok := l.HitTest(750, 392, 1, 0, 0); ok {
		t.Fatal("HitTest returned a well below the start index")
	}
	// Well 25 (row 2, col 0) is available.
	if got, ok := l.HitTest(750, 392+2*145, 1, 0, 0); !ok || got != 25 {
		t.Fatalf("HitTest = (%d, %v), want (25, true)", got, ok)
	}
}

func TestAdjacentBoundaries(t *testing.T) {
	l := fullLayout(t)
	for _, dir := range []Direction{DirLeft, DirUp} {
		if _, ok, err := l.Adjacent(1, dir); err != nil || ok {
			t.Fatalf("Adjacent(1, %s) = ok=%v err=%v, want boundary no-op", dir, ok, err)
		}
	}
	for _, dir := range []Direction{DirRight, DirDown} {
		if _, ok, err := l.Adjacent(120, dir); err != nil || ok {
			t.Fatalf("Adjacent(120, %s) = ok=%v err=%v, want boundary no-op", dir, ok, err)
		}
	}
	if got, ok, err := l.Adjacent(10, DirRight); err != nil || !ok || got != 11 {
		t.Fatalf("Adjacent(10, right) = (%d, %v, %v), want (11, true, nil)", got, ok, err)
	}
	if got, ok, err := l.Adjacent(14, DirUp); err != nil || !ok || got != 2 {
		t.Fatalf("Adjacent(14, up) = (%d, %v, %v), want (2, true, nil)", got, ok, err)
	}
}

func TestAdjacentStartIndexFilter(t *testing.T) {
	l := mustLayout(t, DefaultConfig()) // start index 25
	// Moving up from well 25 would reach well 13, which is unavailable.
	if _, ok, err := l.Adjacent(25, DirUp); err != nil || ok {
		t.Fatalf("Adjacent(25, up) = ok=%v err=%v, want filtered no-op", ok, err)
	}
	if got, ok, err := l.Adjacent(25, DirRight); err != nil || !ok || got != 26 {
		t.Fatalf("Adjacent(25, right) = (%d, %v, %v)", got, ok, err)
	}
}

func TestAdjacentErrors(t *testing.T) {
	l := fullLayout(t)
	if _, _, err := l.Adjacent(0, DirUp); err == nil {
		t.Fatal("expected range error for well 0")
	}
	if _, _, err := l.Adjacent(10, "sideways"); err == nil {
		t.Fatal("expected validation error for unknown direction")
	}
}

func TestCenteredTarget(t *testing.T) {
	l := fullLayout(t)

	// Up from (row 3, col 0) lands at (row 2, col 5).
	from, err := domain.PositionToIndex(3, 0)
	if err != nil {
		t.Fatalf("PositionToIndex: %v", err)
	}
	want, err := domain.PositionToIndex(2, 5)
	if err != nil {
		t.Fatalf("PositionToIndex: %v", err)
	}
	got, ok, err := l.CenteredTarget(from, DirUp)
	if err != nil || !ok || got != want {
		t.Fatalf("CenteredTarget(%d, up) = (%d, %v, %v), want (%d, true, nil)", from, got, ok, err, want)
	}

	// Right from (row 0, col 4) lands at (row 4, col 5).
	from, _ = domain.PositionToIndex(0, 4)
	want, _ = domain.PositionToIndex(4, 5)
	got, ok, err = l.CenteredTarget(from, DirRight)
	if err != nil || !ok || got != want {
		t.Fatalf("CenteredTarget(%d, right) = (%d, %v, %v), want (%d, true, nil)", from, got, ok, err, want)
	}

	// Up from the top row has nowhere to go.
	if _, ok, err := l.CenteredTarget(5, DirUp); err != nil || ok {
		t.Fatalf("CenteredTarget(5, up) = ok=%v err=%v, want boundary no-op", ok, err)
	}
}

func TestGradientSequence(t *testing.T) {
	l := fullLayout(t)

	rowSeq, err := l.GradientSequence(25, true)
	if err != nil {
		t.Fatalf("GradientSequence: %v", err)
	}
	if len(rowSeq) != domain.GridCols || rowSeq[0] != 25 || rowSeq[11] != 36 {
		t.Fatalf("row sequence = %v", rowSeq)
	}

	colSeq, err := l.GradientSequence(25, false)
	if err != nil {
		t.Fatalf("GradientSequence: %v", err)
	}
	if len(colSeq) != domain.GridRows || colSeq[0] != 1 || colSeq[9] != 109 {
		t.Fatalf("column sequence = %v", colSeq)
	}
}
