package domain

import "fmt"

// Plate geometry. Wells are numbered 1..120 in row-major order over a
// 10-row by 12-column grid.
const (
	GridRows  = 10
	GridCols  = 12
	WellCount = GridRows * GridCols

	// MinWellIndex and MaxWellIndex bound the 1-based numbering.
	MinWellIndex = 1
	MaxWellIndex = WellCount
)

// IndexToPosition converts a 1-based well index to 0-based (row, col).
func IndexToPosition(index int) (row, col int, err error) {
	if index < MinWellIndex || index > MaxWellIndex {
		return 0, 0, RangeError{What: "well index", Got: index, Min: MinWellIndex, Max: MaxWellIndex}
	}
	return (index - 1) / GridCols, (index - 1) % GridCols, nil
}

// PositionToIndex converts 0-based (row, col) to the 1-based well index.
func PositionToIndex(row, col int) (int, error) {
	if row < 0 || row >= GridRows {
		return 0, RangeError{What: "well row", Got: row, Min: 0, Max: GridRows - 1}
	}
	if col < 0 || col >= GridCols {
		return 0, RangeError{What: "well col", Got: col, Min: 0, Max: GridCols - 1}
	}
	return row*GridCols + col + 1, nil
}

// WellLabel renders the human-readable label for a well, rows A..J and
// columns 1..12, so well 1 is "A1" and well 120 is "J12".
func WellLabel(index int) (string, error) {
	row, col, err := IndexToPosition(index)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%c%d", rune('A'+row), col+1), nil
}

// ParseWellLabel inverts WellLabel.
func ParseWellLabel(label string) (int, error) {
	if len(label) < 2 || len(label) > 3 {
		return 0, FormatError{What: "well label", Detail: fmt.Sprintf("%q has unexpected length", label)}
	}
	row := int(label[0] - 'A')
	col := 0
	for _, ch := range label[1:] {
		if ch < '0' || ch > '9' {
			return 0, FormatError{What: "well label", Detail: fmt.Sprintf("%q has a non-numeric column", label)}
		}
		col = col*10 + int(ch-'0')
	}
	return PositionToIndex(row, col-1)
}
