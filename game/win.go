package game

// WinType is the result of evaluating a mark vector.
type WinType string

const (
	WinNone       WinType = "none"
	WinSingleLine WinType = "single_line"
	WinFullHouse  WinType = "full_house"
)

// Lines holds the 12 winning index sets: 5 rows, 5 columns, 2 diagonals.
var Lines = buildLines()

func buildLines() [][5]int {
	lines := make([][5]int, 0, 12)

	// rows
	for row := 0; row < 5; row++ {
		var l [5]int
		for col := 0; col < 5; col++ {
			l[col] = row*5 + col
		}
		lines = append(lines, l)
	}

	// columns
	for col := 0; col < 5; col++ {
		var l [5]int
		for row := 0; row < 5; row++ {
			l[row] = row*5 + col
		}
		lines = append(lines, l)
	}

	// diagonals
	var d1, d2 [5]int
	for i := 0; i < 5; i++ {
		d1[i] = i*5 + i
		d2[i] = i*5 + (4 - i)
	}
	return append(lines, d1, d2)
}

// DetectWin evaluates marks. Full house takes precedence over a line.
func DetectWin(m Marks) WinType {
	if MarkedCount(m) == CardSize {
		return WinFullHouse
	}
	if CompletedLines(m) > 0 {
		return WinSingleLine
	}
	return WinNone
}

// CompletedLines counts fully marked lines.
func CompletedLines(m Marks) int {
	checkLine := func(cells [5]int) bool {
		for _, idx := range cells {
			if !m[idx] {
				return false
			}
		}
		return true
	}

	n := 0
	for _, l := range Lines {
		if checkLine(l) {
			n++
		}
	}
	return n
}
