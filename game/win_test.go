package game

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func marksFor(indices ...int) Marks {
	m := NewMarks()
	for _, i := range indices {
		m[i] = true
	}
	return m
}

func TestLinesLayout(t *testing.T) {
	require.Len(t, Lines, 12)
	assert.Equal(t, [5]int{10, 11, 12, 13, 14}, Lines[2])
	assert.Equal(t, [5]int{2, 7, 12, 17, 22}, Lines[7])
	assert.Equal(t, [5]int{0, 6, 12, 18, 24}, Lines[10])
	assert.Equal(t, [5]int{4, 8, 12, 16, 20}, Lines[11])
}

func TestDetectWin_EachLineAlone(t *testing.T) {
	for i, line := range Lines {
		m := marksFor(line[:]...)
		assert.Equal(t, WinSingleLine, DetectWin(m), "line %d", i)
		assert.Equal(t, 1, CompletedLines(m), "line %d", i)
	}
}

func TestDetectWin_FullHouseBeatsLines(t *testing.T) {
	var m Marks
	for i := range m {
		m[i] = true
	}
	assert.Equal(t, WinFullHouse, DetectWin(m))
	assert.Equal(t, 12, CompletedLines(m))
}

func TestDetectWin_None(t *testing.T) {
	tests := []struct {
		name  string
		marks Marks
	}{
		{name: "fresh card", marks: NewMarks()},
		{name: "four of a row", marks: marksFor(0, 1, 2, 3)},
		{name: "scattered", marks: marksFor(0, 7, 13, 19, 21, 3)},
		{name: "everything but one cell per line", marks: marksFor(1, 2, 3, 4, 5, 7, 8, 9, 10, 11, 14, 15, 17, 19, 20, 21, 23)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, WinNone, DetectWin(tt.marks))
		})
	}
}

func TestDetectWin_RandomVectors(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for n := 0; n < 2000; n++ {
		var m Marks
		for i := range m {
			m[i] = r.Intn(3) > 0
		}
		got := DetectWin(m)
		switch {
		case MarkedCount(m) == CardSize:
			assert.Equal(t, WinFullHouse, got)
		case CompletedLines(m) > 0:
			assert.Equal(t, WinSingleLine, got)
		default:
			assert.Equal(t, WinNone, got)
		}
	}
}

func TestNewCard(t *testing.T) {
	c := NewCard(rand.New(rand.NewSource(1)))

	assert.True(t, c.IsFree(FreeIndex))
	seen := map[int]bool{}
	for i, v := range c {
		if i == FreeIndex {
			continue
		}
		assert.GreaterOrEqual(t, v, 1)
		assert.LessOrEqual(t, v, MaxNumber)
		assert.False(t, seen[v], "duplicate %d", v)
		seen[v] = true
		assert.Equal(t, i, c.IndexOf(v))
	}
	assert.Len(t, seen, 24)
	assert.Equal(t, -1, c.IndexOf(FreeCell))
}

func TestNewMarks(t *testing.T) {
	m := NewMarks()
	assert.Equal(t, 1, MarkedCount(m))
	assert.True(t, m[FreeIndex])
}

func TestCardJSON(t *testing.T) {
	c := NewCard(rand.New(rand.NewSource(3)))

	b, err := json.Marshal(c)
	require.NoError(t, err)

	var cells []any
	require.NoError(t, json.Unmarshal(b, &cells))
	assert.Equal(t, "FREE", cells[FreeIndex])

	var back Card
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, c, back)

	assert.Error(t, json.Unmarshal([]byte(`[1,2,3]`), &back))
}

func TestShuffledPool(t *testing.T) {
	pool := ShuffledPool(rand.New(rand.NewSource(9)))
	require.Len(t, pool, MaxNumber)
	seen := map[int]bool{}
	for _, n := range pool {
		seen[n] = true
	}
	assert.Len(t, seen, MaxNumber)
}
