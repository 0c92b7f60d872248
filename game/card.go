package game

import (
	"encoding/json"
	"fmt"
	"math/rand"
)

const (
	CardSize   = 25
	FreeIndex  = 12
	MaxNumber  = 75
	FreeCell   = 0 // sentinel stored in place of a number
	freeSymbol = "FREE"
)

// Card is an immutable 5x5 bingo card laid out row by row.
type Card [CardSize]int

// Marks is the mark vector parallel to a Card.
type Marks [CardSize]bool

// NewCard samples 24 distinct numbers in [1,75] and places FREE at the centre.
func NewCard(r *rand.Rand) Card {
	nums := shuffledNumbers(r)
	var c Card
	j := 0
	for i := range c {
		if i == FreeIndex {
			c[i] = FreeCell
			continue
		}
		c[i] = nums[j]
		j++
	}
	return c
}

// NewMarks returns a mark vector with only the FREE cell marked.
func NewMarks() Marks {
	var m Marks
	m[FreeIndex] = true
	return m
}

// IsFree reports whether cell i holds the FREE sentinel.
func (c Card) IsFree(i int) bool {
	return i == FreeIndex && c[i] == FreeCell
}

// IndexOf returns the cell holding n, or -1.
func (c Card) IndexOf(n int) int {
	for i, v := range c {
		if v == n && !c.IsFree(i) {
			return i
		}
	}
	return -1
}

// MarshalJSON renders the FREE cell as the string "FREE", the way clients expect it.
func (c Card) MarshalJSON() ([]byte, error) {
	out := make([]any, CardSize)
	for i, v := range c {
		if c.IsFree(i) {
			out[i] = freeSymbol
			continue
		}
		out[i] = v
	}
	return json.Marshal(out)
}

func (c *Card) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != CardSize {
		return fmt.Errorf("card must have %d cells, got %d", CardSize, len(raw))
	}
	for i, cell := range raw {
		var s string
		if json.Unmarshal(cell, &s) == nil && s == freeSymbol {
			c[i] = FreeCell
			continue
		}
		if err := json.Unmarshal(cell, &c[i]); err != nil {
			return fmt.Errorf("cell %d: %w", i, err)
		}
	}
	return nil
}

// MarkedCount counts marked cells, FREE included.
func MarkedCount(m Marks) int {
	n := 0
	for _, v := range m {
		if v {
			n++
		}
	}
	return n
}

// ShuffledPool returns 1..75 in random order; draws consume it front to back.
func ShuffledPool(r *rand.Rand) []int {
	return shuffledNumbers(r)
}

func shuffledNumbers(r *rand.Rand) []int {
	nums := make([]int, MaxNumber)
	for i := range nums {
		nums[i] = i + 1
	}
	r.Shuffle(len(nums), func(i, j int) { nums[i], nums[j] = nums[j], nums[i] })
	return nums
}
