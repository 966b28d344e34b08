package game

import (
	"fmt"

	errs "tictacarm/internal/errors"
)

const Cells = 9

// Mark is the content of one board cell.
type Mark string

const (
	Empty    Mark = ""
	Human    Mark = "X"
	Opponent Mark = "O"
)

// Board cells are numbered left-to-right, top-to-bottom, 0..8.
// Cell index i corresponds to calibration cell i+1.
type Board [Cells]Mark

var lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// Apply returns a copy of the board with mark placed at index.
// The receiver is never modified.
func (b Board) Apply(index int, mark Mark) (Board, error) {
	if index < 0 || index >= Cells {
		return b, fmt.Errorf("%w: cell %d is out of range", errs.ErrInvalidMove, index)
	}
	if mark != Human && mark != Opponent {
		return b, fmt.Errorf("%w: unknown mark %q", errs.ErrInvalidMove, mark)
	}
	if b[index] != Empty {
		return b, fmt.Errorf("%w: cell %d is occupied", errs.ErrInvalidMove, index)
	}
	b[index] = mark
	return b, nil
}

// Winner reports the outcome of the position.
func (b Board) Winner() Outcome {
	for _, l := range lines {
		m := b[l[0]]
		if m != Empty && m == b[l[1]] && m == b[l[2]] {
			return outcomeFor(m)
		}
	}
	if b.Full() {
		return Draw
	}
	return None
}

func (b Board) Full() bool {
	for _, m := range b {
		if m == Empty {
			return false
		}
	}
	return true
}

// Empties lists the empty cell indices in ascending order.
func (b Board) Empties() []int {
	empty := make([]int, 0, Cells)
	for i, m := range b {
		if m == Empty {
			empty = append(empty, i)
		}
	}
	return empty
}

func (b Board) Count(mark Mark) int {
	n := 0
	for _, m := range b {
		if m == mark {
			n++
		}
	}
	return n
}

// CellID maps a board index to its calibration cell identifier.
func CellID(index int) int {
	return index + 1
}

func outcomeFor(m Mark) Outcome {
	if m == Human {
		return HumanWon
	}
	return OpponentWon
}
