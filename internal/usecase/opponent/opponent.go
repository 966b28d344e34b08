package opponent

import (
	"math/rand"
	"sync"
	"time"

	"tictacarm/internal/domain/game"
)

const (
	DefaultEasyRandomProb = 0.7
	center                = 4
)

// Rand is the random source used by the selector.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// lockedRand makes a *rand.Rand safe for concurrent use.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

func NewTimeSeededRand() Rand {
	return &lockedRand{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Selector picks the automated player's cell.
//
// Hard play is a fixed heuristic (win, block, centre, random) rather than a
// game-tree search, so it can lose to a fork.
type Selector struct {
	rng            Rand
	easyRandomProb float64
}

func NewSelector(rng Rand, easyRandomProb float64) *Selector {
	if rng == nil {
		rng = NewTimeSeededRand()
	}
	if easyRandomProb < 0 || easyRandomProb > 1 {
		easyRandomProb = DefaultEasyRandomProb
	}
	return &Selector{rng: rng, easyRandomProb: easyRandomProb}
}

// Select returns the cell index for the opponent, or false when the board
// has no empty cell.
func (s *Selector) Select(b game.Board, d game.Difficulty) (int, bool) {
	empty := b.Empties()
	if len(empty) == 0 {
		return 0, false
	}

	if d == game.Easy && s.rng.Float64() < s.easyRandomProb {
		return s.randomOf(empty), true
	}

	if i, ok := completingCell(b, empty, game.Opponent); ok {
		return i, true
	}
	if i, ok := completingCell(b, empty, game.Human); ok {
		return i, true
	}
	if b[center] == game.Empty {
		return center, true
	}
	return s.randomOf(empty), true
}

// completingCell finds the first empty cell where mark would win at once.
func completingCell(b game.Board, empty []int, mark game.Mark) (int, bool) {
	want := game.HumanWon
	if mark == game.Opponent {
		want = game.OpponentWon
	}
	for _, i := range empty {
		next, err := b.Apply(i, mark)
		if err != nil {
			continue
		}
		if next.Winner() == want {
			return i, true
		}
	}
	return 0, false
}

func (s *Selector) randomOf(cells []int) int {
	return cells[s.rng.Intn(len(cells))]
}
