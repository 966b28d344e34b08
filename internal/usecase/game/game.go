package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tictacarm/internal/domain/game"
	errs "tictacarm/internal/errors"
)

// Mover realizes moves on the physical arm. Errors are informational:
// the game never depends on motion succeeding.
type Mover interface {
	MoveToCell(ctx context.Context, cell int) error
	Home(ctx context.Context) error
}

// Selector picks the opponent's cell, false when the board is full.
type Selector interface {
	Select(b game.Board, d game.Difficulty) (int, bool)
}

// SnapshotPublisher receives every committed snapshot, including the
// mid-turn one published while the arm moves.
type SnapshotPublisher interface {
	Publish(ctx context.Context, snap game.Snapshot) error
}

// GameArchive stores finished games.
type GameArchive interface {
	SaveGame(ctx context.Context, rec game.Record) error
}

// GameStore keeps the live game with its history so it survives a restart.
type GameStore interface {
	Save(ctx context.Context, saved game.SavedGame) error
}

type state struct {
	board      game.Board
	turn       game.Mark
	outcome    game.Outcome
	difficulty game.Difficulty
	gameID     string
	moves      []game.Move
	startedAt  time.Time
}

func setupState() state {
	return state{turn: game.Human}
}

func (s state) snapshot() game.Snapshot {
	return game.Snapshot{
		GameID:     s.gameID,
		Board:      s.board,
		Winner:     s.outcome,
		Turn:       s.turn,
		Difficulty: s.difficulty,
	}
}

func (s state) saved() game.SavedGame {
	return game.SavedGame{
		Snapshot:  s.snapshot(),
		Moves:     s.moves,
		StartedAt: s.startedAt,
	}
}

// GameUseCase owns the single game and serializes every operation on it.
// A human move holds the operation lock for the whole turn, including the
// arm's motion; Snapshot only takes the state lock and stays responsive
// while the arm is moving.
type GameUseCase struct {
	mover      Mover
	selector   Selector
	log        *zap.SugaredLogger
	publishers []SnapshotPublisher
	archive    GameArchive
	store      GameStore
	now        func() time.Time
	newID      func() string

	opMu  sync.Mutex
	mu    sync.RWMutex
	state state
}

func NewGameUseCase(mover Mover, selector Selector, log *zap.SugaredLogger) *GameUseCase {
	return &GameUseCase{
		mover:    mover,
		selector: selector,
		log:      log,
		now:      time.Now,
		newID:    uuid.NewString,
		state:    setupState(),
	}
}

func (g *GameUseCase) WithPublisher(p SnapshotPublisher) *GameUseCase {
	g.publishers = append(g.publishers, p)
	return g
}

func (g *GameUseCase) WithArchive(a GameArchive) *GameUseCase {
	g.archive = a
	return g
}

func (g *GameUseCase) WithStore(s GameStore) *GameUseCase {
	g.store = s
	return g
}

func (g *GameUseCase) Snapshot() game.Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state.snapshot()
}

// SetDifficulty starts a fresh game at difficulty d and homes the arm.
// It is accepted in any state and discards a game in progress.
func (g *GameUseCase) SetDifficulty(ctx context.Context, d game.Difficulty) (game.Snapshot, error) {
	if d != game.Easy && d != game.Hard {
		return g.Snapshot(), fmt.Errorf("%w: %q", errs.ErrUnknownDifficulty, d)
	}

	g.opMu.Lock()
	defer g.opMu.Unlock()

	next := setupState()
	next.difficulty = d
	next.gameID = g.newID()
	next.startedAt = g.now()
	snap := g.commit(ctx, next)

	g.log.Infof("new %s game %s", d, next.gameID)
	g.home(ctx)
	return snap, nil
}

// Reset returns to setup: empty board, no difficulty, and homes the arm.
func (g *GameUseCase) Reset(ctx context.Context) game.Snapshot {
	g.opMu.Lock()
	defer g.opMu.Unlock()

	snap := g.commit(ctx, setupState())
	g.log.Info("game reset")
	g.home(ctx)
	return snap
}

// HumanMove plays the human's mark at index and, unless that decides the
// game, the opponent's reply including its physical motion. The board
// update always completes; only the motion is best effort.
func (g *GameUseCase) HumanMove(ctx context.Context, index int) (game.Snapshot, error) {
	g.opMu.Lock()
	defer g.opMu.Unlock()

	g.mu.RLock()
	cur := g.state
	g.mu.RUnlock()

	if err := checkHumanMove(cur); err != nil {
		return cur.snapshot(), err
	}
	board, err := cur.board.Apply(index, game.Human)
	if err != nil {
		return cur.snapshot(), fmt.Errorf("%w: %w", errs.ErrIllegalMove, err)
	}

	next := cur
	next.board = board
	next.moves = appendMove(cur.moves, game.Move{Mark: game.Human, Index: index, At: g.now()})
	next.outcome = board.Winner()
	if next.outcome.Decided() {
		snap := g.commit(ctx, next)
		g.finish(ctx, next)
		return snap, nil
	}

	next.turn = game.Opponent
	g.commit(ctx, next)

	if reply, ok := g.selector.Select(next.board, next.difficulty); ok {
		g.log.Infof("opponent plays cell %d", game.CellID(reply))
		if err := g.mover.MoveToCell(ctx, game.CellID(reply)); err != nil {
			g.logMotion("move", err)
		}
		board, err := next.board.Apply(reply, game.Opponent)
		if err != nil {
			// selector returned an occupied cell; the turn still passes back
			g.log.Errorf("opponent move rejected: %v", err)
		} else {
			next.board = board
			next.moves = appendMove(next.moves, game.Move{Mark: game.Opponent, Index: reply, At: g.now()})
			next.outcome = board.Winner()
		}
	}
	next.turn = game.Human

	snap := g.commit(ctx, next)
	if next.outcome.Decided() {
		g.finish(ctx, next)
	}
	return snap, nil
}

// Restore installs a previously saved game, for example the one cached in
// redis before a restart. Saved games whose history does not replay to
// their board are rejected, so an archived record is always complete.
func (g *GameUseCase) Restore(saved game.SavedGame) error {
	if err := validateSnapshot(saved.Snapshot); err != nil {
		return err
	}
	if err := validateHistory(saved); err != nil {
		return err
	}

	g.opMu.Lock()
	defer g.opMu.Unlock()

	next := setupState()
	next.board = saved.Board
	next.outcome = saved.Winner
	next.difficulty = saved.Difficulty
	next.gameID = saved.GameID
	next.moves = append([]game.Move(nil), saved.Moves...)
	next.startedAt = saved.StartedAt

	g.mu.Lock()
	g.state = next
	g.mu.Unlock()
	return nil
}

// Home waits for any in-flight turn and returns the arm to neutral. Used
// at process start and shutdown.
func (g *GameUseCase) Home(ctx context.Context) {
	g.opMu.Lock()
	defer g.opMu.Unlock()
	g.home(ctx)
}

func checkHumanMove(s state) error {
	switch {
	case s.difficulty == game.Unset:
		return fmt.Errorf("%w: no game in progress", errs.ErrIllegalMove)
	case s.outcome.Decided():
		return fmt.Errorf("%w: game is over", errs.ErrIllegalMove)
	case s.turn != game.Human:
		return fmt.Errorf("%w: not the human's turn", errs.ErrIllegalMove)
	}
	return nil
}

func validateSnapshot(snap game.Snapshot) error {
	for i, m := range snap.Board {
		if m != game.Empty && m != game.Human && m != game.Opponent {
			return fmt.Errorf("cell %d holds unknown mark %q", i, m)
		}
	}
	if snap.Turn != game.Human {
		return fmt.Errorf("snapshot taken mid-turn")
	}
	if snap.Winner != snap.Board.Winner() {
		return fmt.Errorf("winner %q does not match board", snap.Winner)
	}
	diff := snap.Board.Count(game.Human) - snap.Board.Count(game.Opponent)
	if diff < 0 || diff > 1 || (diff == 1 && !snap.Winner.Decided()) {
		return fmt.Errorf("mark counts are inconsistent")
	}
	if snap.Difficulty == game.Unset && snap.Board != (game.Board{}) {
		return fmt.Errorf("board is not empty in setup")
	}
	return nil
}

// validateHistory replays the moves, alternating from the human's mark,
// and requires them to rebuild the saved board.
func validateHistory(saved game.SavedGame) error {
	if saved.Difficulty == game.Unset {
		if len(saved.Moves) > 0 {
			return fmt.Errorf("moves recorded in setup")
		}
		return nil
	}
	if saved.StartedAt.IsZero() {
		return fmt.Errorf("game %q has no start time", saved.GameID)
	}

	var board game.Board
	mark := game.Human
	for i, m := range saved.Moves {
		if m.Mark != mark {
			return fmt.Errorf("move %d: expected %q, got %q", i, mark, m.Mark)
		}
		next, err := board.Apply(m.Index, m.Mark)
		if err != nil {
			return fmt.Errorf("move %d: %w", i, err)
		}
		board = next
		if mark == game.Human {
			mark = game.Opponent
		} else {
			mark = game.Human
		}
	}
	if board != saved.Board {
		return fmt.Errorf("move history does not match board")
	}
	return nil
}

func appendMove(moves []game.Move, m game.Move) []game.Move {
	out := make([]game.Move, len(moves), len(moves)+1)
	copy(out, moves)
	return append(out, m)
}

// commit installs next as the current state and publishes its snapshot.
func (g *GameUseCase) commit(ctx context.Context, next state) game.Snapshot {
	g.mu.Lock()
	g.state = next
	g.mu.Unlock()

	snap := next.snapshot()
	for _, p := range g.publishers {
		if err := p.Publish(ctx, snap); err != nil {
			g.log.Warnf("snapshot publish failed: %v", err)
		}
	}
	if g.store != nil {
		if err := g.store.Save(ctx, next.saved()); err != nil {
			g.log.Warnf("saving game state failed: %v", err)
		}
	}
	return snap
}

func (g *GameUseCase) finish(ctx context.Context, s state) {
	g.log.Infof("game %s finished: %q", s.gameID, s.outcome)
	if g.archive == nil {
		return
	}
	rec := game.Record{
		ID:         s.gameID,
		Difficulty: s.difficulty,
		Outcome:    s.outcome,
		Board:      s.board,
		Moves:      s.moves,
		StartedAt:  s.startedAt,
		FinishedAt: g.now(),
	}
	if err := g.archive.SaveGame(ctx, rec); err != nil {
		g.log.Warnf("archiving game %s failed: %v", s.gameID, err)
	}
}

func (g *GameUseCase) home(ctx context.Context) {
	if err := g.mover.Home(ctx); err != nil {
		g.logMotion("home", err)
	}
}

func (g *GameUseCase) logMotion(what string, err error) {
	if errors.Is(err, errs.ErrLinkUnavailable) {
		g.log.Debugf("%s skipped: %v", what, err)
		return
	}
	g.log.Warnf("%s skipped: %v", what, err)
}
