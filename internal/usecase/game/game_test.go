package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tictacarm/internal/domain/game"
	errs "tictacarm/internal/errors"
	"tictacarm/internal/usecase/opponent"
)

type fakeMover struct {
	mu    sync.Mutex
	cells []int
	homes int
	err   error
}

func (f *fakeMover) MoveToCell(_ context.Context, cell int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cells = append(f.cells, cell)
	return f.err
}

func (f *fakeMover) Home(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.homes++
	return f.err
}

type fakePublisher struct {
	snaps []game.Snapshot
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, snap game.Snapshot) error {
	f.snaps = append(f.snaps, snap)
	return f.err
}

type fakeArchive struct {
	records []game.Record
	err     error
}

func (f *fakeArchive) SaveGame(_ context.Context, rec game.Record) error {
	f.records = append(f.records, rec)
	return f.err
}

// scriptedSelector replays fixed answers, then defers to the hard heuristic.
type scriptedSelector struct {
	answers []int
	next    *opponent.Selector
}

func (s *scriptedSelector) Select(b game.Board, d game.Difficulty) (int, bool) {
	if len(s.answers) > 0 {
		i := s.answers[0]
		s.answers = s.answers[1:]
		return i, true
	}
	return s.next.Select(b, game.Hard)
}

type zeroRand struct{}

func (zeroRand) Float64() float64 { return 0.99 }
func (zeroRand) Intn(int) int     { return 0 }

func newTestUseCase(mover Mover, sel Selector) *GameUseCase {
	uc := NewGameUseCase(mover, sel, zap.NewNop().Sugar())
	uc.newID = func() string { return "game-1" }
	uc.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }
	return uc
}

func hardSelector() *opponent.Selector {
	return opponent.NewSelector(zeroRand{}, opponent.DefaultEasyRandomProb)
}

func TestInitialSnapshotIsSetup(t *testing.T) {
	uc := newTestUseCase(&fakeMover{}, hardSelector())
	snap := uc.Snapshot()
	assert.Equal(t, game.Board{}, snap.Board)
	assert.Equal(t, game.None, snap.Winner)
	assert.Equal(t, game.Human, snap.Turn)
	assert.Equal(t, game.Unset, snap.Difficulty)
}

func TestSetDifficulty(t *testing.T) {
	mover := &fakeMover{}
	pub := &fakePublisher{}
	uc := newTestUseCase(mover, hardSelector()).WithPublisher(pub)

	snap, err := uc.SetDifficulty(context.Background(), game.Hard)
	require.NoError(t, err)
	assert.Equal(t, game.Hard, snap.Difficulty)
	assert.Equal(t, game.Human, snap.Turn)
	assert.Equal(t, "game-1", snap.GameID)
	assert.Equal(t, 1, mover.homes)
	require.Len(t, pub.snaps, 1)
	assert.Equal(t, snap, pub.snaps[0])

	_, err = uc.SetDifficulty(context.Background(), game.Difficulty("MEDIUM"))
	assert.ErrorIs(t, err, errs.ErrUnknownDifficulty)
	assert.Equal(t, game.Hard, uc.Snapshot().Difficulty)
	assert.Equal(t, 1, mover.homes)
}

func TestHumanMoveBeforeDifficulty(t *testing.T) {
	uc := newTestUseCase(&fakeMover{}, hardSelector())
	_, err := uc.HumanMove(context.Background(), 0)
	assert.ErrorIs(t, err, errs.ErrIllegalMove)
	assert.Equal(t, game.Board{}, uc.Snapshot().Board)
}

func TestHumanMoveTriggersOpponent(t *testing.T) {
	mover := &fakeMover{}
	pub := &fakePublisher{}
	uc := newTestUseCase(mover, hardSelector()).WithPublisher(pub)
	_, err := uc.SetDifficulty(context.Background(), game.Hard)
	require.NoError(t, err)

	snap, err := uc.HumanMove(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, game.Human, snap.Board[0])
	assert.Equal(t, game.Opponent, snap.Board[4])
	assert.Equal(t, game.Human, snap.Turn)
	assert.Equal(t, game.None, snap.Winner)
	assert.Equal(t, []int{5}, mover.cells, "cell index 4 is calibration cell 5")

	// setup, mid-turn, end of turn
	require.Len(t, pub.snaps, 3)
	assert.Equal(t, game.Opponent, pub.snaps[1].Turn)
	assert.Equal(t, game.Empty, pub.snaps[1].Board[4])
}

func TestHumanMoveIllegal(t *testing.T) {
	uc := newTestUseCase(&fakeMover{}, hardSelector())
	_, err := uc.SetDifficulty(context.Background(), game.Hard)
	require.NoError(t, err)
	before, err := uc.HumanMove(context.Background(), 0)
	require.NoError(t, err)

	for _, index := range []int{0, 4, -1, 9, 100} {
		snap, err := uc.HumanMove(context.Background(), index)
		assert.ErrorIs(t, err, errs.ErrIllegalMove, "index %d", index)
		assert.ErrorIs(t, err, errs.ErrInvalidMove, "index %d", index)
		assert.Equal(t, before, snap)
		assert.Equal(t, before, uc.Snapshot())
	}
}

func TestOpponentBlocksImmediateThreat(t *testing.T) {
	mover := &fakeMover{}
	uc := newTestUseCase(mover, hardSelector())
	ctx := context.Background()
	_, err := uc.SetDifficulty(ctx, game.Hard)
	require.NoError(t, err)

	_, err = uc.HumanMove(ctx, 0) // O takes centre
	require.NoError(t, err)
	snap, err := uc.HumanMove(ctx, 1) // threatens 0,1,2
	require.NoError(t, err)
	assert.Equal(t, game.Opponent, snap.Board[2])
}

func TestFullGameTerminates(t *testing.T) {
	archive := &fakeArchive{}
	uc := newTestUseCase(&fakeMover{}, hardSelector()).WithArchive(archive)
	ctx := context.Background()
	_, err := uc.SetDifficulty(ctx, game.Hard)
	require.NoError(t, err)

	var snap game.Snapshot
	placements := 0
	for !snap.Winner.Decided() {
		empties := uc.Snapshot().Board.Empties()
		require.NotEmpty(t, empties)
		snap, err = uc.HumanMove(ctx, empties[0])
		require.NoError(t, err)
		placements = snap.Board.Count(game.Human) + snap.Board.Count(game.Opponent)
		require.LessOrEqual(t, placements, game.Cells)
	}

	assert.Contains(t, []game.Outcome{game.HumanWon, game.OpponentWon, game.Draw}, snap.Winner)
	assert.Equal(t, snap.Board.Winner(), snap.Winner)

	_, err = uc.HumanMove(ctx, 0)
	assert.ErrorIs(t, err, errs.ErrIllegalMove)

	require.Len(t, archive.records, 1)
	rec := archive.records[0]
	assert.Equal(t, "game-1", rec.ID)
	assert.Equal(t, snap.Winner, rec.Outcome)
	assert.Equal(t, snap.Board, rec.Board)
	assert.Len(t, rec.Moves, placements)
}

func TestHumanWinStopsOpponent(t *testing.T) {
	mover := &fakeMover{}
	archive := &fakeArchive{}
	// the scripted opponent ignores the threat on the top row
	sel := &scriptedSelector{answers: []int{3, 4}, next: hardSelector()}
	uc := newTestUseCase(mover, sel).WithArchive(archive)
	ctx := context.Background()
	_, err := uc.SetDifficulty(ctx, game.Easy)
	require.NoError(t, err)

	_, err = uc.HumanMove(ctx, 0)
	require.NoError(t, err)
	_, err = uc.HumanMove(ctx, 1)
	require.NoError(t, err)
	snap, err := uc.HumanMove(ctx, 2)
	require.NoError(t, err)

	assert.Equal(t, game.HumanWon, snap.Winner)
	assert.Equal(t, game.Human, snap.Turn)
	assert.Equal(t, []int{4, 5}, mover.cells)
	require.Len(t, archive.records, 1)
	assert.Equal(t, game.Easy, archive.records[0].Difficulty)

	_, err = uc.HumanMove(ctx, 8)
	assert.ErrorIs(t, err, errs.ErrIllegalMove)
}

func TestOpponentWin(t *testing.T) {
	sel := &scriptedSelector{answers: []int{3, 4, 5}, next: hardSelector()}
	uc := newTestUseCase(&fakeMover{}, sel)
	ctx := context.Background()
	_, err := uc.SetDifficulty(ctx, game.Easy)
	require.NoError(t, err)

	for _, i := range []int{0, 1} {
		_, err = uc.HumanMove(ctx, i)
		require.NoError(t, err)
	}
	snap, err := uc.HumanMove(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, game.OpponentWon, snap.Winner)
}

func TestReset(t *testing.T) {
	mover := &fakeMover{}
	uc := newTestUseCase(mover, hardSelector())
	ctx := context.Background()
	_, err := uc.SetDifficulty(ctx, game.Hard)
	require.NoError(t, err)
	_, err = uc.HumanMove(ctx, 0)
	require.NoError(t, err)

	snap := uc.Reset(ctx)
	assert.Equal(t, game.Board{}, snap.Board)
	assert.Equal(t, game.None, snap.Winner)
	assert.Equal(t, game.Human, snap.Turn)
	assert.Equal(t, game.Unset, snap.Difficulty)
	assert.Empty(t, snap.GameID)
	assert.Equal(t, 2, mover.homes)

	_, err = uc.HumanMove(ctx, 0)
	assert.ErrorIs(t, err, errs.ErrIllegalMove)
}

func TestDegradedMotion(t *testing.T) {
	ctx := context.Background()
	play := func(mover *fakeMover) []game.Snapshot {
		uc := newTestUseCase(mover, hardSelector())
		var snaps []game.Snapshot
		snap, err := uc.SetDifficulty(ctx, game.Hard)
		require.NoError(t, err)
		snaps = append(snaps, snap)
		for _, i := range []int{0, 1, 6} {
			snap, err = uc.HumanMove(ctx, i)
			require.NoError(t, err)
			snaps = append(snaps, snap)
		}
		snaps = append(snaps, uc.Reset(ctx))
		return snaps
	}

	healthy := play(&fakeMover{})
	unplugged := play(&fakeMover{err: errs.ErrLinkUnavailable})
	broken := play(&fakeMover{err: errors.New("boom")})

	assert.Equal(t, healthy, unplugged)
	assert.Equal(t, healthy, broken)
}

func TestPublishAndArchiveFailuresAreAbsorbed(t *testing.T) {
	pub := &fakePublisher{err: errors.New("redis down")}
	archive := &fakeArchive{err: errors.New("mongo down")}
	sel := &scriptedSelector{answers: []int{3, 4}, next: hardSelector()}
	uc := newTestUseCase(&fakeMover{}, sel).WithPublisher(pub).WithArchive(archive)
	ctx := context.Background()

	_, err := uc.SetDifficulty(ctx, game.Hard)
	require.NoError(t, err)
	for _, i := range []int{0, 1, 2} {
		_, err = uc.HumanMove(ctx, i)
		require.NoError(t, err)
	}
	assert.Equal(t, game.HumanWon, uc.Snapshot().Winner)
	assert.Len(t, archive.records, 1)
}

func TestSnapshotWhileArmMoves(t *testing.T) {
	mover := &blockingMover{started: make(chan struct{}), release: make(chan struct{})}
	uc := newTestUseCase(mover, hardSelector())
	ctx := context.Background()
	_, err := uc.SetDifficulty(ctx, game.Hard)
	require.NoError(t, err)

	done := make(chan game.Snapshot)
	go func() {
		snap, _ := uc.HumanMove(ctx, 0)
		done <- snap
	}()

	<-mover.started
	mid := uc.Snapshot()
	assert.Equal(t, game.Opponent, mid.Turn)
	assert.Equal(t, game.Human, mid.Board[0])

	close(mover.release)
	final := <-done
	assert.Equal(t, game.Human, final.Turn)
	assert.Equal(t, game.Opponent, final.Board[4])
}

type blockingMover struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingMover) MoveToCell(context.Context, int) error {
	close(b.started)
	<-b.release
	return nil
}

func (b *blockingMover) Home(context.Context) error { return nil }

func TestConcurrentMovesAreSerialized(t *testing.T) {
	uc := newTestUseCase(&fakeMover{}, hardSelector())
	ctx := context.Background()
	_, err := uc.SetDifficulty(ctx, game.Hard)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for n := 0; n < 2; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, results[n] = uc.HumanMove(ctx, 0)
		}(n)
	}
	wg.Wait()

	failures := 0
	for _, err := range results {
		if err != nil {
			assert.ErrorIs(t, err, errs.ErrIllegalMove)
			failures++
		}
	}
	assert.Equal(t, 1, failures)
	snap := uc.Snapshot()
	assert.Equal(t, 1, snap.Board.Count(game.Human))
	assert.Equal(t, 1, snap.Board.Count(game.Opponent))
}

type fakeStore struct {
	saved []game.SavedGame
}

func (f *fakeStore) Save(_ context.Context, saved game.SavedGame) error {
	f.saved = append(f.saved, saved)
	return nil
}

func playedMoves(at time.Time, indexes ...int) []game.Move {
	moves := make([]game.Move, len(indexes))
	for i, idx := range indexes {
		mark := game.Human
		if i%2 == 1 {
			mark = game.Opponent
		}
		moves[i] = game.Move{Mark: mark, Index: idx, At: at}
	}
	return moves
}

func TestStoreReceivesHistory(t *testing.T) {
	store := &fakeStore{}
	uc := newTestUseCase(&fakeMover{}, hardSelector()).WithStore(store)

	_, err := uc.SetDifficulty(context.Background(), game.Hard)
	require.NoError(t, err)
	_, err = uc.HumanMove(context.Background(), 0)
	require.NoError(t, err)

	last := store.saved[len(store.saved)-1]
	assert.Equal(t, uc.Snapshot(), last.Snapshot)
	assert.Len(t, last.Moves, 2)
	assert.Equal(t, uc.now(), last.StartedAt)
}

func TestRestore(t *testing.T) {
	uc := newTestUseCase(&fakeMover{}, hardSelector())
	started := time.Date(2026, 10, 19, 11, 0, 0, 0, time.UTC)

	good := game.SavedGame{
		Snapshot: game.Snapshot{
			GameID:     "abc",
			Board:      game.Board{game.Human, "", "", "", game.Opponent},
			Turn:       game.Human,
			Difficulty: game.Hard,
		},
		Moves:     playedMoves(started, 0, 4),
		StartedAt: started,
	}
	require.NoError(t, uc.Restore(good))
	assert.Equal(t, good.Snapshot, uc.Snapshot())

	snap, err := uc.HumanMove(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, game.Opponent, snap.Board[2])

	snapshot := func(b game.Board, turn game.Mark, d game.Difficulty) game.Snapshot {
		return game.Snapshot{Board: b, Turn: turn, Difficulty: d}
	}
	bad := []game.SavedGame{
		{Snapshot: snapshot(game.Board{game.Human}, game.Human, game.Hard), Moves: playedMoves(started, 0), StartedAt: started},
		{Snapshot: snapshot(game.Board{}, game.Opponent, game.Hard), StartedAt: started},
		{Snapshot: snapshot(game.Board{game.Human, game.Human, game.Human, game.Opponent, game.Opponent}, game.Human, game.Hard), StartedAt: started},
		{Snapshot: snapshot(game.Board{game.Human, game.Opponent}, game.Human, game.Unset)},
		{Snapshot: snapshot(game.Board{"Z"}, game.Human, game.Hard), StartedAt: started},
		// history missing
		{Snapshot: snapshot(game.Board{game.Human, "", "", "", game.Opponent}, game.Human, game.Hard), StartedAt: started},
		// history disagrees with board
		{Snapshot: snapshot(game.Board{game.Human, "", "", "", game.Opponent}, game.Human, game.Hard), Moves: playedMoves(started, 4, 0), StartedAt: started},
		// no start time
		{Snapshot: snapshot(game.Board{game.Human, "", "", "", game.Opponent}, game.Human, game.Hard), Moves: playedMoves(started, 0, 4)},
	}
	for i, s := range bad {
		assert.Error(t, uc.Restore(s), "case %d", i)
	}
}

func TestRestoredGameArchivesFullHistory(t *testing.T) {
	archive := &fakeArchive{}
	uc := newTestUseCase(&fakeMover{}, hardSelector()).WithArchive(archive)
	started := time.Date(2026, 10, 19, 11, 0, 0, 0, time.UTC)

	require.NoError(t, uc.Restore(game.SavedGame{
		Snapshot: game.Snapshot{
			GameID:     "resumed",
			Board:      game.Board{game.Human, game.Human, "", game.Opponent, game.Opponent},
			Turn:       game.Human,
			Difficulty: game.Easy,
		},
		Moves:     playedMoves(started, 0, 3, 1, 4),
		StartedAt: started,
	}))

	snap, err := uc.HumanMove(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, game.HumanWon, snap.Winner)

	require.Len(t, archive.records, 1)
	rec := archive.records[0]
	assert.Equal(t, "resumed", rec.ID)
	assert.Equal(t, started, rec.StartedAt)
	require.Len(t, rec.Moves, 5)
	assert.Equal(t, rec.Board.Count(game.Human)+rec.Board.Count(game.Opponent), len(rec.Moves))
	assert.Equal(t, game.Move{Mark: game.Human, Index: 2, At: uc.now()}, rec.Moves[4])
}
