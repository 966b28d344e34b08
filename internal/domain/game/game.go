package game

import (
	"encoding/json"
	"fmt"
	"time"

	errs "tictacarm/internal/errors"
)

// Outcome is the result of a game; None while it is still undecided.
type Outcome string

const (
	None        Outcome = ""
	HumanWon    Outcome = "X"
	OpponentWon Outcome = "O"
	Draw        Outcome = "Draw"
)

func (o Outcome) Decided() bool { return o != None }

func (o Outcome) MarshalJSON() ([]byte, error) {
	return marshalNullable(string(o))
}

func (o *Outcome) UnmarshalJSON(data []byte) error {
	s, err := unmarshalNullable(data)
	*o = Outcome(s)
	return err
}

type Difficulty string

const (
	Unset Difficulty = ""
	Easy  Difficulty = "EASY"
	Hard  Difficulty = "HARD"
)

// ParseDifficulty accepts exactly the two wire literals.
func ParseDifficulty(s string) (Difficulty, error) {
	switch Difficulty(s) {
	case Easy:
		return Easy, nil
	case Hard:
		return Hard, nil
	}
	return Unset, fmt.Errorf("%w: %q", errs.ErrUnknownDifficulty, s)
}

func (d Difficulty) MarshalJSON() ([]byte, error) {
	return marshalNullable(string(d))
}

func (d *Difficulty) UnmarshalJSON(data []byte) error {
	s, err := unmarshalNullable(data)
	*d = Difficulty(s)
	return err
}

// Snapshot is the externally visible game state.
type Snapshot struct {
	GameID     string     `json:"game_id,omitempty"`
	Board      Board      `json:"board"`
	Winner     Outcome    `json:"winner"`
	Turn       Mark       `json:"turn"`
	Difficulty Difficulty `json:"difficulty"`
}

// Record is a finished game as stored in the archive.
type Record struct {
	ID         string     `json:"id" bson:"_id"`
	Difficulty Difficulty `json:"difficulty" bson:"difficulty"`
	Outcome    Outcome    `json:"outcome" bson:"outcome"`
	Board      Board      `json:"board" bson:"board"`
	Moves      []Move     `json:"moves" bson:"moves"`
	StartedAt  time.Time  `json:"started_at" bson:"started_at"`
	FinishedAt time.Time  `json:"finished_at" bson:"finished_at"`
}

// SavedGame is the live game with its history, cached so a restarted
// process can resume it and still archive a complete record.
type SavedGame struct {
	Snapshot
	Moves     []Move    `json:"moves"`
	StartedAt time.Time `json:"started_at"`
}

func marshalNullable(s string) ([]byte, error) {
	if s == "" {
		return []byte("null"), nil
	}
	return json.Marshal(s)
}

func unmarshalNullable(data []byte) (string, error) {
	if string(data) == "null" {
		return "", nil
	}
	var s string
	err := json.Unmarshal(data, &s)
	return s, err
}
