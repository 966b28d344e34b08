package game

import "time"

type Move struct {
	Mark  Mark      `json:"mark" bson:"mark"`
	Index int       `json:"index" bson:"index"`
	At    time.Time `json:"at" bson:"at"`
}

// @name MoveRequest
type MoveRequest struct {
	Index *int `json:"index"`
}

// @name DifficultyRequest
type DifficultyRequest struct {
	Difficulty string `json:"difficulty"`
}
