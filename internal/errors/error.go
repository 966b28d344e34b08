package errors

import "errors"

var (
	ErrConfig            = errors.New("calibration config is invalid")
	ErrLinkUnavailable   = errors.New("actuator link is not available")
	ErrIllegalMove       = errors.New("illegal move")
	ErrInvalidMove       = errors.New("invalid move")
	ErrUncalibratedCell  = errors.New("cell is not calibrated")
	ErrUnknownDifficulty = errors.New("unknown difficulty")
	ErrGameNotFound      = errors.New("game not found")
	ErrArchiveDisabled   = errors.New("game archive is disabled")
)
