package track

import "errors"

var (
	ErrInsufficientTrackData = errors.New("insufficient track data")
	ErrEmptySkeleton         = errors.New("skeleton needs at least 2 points")
)
