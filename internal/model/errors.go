package model

import "errors"

var (
	ErrArtifactMissing = errors.New("model artifact not found")
	ErrClosed          = errors.New("model is closed")
	ErrScoreCount      = errors.New("score count does not match label table")
	ErrNoValidScore    = errors.New("model returned no finite score")
)
