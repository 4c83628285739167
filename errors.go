package hips

import "errors"

// Errors returned by the engine.
var (
	// ErrClosed is returned when using a closed engine or survey.
	ErrClosed = errors.New("hips: closed")

	// ErrQueueOverflow is returned when a traversal needs more than the
	// capacity of its queue.
	ErrQueueOverflow = errors.New("hips: traversal queue overflow")

	// ErrProperties is the fatal error of a survey whose properties file
	// cannot be fetched or parsed.
	ErrProperties = errors.New("hips: invalid properties")

	// ErrUnknownFormat is returned when no tile factory handles a format.
	ErrUnknownFormat = errors.New("hips: unknown tile format")

	// ErrTileExists is returned by AddManualTile for a tile already cached.
	ErrTileExists = errors.New("hips: tile already cached")

	// ErrNoPainter is returned by Render without a painter.
	ErrNoPainter = errors.New("hips: no painter")

	// ErrNoPayload is returned when a tile factory returns no payload.
	ErrNoPayload = errors.New("hips: tile factory returned no payload")
)
