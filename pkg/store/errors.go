// pkg/store/errors.go

package store

import (
	"ChunkFS/pkg/chunk"

	"github.com/pkg/errors"
)

var (
	// ErrAllocationFailure is returned when a chunk or a segment can not be allocated.
	// The store stays consistent, possibly grown less than requested.
	ErrAllocationFailure = chunk.ErrAllocationFailure
	// ErrCopyFault is returned when moving bytes between a chunk and the caller failed.
	ErrCopyFault = errors.New("store: copy fault")
	// ErrInvalidLength is returned when truncating to a negative length or past the end.
	ErrInvalidLength = errors.New("store: invalid length")
	// ErrInvalidOffset is returned for negative offsets and writes ending past the
	// largest representable offset.
	ErrInvalidOffset = errors.New("store: invalid offset")
	// ErrMissingChunk is returned when a chunk before the tail is not live.
	ErrMissingChunk = errors.Wrap(chunk.ErrInvalidHandle, "store: missing chunk")
	// ErrClosed is returned once the store has been torn down.
	ErrClosed = errors.New("store: closed")
)
