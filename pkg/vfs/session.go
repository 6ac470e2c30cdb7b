// pkg/vfs/session.go

package vfs

import (
	"fmt"
	"io"
	"sync"
)

// AccessMode is the access mode a session was opened with.
type AccessMode uint8

const (
	ReadOnly AccessMode = iota
	WriteOnly
	ReadWrite
)

func (m AccessMode) String() string {
	switch m {
	case ReadOnly:
		return "r"
	case WriteOnly:
		return "w"
	case ReadWrite:
		return "rw"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// State is where a session starts, resolved once at open.
type State uint8

const (
	// ReadFromStart starts at offset 0 and leaves the data alone.
	ReadFromStart State = iota
	// WriteTruncate starts at offset 0 after dropping all data.
	WriteTruncate
	// WriteAppend starts at the current end of data.
	WriteAppend
)

func (s State) String() string {
	switch s {
	case ReadFromStart:
		return "read"
	case WriteTruncate:
		return "truncate"
	case WriteAppend:
		return "append"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Resolve maps an access mode and the append flag to the starting state.
// Only write-only opens touch the data; read-write behaves like read-only.
func Resolve(mode AccessMode, appending bool) State {
	if mode != WriteOnly {
		return ReadFromStart
	}
	if appending {
		return WriteAppend
	}
	return WriteTruncate
}

// Session is one open of the device. It keeps a cursor that follows the last
// successful read or write.
type Session struct {
	sync.Mutex
	id     uint64
	dev    *Device
	mode   AccessMode
	state  State
	pos    int64
	closed bool
}

func (s *Session) ID() uint64 {
	return s.id
}

func (s *Session) Mode() AccessMode {
	return s.mode
}

func (s *Session) State() State {
	return s.state
}

// Pos returns the cursor.
func (s *Session) Pos() int64 {
	s.Lock()
	defer s.Unlock()
	return s.pos
}

func (s *Session) advance(off int64, n int) {
	s.Lock()
	s.pos = off + int64(n)
	s.Unlock()
}

func (s *Session) isClosed() bool {
	s.Lock()
	defer s.Unlock()
	return s.closed
}

// Read reads at the cursor, it returns io.EOF at the end of data.
func (s *Session) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := s.dev.ReadAt(Background, s, p, s.Pos())
	if err == nil && n == 0 {
		return 0, io.EOF
	}
	return n, err
}

// Write writes all of p at the cursor.
func (s *Session) Write(p []byte) (int, error) {
	return s.dev.WriteFull(Background, s, s.Pos(), p)
}

// Close ends the session, see Device.Close.
func (s *Session) Close() error {
	s.dev.Close(Background, s)
	return nil
}
