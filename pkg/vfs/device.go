// pkg/vfs/device.go

package vfs

import (
	"sync"
	"sync/atomic"
	"time"

	"ChunkFS/pkg/chunk"
	"ChunkFS/pkg/store"
	"ChunkFS/pkg/utils"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var logger = utils.GetLogger("chunkfs")

var (
	// ErrSessionClosed is returned for I/O on a session that was closed.
	ErrSessionClosed = errors.New("vfs: session is closed")
	// ErrShutdown is returned once the device has been torn down.
	ErrShutdown = errors.New("vfs: device is shut down")
)

// Device exposes one chunk store as a byte stream shared by every session.
type Device struct {
	conf   Config
	id     string
	start  time.Time
	arena  *chunk.Arena
	store  *store.Store
	engine *store.Engine
	bw     *bwlimit
	log    *accessLog

	mu       sync.Mutex
	sessions map[uint64]*Session
	nextSid  uint64
	opened   int64
	shutdown atomic.Bool
}

// NewDevice creates an empty device. t moves bytes between chunks and callers,
// nil copies directly.
func NewDevice(conf Config, t store.Transfer) *Device {
	conf.Check()
	a := chunk.NewArena(conf.chunkConfig())
	s := store.New(a, conf.storeConfig())
	d := &Device{
		conf:     conf,
		id:       uuid.New().String(),
		start:    time.Now(),
		arena:    a,
		store:    s,
		engine:   store.NewEngine(s, t),
		bw:       newLimiter(conf.ReadLimit, conf.WriteLimit),
		log:      newAccessLog(),
		sessions: make(map[uint64]*Session),
	}
	logger.Infof("Device %s ready: quantum %d, qset %d", conf.Name, conf.Quantum, conf.Qset)
	return d
}

func (d *Device) Name() string {
	return d.conf.Name
}

func (d *Device) Config() Config {
	return d.conf
}

// Length returns the number of valid bytes.
func (d *Device) Length() int64 {
	return d.store.Length()
}

// Translate maps off to its place in the segment chain.
func (d *Device) Translate(off int64) store.Address {
	return d.store.Translate(off)
}

// Open starts a session. A write-only open without append drops every byte
// before returning; an append open starts at the end of data.
func (d *Device) Open(ctx Context, mode AccessMode, appending bool) (*Session, error) {
	if d.shutdown.Load() {
		return nil, ErrShutdown
	}
	state := Resolve(mode, appending)
	var pos int64
	switch state {
	case WriteTruncate:
		if err := d.store.TruncateAt(0); err != nil {
			return nil, err
		}
	case WriteAppend:
		pos = d.store.Length()
	}

	d.mu.Lock()
	d.nextSid++
	s := &Session{id: d.nextSid, dev: d, mode: mode, state: state, pos: pos}
	d.sessions[s.id] = s
	d.opened++
	d.mu.Unlock()

	d.log.logit(ctx, "open (%d,%s,%s): %d", s.id, mode, state, pos)
	return s, nil
}

// Close ends a session and frees the chunks left behind by truncations,
// including those of earlier sessions. Closing again does nothing.
func (d *Device) Close(ctx Context, s *Session) {
	s.Lock()
	if s.closed {
		s.Unlock()
		return
	}
	s.closed = true
	s.Unlock()

	d.mu.Lock()
	delete(d.sessions, s.id)
	d.mu.Unlock()

	freed := d.store.Reclaim()
	d.log.logit(ctx, "release (%d): %d chunks freed", s.id, freed)
}

// Read returns up to max valid bytes at off from a single chunk. An empty
// result means end of data.
func (d *Device) Read(ctx Context, s *Session, off int64, max int) ([]byte, error) {
	buf := make([]byte, max)
	n, err := d.ReadAt(ctx, s, buf, off)
	return buf[:n], err
}

// ReadAt reads from a single chunk into dst and moves the cursor past the
// bytes read.
func (d *Device) ReadAt(ctx Context, s *Session, dst []byte, off int64) (int, error) {
	if s.isClosed() {
		return 0, ErrSessionClosed
	}
	n, err := d.engine.ReadAt(dst, off)
	d.log.logit(ctx, "read (%d,%d,%d): %s (%d)", s.id, off, len(dst), errStr(err), n)
	if err != nil {
		return 0, err
	}
	d.bw.waitRead(n)
	s.advance(off, n)
	return n, nil
}

// ReadFull reads until dst is full or the end of data is reached.
func (d *Device) ReadFull(ctx Context, s *Session, dst []byte, off int64) (int, error) {
	if s.isClosed() {
		return 0, ErrSessionClosed
	}
	n, err := d.engine.ReadFull(dst, off)
	d.log.logit(ctx, "read (%d,%d,%d): %s (%d)", s.id, off, len(dst), errStr(err), n)
	if err != nil {
		return n, err
	}
	d.bw.waitRead(n)
	s.advance(off, n)
	return n, nil
}

// Write writes data at off into a single chunk and moves the cursor past the
// bytes written. It returns how many bytes of data were taken.
func (d *Device) Write(ctx Context, s *Session, off int64, data []byte) (int, error) {
	if s.isClosed() {
		return 0, ErrSessionClosed
	}
	d.bw.waitWrite(len(data))
	n, err := d.engine.WriteAt(data, off)
	d.log.logit(ctx, "write (%d,%d,%d): %s (%d)", s.id, off, len(data), errStr(err), n)
	if err != nil {
		return 0, err
	}
	s.advance(off, n)
	return n, nil
}

// WriteFull writes all of data at off, chunk by chunk.
func (d *Device) WriteFull(ctx Context, s *Session, off int64, data []byte) (int, error) {
	if s.isClosed() {
		return 0, ErrSessionClosed
	}
	d.bw.waitWrite(len(data))
	n, err := d.engine.WriteFull(data, off)
	d.log.logit(ctx, "write (%d,%d,%d): %s (%d)", s.id, off, len(data), errStr(err), n)
	if n > 0 {
		s.advance(off, n)
	}
	return n, err
}

// Truncate shrinks the data to length, the dropped chunks are freed when a
// session closes.
func (d *Device) Truncate(ctx Context, length int64) error {
	err := d.store.TruncateAt(length)
	d.log.logit(ctx, "truncate (%d): %s", length, errStr(err))
	return err
}

// OpenAccessLog registers a reader of the access log.
func (d *Device) OpenAccessLog() uint64 {
	return d.log.open()
}

// ReadAccessLog copies pending access log lines into buf.
func (d *Device) ReadAccessLog(fh uint64, buf []byte) int {
	return d.log.read(fh, buf, time.Second)
}

func (d *Device) CloseAccessLog(fh uint64) {
	d.log.close(fh)
}

// Shutdown frees all memory of the device. Sessions still open are closed.
func (d *Device) Shutdown() {
	if !d.shutdown.CompareAndSwap(false, true) {
		return
	}
	d.mu.Lock()
	open := make([]*Session, 0, len(d.sessions))
	for _, s := range d.sessions {
		open = append(open, s)
	}
	d.mu.Unlock()
	for _, s := range open {
		d.Close(Background, s)
	}
	freed := d.store.Close()
	d.arena.Close()
	logger.Infof("Device %s removed, %d chunks freed", d.conf.Name, freed)
}

func errStr(err error) string {
	if err == nil {
		return "OK"
	}
	return err.Error()
}

// Stats is a snapshot of the device.
type Stats struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Uptime   string         `json:"uptime"`
	Sessions int            `json:"sessions"`
	Opened   int64          `json:"opened"`
	Store    store.Stats    `json:"store"`
	Chunks   chunk.Stats    `json:"chunks"`
	IO       store.Counters `json:"io"`
	Utime    float64        `json:"utime"`
	Stime    float64        `json:"stime"`
	MaxRSS   int64          `json:"maxRSS"`
}

func (d *Device) Stats() Stats {
	d.mu.Lock()
	sessions, opened := len(d.sessions), d.opened
	d.mu.Unlock()
	ru := utils.GetRusage()
	return Stats{
		ID:       d.id,
		Name:     d.conf.Name,
		Uptime:   time.Since(d.start).Truncate(time.Second).String(),
		Sessions: sessions,
		Opened:   opened,
		Store:    d.store.Stats(),
		Chunks:   d.arena.Stats(),
		IO:       d.engine.Counters(),
		Utime:    ru.GetUtime(),
		Stime:    ru.GetStime(),
		MaxRSS:   ru.MaxRSS(),
	}
}
