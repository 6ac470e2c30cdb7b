// pkg/vfs/accesslog.go

package vfs

import (
	"fmt"
	"sync"
	"time"

	"ChunkFS/pkg/utils"
)

const slowOperation = time.Second * 10

type logReader struct {
	sync.Mutex
	buffer chan []byte
	last   []byte
}

// accessLog fans every device operation out to the open readers of the
// access log. Lines are dropped for readers that fall behind.
type accessLog struct {
	sync.Mutex
	next    uint64
	readers map[uint64]*logReader
}

func newAccessLog() *accessLog {
	return &accessLog{readers: make(map[uint64]*logReader)}
}

func (a *accessLog) logit(ctx Context, format string, args ...interface{}) {
	used := ctx.Duration()
	a.Lock()
	defer a.Unlock()
	if len(a.readers) == 0 && used < slowOperation {
		return
	}

	cmd := fmt.Sprintf(format, args...)
	ts := utils.Now().Format("2006.01.02 15:04:05.000000")
	cmd += fmt.Sprintf(" <%.6f>", used.Seconds())
	if ctx.Pid() != 0 && used >= slowOperation {
		logger.Infof("slow operation: %s", cmd)
	}
	line := []byte(fmt.Sprintf("%s [uid:%d,gid:%d,pid:%d] %s\n", ts, ctx.Uid(), ctx.Gid(), ctx.Pid(), cmd))

	for _, r := range a.readers {
		select {
		case r.buffer <- line:
		default:
		}
	}
}

func (a *accessLog) open() uint64 {
	a.Lock()
	defer a.Unlock()
	a.next++
	a.readers[a.next] = &logReader{buffer: make(chan []byte, 10240)}
	return a.next
}

func (a *accessLog) close(fh uint64) {
	a.Lock()
	defer a.Unlock()
	delete(a.readers, fh)
}

// read fills buf with pending lines, waiting up to wait for the first one.
// A reader with nothing to say gets "#\n" so that tail -f keeps polling.
func (a *accessLog) read(fh uint64, buf []byte, wait time.Duration) int {
	a.Lock()
	r, ok := a.readers[fh]
	a.Unlock()
	if !ok {
		return 0
	}
	r.Lock()
	defer r.Unlock()
	var n int
	if len(r.last) > 0 {
		n = copy(buf, r.last)
		r.last = r.last[n:]
	}
	var t = time.NewTimer(wait)
	defer t.Stop()
	for n < len(buf) {
		select {
		case line := <-r.buffer:
			l := copy(buf[n:], line)
			n += l
			if l < len(line) {
				r.last = line[l:]
				return n
			}
		case <-t.C:
			if n == 0 {
				n = copy(buf, []byte("#\n"))
			}
			return n
		}
	}
	return n
}
