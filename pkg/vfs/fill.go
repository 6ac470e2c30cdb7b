// pkg/vfs/fill.go

package vfs

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

type _block struct {
	off  int64
	data []byte
}

// Fill loads the content of r into the device through a write-only session,
// with concurrent workers writing one segment worth of bytes each. progress,
// if not nil, is called with the number of bytes of every block written.
func (d *Device) Fill(ctx Context, r io.Reader, concurrent int, progress func(n int)) (int64, error) {
	if concurrent <= 0 {
		concurrent = 1
	}
	s, err := d.Open(ctx, WriteOnly, false)
	if err != nil {
		return 0, err
	}
	defer d.Close(ctx, s)

	logger.Debugf("start to fill %s with %d workers", d.conf.Name, concurrent)
	start := time.Now()
	todo := make(chan _block, concurrent*2)
	var written atomic.Int64
	var failed atomic.Pointer[error]
	wg := sync.WaitGroup{}
	for i := 0; i < concurrent; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range todo {
				if failed.Load() != nil {
					continue
				}
				n, err := d.WriteFull(ctx, s, b.off, b.data)
				written.Add(int64(n))
				if err != nil {
					err = errors.Wrapf(err, "fill at %d", b.off)
					failed.CompareAndSwap(nil, &err)
					continue
				}
				if progress != nil {
					progress(n)
				}
			}
		}()
	}

	block := d.conf.Quantum * d.conf.Qset
	var off int64
	var rerr error
	for failed.Load() == nil {
		buf := make([]byte, block)
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			todo <- _block{off, buf[:n]}
			off += int64(n)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			rerr = errors.Wrap(err, "read source")
			break
		}
	}
	close(todo)
	wg.Wait()

	if e := failed.Load(); e != nil {
		return written.Load(), *e
	}
	if rerr != nil {
		return written.Load(), rerr
	}
	logger.Infof("Filled %s with %d bytes in %s", d.conf.Name, written.Load(), time.Since(start))
	return written.Load(), nil
}
