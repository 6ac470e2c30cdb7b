// pkg/vfs/bwlimit.go

package vfs

import (
	"github.com/juju/ratelimit"
)

// bwlimit throttles the bytes moved through the device.
type bwlimit struct {
	readLimit  *ratelimit.Bucket
	writeLimit *ratelimit.Bucket
}

func newLimiter(read, write int64) *bwlimit {
	bw := &bwlimit{}
	if read > 0 {
		bw.readLimit = ratelimit.NewBucketWithRate(float64(read), read)
	}
	if write > 0 {
		bw.writeLimit = ratelimit.NewBucketWithRate(float64(write), write)
	}
	return bw
}

// waitRead blocks until n read bytes fit in the read budget.
func (l *bwlimit) waitRead(n int) {
	if l.readLimit != nil && n > 0 {
		l.readLimit.Wait(int64(n))
	}
}

// waitWrite blocks until n bytes may be written.
func (l *bwlimit) waitWrite(n int) {
	if l.writeLimit != nil && n > 0 {
		l.writeLimit.Wait(int64(n))
	}
}
