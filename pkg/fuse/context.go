// pkg/fuse/context.go

package fuse

import (
	"context"
	"sync"
	"time"

	"ChunkFS/pkg/vfs"

	"github.com/hanwen/go-fuse/v2/fuse"
)

// Context is an alias to vfs.Context
type Context = vfs.Context

type fuseContext struct {
	context.Context
	start  time.Time
	caller fuse.Caller
}

var contextPool = sync.Pool{
	New: func() interface{} {
		return &fuseContext{}
	},
}

// newContext wraps the request context and picks up the calling process.
func newContext(ctx context.Context) *fuseContext {
	c := contextPool.Get().(*fuseContext)
	c.Context = ctx
	c.start = time.Now()
	c.caller = fuse.Caller{}
	if caller, ok := fuse.FromContext(ctx); ok {
		c.caller = *caller
	}
	return c
}

func releaseContext(ctx *fuseContext) {
	ctx.Context = nil
	contextPool.Put(ctx)
}

func (c *fuseContext) Uid() uint32 {
	return c.caller.Uid
}

func (c *fuseContext) Gid() uint32 {
	return c.caller.Gid
}

func (c *fuseContext) Pid() uint32 {
	return c.caller.Pid
}

func (c *fuseContext) Duration() time.Duration {
	return time.Since(c.start)
}
