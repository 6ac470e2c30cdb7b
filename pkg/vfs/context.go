// pkg/vfs/context.go

package vfs

import (
	"context"
	"time"
)

// Context carries the caller of a device operation.
type Context interface {
	context.Context
	Uid() uint32
	Gid() uint32
	Pid() uint32
	Duration() time.Duration
}

type myContext struct {
	context.Context
	start time.Time
	pid   uint32
	uid   uint32
	gid   uint32
}

func (c *myContext) Uid() uint32 {
	return c.uid
}
func (c *myContext) Gid() uint32 {
	return c.gid
}
func (c *myContext) Pid() uint32 {
	return c.pid
}
func (c *myContext) Duration() time.Duration {
	return time.Since(c.start)
}

// NewContext returns a Context for an in-process caller.
func NewContext(pid, uid, gid uint32) Context {
	return &myContext{context.Background(), time.Now(), pid, uid, gid}
}

type emptyContext struct {
	context.Context
}

func (emptyContext) Uid() uint32             { return 0 }
func (emptyContext) Gid() uint32             { return 0 }
func (emptyContext) Pid() uint32             { return 0 }
func (emptyContext) Duration() time.Duration { return 0 }

// Background is the context of operations issued by the process itself.
var Background Context = emptyContext{context.Background()}
