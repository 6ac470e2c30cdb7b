// pkg/fuse/fuse.go

package fuse

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"syscall"
	"time"

	"ChunkFS/pkg/utils"
	"ChunkFS/pkg/vfs"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/sirupsen/logrus"
)

var logger = utils.GetLogger("chunkfs")

// rootNode is the mounted directory holding the device and its control files.
type rootNode struct {
	fs.Inode
	dev   *vfs.Device
	mtime time.Time
}

var _ = (fs.NodeOnAdder)((*rootNode)(nil))
var _ = (fs.NodeGetattrer)((*rootNode)(nil))

func (r *rootNode) OnAdd(ctx context.Context) {
	dev := &deviceNode{dev: r.dev, mtime: r.mtime}
	r.AddChild(r.dev.Name(), r.NewPersistentInode(ctx, dev, fs.StableAttr{Mode: syscall.S_IFREG, Ino: deviceIno}), false)
	st := &statsNode{dev: r.dev}
	r.AddChild(statsName, r.NewPersistentInode(ctx, st, fs.StableAttr{Mode: syscall.S_IFREG, Ino: statsIno}), false)
	al := &accessLogNode{dev: r.dev}
	r.AddChild(accessLogName, r.NewPersistentInode(ctx, al, fs.StableAttr{Mode: syscall.S_IFREG, Ino: accessLogIno}), false)
}

func (r *rootNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	attrToStat(rootIno, syscall.S_IFDIR|0755, 4096, r.mtime, &out.Attr)
	return 0
}

// deviceNode is the device file. Every open is a session of the device.
type deviceNode struct {
	fs.Inode
	dev *vfs.Device

	sync.Mutex
	mtime time.Time
}

var _ = (fs.NodeOpener)((*deviceNode)(nil))
var _ = (fs.NodeGetattrer)((*deviceNode)(nil))
var _ = (fs.NodeSetattrer)((*deviceNode)(nil))

func (n *deviceNode) touch() {
	n.Lock()
	n.mtime = time.Now()
	n.Unlock()
}

func (n *deviceNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	n.Lock()
	mtime := n.mtime
	n.Unlock()
	attrToStat(deviceIno, syscall.S_IFREG|0666, uint64(n.dev.Length()), mtime, &out.Attr)
	return 0
}

// Setattr only supports shrinking the device, other attributes are ignored.
func (n *deviceNode) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if size, ok := in.GetSize(); ok {
		c := newContext(ctx)
		defer releaseContext(c)
		if err := n.dev.Truncate(c, int64(size)); err != nil {
			return errno(err)
		}
		n.touch()
	}
	return n.Getattr(ctx, f, out)
}

func (n *deviceNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	c := newContext(ctx)
	defer releaseContext(c)
	mode, appending := openMode(flags)
	s, err := n.dev.Open(c, mode, appending)
	if err != nil {
		logger.Warnf("open %s: %s", n.dev.Name(), err)
		return nil, 0, errno(err)
	}
	if s.State() == vfs.WriteTruncate {
		n.touch()
	}
	return &sessionHandle{node: n, s: s}, fuse.FOPEN_DIRECT_IO, 0
}

// sessionHandle is the file handle of an open of the device.
type sessionHandle struct {
	node *deviceNode
	s    *vfs.Session
}

var _ = (fs.FileReader)((*sessionHandle)(nil))
var _ = (fs.FileWriter)((*sessionHandle)(nil))
var _ = (fs.FileReleaser)((*sessionHandle)(nil))

func (h *sessionHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	c := newContext(ctx)
	defer releaseContext(c)
	n, err := h.node.dev.ReadFull(c, h.s, dest, off)
	if err != nil {
		return nil, errno(err)
	}
	return fuse.ReadResultData(dest[:n]), 0
}

func (h *sessionHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	c := newContext(ctx)
	defer releaseContext(c)
	if h.s.State() == vfs.WriteAppend {
		// the kernel offset may be stale when another session grew the device
		off = h.node.dev.Length()
	}
	n, err := h.node.dev.WriteFull(c, h.s, off, data)
	if n > 0 {
		h.node.touch()
	}
	if err != nil && n == 0 {
		return 0, errno(err)
	}
	return uint32(n), 0
}

func (h *sessionHandle) Release(ctx context.Context) syscall.Errno {
	c := newContext(ctx)
	defer releaseContext(c)
	h.node.dev.Close(c, h.s)
	return 0
}

// statsNode renders a JSON snapshot of the device at open.
type statsNode struct {
	fs.Inode
	dev *vfs.Device
}

var _ = (fs.NodeOpener)((*statsNode)(nil))
var _ = (fs.NodeGetattrer)((*statsNode)(nil))

func (n *statsNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	attrToStat(statsIno, syscall.S_IFREG|0444, 0, time.Now(), &out.Attr)
	return 0
}

func (n *statsNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if int(flags)&syscall.O_ACCMODE != syscall.O_RDONLY {
		return nil, 0, syscall.EACCES
	}
	data, err := json.MarshalIndent(n.dev.Stats(), "", "  ")
	if err != nil {
		logger.Errorf("stats: %s", err)
		return nil, 0, syscall.EIO
	}
	return &bytesHandle{data: append(data, '\n')}, fuse.FOPEN_DIRECT_IO, 0
}

type bytesHandle struct {
	data []byte
}

var _ = (fs.FileReader)((*bytesHandle)(nil))

func (h *bytesHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	if off >= int64(len(h.data)) {
		return fuse.ReadResultData(nil), 0
	}
	n := copy(dest, h.data[off:])
	return fuse.ReadResultData(dest[:n]), 0
}

// accessLogNode streams the access log of the device to every reader.
type accessLogNode struct {
	fs.Inode
	dev *vfs.Device
}

var _ = (fs.NodeOpener)((*accessLogNode)(nil))
var _ = (fs.NodeGetattrer)((*accessLogNode)(nil))

func (n *accessLogNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	attrToStat(accessLogIno, syscall.S_IFREG|0400, 0, time.Now(), &out.Attr)
	return 0
}

func (n *accessLogNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if int(flags)&syscall.O_ACCMODE != syscall.O_RDONLY {
		return nil, 0, syscall.EACCES
	}
	return &accessLogHandle{dev: n.dev, fh: n.dev.OpenAccessLog()}, fuse.FOPEN_DIRECT_IO, 0
}

type accessLogHandle struct {
	dev *vfs.Device
	fh  uint64
}

var _ = (fs.FileReader)((*accessLogHandle)(nil))
var _ = (fs.FileReleaser)((*accessLogHandle)(nil))

func (h *accessLogHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n := h.dev.ReadAccessLog(h.fh, dest)
	return fuse.ReadResultData(dest[:n]), 0
}

func (h *accessLogHandle) Release(ctx context.Context) syscall.Errno {
	h.dev.CloseAccessLog(h.fh)
	return 0
}

// Options for mounting a device.
type Options struct {
	FsName       string
	Options      string // extra mount options separated by commas
	AttrTimeout  float64
	EntryTimeout float64
	AllowOther   bool
	Debug        bool
}

func mountOptions(dev *vfs.Device, opt Options) *fs.Options {
	attrTimeout := time.Duration(opt.AttrTimeout * float64(time.Second))
	entryTimeout := time.Duration(opt.EntryTimeout * float64(time.Second))
	o := &fs.Options{
		AttrTimeout:  &attrTimeout,
		EntryTimeout: &entryTimeout,
	}
	o.FsName = opt.FsName
	o.Name = "chunkfs"
	o.Debug = opt.Debug
	o.AllowOther = opt.AllowOther
	o.DisableXAttrs = true
	o.Logger = utils.GetStdLogger(logger, logrus.DebugLevel)
	for _, n := range strings.Split(opt.Options, ",") {
		n = strings.TrimSpace(n)
		switch {
		case n == "":
		case n == "allow_other":
			o.AllowOther = true
		case n == "debug":
			o.Debug = true
		case strings.HasPrefix(n, "fsname="):
			o.FsName = n[len("fsname="):]
		default:
			o.Options = append(o.Options, n)
		}
	}
	if o.FsName == "" {
		o.FsName = "chunkfs:" + dev.Name()
	}
	return o
}

// Serve mounts dev at mountpoint and blocks until it is unmounted. The
// device is shut down afterwards.
func Serve(dev *vfs.Device, mountpoint string, opt Options) error {
	root := &rootNode{dev: dev, mtime: time.Now()}
	server, err := fs.Mount(mountpoint, root, mountOptions(dev, opt))
	if err != nil {
		return err
	}
	logger.Infof("Device %s is mounted at %s", dev.Name(), mountpoint)
	server.Wait()
	logger.Infof("%s is unmounted", mountpoint)
	dev.Shutdown()
	return nil
}
