// pkg/fuse/utils.go

package fuse

import (
	"syscall"
	"time"

	"ChunkFS/pkg/store"
	"ChunkFS/pkg/vfs"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const (
	rootIno      = 1
	deviceIno    = 2
	statsIno     = 3
	accessLogIno = 4
)

const (
	statsName     = ".stats"
	accessLogName = ".accesslog"
)

// IsSpecialName reports whether name is one of the control files next to the device.
func IsSpecialName(name string) bool {
	return name == statsName || name == accessLogName
}

func attrToStat(ino uint64, mode uint32, size uint64, mtime time.Time, out *fuse.Attr) {
	out.Ino = ino
	out.Mode = mode
	out.Nlink = 1
	if mode&syscall.S_IFDIR != 0 {
		out.Nlink = 2
	}
	out.Uid = uint32(unix.Getuid())
	out.Gid = uint32(unix.Getgid())
	t := uint64(mtime.Unix())
	ns := uint32(mtime.Nanosecond())
	out.Atime, out.Atimensec = t, ns
	out.Mtime, out.Mtimensec = t, ns
	out.Ctime, out.Ctimensec = t, ns
	out.Size = size
	out.Blocks = (size + 511) / 512
	setBlksize(out, 0x10000)
}

// openMode decodes the access mode and the append flag of an open.
func openMode(flags uint32) (vfs.AccessMode, bool) {
	appending := flags&unix.O_APPEND != 0
	switch int(flags) & unix.O_ACCMODE {
	case unix.O_WRONLY:
		return vfs.WriteOnly, appending
	case unix.O_RDWR:
		return vfs.ReadWrite, appending
	default:
		return vfs.ReadOnly, appending
	}
}

// errno maps device errors to the codes returned to the kernel.
func errno(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, store.ErrAllocationFailure):
		return syscall.ENOSPC
	case errors.Is(err, store.ErrCopyFault):
		return syscall.EFAULT
	case errors.Is(err, store.ErrInvalidLength), errors.Is(err, store.ErrInvalidOffset):
		return syscall.EINVAL
	case errors.Is(err, vfs.ErrSessionClosed):
		return syscall.EBADF
	}
	return syscall.EIO
}
