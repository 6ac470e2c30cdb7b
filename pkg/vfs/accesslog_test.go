// pkg/vfs/accesslog_test.go

package vfs

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessLog(t *testing.T) {
	d := newTestDevice(t, Config{Quantum: 4})
	fh := d.OpenAccessLog()
	defer d.CloseAccessLog(fh)

	ctx := NewContext(42, 1000, 100)
	s, err := d.Open(ctx, WriteOnly, false)
	require.NoError(t, err)
	_, err = d.WriteFull(ctx, s, 0, []byte("abc"))
	require.NoError(t, err)
	d.Close(ctx, s)

	buf := make([]byte, 4096)
	n := d.ReadAccessLog(fh, buf)
	lines := strings.Split(strings.TrimSpace(string(buf[:n])), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "[uid:1000,gid:100,pid:42]")
	assert.Contains(t, lines[0], "open (1,w,truncate): 0")
	assert.Contains(t, lines[1], "write (1,0,3): OK (3)")
	assert.Contains(t, lines[2], "release (1): 0 chunks freed")
}

func TestAccessLog_PartialRead(t *testing.T) {
	a := newAccessLog()
	fh := a.open()
	a.logit(Background, "a long enough line")

	small := make([]byte, 8)
	n := a.read(fh, small, time.Millisecond)
	assert.Equal(t, 8, n)
	rest := make([]byte, 256)
	n = a.read(fh, rest, time.Millisecond)
	assert.True(t, strings.HasSuffix(string(small)+string(rest[:n]), "a long enough line <0.000000>\n"))

	n = a.read(fh, rest, time.Millisecond)
	assert.Equal(t, "#\n", string(rest[:n]))

	a.close(fh)
	assert.Equal(t, 0, a.read(fh, rest, time.Millisecond))
}

func TestAccessLog_NoReaders(t *testing.T) {
	a := newAccessLog()
	a.logit(Background, "dropped")
	fh := a.open()
	buf := make([]byte, 64)
	assert.Equal(t, "#\n", string(buf[:a.read(fh, buf, time.Millisecond)]))
}

func TestLimiter(t *testing.T) {
	bw := newLimiter(0, 0)
	assert.Nil(t, bw.readLimit)
	assert.Nil(t, bw.writeLimit)
	bw.waitRead(1 << 30)
	bw.waitWrite(1 << 30)

	bw = newLimiter(1<<20, 1<<20)
	start := time.Now()
	bw.waitRead(1024)
	bw.waitWrite(1024)
	assert.Less(t, time.Since(start), time.Second)
}
