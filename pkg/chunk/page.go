// pkg/chunk/page.go

package chunk

// Page is the buffer behind one chunk.
type Page struct {
	Data []byte
}

// NewPage create a new zero-filled page of size bytes.
func NewPage(size int) *Page {
	if size <= 0 {
		panic("size of page should > 0")
	}
	return &Page{Data: make([]byte, size)}
}

// Zero clears the bytes in [off, end).
func (p *Page) Zero(off, end int) {
	if off >= end {
		return
	}
	clear(p.Data[off:end])
}

// Release drops the buffer, the page must not be used afterwards.
func (p *Page) Release() {
	p.Data = nil
}
