// Package pager implements the array-indexed page cache: it lazily
// faults pages from a backing file, preserves on-disk layout byte for
// byte, and never interprets page contents.
package pager

import (
	"io"
	"os"

	"btreedb/internal/config"
	"btreedb/internal/dberr"
	"btreedb/internal/dblog"
)

const (
	PageSize      = config.PageSize
	TableMaxPages = 100
	InvalidPage   = config.InvalidPage
)

// Page is a fixed-size buffer addressed by a 32-bit page number.
type Page struct {
	Data    [PageSize]byte
	PageNum uint32
	Dirty   bool
}

// Pager owns the backing file and a fixed-capacity array of cached pages.
type Pager struct {
	file          *os.File
	pages         []*Page
	numPages      uint32
	tableMaxPages uint32
	freelist      []uint32
}

// Open opens path read/write, creating it if absent. A file whose length
// is not a multiple of PageSize is rejected as corrupt.
func Open(path string) (*Pager, error) {
	return OpenWithLimit(path, TableMaxPages)
}

// OpenWithLimit is Open with an overridden page-table ceiling, used by
// tests that want to exercise small trees without 100 pages of headroom.
func OpenWithLimit(path string, maxPages uint32) (*Pager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, dberr.Wrap(dberr.CorruptFile, err, "open database file")
	}
	fi, err := f.Stat()
	if err != nil {
		return nil, dberr.Wrap(dberr.CorruptFile, err, "stat database file")
	}
	size := fi.Size()
	if size%PageSize != 0 {
		return nil, dberr.New(dberr.CorruptFile, "file size %d is not a multiple of page size %d", size, PageSize)
	}
	numPages := uint32(size / PageSize)

	p := &Pager{
		file:          f,
		pages:         make([]*Page, maxPages),
		numPages:      numPages,
		tableMaxPages: maxPages,
	}
	return p, nil
}

// NumPages returns how many pages the file currently spans.
func (p *Pager) NumPages() uint32 { return p.numPages }

// Get returns the cached buffer for n, faulting it in from disk on a
// miss. A short read past EOF is zero-filled; n beyond the table ceiling
// is a fatal error.
func (p *Pager) Get(n uint32) (*Page, error) {
	if n >= p.tableMaxPages {
		return nil, dberr.New(dberr.PageOOB, "page %d exceeds table max pages %d", n, p.tableMaxPages)
	}
	if p.pages[n] != nil {
		return p.pages[n], nil
	}

	pg := &Page{PageNum: n}
	off := int64(n) * PageSize
	if _, err := p.file.Seek(off, io.SeekStart); err != nil {
		return nil, dberr.Wrap(dberr.CorruptFile, err, "seek page")
	}
	if _, err := io.ReadFull(p.file, pg.Data[:]); err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, dberr.Wrap(dberr.CorruptFile, err, "read page")
	}
	dblog.L().Debugw("page fault-in", "page", n)

	p.pages[n] = pg
	if n >= p.numPages {
		p.numPages = n + 1
	}
	return pg, nil
}

// Flush writes exactly PageSize bytes for page n. A short write is fatal.
func (p *Pager) Flush(n uint32) error {
	pg := p.pages[n]
	if pg == nil {
		return dberr.New(dberr.InvalidPageAccess, "flush of uncached page %d", n)
	}
	off := int64(n) * PageSize
	if _, err := p.file.Seek(off, io.SeekStart); err != nil {
		return dberr.Wrap(dberr.CorruptFile, err, "seek page for flush")
	}
	wrote, err := p.file.Write(pg.Data[:])
	if err != nil {
		return dberr.Wrap(dberr.ShortWrite, err, "write page")
	}
	if wrote != PageSize {
		return dberr.New(dberr.ShortWrite, "flushed %d of %d bytes for page %d", wrote, PageSize, n)
	}
	pg.Dirty = false
	return nil
}

// Sync fsyncs the backing file; called once after a transaction commit.
func (p *Pager) Sync() error {
	return p.file.Sync()
}

// Close flushes every cached, dirty page and closes the file. Pages
// absent from the cache are never flushed.
func (p *Pager) Close() error {
	for n, pg := range p.pages {
		if pg != nil && pg.Dirty {
			if err := p.Flush(uint32(n)); err != nil {
				return err
			}
		}
	}
	if err := p.file.Sync(); err != nil {
		return dberr.Wrap(dberr.ShortWrite, err, "sync on close")
	}
	return p.file.Close()
}

// Allocate hands out a fresh page number, preferring a freed page off
// the freelist before extending the file. Exceeding the table ceiling
// is a fatal error.
func (p *Pager) Allocate() (uint32, error) {
	if len(p.freelist) > 0 {
		n := p.freelist[len(p.freelist)-1]
		p.freelist = p.freelist[:len(p.freelist)-1]
		return n, nil
	}
	if p.numPages >= p.tableMaxPages {
		return 0, dberr.New(dberr.AllocFail, "table max pages (%d) exceeded", p.tableMaxPages)
	}
	n := p.numPages
	p.numPages++
	return n, nil
}

// Free returns a page to the freelist and evicts it from the cache, so a
// later Get faults it back in from whatever bytes are on disk instead of
// returning the freed buffer.
func (p *Pager) Free(n uint32) {
	p.pages[n] = nil
	p.freelist = append(p.freelist, n)
}

// FreelistSnapshot and RestoreFreelist let the trailer persistence layer
// (internal/stats) round-trip the freelist across process restarts.
func (p *Pager) FreelistSnapshot() []uint32 { return append([]uint32(nil), p.freelist...) }

func (p *Pager) RestoreFreelist(pages []uint32) {
	p.freelist = append([]uint32(nil), pages...)
}
