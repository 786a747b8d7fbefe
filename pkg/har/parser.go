/*
Copyright 2026 The Harbase Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package har

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ParseError reports a malformed document at a specific byte offset.
type ParseError struct {
	Offset int64
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("har: parse error at offset %d: %s", e.Offset, e.Reason)
}

// countingReader tracks how many bytes have been pulled through it, so
// ParseError can report a useful offset without depending on internals
// of the underlying tokenizer.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

type itemKind int

const (
	kindPage itemKind = iota
	kindEntry
)

type item struct {
	kind itemKind
	page *Page
	entr *Entry
}

// errClosed unwinds the jx callback stack promptly when Close is called
// before the document has been fully walked.
var errClosed = errors.New("har: reader closed")

// Options configures a Reader.
type Options struct {
	// AsyncRead enables a background goroutine that reads ahead into a
	// bounded ring buffer, per spec.md §4.1.
	AsyncRead bool
	// AsyncRingBytes overrides DefaultAsyncRingSize when AsyncRead is set.
	AsyncRingBytes int
}

// Reader pulls one HAR item at a time — first the log header, then each
// page, then each entry — without materializing the whole document.
// Abandoning iteration is safe as long as Close is eventually called to
// stop the background goroutine and release the underlying file handle.
type Reader struct {
	closer io.Closer
	cr     *countingReader

	header LogHeader

	items    chan item
	done     chan struct{}
	finished chan struct{}
	peeked   *item
	finalErr error

	closeOnce func()
}

// Open opens path and returns a Reader over it. The returned Reader owns
// the file and Close closes it.
func Open(path string, opts Options) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := New(f, opts)
	r.closer = f
	return r, nil
}

// New builds a Reader over an arbitrary byte source. The caller remains
// responsible for closing r if it implements io.Closer, unless r was
// produced by Open.
func New(r io.Reader, opts Options) *Reader {
	var src io.Reader = r
	if opts.AsyncRead {
		src = newAsyncReader(r, opts.AsyncRingBytes)
	}
	cr := &countingReader{r: src}

	rd := &Reader{
		items:    make(chan item),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		cr:       cr,
	}
	var closeOnce bool
	rd.closeOnce = func() {
		if closeOnce {
			return
		}
		closeOnce = true
		close(rd.done)
	}
	go rd.run()
	return rd
}

// Stats reports how many bytes have been consumed from the source so
// far, useful for pacing periodic savepoints without a separate pass
// over the file size.
func (r *Reader) Stats() (bytesRead int64) {
	return r.cr.n
}

// Close stops the background parse goroutine (if still running) and
// closes the underlying file handle, if Reader owns one.
func (r *Reader) Close() error {
	r.closeOnce()
	<-r.finished
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

func (r *Reader) run() {
	defer close(r.finished)
	defer close(r.items)

	if err := r.walkDocument(); err != nil && err != errClosed {
		r.finalErr = r.wrapErr(err)
	}
}

// publish sends it to the consumer, or returns errClosed if the Reader
// was closed first, so the jx callback stack unwinds instead of
// blocking forever on an abandoned iteration.
func (r *Reader) publish(it item) error {
	select {
	case r.items <- it:
		return nil
	case <-r.done:
		return errClosed
	}
}

func (r *Reader) wrapErr(err error) error {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe
	}
	return &ParseError{Offset: r.cr.n, Reason: err.Error()}
}

// Header returns the log fields parsed so far; it does not block or read
// ahead. Fields that precede pages/entries in the document are set by
// the first NextPage or NextEntry call; the log's extensions are set only
// once the whole log object has been walked, so the header is complete
// after NextEntry has returned ok=false.
func (r *Reader) Header() LogHeader {
	return r.header
}

// Err returns the terminal parse error, if any, once the item stream is
// exhausted. It is only meaningful after NextPage/NextEntry has
// returned ok=false.
func (r *Reader) Err() error {
	return r.finalErr
}

func (r *Reader) peek() (item, bool) {
	if r.peeked != nil {
		return *r.peeked, true
	}
	it, ok := <-r.items
	if !ok {
		return item{}, false
	}
	r.peeked = &it
	return it, true
}

func (r *Reader) take() {
	r.peeked = nil
}

// NextPage returns the next page in document order. ok is false once
// pages are exhausted (the entries array has started, or the document
// ended); err is only set when the document ended abnormally.
func (r *Reader) NextPage() (p *Page, ok bool, err error) {
	it, has := r.peek()
	if !has {
		return nil, false, r.finalErr
	}
	if it.kind != kindPage {
		return nil, false, nil
	}
	r.take()
	return it.page, true, nil
}

// NextEntry returns the next entry in document order. ok is false once
// the document ends; err is only set when it ended abnormally.
func (r *Reader) NextEntry() (e *Entry, ok bool, err error) {
	it, has := r.peek()
	if !has {
		return nil, false, r.finalErr
	}
	if it.kind != kindEntry {
		return nil, false, nil
	}
	r.take()
	return it.entr, true, nil
}
