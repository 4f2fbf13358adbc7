// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar

import (
	"bytes"
	"io"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/pierrec/lz4"
)

// NewBuilder creates a new Builder. Do not fill the Index in
// the header, it will be overwritten anyway.
func NewBuilder(header Header) *Builder {
	return &Builder{
		header: header,
		files:  make(map[string]compressedFile),
	}
}

type compressedFile struct {
	data []byte
	size int64
}

// Builder is the high level builder for the archive format.
// Archives are versioned and cannot be appended to, Builder is the way
// to create one. Files are compressed as they are added and bundled
// together by WriteTo.
type Builder struct {
	header Header

	mutex sync.Mutex
	files map[string]compressedFile
}

// Add compresses data and stores it under name, replacing a previous
// file of the same name. Will block until lz4 finishes compression.
// Is safe to use concurrently in different goroutines.
func (b *Builder) Add(name string, data []byte) error {
	if name == "" {
		return errors.New("kar: empty file name")
	}

	var compressed bytes.Buffer
	writer := lz4.NewWriter(&compressed)
	if _, err := writer.Write(data); err != nil {
		return errors.Wrapf(err, "compressing %s", name)
	}
	if err := writer.Close(); err != nil {
		return errors.Wrapf(err, "compressing %s", name)
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.files[name] = compressedFile{
		data: compressed.Bytes(),
		size: int64(len(data)),
	}
	return nil
}

// Len returns the number of files added
func (b *Builder) Len() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.files)
}

// WriteTo bundles and writes all of the files added to the Builder
// into a kar archive that is ready to use. Files are ordered by name.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	names := make([]string, 0, len(b.files))
	for name := range b.files {
		names = append(names, name)
	}
	sort.Strings(names)

	header := b.header
	header.Index = nil
	var offset int64
	for _, name := range names {
		file := b.files[name]
		header.Index = append(header.Index, IndexEntry{
			Name:           name,
			Offset:         offset,
			Size:           file.size,
			CompressedSize: int64(len(file.data)),
		})
		offset += int64(len(file.data))
	}

	rawHeader, err := gobEncode(header)
	if err != nil {
		return 0, errors.Wrap(err, "encoding header")
	}

	var written int64
	chunks := [][]byte{magic[:], int64ToBinary(int64(len(rawHeader))), rawHeader}
	for _, name := range names {
		chunks = append(chunks, b.files[name].data)
	}
	for _, chunk := range chunks {
		n, err := w.Write(chunk)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
