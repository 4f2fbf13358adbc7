// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kar

import (
	"bytes"
	"io"
	"io/ioutil"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/gobuffalo/packd"
	"github.com/pierrec/lz4"
	"golang.org/x/exp/mmap"
)

// Open opens the kar archive from r. It will also check if the file
// is actually a kar archive, returning ErrFileFormat when it isn't.
func Open(r io.ReaderAt) (*Archive, error) {
	prefix := make([]byte, MagicLength+HeaderSizeNumberLength)
	if _, err := r.ReadAt(prefix, 0); err == io.EOF || err == io.ErrUnexpectedEOF {
		return nil, ErrFileFormat
	} else if err != nil {
		return nil, err
	}
	if !bytes.Equal(prefix[:MagicLength], magic[:]) {
		return nil, ErrFileFormat
	}

	headerSize := binaryToInt64(prefix[MagicLength:])
	if headerSize <= 0 || headerSize > MaxHeaderSize || headerSize > available(r)-int64(len(prefix)) {
		return nil, errors.Wrapf(ErrFileFormat, "header size %d", headerSize)
	}
	headerBytes := make([]byte, headerSize)
	if _, err := r.ReadAt(headerBytes, int64(len(prefix))); err != nil {
		return nil, errors.Wrap(ErrFileFormat, "truncated header")
	}

	var header Header
	if err := gobDecode(&header, headerBytes); err != nil {
		return nil, errors.Wrap(ErrFileFormat, err.Error())
	}

	return &Archive{
		reader: r,
		header: header,
		base:   int64(len(prefix)) + headerSize,
	}, nil
}

// available reports how many bytes r holds, when it can tell.
func available(r io.ReaderAt) int64 {
	switch sized := r.(type) {
	case interface{ Size() int64 }:
		return sized.Size()
	case interface{ Len() int }:
		return int64(sized.Len())
	}
	return math.MaxInt64
}

// OpenFile memory maps the archive at path. The archive must be closed.
func OpenFile(path string) (*Archive, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	ar, err := Open(r)
	if err != nil {
		r.Close()
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	ar.closer = r
	return ar, nil
}

// Archive provides concurrent io for a kar file, and can provide
// an io.Reader for each file separately to perform actions on.
type Archive struct {
	reader io.ReaderAt
	closer io.Closer
	header Header
	base   int64
}

// Header returns the archive header with its file index
func (a *Archive) Header() Header {
	return a.header
}

// Open returns a Reader of the decompressed contents of a file
func (a *Archive) Open(name string) (io.Reader, error) {
	entry, ok := a.header.Lookup(name)
	if !ok {
		return nil, errors.Wrap(ErrNotFound, name)
	}
	section := io.NewSectionReader(a.reader, a.base+entry.Offset, entry.CompressedSize)
	return lz4.NewReader(section), nil
}

// ReadAll returns the entire contents of a file with a given name
func (a *Archive) ReadAll(name string) ([]byte, error) {
	r, err := a.Open(name)
	if err != nil {
		return nil, err
	}
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "decompressing %s", name)
	}
	return data, nil
}

// Find implements core.ShaderBox
func (a *Archive) Find(name string) ([]byte, error) {
	return a.ReadAll(name)
}

// Walk calls fn for every file in index order, implements core.ShaderBox
func (a *Archive) Walk(fn packd.WalkFunc) error {
	for _, entry := range a.header.Index {
		data, err := a.ReadAll(entry.Name)
		if err != nil {
			return err
		}
		file, err := packd.NewFile(entry.Name, bytes.NewReader(data))
		if err != nil {
			return err
		}
		if err := fn(entry.Name, file); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the memory mapping of archives opened with OpenFile
func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}
