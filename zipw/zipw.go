// Package zipw assembles the final APK/AAB zip archive. It mirrors
// pack-zip's use of the `zip` crate's `with_alignment(4)`: every entry's
// file data is padded to start on a 4-byte boundary within the archive,
// the same property `zipalign` enforces on a finished APK, produced here
// at construction time instead of as a separate post-processing pass.
package zipw

import (
	"archive/zip"
	"bytes"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"

	"github.com/google/pack/errs"
)

// File is a single zip entry: a path (including directory components,
// "/"-separated) and its uncompressed contents.
type File struct {
	Path string
	Data []byte
}

// uncompressedPaths holds the entries that must never be deflated. Android
// mmaps resources.arsc directly out of the APK; it has to be stored.
var uncompressedPaths = map[string]bool{
	"resources.arsc": true,
}

// androidAlignmentExtraID is zipalign's well-known "Android ZIP
// alignment" extra-field id (a uint16 alignment value, followed by
// padding bytes).
const androidAlignmentExtraID = 0xd935

const alignment = 4
const localFileHeaderFixedSize = 30

// dosEpochDate is the DOS-format encoding of 1980-01-01, the fixed
// modification date stamped on every entry: byte-for-byte reproducible
// output shouldn't depend on wall-clock time. The legacy DOS field is set
// directly rather than through SetModTime, which would also populate
// Modified and make archive/zip append an extended-timestamp extra field
// after the alignment one, shifting the data start off its 4-byte
// boundary.
const dosEpochDate = 1<<5 | 1

// Build writes files into a single zip archive, 4-byte-aligning every
// entry's data and storing (rather than deflating) any path in
// uncompressedPaths.
func Build(files []File) ([]byte, error) {
	var buf bytes.Buffer
	cw := &countingWriter{w: &buf}
	zw := zip.NewWriter(cw)
	zw.RegisterCompressor(zip.Deflate, newPooledFlateWriter)

	for _, f := range files {
		method := uint16(zip.Deflate)
		if uncompressedPaths[f.Path] {
			method = zip.Store
		}

		// archive/zip buffers through an internal bufio.Writer; flush it so
		// cw.n is the true archive offset before sizing the padding.
		if err := zw.Flush(); err != nil {
			return nil, errs.Wrap(errs.ZipWritingFailed, err)
		}
		base := cw.n + localFileHeaderFixedSize + int64(len(f.Path))
		hdr := &zip.FileHeader{
			Name:         f.Path,
			Method:       method,
			Extra:        alignmentExtra(base),
			ModifiedDate: dosEpochDate,
		}

		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return nil, errs.Wrap(errs.ZipWritingFailed, err)
		}
		if _, err := w.Write(f.Data); err != nil {
			return nil, errs.Wrap(errs.ZipWritingFailed, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, errs.Wrap(errs.ZipWritingFailed, err)
	}
	return buf.Bytes(), nil
}

// alignmentExtra returns the zip "extra field" bytes that pad this
// entry's local file header so its data begins at a 4-byte-aligned
// offset, given base (the offset the extra field itself would start at
// with no padding). Returns nil when base is already aligned.
func alignmentExtra(base int64) []byte {
	rem := base % alignment
	if rem == 0 {
		return nil
	}
	targetMod := (alignment - rem) % alignment
	padLen := (targetMod - 2 + 4) % 4
	size := 2 + padLen // alignment value (2 bytes) + padding

	extra := make([]byte, 4+size)
	alignmentExtraID := uint16(androidAlignmentExtraID)
	extra[0] = byte(alignmentExtraID)
	extra[1] = byte(alignmentExtraID >> 8)
	extra[2] = byte(size)
	extra[3] = byte(size >> 8)
	extra[4] = alignment
	extra[5] = 0
	return extra
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

var flateWriterPool sync.Pool

// newPooledFlateWriter pools *flate.Writer values instead of allocating a
// fresh one per entry.
func newPooledFlateWriter(w io.Writer) (io.WriteCloser, error) {
	if fw, ok := flateWriterPool.Get().(*flate.Writer); ok {
		fw.Reset(w)
		return &pooledFlateWriter{fw: fw}, nil
	}
	fw, err := flate.NewWriter(w, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	return &pooledFlateWriter{fw: fw}, nil
}

type pooledFlateWriter struct {
	fw *flate.Writer
}

func (w *pooledFlateWriter) Write(p []byte) (int, error) { return w.fw.Write(p) }

func (w *pooledFlateWriter) Close() error {
	err := w.fw.Close()
	flateWriterPool.Put(w.fw)
	return err
}
