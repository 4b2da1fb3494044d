// Package record reads and writes verification records.
//
// The text layout is a seed integer followed by one "r g b" checksum triple per watermark
// pixel; the number of triples is whatever the input holds. Files may be zstd compressed,
// which is detected from the frame magic rather than the file name.
package record

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"imgrev-go/pkg/mask"
)

var ErrRecordRead = errors.New("record: cannot read verification record")

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// Load reads the record stored at path.
func Load(path string) (mask.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return mask.Record{}, fmt.Errorf("%w: %v", ErrRecordRead, err)
	}
	defer f.Close()
	r, err := Parse(f)
	if err != nil {
		return mask.Record{}, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// LoadAll reads records in the given order.
func LoadAll(paths []string) ([]mask.Record, error) {
	out := make([]mask.Record, 0, len(paths))
	for _, p := range paths {
		r, err := Load(p)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Parse reads a plain or zstd-compressed record.
func Parse(r io.Reader) (mask.Record, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(len(zstdMagic))
	var src io.Reader = br
	if bytes.Equal(head, zstdMagic) {
		dec, err := zstd.NewReader(br)
		if err != nil {
			return mask.Record{}, fmt.Errorf("%w: zstd: %v", ErrRecordRead, err)
		}
		defer dec.Close()
		src = dec
	}
	return parseText(src)
}

func parseText(r io.Reader) (mask.Record, error) {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return mask.Record{}, fmt.Errorf("%w: %v", ErrRecordRead, err)
		}
		return mask.Record{}, fmt.Errorf("%w: missing seed", ErrRecordRead)
	}
	seed, err := strconv.Atoi(sc.Text())
	if err != nil || seed < 0 {
		return mask.Record{}, fmt.Errorf("%w: bad seed %q", ErrRecordRead, sc.Text())
	}

	rec := mask.Record{Seed: seed}
	for sc.Scan() {
		v, err := strconv.Atoi(sc.Text())
		if err != nil {
			return mask.Record{}, fmt.Errorf("%w: entry %d: %q is not an integer", ErrRecordRead, len(rec.Checksums), sc.Text())
		}
		if v < 0 || v > 255 {
			return mask.Record{}, fmt.Errorf("%w: entry %d: %d is outside 0..255", ErrRecordRead, len(rec.Checksums), v)
		}
		rec.Checksums = append(rec.Checksums, uint8(v))
	}
	if err := sc.Err(); err != nil {
		return mask.Record{}, fmt.Errorf("%w: %v", ErrRecordRead, err)
	}
	if len(rec.Checksums)%3 != 0 {
		return mask.Record{}, fmt.Errorf("%w: %d checksum values do not form whole r g b triples", ErrRecordRead, len(rec.Checksums))
	}
	return rec, nil
}

// Write emits rec in the text layout.
func Write(w io.Writer, rec mask.Record) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d\n", rec.Seed)
	for i := 0; i+2 < len(rec.Checksums); i += 3 {
		fmt.Fprintf(bw, "%d %d %d\n", rec.Checksums[i], rec.Checksums[i+1], rec.Checksums[i+2])
	}
	return bw.Flush()
}

// Save writes rec to path, zstd compressed when path ends in .zst.
func Save(path string, rec mask.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	var w io.Writer = f
	var enc *zstd.Encoder
	if strings.HasSuffix(path, ".zst") {
		enc, err = zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
		if err != nil {
			f.Close()
			return fmt.Errorf("zstd: failed to initialize encoder: %w", err)
		}
		w = enc
	}
	if err := Write(w, rec); err != nil {
		f.Close()
		return err
	}
	if enc != nil {
		if err := enc.Close(); err != nil {
			f.Close()
			return fmt.Errorf("zstd: failed to close writer: %w", err)
		}
	}
	return f.Close()
}
