package raster

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/klauspost/compress/zstd"
)

// Container layout, all integers little-endian:
//
//	bytes 0-3   magic "DSM1"
//	bytes 4-7   uint32 header JSON length
//	...         header JSON
//	...         zstd-compressed row-major float32 cells
var magic = [4]byte{'D', 'S', 'M', '1'}

// Load reads a DSM container from disk.
func Load(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dsm %s: %w", path, err)
	}
	defer f.Close()

	var fileMagic [4]byte
	if _, err := io.ReadFull(f, fileMagic[:]); err != nil {
		return nil, fmt.Errorf("reading dsm magic: %w", err)
	}
	if fileMagic != magic {
		return nil, fmt.Errorf("%s is not a DSM container (magic %q)", path, fileMagic)
	}

	var hdrLen uint32
	if err := binary.Read(f, binary.LittleEndian, &hdrLen); err != nil {
		return nil, fmt.Errorf("reading dsm header length: %w", err)
	}
	hdrBytes := make([]byte, hdrLen)
	if _, err := io.ReadFull(f, hdrBytes); err != nil {
		return nil, fmt.Errorf("reading dsm header: %w", err)
	}
	var hdr Header
	if err := json.Unmarshal(hdrBytes, &hdr); err != nil {
		return nil, fmt.Errorf("parsing dsm header: %w", err)
	}

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("opening dsm payload: %w", err)
	}
	defer dec.Close()

	payload, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("decompressing dsm payload: %w", err)
	}
	want := hdr.Width * hdr.Height * 4
	if len(payload) != want {
		return nil, fmt.Errorf("dsm payload is %d bytes, want %d for %dx%d grid", len(payload), want, hdr.Width, hdr.Height)
	}

	cells := make([]float32, hdr.Width*hdr.Height)
	for i := range cells {
		cells[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:]))
	}
	return New(hdr, cells)
}

// Write serializes a grid to a DSM container at path.
func Write(path string, g *Grid) error {
	hdrBytes, err := json.Marshal(g.hdr)
	if err != nil {
		return fmt.Errorf("serializing dsm header: %w", err)
	}

	payload := make([]byte, len(g.cells)*4)
	for i, c := range g.cells {
		binary.LittleEndian.PutUint32(payload[i*4:], math.Float32bits(c))
	}

	var buf bytes.Buffer
	buf.Write(magic[:])
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(hdrBytes))); err != nil {
		return err
	}
	buf.Write(hdrBytes)

	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return fmt.Errorf("opening dsm compressor: %w", err)
	}
	if _, err := enc.Write(payload); err != nil {
		enc.Close()
		return fmt.Errorf("compressing dsm payload: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flushing dsm payload: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing dsm %s: %w", path, err)
	}
	return nil
}
