// Package archive2 reads and writes NEXRAD Level II (Archive II) volume files.
//
// A volume is a 24-byte header followed by LDM records. Each record is a
// 4-byte big-endian size and a bzip2 stream of messages. Only message type 31
// (digital radar data) is decoded; everything else is skipped.
package archive2

import (
	"bytes"
	"compress/bzip2"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/couchcryptid/storm-radar-etl/internal/domain"
)

const (
	volumeHeaderSize  = 24
	ctmSize           = 12
	messageHeaderSize = 16
	fixedMessageSize  = 2432

	messageTypeDigitalRadar = 31
)

// ErrMalformedVolume is returned when the byte stream does not follow the Archive II layout.
var ErrMalformedVolume = errors.New("malformed archive II volume")

var (
	volumeMagic = []byte("AR2V")
	bzipMagic   = []byte("BZh")
	refBlock    = []byte("DREF")
)

// Decoder implements the decompress and decode stages of the pipeline.
type Decoder struct{}

// NewDecoder returns a Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decompress expands the bzip2 LDM records of raw into a single message
// stream behind the volume header. Streams that are not compressed
// are returned unchanged.
func (d *Decoder) Decompress(raw []byte) ([]byte, error) {
	if len(raw) < volumeHeaderSize || !bytes.HasPrefix(raw, volumeMagic) {
		return nil, fmt.Errorf("%w: missing volume header", ErrMalformedVolume)
	}
	if len(raw) < volumeHeaderSize+4+len(bzipMagic) ||
		!bytes.HasPrefix(raw[volumeHeaderSize+4:], bzipMagic) {
		return raw, nil
	}

	var out bytes.Buffer
	out.Grow(len(raw) * 8)
	out.Write(raw[:volumeHeaderSize])

	pos := volumeHeaderSize
	for pos+4 <= len(raw) {
		size := int(int32(binary.BigEndian.Uint32(raw[pos:])))
		pos += 4
		if size < 0 {
			// The final record carries a negated size.
			size = -size
		}
		if size == 0 {
			break
		}
		if pos+size > len(raw) {
			return nil, fmt.Errorf("%w: record of %d bytes overruns file at offset %d", ErrMalformedVolume, size, pos)
		}
		if _, err := io.Copy(&out, bzip2.NewReader(bytes.NewReader(raw[pos:pos+size]))); err != nil {
			return nil, fmt.Errorf("decompress record at offset %d: %w", pos, err)
		}
		pos += size
	}
	return out.Bytes(), nil
}

// Decode parses an uncompressed volume into sweeps of reflectivity radials.
// Radials are grouped by elevation number in the order they first appear.
func (d *Decoder) Decode(data []byte) (*domain.VolumeScan, error) {
	if len(data) < volumeHeaderSize || !bytes.HasPrefix(data, volumeMagic) {
		return nil, fmt.Errorf("%w: missing volume header", ErrMalformedVolume)
	}

	scan := &domain.VolumeScan{
		Site:       string(bytes.TrimRight(data[20:24], "\x00 ")),
		CapturedAt: modifiedJulian(binary.BigEndian.Uint32(data[12:]), binary.BigEndian.Uint32(data[16:])),
	}
	sweepIndex := make(map[int]int)

	pos := volumeHeaderSize
	for pos+ctmSize+messageHeaderSize <= len(data) {
		hdr := data[pos+ctmSize:]
		size := int(binary.BigEndian.Uint16(hdr[0:]))
		msgType := hdr[3]

		if msgType != messageTypeDigitalRadar {
			pos += fixedMessageSize
			continue
		}

		end := pos + ctmSize + 2*size
		if size*2 < messageHeaderSize || end > len(data) {
			return nil, fmt.Errorf("%w: message 31 at offset %d has size %d", ErrMalformedVolume, pos, size)
		}
		elevNum, radial, ok, err := decodeRadial(data[pos+ctmSize+messageHeaderSize : end])
		if err != nil {
			return nil, fmt.Errorf("message at offset %d: %w", pos, err)
		}
		pos = end
		if !ok {
			continue
		}

		i, seen := sweepIndex[elevNum]
		if !seen {
			i = len(scan.Sweeps)
			sweepIndex[elevNum] = i
			scan.Sweeps = append(scan.Sweeps, domain.ElevationSweep{Number: elevNum, Elevation: radial.Elevation})
		}
		scan.Sweeps[i].Radials = append(scan.Sweeps[i].Radials, radial)
	}

	if len(scan.Sweeps) == 0 {
		return nil, fmt.Errorf("%w: no reflectivity radials", ErrMalformedVolume)
	}
	return scan, nil
}

// decodeRadial parses a message 31 body. ok is false for radials that carry
// no reflectivity block.
func decodeRadial(body []byte) (elevNum int, r domain.RadialRecord, ok bool, err error) {
	const fixedLen = 32
	if len(body) < fixedLen {
		return 0, r, false, fmt.Errorf("%w: radial header truncated", ErrMalformedVolume)
	}

	r.Azimuth = float64(math.Float32frombits(binary.BigEndian.Uint32(body[12:])))
	r.AzimuthSpacing = azimuthSpacing(body[20])
	elevNum = int(body[22])
	r.Elevation = float64(math.Float32frombits(binary.BigEndian.Uint32(body[24:])))

	blocks := int(binary.BigEndian.Uint16(body[30:]))
	if fixedLen+4*blocks > len(body) {
		return 0, r, false, fmt.Errorf("%w: %d block pointers overrun radial", ErrMalformedVolume, blocks)
	}
	for i := range blocks {
		ptr := int(binary.BigEndian.Uint32(body[fixedLen+4*i:]))
		if ptr+len(refBlock) > len(body) || !bytes.Equal(body[ptr:ptr+len(refBlock)], refBlock) {
			continue
		}
		if err := decodeMoment(body[ptr:], &r); err != nil {
			return 0, r, false, err
		}
		return elevNum, r, true, nil
	}
	return elevNum, r, false, nil
}

func decodeMoment(block []byte, r *domain.RadialRecord) error {
	const dataOffset = 28
	if len(block) < dataOffset {
		return fmt.Errorf("%w: moment block truncated", ErrMalformedVolume)
	}

	r.GateCount = int(binary.BigEndian.Uint16(block[8:]))
	r.FirstGateRange = float64(binary.BigEndian.Uint16(block[10:]))
	r.GateInterval = float64(binary.BigEndian.Uint16(block[12:]))
	r.WordSize = block[19]
	r.Scale = math.Float32frombits(binary.BigEndian.Uint32(block[20:]))
	r.Offset = math.Float32frombits(binary.BigEndian.Uint32(block[24:]))

	gates := block[dataOffset:]
	r.Gates = make([]uint16, r.GateCount)
	switch r.WordSize {
	case 8:
		if len(gates) < r.GateCount {
			return fmt.Errorf("%w: %d gates declared, %d present", ErrMalformedVolume, r.GateCount, len(gates))
		}
		for i := range r.Gates {
			r.Gates[i] = uint16(gates[i])
		}
	case 16:
		if len(gates) < 2*r.GateCount {
			return fmt.Errorf("%w: %d gates declared, %d present", ErrMalformedVolume, r.GateCount, len(gates)/2)
		}
		for i := range r.Gates {
			r.Gates[i] = binary.BigEndian.Uint16(gates[2*i:])
		}
	default:
		// Kept byte-wise so gate scaling can reject the word size.
		r.Gates = r.Gates[:min(r.GateCount, len(gates))]
		for i := range r.Gates {
			r.Gates[i] = uint16(gates[i])
		}
	}
	return nil
}

func azimuthSpacing(code uint8) float64 {
	if code == 1 {
		return 0.5
	}
	return 1.0
}

func spacingCode(spacing float64) uint8 {
	if spacing == 0.5 {
		return 1
	}
	return 2
}

// modifiedJulian converts the header date (day 1 is 1970-01-01) and
// milliseconds past midnight to a UTC time.
func modifiedJulian(days, ms uint32) time.Time {
	if days == 0 {
		return time.Time{}
	}
	return time.Unix(0, 0).UTC().
		AddDate(0, 0, int(days)-1).
		Add(time.Duration(ms) * time.Millisecond)
}
