package archive2

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/couchcryptid/storm-radar-etl/internal/domain"
)

// Encode writes v as an uncompressed Archive II volume holding one message 31
// per radial with a single reflectivity block. Decode(Encode(v)) reproduces v.
func Encode(w io.Writer, v *domain.VolumeScan) error {
	bw := bufio.NewWriter(w)

	days, ms := julianDate(v.CapturedAt)
	header := make([]byte, volumeHeaderSize)
	copy(header, "AR2V0006.001")
	binary.BigEndian.PutUint32(header[12:], days)
	binary.BigEndian.PutUint32(header[16:], ms)
	copy(header[20:], fmt.Sprintf("%-4.4s", v.Site))
	if _, err := bw.Write(header); err != nil {
		return err
	}

	var seq uint16
	for _, sweep := range v.Sweeps {
		for _, r := range sweep.Radials {
			msg, err := encodeRadial(v.Site, sweep, r, seq, uint16(days), ms)
			if err != nil {
				return err
			}
			if _, err := bw.Write(msg); err != nil {
				return err
			}
			seq = (seq + 1) & 0x7FFF
		}
	}
	return bw.Flush()
}

func encodeRadial(site string, sweep domain.ElevationSweep, r domain.RadialRecord, seq, days uint16, ms uint32) ([]byte, error) {
	const (
		bodyFixed  = 32
		ptrLen     = 4
		momentHead = 28
	)

	var gateBytes int
	switch r.WordSize {
	case 8:
		gateBytes = len(r.Gates)
	case 16:
		gateBytes = 2 * len(r.Gates)
	default:
		return nil, fmt.Errorf("encode radial: word size %d", r.WordSize)
	}

	bodyLen := bodyFixed + ptrLen + momentHead + gateBytes
	bodyLen += bodyLen % 2
	msg := make([]byte, ctmSize+messageHeaderSize+bodyLen)

	hdr := msg[ctmSize:]
	binary.BigEndian.PutUint16(hdr[0:], uint16((messageHeaderSize+bodyLen)/2))
	hdr[3] = messageTypeDigitalRadar
	binary.BigEndian.PutUint16(hdr[4:], seq)
	binary.BigEndian.PutUint16(hdr[6:], days)
	binary.BigEndian.PutUint32(hdr[8:], ms)
	binary.BigEndian.PutUint16(hdr[12:], 1)
	binary.BigEndian.PutUint16(hdr[14:], 1)

	body := hdr[messageHeaderSize:]
	copy(body[0:4], fmt.Sprintf("%-4.4s", site))
	binary.BigEndian.PutUint32(body[4:], ms)
	binary.BigEndian.PutUint16(body[8:], days)
	binary.BigEndian.PutUint32(body[12:], math.Float32bits(float32(r.Azimuth)))
	binary.BigEndian.PutUint16(body[18:], uint16(bodyLen))
	body[20] = spacingCode(r.AzimuthSpacing)
	body[22] = uint8(sweep.Number)
	binary.BigEndian.PutUint32(body[24:], math.Float32bits(float32(sweep.Elevation)))
	binary.BigEndian.PutUint16(body[30:], 1)
	binary.BigEndian.PutUint32(body[bodyFixed:], bodyFixed+ptrLen)

	block := body[bodyFixed+ptrLen:]
	copy(block, refBlock)
	binary.BigEndian.PutUint16(block[8:], uint16(len(r.Gates)))
	binary.BigEndian.PutUint16(block[10:], uint16(r.FirstGateRange))
	binary.BigEndian.PutUint16(block[12:], uint16(r.GateInterval))
	block[19] = r.WordSize
	binary.BigEndian.PutUint32(block[20:], math.Float32bits(r.Scale))
	binary.BigEndian.PutUint32(block[24:], math.Float32bits(r.Offset))

	gates := block[momentHead:]
	for i, g := range r.Gates {
		if r.WordSize == 8 {
			gates[i] = uint8(g)
		} else {
			binary.BigEndian.PutUint16(gates[2*i:], g)
		}
	}
	return msg, nil
}

func julianDate(t time.Time) (days, ms uint32) {
	if t.IsZero() {
		return 0, 0
	}
	t = t.UTC()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	days = uint32(midnight.Unix()/86400) + 1
	ms = uint32(t.Sub(midnight) / time.Millisecond)
	return days, ms
}
