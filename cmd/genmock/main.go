// Command genmock writes synthetic Archive II volumes for offline runs
// (SCAN_SOURCE=dir) and test fixtures. Each volume holds Gaussian storm cells
// and is named like a NEXRAD object so the pipeline can select it.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -dir data/scans \
//	  -site KDMX \
//	  -start 2024-04-26T15:00:00Z \
//	  -count 6
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/storm-radar-etl/internal/adapter/archive2"
	"github.com/couchcryptid/storm-radar-etl/internal/domain"
)

// volumeInterval is the spacing of consecutive synthetic volumes.
const volumeInterval = 5 * time.Minute

// defaultCells approximates a squall line northwest of the radar with an
// isolated cell to the south.
var defaultCells = []archive2.StormCell{
	{Azimuth: 300, Range: 60000, Radius: 4000, Peak: 62},
	{Azimuth: 315, Range: 55000, Radius: 5000, Peak: 55},
	{Azimuth: 330, Range: 52000, Radius: 3500, Peak: 58},
	{Azimuth: 180, Range: 35000, Radius: 2500, Peak: 48},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dir := flag.String("dir", "data/scans", "output directory for generated volumes")
	site := flag.String("site", "KDMX", "4-letter radar site code")
	start := flag.String("start", "2024-04-26T15:00:00Z", "capture time of the first volume (RFC3339)")
	count := flag.Int("count", 1, "number of volumes, five minutes apart")
	elevations := flag.String("elevations", "0.5,1.5,2.4,3.4", "comma-separated elevation angles in degrees")
	drift := flag.Float64("drift", 1.5, "eastward cell drift in degrees of azimuth per volume")
	flag.Parse()

	if len(*site) != 4 || strings.ToUpper(*site) != *site {
		return fmt.Errorf("site %q must be a 4-letter upper case code", *site)
	}
	if *count < 1 {
		return fmt.Errorf("count must be at least 1")
	}
	at, err := time.Parse(time.RFC3339, *start)
	if err != nil {
		return fmt.Errorf("parse start: %w", err)
	}
	angles, err := parseElevations(*elevations)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(*dir, 0o755); err != nil {
		return err
	}

	for i := range *count {
		captured := at.Add(time.Duration(i) * volumeInterval).UTC()
		volume := archive2.SyntheticVolume(*site, captured, angles, drifted(defaultCells, float64(i)**drift))

		path := filepath.Join(*dir, volumeName(*site, captured))
		if err := writeVolume(path, volume); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		log.Printf("%s: %d sweeps, %d radials", filepath.Base(path), len(volume.Sweeps), volume.RadialCount())
	}
	return nil
}

func volumeName(site string, t time.Time) string {
	return site + t.Format("20060102_150405") + "_V06"
}

func writeVolume(path string, volume *domain.VolumeScan) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := archive2.Encode(f, volume); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func parseElevations(s string) ([]float64, error) {
	var out []float64
	for _, field := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil || v <= 0 || v >= 90 {
			return nil, fmt.Errorf("invalid elevation %q", field)
		}
		out = append(out, v)
	}
	return out, nil
}

func drifted(cells []archive2.StormCell, degrees float64) []archive2.StormCell {
	out := make([]archive2.StormCell, len(cells))
	for i, c := range cells {
		c.Azimuth += degrees
		out[i] = c
	}
	return out
}
