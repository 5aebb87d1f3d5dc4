// Command validate checks a local Archive II volume end to end: it
// decompresses and decodes the file, verifies radial geometry and gate
// encoding, and runs the point and cluster stages the service would run. Each
// phase reports PASS or FAIL with its errors.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -file data/scans/KDMX20240426_150000_V06 \
//	  -threshold 20 \
//	  -cluster
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/couchcryptid/storm-radar-etl/internal/adapter/archive2"
	"github.com/couchcryptid/storm-radar-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// maxListedErrors caps per-phase detail so a corrupt file stays readable.
const maxListedErrors = 20

func main() {
	file := flag.String("file", "", "path to an Archive II volume")
	threshold := flag.Float64("threshold", 0.5, "inclusion threshold for derived points")
	renderRatio := flag.Float64("render-ratio", domain.DefaultRenderRatio, "meters to render units")
	cluster := flag.Bool("cluster", false, "also run spatial clustering")
	eps := flag.Float64("eps", domain.DefaultClusterEps, "clustering radius in render units")
	minPoints := flag.Int("min-points", domain.DefaultClusterMinPts, "clustering minimum neighbor count")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(1)
	}

	params := domain.ClusterParams{Eps: *eps, MinPts: *minPoints}
	if code := run(*file, *threshold, *renderRatio, *cluster, params); code != 0 {
		os.Exit(code)
	}
}

func run(path string, threshold, renderRatio float64, cluster bool, params domain.ClusterParams) int {
	fmt.Println("=== Radar Volume Validation ===")
	fmt.Println()

	raw, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read volume: %v\n", err)
		return 1
	}

	dec := archive2.NewDecoder()
	ident := validateIdentifier(path)

	data, err := dec.Decompress(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: decompress: %v\n", err)
		return 1
	}
	scan, err := dec.Decode(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: decode: %v\n", err)
		return 1
	}

	structure := validateStructure(scan)
	projection, points := validateProjection(scan, threshold, renderRatio)
	phases := []*phase{ident, structure, validateGates(scan), projection}
	if cluster {
		phases = append(phases, validateClustering(points, params))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Volume: site %s, captured %s, %d sweeps, %d radials, %d points\n",
		scan.Site, scan.CapturedAt.Format("2006-01-02T15:04:05Z"), len(scan.Sweeps), scan.RadialCount(), len(points))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i == maxListedErrors {
				fmt.Printf("  ... %d more\n", len(p.errors)-maxListedErrors)
				break
			}
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Identifier ──
// The file name must parse as a scan identifier when it looks like one.

func validateIdentifier(path string) *phase {
	p := &phase{name: "Phase 1: Identifier"}

	id := domain.ScanIdentifier(filepath.Base(path))
	if _, err := id.Time(); err != nil {
		p.errorf("%v", err)
	}
	if _, err := id.Date(); err != nil {
		p.errorf("%v", err)
	}
	return p
}

// ── Phase 2: Structure ──
// Sweeps hold radials with sane geometry and a single elevation each.

func validateStructure(scan *domain.VolumeScan) *phase {
	p := &phase{name: "Phase 2: Sweep Structure"}

	if len(scan.Site) != 4 {
		p.errorf("site %q is not a 4-letter code", scan.Site)
	}
	if scan.CapturedAt.IsZero() {
		p.errorf("volume has no capture time")
	}
	seen := make(map[int]bool, len(scan.Sweeps))
	for _, sweep := range scan.Sweeps {
		if seen[sweep.Number] {
			p.errorf("elevation number %d appears in two sweeps", sweep.Number)
		}
		seen[sweep.Number] = true
		if len(sweep.Radials) == 0 {
			p.errorf("sweep %d has no radials", sweep.Number)
		}
		for i, r := range sweep.Radials {
			if r.Azimuth < 0 || r.Azimuth >= 360 {
				p.errorf("sweep %d radial %d: azimuth %.2f out of range", sweep.Number, i, r.Azimuth)
			}
			if r.AzimuthSpacing != 0.5 && r.AzimuthSpacing != 1 {
				p.errorf("sweep %d radial %d: azimuth spacing %.2f", sweep.Number, i, r.AzimuthSpacing)
			}
			if math.Abs(r.Elevation-sweep.Elevation) > 1 {
				p.errorf("sweep %d radial %d: elevation %.2f far from sweep angle %.2f", sweep.Number, i, r.Elevation, sweep.Elevation)
			}
			if r.GateInterval <= 0 {
				p.errorf("sweep %d radial %d: gate interval %.1f", sweep.Number, i, r.GateInterval)
			}
		}
	}
	return p
}

// ── Phase 3: Gates ──
// Every radial uses the supported word size and carries its declared gates.

func validateGates(scan *domain.VolumeScan) *phase {
	p := &phase{name: "Phase 3: Gate Encoding"}

	for _, sweep := range scan.Sweeps {
		for i, r := range sweep.Radials {
			if r.GateCount != len(r.Gates) {
				p.errorf("sweep %d radial %d: %d gates declared, %d present", sweep.Number, i, r.GateCount, len(r.Gates))
			}
			if _, err := domain.ScaleGates(r.Gates, r.WordSize, r.Scale, r.Offset); err != nil {
				p.errorf("sweep %d radial %d: %v", sweep.Number, i, err)
			}
		}
	}
	return p
}

// ── Phase 4: Projection ──
// DerivePoints succeeds, yields finite positions, and colors every point.

func validateProjection(scan *domain.VolumeScan, threshold, renderRatio float64) (*phase, []domain.ColoredPoint) {
	p := &phase{name: "Phase 4: Projection and Coloring"}

	points, err := domain.NewProjector(renderRatio).DerivePoints(scan, threshold)
	if err != nil {
		p.errorf("derive points: %v", err)
		return p, nil
	}
	domain.ClassifyPoints(points)

	for i, pt := range points {
		if math.IsNaN(pt.Pos.X) || math.IsNaN(pt.Pos.Y) || math.IsNaN(pt.Pos.Z) ||
			math.IsInf(pt.Pos.X, 0) || math.IsInf(pt.Pos.Y, 0) || math.IsInf(pt.Pos.Z, 0) {
			p.errorf("point %d: non-finite position %v", i, pt.Pos)
		}
		if domain.IsSentinel(pt.Strength) {
			p.errorf("point %d: sentinel strength %v survived inclusion", i, pt.Strength)
		}
	}
	return p, points
}

// ── Phase 5: Clustering ──
// Every point is assigned exactly once and summaries cover all members.

func validateClustering(points []domain.ColoredPoint, params domain.ClusterParams) *phase {
	p := &phase{name: "Phase 5: Clustering"}

	assignments, err := domain.Cluster(points, params)
	if err != nil {
		p.errorf("cluster: %v", err)
		return p
	}
	if len(assignments) != len(points) {
		p.errorf("%d assignments for %d points", len(assignments), len(points))
		return p
	}

	members := 0
	for _, s := range domain.Summarize(points, assignments) {
		members += s.Size
		if s.CoreCount == 0 {
			p.errorf("cluster %d has no core point", s.ID)
		}
	}
	if noise := domain.CountNoise(assignments); members+noise != len(points) {
		p.errorf("%d clustered + %d noise != %d points", members, noise, len(points))
	}
	return p
}
