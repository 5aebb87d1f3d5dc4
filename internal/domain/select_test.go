package domain

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSite = "KDMX"

func scanID(hhmmss string) ScanIdentifier {
	return ScanIdentifier(fmt.Sprintf("%s20230406_%s_V06", testSite, hhmmss))
}

func TestScanIdentifier(t *testing.T) {
	id := scanID("000215")

	tod, err := id.Time()
	require.NoError(t, err)
	assert.Equal(t, NewTimeOfDay(0, 2, 15), tod)
	assert.Equal(t, "00:02:15", tod.String())

	site, err := id.Site()
	require.NoError(t, err)
	assert.Equal(t, testSite, site)

	date, err := id.Date()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, time.April, 6, 0, 0, 0, 0, time.UTC), date)
}

func TestScanIdentifier_Malformed(t *testing.T) {
	tests := []struct {
		name string
		id   ScanIdentifier
	}{
		{"no separator", "KDMX20230406"},
		{"letters in time", "KDMX20230406_12ab00_V06"},
		{"short time", "KDMX20230406_1200_V06"},
		{"out of range hour", "KDMX20230406_250000_V06"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.id.Time()
			require.ErrorIs(t, err, ErrMalformedIdentifier)
			assert.ErrorIs(t, err, ErrInput)
		})
	}

	_, err := ScanIdentifier("KDMX").Date()
	assert.ErrorIs(t, err, ErrMalformedIdentifier)
}

func TestTimeOfDayOf(t *testing.T) {
	ts := time.Date(2024, time.April, 26, 23, 15, 42, 0, time.UTC)
	assert.Equal(t, NewTimeOfDay(23, 15, 42), TimeOfDayOf(ts))
}

func TestSelectNearestScan(t *testing.T) {
	ids := []ScanIdentifier{scanID("110000"), scanID("120000"), scanID("130000")}

	t.Run("signed ordering prefers the later scan", func(t *testing.T) {
		got, err := SelectNearestScan(ids, NewTimeOfDay(12, 0, 0))
		require.NoError(t, err)
		assert.Equal(t, scanID("130000"), got)
	})

	t.Run("target before every scan", func(t *testing.T) {
		got, err := SelectNearestScan(ids, NewTimeOfDay(9, 0, 0))
		require.NoError(t, err)
		assert.Equal(t, scanID("130000"), got)
	})

	t.Run("only earlier scans picks the closest", func(t *testing.T) {
		earlier := []ScanIdentifier{scanID("100000"), scanID("115500"), scanID("113000")}
		got, err := SelectNearestScan(earlier, NewTimeOfDay(12, 0, 0))
		require.NoError(t, err)
		assert.Equal(t, scanID("115500"), got)
	})

	t.Run("ties keep the first candidate", func(t *testing.T) {
		a := ScanIdentifier("KDMX20230406_120000_V06")
		b := ScanIdentifier("KDMX20230406_120000_V07")
		got, err := SelectNearestScan([]ScanIdentifier{a, b}, NewTimeOfDay(12, 0, 0))
		require.NoError(t, err)
		assert.Equal(t, a, got)
	})

	t.Run("single candidate", func(t *testing.T) {
		got, err := SelectNearestScan(ids[:1], NewTimeOfDay(23, 59, 59))
		require.NoError(t, err)
		assert.Equal(t, ids[0], got)
	})
}

func TestSelectNearestScan_Errors(t *testing.T) {
	_, err := SelectNearestScan(nil, 0)
	require.ErrorIs(t, err, ErrNoCandidates)
	assert.ErrorIs(t, err, ErrInput)

	_, err = SelectNearestScan([]ScanIdentifier{scanID("120000"), "KDMX_bad"}, 0)
	assert.ErrorIs(t, err, ErrMalformedIdentifier)

	_, err = SelectNearestScan([]ScanIdentifier{"garbage", scanID("120000")}, 0)
	assert.ErrorIs(t, err, ErrMalformedIdentifier)
}

func TestSelectNearestScan_ReturnsInputElement(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for range 200 {
		n := 1 + r.IntN(20)
		ids := make([]ScanIdentifier, n)
		for i := range ids {
			ids[i] = scanID(fmt.Sprintf("%02d%02d%02d", r.IntN(24), r.IntN(60), r.IntN(60)))
		}
		target := NewTimeOfDay(r.IntN(24), r.IntN(60), r.IntN(60))

		got, err := SelectNearestScan(ids, target)
		require.NoError(t, err)
		assert.True(t, slices.Contains(ids, got), "selected %q not in input", got)
	}
}
