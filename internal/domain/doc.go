// Package domain models NEXRAD WSR-88D volume scans and the transforms that
// turn them into colored, clustered render-space points.
//
// # Data Source
//
// Level II volume scans are published by NOAA to a public object store, one
// object per scan, under "<YYYY>/<MM>/<DD>/<SITE>/". Objects are named
//
//	<SITE><YYYYMMDD>_<HHMMSS>_<VERSION>  →  e.g. "KDMX20230406_000215_V06"
//
// The HHMMSS field is the volume start time in UTC and is the only ordering
// key used by [SelectNearestScan]. Metadata companions ending in "_MDM" are not
// scans and are filtered by the storage adapter.
//
// # Gate Conventions
//
// Reflectivity gates are 8-bit words. Two codes are reserved:
//
//	0  →  [BelowThreshold] (999.0): no return above the SNR threshold
//	1  →  [MomentFolded]   (998.0): range-folded, ambiguous return
//
// Every other word is converted with (raw - offset) / scale, or passed through
// unscaled when the moment's scale is zero. Sentinels are exact constants and
// must be compared with ==.
//
// # Geometry
//
// Azimuths are compass degrees. [SnapAzimuth] rotates them by -90° so that
// azimuth 90° (east) sits on the +X axis, then snaps to the beam index grid.
// Range starts at one gate interval and grows by one interval per gate. The
// render frame is Y-up: points are emitted as (x, z, y) with z = sin(elev)·r,
// scaled by a meters-to-render ratio (default 1 unit per 100 km).
//
// # Color Table
//
// Reflectivity is binned in 5 dBZ steps from 5 to 70 using the conventional
// NWS palette (teal, blues, greens, yellow, amber, orange, reds, maroon,
// magenta). Values below 5 are black and values at or above 70 are white; see
// [ClassifyColor].
//
// # Clustering
//
// [Cluster] is DBSCAN over raw render coordinates. The vertical axis is not
// rescaled, so callers wanting isotropic density must rescale beforehand.
package domain
