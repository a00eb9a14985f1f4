package geo

import (
	"math"
)

// HaversineKM returns the great-circle distance between two points in kilometers.
func HaversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	la1 := lat1 * math.Pi / 180
	la2 := lat2 * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(la1)*math.Cos(la2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}

// BearingDeg returns the initial bearing from point 1 to point 2 in degrees [0,360).
func BearingDeg(lat1, lon1, lat2, lon2 float64) float64 {
	la1 := lat1 * math.Pi / 180
	la2 := lat2 * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	y := math.Sin(dLon) * math.Cos(la2)
	x := math.Cos(la1)*math.Sin(la2) - math.Sin(la1)*math.Cos(la2)*math.Cos(dLon)
	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// DistanceAlongKM projects a position onto a polyline of waypoints and returns
// the cumulative distance from the first waypoint to the projected point.
// Waypoints are [lat,lon] pairs in path order. Returns 0 for fewer than two
// waypoints.
func DistanceAlongKM(waypoints [][2]float64, lat, lon float64) float64 {
	if len(waypoints) < 2 {
		return 0
	}

	minDist := math.MaxFloat64
	bestSeg := 0
	bestT := 0.0
	for i := 0; i < len(waypoints)-1; i++ {
		c1 := waypoints[i]
		c2 := waypoints[i+1]

		// Planar projection onto the segment; adequate at station spacing.
		vx := c2[1] - c1[1]
		vy := c2[0] - c1[0]
		wx := lon - c1[1]
		wy := lat - c1[0]

		denom := vx*vx + vy*vy
		t := 0.0
		if denom > 0 {
			t = (wx*vx + wy*vy) / denom
			if t < 0 {
				t = 0
			} else if t > 1 {
				t = 1
			}
		}

		px := c1[1] + t*vx
		py := c1[0] + t*vy
		dx := lon - px
		dy := lat - py
		dist := dx*dx + dy*dy
		if dist < minDist {
			minDist = dist
			bestSeg = i
			bestT = t
		}
	}

	cumKM := 0.0
	for j := 0; j < bestSeg; j++ {
		cumKM += HaversineKM(waypoints[j][0], waypoints[j][1], waypoints[j+1][0], waypoints[j+1][1])
	}
	segKM := HaversineKM(waypoints[bestSeg][0], waypoints[bestSeg][1], waypoints[bestSeg+1][0], waypoints[bestSeg+1][1])
	return cumKM + bestT*segKM
}

// PointAtDistanceKM returns the [lat,lon] point at targetKM along the polyline,
// clamped to its endpoints. ok is false for fewer than two waypoints.
func PointAtDistanceKM(waypoints [][2]float64, targetKM float64) (lat, lon float64, ok bool) {
	if len(waypoints) < 2 {
		return 0, 0, false
	}

	cum := make([]float64, len(waypoints))
	for i := 1; i < len(waypoints); i++ {
		cum[i] = cum[i-1] + HaversineKM(waypoints[i-1][0], waypoints[i-1][1], waypoints[i][0], waypoints[i][1])
	}
	if targetKM <= 0 {
		return waypoints[0][0], waypoints[0][1], true
	}
	if targetKM >= cum[len(cum)-1] {
		last := waypoints[len(waypoints)-1]
		return last[0], last[1], true
	}

	seg := 0
	for i := 1; i < len(cum); i++ {
		if cum[i] >= targetKM {
			seg = i - 1
			break
		}
	}
	t := 0.0
	if cum[seg+1] > cum[seg] {
		t = (targetKM - cum[seg]) / (cum[seg+1] - cum[seg])
	}
	c1 := waypoints[seg]
	c2 := waypoints[seg+1]
	return c1[0] + t*(c2[0]-c1[0]), c1[1] + t*(c2[1]-c1[1]), true
}
