// Package geo provides great-circle distance on a spherical Earth.
//
// All distances are in kilometers and all coordinates are decimal degrees.
// The sphere model is accurate to about 0.5%.
package geo

import (
	"fmt"
	"math"

	"github.com/nao1215/civicmap/internal/model"
)

// EarthRadiusKM is the mean Earth radius used by Distance.
const EarthRadiusKM = 6371.0

// Distance returns the haversine distance between two points in kilometers.
//
// The result is symmetric, never negative and exactly zero for identical
// inputs. Inputs are not validated; see ValidateCoordinates.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}

	phi1 := radians(lat1)
	phi2 := radians(lat2)
	dPhi := radians(lat2 - lat1)
	dLambda := radians(lon2 - lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)

	// Rounding can push a slightly above 1 for antipodal points.
	a = math.Min(1, math.Max(0, a))

	return 2 * EarthRadiusKM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Round rounds v half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}

// ValidateCoordinates checks that lat is within [-90, 90] and lon within
// [-180, 180]. NaN and infinities are rejected.
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return model.NewValidationError("latitude", fmt.Sprintf("%v is outside [-90, 90]", lat))
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return model.NewValidationError("longitude", fmt.Sprintf("%v is outside [-180, 180]", lon))
	}
	return nil
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
