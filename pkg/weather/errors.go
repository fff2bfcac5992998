package weather

import "errors"

// ErrLocationNotFound is returned when geocoding yields no result.
var ErrLocationNotFound = errors.New("weather: location not found")
