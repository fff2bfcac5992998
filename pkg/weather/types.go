package weather

// geocodingResponse is the Open-Meteo geocoding search payload.
type geocodingResponse struct {
	Results []geocodingResult `json:"results"`
}

type geocodingResult struct {
	Name        string  `json:"name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Country     string  `json:"country"`
	CountryCode string  `json:"country_code"`
	Admin1      string  `json:"admin1"`
	Timezone    string  `json:"timezone"`
}

// Forecast is the subset of the Open-Meteo forecast payload we read.
type Forecast struct {
	CurrentWeather *CurrentWeather `json:"current_weather"`
	Daily          *Daily          `json:"daily"`
}

// CurrentWeather holds the real-time observation.
type CurrentWeather struct {
	Temperature float64 `json:"temperature"`
	WeatherCode int     `json:"weathercode"`
	WindSpeed   float64 `json:"windspeed"`
}

// Daily holds per-day aggregates; index 0 is today.
type Daily struct {
	TemperatureMax              []float64 `json:"temperature_2m_max"`
	TemperatureMin              []float64 `json:"temperature_2m_min"`
	PrecipitationProbabilityMax []float64 `json:"precipitation_probability_max"`
	WeatherCode                 []int     `json:"weathercode"`
}

// Location is a resolved place.
type Location struct {
	DisplayName string  `json:"display_name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Timezone    string  `json:"timezone,omitempty"`
}

type ipLocationResponse struct {
	City        string `json:"city"`
	Region      string `json:"region"`
	CountryName string `json:"country_name"`
}
