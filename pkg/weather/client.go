// Package weather answers weather questions using the Open-Meteo geocoding
// and forecast APIs.
//
// Lookup failures never surface as errors to the caller. Report always
// produces a conversational Spanish reply, falling back to an apology or an
// IP-based location hint. Only context cancellation is returned as an error.
package weather

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teslashibe/go-jarvis/internal/httpc"
)

// Default endpoints.
const (
	DefaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	DefaultForecastURL  = "https://api.open-meteo.com/v1/forecast"
	DefaultIPLookupURL  = "https://ipapi.co/json/"

	DefaultCacheTTL = 24 * time.Hour
	DefaultTimeout  = 10 * time.Second
)

const (
	privacyNoPlace = "Por privacidad no puedo usar tu ubicación exacta. Dime la ciudad de la que quieres saber el clima y con gusto la consulto."
	dailyFields    = "temperature_2m_max,temperature_2m_min,precipitation_probability_max,weathercode"
)

// Client resolves places and composes weather summaries.
type Client struct {
	http         *http.Client
	geocodingURL string
	forecastURL  string
	ipLookupURL  string

	cacheTTL time.Duration
	mu       sync.Mutex
	cache    map[string]cachedLocation

	logger *zap.SugaredLogger
}

type cachedLocation struct {
	loc     Location
	expires time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(w *Client) { w.http = c }
}

// WithEndpoints overrides the geocoding, forecast and IP lookup URLs.
// Empty values keep the defaults.
func WithEndpoints(geocoding, forecast, ipLookup string) Option {
	return func(w *Client) {
		if geocoding != "" {
			w.geocodingURL = geocoding
		}
		if forecast != "" {
			w.forecastURL = forecast
		}
		if ipLookup != "" {
			w.ipLookupURL = ipLookup
		}
	}
}

// WithCacheTTL sets how long resolved places are cached. Zero disables caching.
func WithCacheTTL(d time.Duration) Option {
	return func(w *Client) { w.cacheTTL = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Client) {
		if l != nil {
			w.logger = l.Sugar().With("component", "weather.client")
		}
	}
}

// New creates a weather client.
func New(opts ...Option) *Client {
	w := &Client{
		http:         httpc.NewClient(DefaultTimeout),
		geocodingURL: DefaultGeocodingURL,
		forecastURL:  DefaultForecastURL,
		ipLookupURL:  DefaultIPLookupURL,
		cacheTTL:     DefaultCacheTTL,
		cache:        make(map[string]cachedLocation),
		logger:       zap.L().Sugar().With("component", "weather.client"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Report answers a weather question in Spanish.
func (w *Client) Report(ctx context.Context, message string) (string, error) {
	query := ExtractLocation(message)
	if query == "" {
		reply := w.approximateLocation(ctx)
		return reply, ctx.Err()
	}

	loc, err := w.Resolve(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		w.logger.Warnw("geocoding failed", "query", query, "error", err)
		return fmt.Sprintf("No pude obtener datos meteorológicos para %s. ¿Podrías darme otra ciudad?", query), nil
	}

	fc, err := w.Forecast(ctx, loc)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		w.logger.Warnw("forecast failed", "location", loc.DisplayName, "error", err)
		return fmt.Sprintf("No pude recuperar el pronóstico para %s. Intenta nuevamente en unos minutos.", loc.DisplayName), nil
	}

	return Summarize(loc.DisplayName, fc), nil
}

// Resolve geocodes a place name, consulting the cache first.
func (w *Client) Resolve(ctx context.Context, query string) (Location, error) {
	key := strings.ToLower(strings.TrimSpace(query))
	if loc, ok := w.cached(key); ok {
		return loc, nil
	}

	params := url.Values{}
	params.Set("name", query)
	params.Set("count", "1")
	params.Set("language", "es")
	params.Set("format", "json")

	var resp geocodingResponse
	if err := httpc.GetJSON(ctx, w.http, w.geocodingURL, params, &resp); err != nil {
		return Location{}, err
	}
	if len(resp.Results) == 0 {
		return Location{}, ErrLocationNotFound
	}

	r := resp.Results[0]
	loc := Location{
		DisplayName: joinNonEmpty(r.Name, r.Admin1, r.Country),
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		Timezone:    r.Timezone,
	}
	w.store(key, loc)
	return loc, nil
}

// Forecast fetches current conditions and today's aggregates for loc.
func (w *Client) Forecast(ctx context.Context, loc Location) (*Forecast, error) {
	tz := loc.Timezone
	if tz == "" {
		tz = "auto"
	}

	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', -1, 64))
	params.Set("current_weather", "true")
	params.Set("daily", dailyFields)
	params.Set("timezone", tz)

	var fc Forecast
	if err := httpc.GetJSON(ctx, w.http, w.forecastURL, params, &fc); err != nil {
		return nil, err
	}
	return &fc, nil
}

func (w *Client) approximateLocation(ctx context.Context) string {
	var resp ipLocationResponse
	if err := httpc.GetJSON(ctx, w.http, w.ipLookupURL, nil, &resp); err != nil {
		w.logger.Debugw("ip lookup failed", "error", err)
		return privacyNoPlace
	}

	approx := joinNonEmpty(resp.City, resp.Region, resp.CountryName)
	if approx == "" {
		return privacyNoPlace
	}
	return fmt.Sprintf("Por privacidad no puedo acceder a tu ubicación exacta. Parece que estás cerca de %s. Confirmame si quieres el clima de esa ciudad o dime otra que prefieras.", approx)
}

// Summarize composes the Spanish weather summary for a forecast.
func Summarize(name string, fc *Forecast) string {
	if fc == nil || fc.CurrentWeather == nil {
		return fmt.Sprintf("No recibí datos en tiempo real para %s, pero puedo intentarlo de nuevo si lo deseas.", name)
	}

	cw := fc.CurrentWeather
	parts := []string{
		fmt.Sprintf("En %s ahora %s con %d°C.", name, strings.ToLower(DescribeCode(cw.WeatherCode)), round(cw.Temperature)),
	}

	if d := fc.Daily; d != nil {
		if len(d.TemperatureMax) > 0 && len(d.TemperatureMin) > 0 {
			parts = append(parts, fmt.Sprintf("Para hoy se esperan máximas de %d°C y mínimas de %d°C.",
				round(d.TemperatureMax[0]), round(d.TemperatureMin[0])))
		}
		if len(d.PrecipitationProbabilityMax) > 0 {
			parts = append(parts, fmt.Sprintf("La probabilidad de lluvia ronda el %d%%.", round(d.PrecipitationProbabilityMax[0])))
		}
	}

	parts = append(parts, fmt.Sprintf("El viento sopla a unos %d km/h.", round(cw.WindSpeed)))
	return strings.Join(parts, " ")
}

func (w *Client) cached(key string) (Location, bool) {
	if w.cacheTTL <= 0 {
		return Location{}, false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.cache[key]
	if !ok || time.Now().After(c.expires) {
		delete(w.cache, key)
		return Location{}, false
	}
	return c.loc, true
}

func (w *Client) store(key string, loc Location) {
	if w.cacheTTL <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cache[key] = cachedLocation{loc: loc, expires: time.Now().Add(w.cacheTTL)}
}

// round rounds half up, so -2.5 becomes -2.
func round(v float64) int {
	return int(math.Floor(v + 0.5))
}

func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}
