package weather

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	geocodeCalls atomic.Int32
	geocode      func(w http.ResponseWriter, r *http.Request)
	forecast     func(w http.ResponseWriter, r *http.Request)
	ip           func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeAPI) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		f.geocodeCalls.Add(1)
		f.geocode(w, r)
	})
	mux.HandleFunc("/forecast", func(w http.ResponseWriter, r *http.Request) { f.forecast(w, r) })
	mux.HandleFunc("/ip", func(w http.ResponseWriter, r *http.Request) { f.ip(w, r) })
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(srv *httptest.Server) *Client {
	return New(
		WithHTTPClient(srv.Client()),
		WithEndpoints(srv.URL+"/search", srv.URL+"/forecast", srv.URL+"/ip"),
	)
}

func madridGeocode(t *testing.T) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "1", q.Get("count"))
		assert.Equal(t, "es", q.Get("language"))
		assert.Equal(t, "json", q.Get("format"))
		writeJSON(w, map[string]any{"results": []map[string]any{{
			"name": "Madrid", "admin1": "Comunidad de Madrid", "country": "España",
			"latitude": 40.4165, "longitude": -3.70256, "timezone": "Europe/Madrid",
		}}})
	}
}

func TestReport(t *testing.T) {
	api := &fakeAPI{
		geocode: madridGeocode(t),
		forecast: func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			assert.Equal(t, "40.4165", q.Get("latitude"))
			assert.Equal(t, "-3.70256", q.Get("longitude"))
			assert.Equal(t, "true", q.Get("current_weather"))
			assert.Equal(t, dailyFields, q.Get("daily"))
			assert.Equal(t, "Europe/Madrid", q.Get("timezone"))
			writeJSON(w, map[string]any{
				"current_weather": map[string]any{"temperature": 21.6, "weathercode": 2, "windspeed": 11.2},
				"daily": map[string]any{
					"temperature_2m_max":            []float64{25.4},
					"temperature_2m_min":            []float64{12.5},
					"precipitation_probability_max": []float64{10},
					"weathercode":                   []int{2},
				},
			})
		},
	}
	c := newTestClient(api.server(t))

	got, err := c.Report(context.Background(), "¿Qué clima hace en Madrid?")
	require.NoError(t, err)
	assert.Equal(t, "En Madrid, Comunidad de Madrid, España ahora hay nubosidad variable con 22°C. "+
		"Para hoy se esperan máximas de 25°C y mínimas de 13°C. "+
		"La probabilidad de lluvia ronda el 10%. "+
		"El viento sopla a unos 11 km/h.", got)

	// Second lookup is served from the cache.
	_, err = c.Report(context.Background(), "clima en madrid")
	require.NoError(t, err)
	assert.Equal(t, int32(1), api.geocodeCalls.Load())
}

func TestReportFallbacks(t *testing.T) {
	t.Run("unknown place", func(t *testing.T) {
		api := &fakeAPI{geocode: func(w http.ResponseWriter, _ *http.Request) { writeJSON(w, map[string]any{}) }}
		c := newTestClient(api.server(t))
		got, err := c.Report(context.Background(), "clima en Atlantida")
		require.NoError(t, err)
		assert.Equal(t, "No pude obtener datos meteorológicos para Atlantida. ¿Podrías darme otra ciudad?", got)
	})

	t.Run("forecast error", func(t *testing.T) {
		api := &fakeAPI{
			geocode:  madridGeocode(t),
			forecast: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusBadGateway) },
		}
		c := newTestClient(api.server(t))
		got, err := c.Report(context.Background(), "Madrid")
		require.NoError(t, err)
		assert.Equal(t, "No pude recuperar el pronóstico para Madrid, Comunidad de Madrid, España. Intenta nuevamente en unos minutos.", got)
	})

	t.Run("no current weather", func(t *testing.T) {
		api := &fakeAPI{
			geocode:  madridGeocode(t),
			forecast: func(w http.ResponseWriter, _ *http.Request) { writeJSON(w, map[string]any{}) },
		}
		c := newTestClient(api.server(t))
		got, err := c.Report(context.Background(), "Madrid")
		require.NoError(t, err)
		assert.Contains(t, got, "No recibí datos en tiempo real para Madrid")
	})

	t.Run("ip location", func(t *testing.T) {
		api := &fakeAPI{ip: func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, map[string]any{"city": "Sevilla", "region": "Andalucía", "country_name": "Spain"})
		}}
		c := newTestClient(api.server(t))
		got, err := c.Report(context.Background(), "¿qué clima hace?")
		require.NoError(t, err)
		assert.Contains(t, got, "Parece que estás cerca de Sevilla, Andalucía, Spain.")
	})

	t.Run("ip lookup fails", func(t *testing.T) {
		api := &fakeAPI{ip: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTooManyRequests) }}
		c := newTestClient(api.server(t))
		got, err := c.Report(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, privacyNoPlace, got)
	})
}

func TestReportCanceled(t *testing.T) {
	api := &fakeAPI{geocode: madridGeocode(t)}
	c := newTestClient(api.server(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Report(ctx, "clima en Madrid")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractLocation(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"¿Qué clima hace en Buenos Aires?", "Buenos Aires"},
		{"pronóstico para Lima", "Lima"},
		{"dime el tiempo de Bogotá", "Bogotá"},
		{"¿lloverá sobre Sevilla, mañana?", "Sevilla"},
		{"Ciudad de México", "México"},
		{"Quito", "Quito"},
		{"no", ""},
		{"¿qué clima hace?", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractLocation(tt.in))
		})
	}
}

func TestDescribeCode(t *testing.T) {
	assert.Equal(t, "está despejado", DescribeCode(0))
	assert.Equal(t, "tormentas con granizo intenso", DescribeCode(99))
	assert.Equal(t, "hay condiciones cambiantes", DescribeCode(42))
}

func TestSummarizeWithoutDaily(t *testing.T) {
	got := Summarize("Quito", &Forecast{CurrentWeather: &CurrentWeather{Temperature: -2.5, WeatherCode: 0, WindSpeed: 3.5}})
	assert.Equal(t, "En Quito ahora está despejado con -2°C. El viento sopla a unos 4 km/h.", got)
}
