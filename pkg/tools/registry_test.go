package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-jarvis/pkg/conversation"
	"github.com/teslashibe/go-jarvis/pkg/intent"
	"github.com/teslashibe/go-jarvis/pkg/weather"
)

type reporterFunc func(ctx context.Context, utterance string) (string, error)

func (f reporterFunc) Report(ctx context.Context, utterance string) (string, error) {
	return f(ctx, utterance)
}

type point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func TestInvokeNormalizesShapes(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()

	r.Register("sync", Sync(func(context.Context, string) (any, error) {
		return "sincrono", nil
	}))
	r.Register("async", Async(func(context.Context, string) (any, error) {
		time.Sleep(10 * time.Millisecond)
		return "diferido", nil
	}))
	r.Register("stream", Stream(func(context.Context, string) (<-chan any, <-chan error) {
		values := make(chan any, 2)
		values <- "primero"
		values <- "segundo"
		close(values)
		return values, nil
	}))
	r.Register("struct", Sync(func(context.Context, string) (any, error) {
		return point{Lat: 1.5, Lon: 2}, nil
	}))

	tests := []struct {
		tag  intent.Tag
		want string
	}{
		{"sync", "sincrono"},
		{"async", "diferido"},
		{"stream", "primero"},
		{"struct", `{"lat":1.5,"lon":2}`},
	}
	for _, tt := range tests {
		t.Run(string(tt.tag), func(t *testing.T) {
			msg, err := r.Invoke(ctx, tt.tag, "x")
			require.NoError(t, err)
			assert.Equal(t, tt.want, msg.Content)
			assert.Equal(t, conversation.RoleAssistant, msg.Role)
			assert.True(t, strings.HasPrefix(msg.ID, conversation.PrefixLocal+"_"))
		})
	}
}

func TestInvokeFailures(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	r := NewRegistry(WithTimeout(20 * time.Millisecond))
	r.Register("err", Sync(func(context.Context, string) (any, error) { return nil, boom }))
	r.Register("async-err", Async(func(context.Context, string) (any, error) { return nil, boom }))
	r.Register("panic", HandlerFunc(func(context.Context, string) Result { panic("kaput") }))
	r.Register("async-panic", Async(func(context.Context, string) (any, error) { panic("kaput") }))
	r.Register("slow", Async(func(ctx context.Context, _ string) (any, error) {
		<-ctx.Done()
		time.Sleep(5 * time.Millisecond)
		return "tarde", nil
	}))
	r.Register("empty-stream", Stream(func(context.Context, string) (<-chan any, <-chan error) {
		values := make(chan any)
		close(values)
		return values, nil
	}))
	r.Register("empty-text", Sync(func(context.Context, string) (any, error) { return "", nil }))

	tests := []struct {
		tag    intent.Tag
		target error
	}{
		{"err", boom},
		{"async-err", boom},
		{"panic", nil},
		{"async-panic", nil},
		{"slow", context.DeadlineExceeded},
		{"empty-stream", ErrNoResult},
		{"empty-text", ErrNoResult},
		{"missing", ErrUnknownTool},
	}
	for _, tt := range tests {
		t.Run(string(tt.tag), func(t *testing.T) {
			_, err := r.Invoke(ctx, tt.tag, "x")
			require.Error(t, err)

			var te *ToolError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.tag, te.Tag)
			assert.True(t, IsToolError(err))
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestStreamErrorWins(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("sin datos")
	r.Register(intent.TagWeather, WeatherHandler(reporterFunc(func(context.Context, string) (string, error) {
		return "", boom
	})))

	for i := 0; i < 20; i++ {
		_, err := r.Invoke(context.Background(), intent.TagWeather, "clima en Madrid")
		assert.ErrorIs(t, err, boom)
	}
}

func TestBuiltins(t *testing.T) {
	madrid, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		madrid = time.UTC
	}
	fixed := time.Date(2024, 3, 10, 14, 5, 9, 0, madrid)

	r := NewRegistry()
	r.RegisterBuiltins(Builtins{
		Clock:    func() time.Time { return fixed },
		Location: madrid,
		Pick:     func(int) int { return 2 },
		Weather: reporterFunc(func(_ context.Context, u string) (string, error) {
			return "Clima para " + u, nil
		}),
	})
	assert.Equal(t, []intent.Tag{intent.TagGreeting, intent.TagTime, intent.TagWeather}, r.Tags())

	msg, err := r.Invoke(context.Background(), intent.TagTime, "¿qué hora es?")
	require.NoError(t, err)
	assert.Equal(t, "La hora actual es 14:05:09.", msg.Content)

	msg, err = r.Invoke(context.Background(), intent.TagGreeting, "hola")
	require.NoError(t, err)
	assert.Equal(t, Greetings[2], msg.Content)

	msg, err = r.Invoke(context.Background(), intent.TagWeather, "Lima")
	require.NoError(t, err)
	assert.Equal(t, "Clima para Lima", msg.Content)
}

func TestBuiltinsWithoutWeather(t *testing.T) {
	r := NewRegistry()
	r.RegisterBuiltins(Builtins{})
	assert.True(t, r.Has(intent.TagTime))
	assert.False(t, r.Has(intent.TagWeather))
}

func TestTimeHandlerFormat(t *testing.T) {
	msg, err := TimeHandler(nil, time.UTC).Handle(context.Background(), "").Await(context.Background())
	require.NoError(t, err)
	assert.Regexp(t, `^La hora actual es \d{2}:\d{2}:\d{2}\.$`, msg.Content)
}

func TestAwait(t *testing.T) {
	res := Immediate(Reply("ya"))
	assert.False(t, res.IsDeferred())
	msg, err := res.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ya", msg.Content)

	ch := make(chan Outcome)
	res = Deferred(ch)
	assert.True(t, res.IsDeferred())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = res.Await(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	close(ch)
	_, err = res.Await(context.Background())
	assert.ErrorIs(t, err, ErrNoResult)

	_, err = Deferred(nil).Await(context.Background())
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestToText(t *testing.T) {
	s, err := ToText([]byte("bytes"))
	require.NoError(t, err)
	assert.Equal(t, "bytes", s)

	s, err = ToText(time.Duration(1500) * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "1.5s", s)

	s, err = ToText(conversation.NewUserMessage("eco"))
	require.NoError(t, err)
	assert.Equal(t, "eco", s)

	_, err = ToText(nil)
	assert.ErrorIs(t, err, ErrNoResult)

	_, err = ToText(func() {})
	assert.Error(t, err)
}

func TestDefaultTimeoutCoversWeatherChain(t *testing.T) {
	// Geocoding and forecast requests run one after the other.
	assert.Greater(t, DefaultTimeout, 2*weather.DefaultTimeout)
	assert.Equal(t, DefaultTimeout, NewRegistry().timeout)
}
