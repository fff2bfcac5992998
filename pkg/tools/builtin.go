package tools

import (
	"context"
	"math/rand"
	"time"

	"github.com/teslashibe/go-jarvis/pkg/intent"
)

// Greetings are the replies of the greeting tool.
var Greetings = []string{
	"Hola, soy JARVIS. ¿En qué puedo ayudarte?",
	"Buenos días. Estoy aquí para asistirte.",
	"¡Hola! ¿Qué necesitas que haga por ti?",
}

// TimeHandler answers with the current wall-clock time in loc.
// A nil clock uses time.Now; a nil loc uses time.Local.
func TimeHandler(clock func() time.Time, loc *time.Location) Handler {
	if clock == nil {
		clock = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return Sync(func(context.Context, string) (any, error) {
		return "La hora actual es " + clock().In(loc).Format("15:04:05") + ".", nil
	})
}

// GreetingHandler answers with one of Greetings. pick returns an index in
// [0,n); nil uses math/rand.
func GreetingHandler(pick func(n int) int) Handler {
	if pick == nil {
		pick = rand.Intn
	}
	return Sync(func(context.Context, string) (any, error) {
		return Greetings[pick(len(Greetings))], nil
	})
}

// Reporter produces a weather summary for an utterance.
type Reporter interface {
	Report(ctx context.Context, utterance string) (string, error)
}

// WeatherHandler streams the reporter's single summary.
func WeatherHandler(rep Reporter) Handler {
	return Stream(func(ctx context.Context, utterance string) (<-chan any, <-chan error) {
		values := make(chan any, 1)
		errs := make(chan error, 1)
		go func() {
			defer close(values)
			defer close(errs)
			text, err := rep.Report(ctx, utterance)
			if err != nil {
				errs <- err
				return
			}
			values <- text
		}()
		return values, errs
	})
}

// Builtins holds the dependencies of the built-in tools.
type Builtins struct {
	Clock    func() time.Time
	Location *time.Location
	Pick     func(n int) int
	Weather  Reporter
}

// RegisterBuiltins registers the time and greeting tools, and the weather
// tool when a reporter is configured.
func (r *Registry) RegisterBuiltins(b Builtins) {
	r.Register(intent.TagTime, TimeHandler(b.Clock, b.Location))
	r.Register(intent.TagGreeting, GreetingHandler(b.Pick))
	if b.Weather != nil {
		r.Register(intent.TagWeather, WeatherHandler(b.Weather))
	}
}
