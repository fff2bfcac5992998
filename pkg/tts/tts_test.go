package tts_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-jarvis/pkg/tts"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bold", "Esto es **muy** importante", "Esto es muy importante"},
		{"italic", "Un *toque* de estilo", "Un toque de estilo"},
		{"tags", "<b>Hola</b> <br/>señor", "Hola señor"},
		{"blank lines", "Uno\n\n\nDos", "Uno Dos"},
		{"spaces", "  mucho    espacio \t aquí  ", "mucho espacio aquí"},
		{"mixed", "**Nota:**\n\n<i>*todo*</i> listo", "Nota: todo listo"},
		{"only markup", "<br/>  ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tts.Sanitize(tt.in))
		})
	}
}

func TestElevenLabsSynthesize(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/text-to-speech/"+tts.ElevenLabsVoices["rachel"], r.URL.Path)
		assert.Equal(t, string(tts.EncodingMP3), r.URL.Query().Get("output_format"))
		assert.Equal(t, "secret", r.Header.Get("xi-api-key"))
		assert.Equal(t, "audio/mpeg", r.Header.Get("Accept"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write(make([]byte, 16000))
	}))
	defer server.Close()

	p, err := tts.NewElevenLabs(
		tts.WithAPIKey("secret"),
		tts.WithVoice("default-voice"),
		tts.WithBaseURL(server.URL),
	)
	require.NoError(t, err)
	defer p.Close()

	res, err := p.Synthesize(context.Background(), &tts.Request{Text: "**Hola**, señor", VoiceID: "Rachel"})
	require.NoError(t, err)
	assert.Equal(t, "Hola, señor", res.Text)
	assert.Equal(t, 11, res.CharCount)
	assert.Len(t, res.Audio, 16000)
	assert.Equal(t, time.Second, res.Duration)

	assert.Equal(t, "Hola, señor", got["text"])
	assert.Equal(t, tts.ModelMultilingualV2, got["model_id"])
	assert.Equal(t, map[string]any{
		"stability":         0.5,
		"similarity_boost":  0.75,
		"style":             0.0,
		"use_speaker_boost": true,
	}, got["voice_settings"])
}

func TestElevenLabsEmptyText(t *testing.T) {
	p, err := tts.NewElevenLabs(tts.WithAPIKey("k"), tts.WithVoice("v"), tts.WithBaseURL("http://127.0.0.1:1"))
	require.NoError(t, err)
	_, err = p.Synthesize(context.Background(), &tts.Request{Text: "<br>"})
	assert.ErrorIs(t, err, tts.ErrEmptyText)
}

func TestElevenLabsErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":{"status":"invalid_api_key","message":"Invalid API key"}}`))
	}))
	defer server.Close()

	p, err := tts.NewElevenLabs(tts.WithAPIKey("bad"), tts.WithVoice("v"), tts.WithBaseURL(server.URL))
	require.NoError(t, err)

	_, err = p.Synthesize(context.Background(), &tts.Request{Text: "Hola"})
	var apiErr *tts.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsUnauthorized())
	assert.Equal(t, "invalid_api_key", apiErr.Code)
	assert.Equal(t, "Invalid API key", apiErr.Message)
	assert.Equal(t, int32(1), calls.Load())
}

func TestElevenLabsRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("mp3"))
	}))
	defer server.Close()

	p, err := tts.NewElevenLabs(tts.WithAPIKey("k"), tts.WithVoice("v"), tts.WithBaseURL(server.URL),
		tts.WithRetry(2, time.Millisecond))
	require.NoError(t, err)

	res, err := p.Synthesize(context.Background(), &tts.Request{Text: "Hola"})
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3"), res.Audio)
	assert.Equal(t, int32(3), calls.Load())
}

func TestElevenLabsVoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/voices":
			w.Write([]byte(`{"voices":[{"voice_id":"abc","name":"Jarvis","category":"cloned","labels":{"accent":"british"}}]}`))
		case "/user":
			w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	p, err := tts.NewElevenLabs(tts.WithAPIKey("k"), tts.WithVoice("v"), tts.WithBaseURL(server.URL))
	require.NoError(t, err)

	voices, err := p.Voices(context.Background())
	require.NoError(t, err)
	require.Len(t, voices, 1)
	assert.Equal(t, "abc", voices[0].VoiceID)
	assert.Equal(t, "british", voices[0].Labels["accent"])

	assert.NoError(t, p.Health(context.Background()))
}

func TestNewElevenLabsValidation(t *testing.T) {
	_, err := tts.NewElevenLabs(tts.WithVoice("v"))
	assert.ErrorIs(t, err, tts.ErrNoAPIKey)

	_, err = tts.NewElevenLabs(tts.WithAPIKey("k"))
	assert.ErrorIs(t, err, tts.ErrNoVoiceID)
}

func TestResolveVoice(t *testing.T) {
	assert.Equal(t, tts.ElevenLabsVoices["daniel"], tts.ResolveElevenLabsVoice("Daniel"))
	assert.Equal(t, "raw-id", tts.ResolveElevenLabsVoice("raw-id"))
}

func TestEstimateDuration(t *testing.T) {
	assert.Equal(t, time.Second, tts.EstimateDuration(tts.EncodingPCM24, 48000))
	assert.Equal(t, time.Second, tts.EstimateDuration(tts.EncodingMP3, 16000))
}

func TestMock(t *testing.T) {
	mock := tts.NewMock()
	ctx := context.Background()

	res, err := mock.Synthesize(ctx, &tts.Request{Text: "Hola *mundo*", VoiceID: "v1"})
	require.NoError(t, err)
	assert.Equal(t, "Hola mundo", res.Text)
	assert.NotEmpty(t, res.Audio)

	voices, err := mock.Voices(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, voices)

	assert.Equal(t, []string{"Hola *mundo*"}, mock.Texts())
	assert.Equal(t, "v1", mock.Calls()[0].VoiceID)
	assert.Equal(t, 1, mock.CallCount("Synthesize"))

	mock.Reset()
	assert.Empty(t, mock.Calls())

	boom := errors.New("boom")
	_, err = tts.WithError(boom).Synthesize(ctx, &tts.Request{Text: "x"})
	assert.ErrorIs(t, err, boom)

	slow := tts.WithLatency(tts.NewMock(), time.Second)
	cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = slow.Synthesize(cctx, &tts.Request{Text: "x"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTextProvider(t *testing.T) {
	res, err := tts.Text{}.Synthesize(context.Background(), &tts.Request{Text: "**Listo**, señor"})
	require.NoError(t, err)
	assert.Equal(t, "Listo, señor", res.Text)
	assert.Empty(t, res.Audio)

	_, err = tts.Text{}.Synthesize(context.Background(), &tts.Request{Text: " "})
	assert.ErrorIs(t, err, tts.ErrEmptyText)
}
