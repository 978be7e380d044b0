package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/synthcache/engine"
)

const wav = "RIFF\x00\x00\x00\x00WAVEfmt "

func newSidecar(t *testing.T, healthy bool, seen *synthesizeRequest) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.URL.Query().Get("model") == "missing" {
			http.Error(w, "no such model", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /synthesize", func(w http.ResponseWriter, r *http.Request) {
		var req synthesizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if seen != nil {
			*seen = req
		}
		switch req.Model {
		case "missing":
			http.Error(w, "no such model", http.StatusNotFound)
		case "garbage":
			w.Write([]byte("not audio"))
		case "crash":
			http.Error(w, "CUDA out of memory", http.StatusInternalServerError)
		default:
			w.Header().Set("Content-Type", "audio/wav")
			w.Write([]byte(wav))
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSynthesize(t *testing.T) {
	var seen synthesizeRequest
	srv := newSidecar(t, true, &seen)

	c, err := New(srv.URL + "/")
	require.NoError(t, err)
	defer c.Close()

	spk := ""
	a, err := c.Synthesize(context.Background(), engine.Input{Text: "Hallo Welt", Model: "m", Speaker: &spk, SplitSentences: true})
	require.NoError(t, err)
	require.Equal(t, "wav", a.Format)
	require.Equal(t, wav, string(a.Data))

	require.Equal(t, "Hallo Welt", seen.Text)
	require.NotNil(t, seen.Speaker)
	require.Equal(t, "", *seen.Speaker)
	require.True(t, seen.SplitSentences)
}

func TestSynthesizeErrors(t *testing.T) {
	srv := newSidecar(t, true, nil)
	c, err := New(srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.Synthesize(ctx, engine.Input{Text: "x", Model: "missing"})
	require.ErrorIs(t, err, engine.ErrUnknownModel)

	_, err = c.Synthesize(ctx, engine.Input{Text: "x", Model: "garbage"})
	require.ErrorIs(t, err, engine.ErrInvalidOutput)

	_, err = c.Synthesize(ctx, engine.Input{Text: "x", Model: "crash"})
	require.ErrorContains(t, err, "CUDA out of memory")
}

func TestSidecarDown(t *testing.T) {
	srv := newSidecar(t, true, nil)
	c, err := New(srv.URL)
	require.NoError(t, err)
	srv.Close()

	_, err = c.Synthesize(context.Background(), engine.Input{Text: "x", Model: "m"})
	require.ErrorIs(t, err, engine.ErrUnavailable)
}

func TestOpenProbesHealth(t *testing.T) {
	healthy := newSidecar(t, true, nil)
	e, err := engine.Open(context.Background(), Kind, engine.Config{URL: healthy.URL})
	require.NoError(t, err)
	require.NoError(t, e.Close())

	e, err = engine.Open(context.Background(), Kind, engine.Config{URL: healthy.URL, DefaultModel: "tts_models/de/thorsten/vits"})
	require.NoError(t, err)
	require.NoError(t, e.Close())

	_, err = engine.Open(context.Background(), Kind, engine.Config{URL: healthy.URL, DefaultModel: "missing"})
	require.ErrorIs(t, err, engine.ErrUnknownModel)

	sick := newSidecar(t, false, nil)
	_, err = engine.Open(context.Background(), Kind, engine.Config{URL: sick.URL})
	require.ErrorIs(t, err, engine.ErrUnavailable)
}

func TestNewRequiresURL(t *testing.T) {
	_, err := New("")
	require.Error(t, err)
}

func TestProbeSendsModel(t *testing.T) {
	got := make(chan string, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		got <- r.URL.Query().Get("model")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)
	require.NoError(t, c.Probe(context.Background(), "tts_models/de/thorsten/vits"))
	require.Equal(t, "tts_models/de/thorsten/vits", <-got)
}
