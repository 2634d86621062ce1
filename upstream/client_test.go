package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/credsim/cache"
	"github.com/sig-0/credsim/storage/types"
)

const testCPF = "11111111111"

// newUpstream creates a fake upstream serving the given handler
func newUpstream(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return srv
}

func TestClient_Discover(t *testing.T) {
	t.Parallel()

	t.Run("valid response", func(t *testing.T) {
		t.Parallel()

		var captured map[string]any

		srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/credito", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

			_, _ = w.Write([]byte(`{"instituicoes":[{"id":1,"nome":"Banco PingApp","modalidades":[
				{"nome":"crédito pessoal","cod":"3"},
				{"nome":"crédito consignado","cod":13}
			]}]}`))
		})

		institutions, err := NewClient(srv.URL+"/").Discover(context.Background(), testCPF)
		require.NoError(t, err)

		assert.Equal(t, map[string]any{"cpf": testCPF}, captured)

		require.Len(t, institutions, 1)
		assert.Equal(t, int64(1), institutions[0].ID)
		assert.Equal(t, "Banco PingApp", institutions[0].Name)

		require.Len(t, institutions[0].Modalities, 2)
		assert.Equal(t, types.StringCode("3"), institutions[0].Modalities[0].Code)
		assert.Equal(t, types.NumericCode("13"), institutions[0].Modalities[1].Code)
	})

	t.Run("empty institutions", func(t *testing.T) {
		t.Parallel()

		srv := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"instituicoes":[]}`))
		})

		_, err := NewClient(srv.URL).Discover(context.Background(), testCPF)
		assert.ErrorIs(t, err, ErrNoInstitutions)
	})

	t.Run("missing institutions field", func(t *testing.T) {
		t.Parallel()

		srv := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"message":"ok"}`))
		})

		_, err := NewClient(srv.URL).Discover(context.Background(), testCPF)
		assert.ErrorIs(t, err, ErrDiscoveryFailed)
	})

	t.Run("invalid status code", func(t *testing.T) {
		t.Parallel()

		srv := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := NewClient(srv.URL).Discover(context.Background(), testCPF)
		assert.ErrorIs(t, err, ErrDiscoveryFailed)
	})

	t.Run("malformed body", func(t *testing.T) {
		t.Parallel()

		srv := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		})

		_, err := NewClient(srv.URL).Discover(context.Background(), testCPF)
		assert.ErrorIs(t, err, ErrDiscoveryFailed)
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})

		srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		})
		defer close(release)

		_, err := NewClient(
			srv.URL,
			WithTimeout(50*time.Millisecond),
		).Discover(context.Background(), testCPF)

		assert.ErrorIs(t, err, ErrDiscoveryFailed)
	})
}

func TestClient_Simulate(t *testing.T) {
	t.Parallel()

	t.Run("valid response", func(t *testing.T) {
		t.Parallel()

		var captured map[string]any

		srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/oferta", r.URL.Path)

			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

			_, _ = w.Write([]byte(
				`{"QntParcelaMin":24,"QntParcelaMax":72,"valorMin":5000,"valorMax":8000,"jurosMes":0.0365}`,
			))
		})

		quote, err := NewClient(srv.URL).Simulate(context.Background(), testCPF, 2, types.StringCode("13"))
		require.NoError(t, err)

		assert.Equal(t, map[string]any{
			"cpf":            testCPF,
			"instituicao_id": float64(2),
			"codModalidade":  "13",
		}, captured)

		require.NotNil(t, quote.MinAmount)
		require.NotNil(t, quote.MaxAmount)
		require.NotNil(t, quote.MinInstallments)
		require.NotNil(t, quote.MaxInstallments)
		require.NotNil(t, quote.MonthlyRate)

		assert.Equal(t, 5000.0, *quote.MinAmount)
		assert.Equal(t, 8000.0, *quote.MaxAmount)
		assert.Equal(t, 24.0, *quote.MinInstallments)
		assert.Equal(t, 72.0, *quote.MaxInstallments)
		assert.Equal(t, 0.0365, *quote.MonthlyRate)

		// Tags are attached by the orchestrator, not the client
		assert.Empty(t, quote.InstitutionName)
	})

	t.Run("numeric code is sent back as a number", func(t *testing.T) {
		t.Parallel()

		var captured map[string]any

		srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

			_, _ = w.Write([]byte(`{"valorMin":1000}`))
		})

		_, err := NewClient(srv.URL).Simulate(context.Background(), testCPF, 2, types.NumericCode("13"))
		require.NoError(t, err)

		assert.Equal(t, float64(13), captured["codModalidade"])
	})

	t.Run("partial response keeps missing fields nil", func(t *testing.T) {
		t.Parallel()

		srv := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"valorMin":1000}`))
		})

		quote, err := NewClient(srv.URL).Simulate(context.Background(), testCPF, 1, types.StringCode("3"))
		require.NoError(t, err)

		require.NotNil(t, quote.MinAmount)
		assert.Nil(t, quote.MaxAmount)
		assert.Nil(t, quote.MonthlyRate)
	})

	t.Run("upstream error", func(t *testing.T) {
		t.Parallel()

		srv := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "offer not found", http.StatusNotFound)
		})

		_, err := NewClient(srv.URL).Simulate(context.Background(), testCPF, 1, types.StringCode("3"))
		assert.ErrorIs(t, err, ErrSimulationFailed)
	})
}

func TestClient_TLS(t *testing.T) {
	t.Parallel()

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"instituicoes":[{"id":1,"nome":"Banco PingApp","modalidades":[]}]}`))
	}))
	t.Cleanup(srv.Close)

	t.Run("verification enabled by default", func(t *testing.T) {
		t.Parallel()

		_, err := NewClient(srv.URL).Discover(context.Background(), testCPF)
		assert.ErrorIs(t, err, ErrDiscoveryFailed)
	})

	t.Run("verification explicitly disabled", func(t *testing.T) {
		t.Parallel()

		institutions, err := NewClient(
			srv.URL,
			WithInsecureSkipVerify(true),
		).Discover(context.Background(), testCPF)
		require.NoError(t, err)

		assert.Len(t, institutions, 1)
	})
}

func TestCachedDiscoverer(t *testing.T) {
	t.Parallel()

	t.Run("second call served from cache", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32

		srv := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)

			_, _ = w.Write([]byte(`{"instituicoes":[{"id":1,"nome":"Banco PingApp","modalidades":[{"nome":"crédito pessoal","cod":"3"}]}]}`))
		})

		d := NewCachedDiscoverer(NewClient(srv.URL), cache.NewMemory(), time.Minute, nil)

		for i := 0; i < 3; i++ {
			institutions, err := d.Discover(context.Background(), testCPF)
			require.NoError(t, err)
			require.Len(t, institutions, 1)

			assert.Equal(t, types.StringCode("3"), institutions[0].Modalities[0].Code)
		}

		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("failures are not cached", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32

		srv := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)

			_, _ = w.Write([]byte(`{"instituicoes":[]}`))
		})

		d := NewCachedDiscoverer(NewClient(srv.URL), cache.NewMemory(), time.Minute, nil)

		for i := 0; i < 2; i++ {
			_, err := d.Discover(context.Background(), testCPF)
			assert.ErrorIs(t, err, ErrNoInstitutions)
		}

		assert.Equal(t, int32(2), calls.Load())
	})
}
