package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	t.Run("RequiresAPIKey", func(t *testing.T) {
		_, err := NewProvider(&Config{})
		assert.Error(t, err)
	})

	t.Run("FillsDefaults", func(t *testing.T) {
		p, err := NewProvider(&Config{APIKey: "test-key"})
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o-mini", p.config.Model)
		assert.Equal(t, 3, p.config.MaxRetries)
		assert.Equal(t, 15*time.Second, p.config.Timeout)
		assert.Equal(t, 30, p.config.RequestsPerMinute)
	})
}

func TestProvider_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [
				{"message": {"role": "assistant", "content": "[{\"placeName\": \"Tartine\"}]"}}
			]
		}`))
	}))
	defer server.Close()

	p, err := NewProvider(&Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	result, err := p.Complete(context.Background(), "suggest places")
	require.NoError(t, err)
	assert.Equal(t, `[{"placeName": "Tartine"}]`, result)
}

func TestProvider_CompleteRetriesThenSucceeds(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, `{"error": {"message": "overloaded"}}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "ok"}}]}`))
	}))
	defer server.Close()

	p, err := NewProvider(&Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	result, err := p.Complete(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 2, calls)
}

func TestProvider_CompleteEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	p, err := NewProvider(&Config{APIKey: "test-key", BaseURL: server.URL, MaxRetries: 1})
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), "prompt")
	assert.Error(t, err)
}

func TestDisabled_Complete(t *testing.T) {
	_, err := Disabled{}.Complete(context.Background(), "prompt")
	assert.Error(t, err)
}
