package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatReturnsFirstChoice(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body map[string]any
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "test-model", body["model"])
		assert.Equal(t, float64(64), body["max_tokens"])

		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"hello"}},{"message":{"content":"ignored"}}]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-model", "secret", srv.Client())
	got, err := c.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, Options{MaxTokens: 64})
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestChatErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, "bad key")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "m", "k", srv.Client())
	_, err := c.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
}

func TestChatNoChoices(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "m", "k", srv.Client())
	_, err := c.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, Options{})
	assert.Error(t, err)
}

func TestConfigured(t *testing.T) {
	t.Parallel()

	assert.True(t, NewClient("https://x", "m", "k", nil).Configured())
	assert.False(t, NewClient("https://x", "m", "", nil).Configured())
	assert.False(t, NewClient("", "m", "k", nil).Configured())
	var nilClient *Client
	assert.False(t, nilClient.Configured())
}

func TestMultimodalMessageShape(t *testing.T) {
	t.Parallel()

	msg := Message{Role: "user", Content: []Part{
		TextPart("look at this"),
		ImagePart("https://photos/x.jpg"),
	}}
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"user","content":[
		{"type":"text","text":"look at this"},
		{"type":"image_url","image_url":{"url":"https://photos/x.jpg"}}
	]}`, string(raw))
}
