// internal/common/http/client_test.go
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostJSON_SendsHeadersAndBody(t *testing.T) {
	type captured struct {
		auth, contentType, agent string
		body                     map[string]interface{}
	}
	got := make(chan captured, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		got <- captured{
			auth:        r.Header.Get("Authorization"),
			contentType: r.Header.Get("Content-Type"),
			agent:       r.Header.Get("User-Agent"),
			body:        body,
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(time.Second).WithBearerToken("secret")
	resp, err := client.PostJSON(context.Background(), server.URL, map[string]interface{}{"prompt": "hi"})
	require.NoError(t, err)
	resp.Body.Close()

	c := <-got
	assert.Equal(t, "Bearer secret", c.auth)
	assert.Equal(t, "application/json", c.contentType)
	assert.Equal(t, userAgent, c.agent)
	assert.Equal(t, "hi", c.body["prompt"])
}

func TestPostJSON_NoTokenByDefault(t *testing.T) {
	auth := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth <- r.Header.Get("Authorization")
	}))
	defer server.Close()

	base := NewClient(time.Second)
	_ = base.WithBearerToken("other")

	resp, err := base.PostJSON(context.Background(), server.URL, struct{}{})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, <-auth)
}

func TestPostJSON_EncodeError(t *testing.T) {
	_, err := NewClient(time.Second).PostJSON(context.Background(), "http://127.0.0.1:1", make(chan int))
	assert.Error(t, err)
}
