package adapters

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	f "github.com/soffa-projects/matchqueue/core"
	"github.com/soffa-projects/matchqueue/test"
)

func TestRestyFetcher_SendsRequest(t *testing.T) {
	assert := test.NewAssertions(t)

	var method, header, body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		header = r.Header.Get("X-Token")
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	res, err := NewFetcher(time.Second).Fetch(context.Background(), f.FetchPayload{
		URL: server.URL,
		Options: f.FetchOptions{
			Method:  "post",
			Headers: map[string]string{"X-Token": "abc"},
			Body:    `{"ok":true}`,
		},
	})
	assert.Nil(err)
	assert.True(res.OK())
	assert.Equals(res.StatusCode, http.StatusAccepted)
	assert.Equals(res.StatusText, "Accepted")
	assert.Equals(method, http.MethodPost)
	assert.Equals(header, "abc")
	assert.Equals(body, `{"ok":true}`)
}

func TestRestyFetcher_DefaultsToGet(t *testing.T) {
	assert := test.NewAssertions(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	res, err := NewFetcher(time.Second).Fetch(context.Background(), f.FetchPayload{URL: server.URL})
	assert.Nil(err)
	assert.False(res.OK())
	assert.Equals(res.StatusCode, http.StatusInternalServerError)
	assert.Equals(res.StatusText, "Internal Server Error")
}

func TestRestyFetcher_Timeout(t *testing.T) {
	assert := test.NewAssertions(t)

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	_, err := NewFetcher(50*time.Millisecond).Fetch(context.Background(), f.FetchPayload{URL: server.URL})
	assert.NotNil(err)
}
