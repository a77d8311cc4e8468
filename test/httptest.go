package test

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-resty/resty/v2"
	matcher "github.com/panta/go-json-matcher"
	"github.com/soffa-projects/matchqueue/h"
)

type RestClient struct {
	client *resty.Client
	assert Assertions
}

type HttpRes struct {
	resp   *resty.Response
	err    error
	assert Assertions
}

type HttpReq struct {
	Body    any
	Headers map[string]string
	Query   map[string]string
	Result  any
}

func ProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("go.mod not found")
		}
		dir = parent
	}
}

func NewRestClient(t *testing.T, baseUrl string) *RestClient {
	r := resty.New()
	r.SetRedirectPolicy(resty.NoRedirectPolicy())
	r.SetBaseURL(baseUrl)
	return &RestClient{client: r, assert: NewAssertions(t)}
}

func (c *RestClient) Get(path string, opts ...HttpReq) HttpRes {
	return c.invoke("GET", path, opts...)
}

func (c *RestClient) Post(path string, opts ...HttpReq) HttpRes {
	return c.invoke("POST", path, opts...)
}

func (c *RestClient) Delete(path string, opts ...HttpReq) HttpRes {
	return c.invoke("DELETE", path, opts...)
}

func (c *RestClient) invoke(method string, path string, opts ...HttpReq) HttpRes {
	q := c.client.R()
	var result map[string]any
	for _, opt := range opts {
		if opt.Body != nil {
			q = q.SetBody(opt.Body)
		}
		if opt.Result != nil {
			q = q.SetResult(opt.Result)
		} else {
			q = q.SetResult(&result)
		}
		if opt.Headers != nil {
			for key, value := range opt.Headers {
				q = q.SetHeader(key, value)
			}
		}
		if opt.Query != nil {
			q = q.SetQueryParams(opt.Query)
		}
	}
	resp, err := q.Execute(method, path)
	return HttpRes{
		resp:   resp,
		err:    err,
		assert: c.assert,
	}
}

func (r HttpRes) Is(status int) HttpRes {
	r.assert.Nil(r.err)
	r.assert.Equals(r.resp.StatusCode(), status)
	return r
}

func (r HttpRes) IsOk() HttpRes           { return r.Is(http.StatusOK) }
func (r HttpRes) IsAccepted() HttpRes     { return r.Is(http.StatusAccepted) }
func (r HttpRes) NoContent() HttpRes      { return r.Is(http.StatusNoContent) }
func (r HttpRes) IsBadRequest() HttpRes   { return r.Is(http.StatusBadRequest) }
func (r HttpRes) IsUnauthorized() HttpRes { return r.Is(http.StatusUnauthorized) }
func (r HttpRes) IsNotFound() HttpRes     { return r.Is(http.StatusNotFound) }

func (r HttpRes) Result() []byte {
	return r.resp.Body()
}

func (r HttpRes) JSONValue() h.JsonValue {
	return h.NewJsonValue(string(r.Result()))
}

func (r HttpRes) JSON() *JsonMatcher {
	result := r.Result()
	r.assert.NotNil(result)
	var data map[string]any
	err := json.Unmarshal(result, &data)
	r.assert.Nil(err, "failed to unmarshal json")
	return &JsonMatcher{assert: r.assert, value: string(result)}
}

type JsonMatcher struct {
	assert Assertions
	value  string
}

func (j JsonMatcher) Match(pattern string) JsonMatcher {
	j.assert.MatchJson(j.value, pattern)
	return j
}

func (j JsonMatcher) MatchShape(pattern string) JsonMatcher {
	match, err := matcher.JSONStringMatches(j.value, pattern)
	j.assert.Nil(err)
	j.assert.True(match)
	return j
}

func (j JsonMatcher) Value() h.JsonValue {
	return h.NewJsonValue(j.value)
}
