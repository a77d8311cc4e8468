package adapters

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	f "github.com/soffa-projects/matchqueue/core"
)

// RestyFetcher performs the outbound calls of FETCH jobs.
type RestyFetcher struct {
	client *resty.Client
}

func NewFetcher(timeout time.Duration) *RestyFetcher {
	client := resty.New().
		SetTimeout(timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	return &RestyFetcher{client: client}
}

func (r *RestyFetcher) Fetch(ctx context.Context, payload f.FetchPayload) (f.FetchResponse, error) {
	method := strings.ToUpper(payload.Options.Method)
	if method == "" {
		method = http.MethodGet
	}
	req := r.client.R().
		SetContext(ctx).
		SetHeaders(payload.Options.Headers)
	if payload.Options.Body != "" {
		req = req.SetBody(payload.Options.Body)
	}
	resp, err := req.Execute(method, payload.URL)
	if err != nil {
		return f.FetchResponse{}, err
	}
	return f.FetchResponse{
		StatusCode: resp.StatusCode(),
		StatusText: http.StatusText(resp.StatusCode()),
	}, nil
}
