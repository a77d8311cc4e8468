package f

import "context"

// FetchResponse is what the fetch handler needs from an HTTP response.
type FetchResponse struct {
	StatusCode int
	StatusText string
}

func (r FetchResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

type URLFetcher interface {
	Fetch(ctx context.Context, payload FetchPayload) (FetchResponse, error)
}

// IndexCalculator recomputes the derived search index of a level.
type IndexCalculator interface {
	RefreshIndexCalcs(ctx context.Context, levelID string) error
}

// PlayAttemptsCalculator recomputes the play attempt aggregate of a level.
type PlayAttemptsCalculator interface {
	CalcPlayAttempts(ctx context.Context, levelID string) error
}
