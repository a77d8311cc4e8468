package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/soffa-projects/matchqueue/test"
)

func TestLevelServiceClient(t *testing.T) {
	assert := test.NewAssertions(t)

	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("secret") != "s3cr3t" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/api/internal-levels/gone/calc-play-attempts" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	ctx := context.Background()
	client := NewLevelServiceClient(server.URL+"/", "s3cr3t", time.Second)

	assert.Nil(client.RefreshIndexCalcs(ctx, "L1"))
	assert.Nil(client.CalcPlayAttempts(ctx, "L1"))

	err := client.CalcPlayAttempts(ctx, "gone")
	assert.NotNil(err)
	assert.Contains(err.Error(), "404")

	assert.Equals(paths, []string{
		"/api/internal-levels/L1/refresh-index-calcs",
		"/api/internal-levels/L1/calc-play-attempts",
		"/api/internal-levels/gone/calc-play-attempts",
	})

	unauthorized := NewLevelServiceClient(server.URL, "", time.Second)
	assert.NotNil(unauthorized.CalcPlayAttempts(ctx, "L1"))
}
