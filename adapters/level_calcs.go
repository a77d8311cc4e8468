package adapters

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// LevelServiceClient asks the service owning level statistics to recompute
// them. It serves both the index and the play attempts handlers.
type LevelServiceClient struct {
	client *resty.Client
}

func NewLevelServiceClient(baseURL string, secret string, timeout time.Duration) *LevelServiceClient {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if secret != "" {
		client.SetQueryParam("secret", secret)
	}
	return &LevelServiceClient{client: client}
}

func (c *LevelServiceClient) RefreshIndexCalcs(ctx context.Context, levelID string) error {
	return c.post(ctx, "/api/internal-levels/{levelId}/refresh-index-calcs", levelID)
}

func (c *LevelServiceClient) CalcPlayAttempts(ctx context.Context, levelID string) error {
	return c.post(ctx, "/api/internal-levels/{levelId}/calc-play-attempts", levelID)
}

func (c *LevelServiceClient) post(ctx context.Context, path string, levelID string) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("levelId", levelID).
		Post(path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("level service answered %s", resp.Status())
	}
	return nil
}
