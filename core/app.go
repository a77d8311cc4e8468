package f

import "context"

type App interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context)
	Router() Router
}

type AppInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}
