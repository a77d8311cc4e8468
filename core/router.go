package f

import (
	"context"
	"net/http"
)

type Router interface {
	Handler() http.Handler
	Listen(port int) error
	Shutdown(ctx context.Context) error
}
