package test

import (
	"context"
	"net/http/httptest"
	"os"
	"path"
	"testing"

	f "github.com/soffa-projects/matchqueue/core"
	"github.com/soffa-projects/matchqueue/log"
)

type Helper struct {
	app       f.App
	Context   context.Context
	Server    *httptest.Server
	Http      *RestClient
	Assert    Assertions
	openFiles []string
	rootDir   string
}

func New(app f.App, t *testing.T) *Helper {
	server := httptest.NewServer(app.Router().Handler())
	return &Helper{
		app:       app,
		Context:   context.TODO(),
		Server:    server,
		Http:      NewRestClient(t, server.URL),
		Assert:    NewAssertions(t),
		openFiles: []string{},
		rootDir:   ProjectRoot(t),
	}
}

func (t *Helper) FilePath(p string) string {
	return path.Join(t.rootDir, p)
}

// WebsocketURL returns the ws:// address of path on the test server.
func (t *Helper) WebsocketURL(p string) string {
	return "ws" + t.Server.URL[len("http"):] + p
}

func (t *Helper) TearDown() {
	t.Server.Close()
	t.app.Shutdown(context.Background())
	for _, file := range t.openFiles {
		log.Info("removing db file: %s", file)
		_ = os.Remove(file)
	}
}

func (t *Helper) RegisterFile(file string) {
	t.openFiles = append(t.openFiles, file)
}
