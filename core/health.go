package f

import (
	"context"
	"sync"
)

const (
	HealthUp   = "UP"
	HealthDown = "DOWN"
)

type ComponentHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type HealthReport struct {
	Service    string                     `json:"service"`
	Status     string                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
}

func (r HealthReport) Up() bool {
	return r.Status == HealthUp
}

// HealthCheck probes the backing services of the process. Probes run
// concurrently; any failing probe marks the whole report DOWN.
type HealthCheck struct {
	service string
	probes  map[string]func(ctx context.Context) error
}

func NewHealthCheck(service string) *HealthCheck {
	return &HealthCheck{
		service: service,
		probes:  make(map[string]func(ctx context.Context) error),
	}
}

func (c *HealthCheck) Add(name string, probe func(ctx context.Context) error) {
	c.probes[name] = probe
}

func (c *HealthCheck) Run(ctx context.Context) HealthReport {
	report := HealthReport{
		Service:    c.service,
		Status:     HealthUp,
		Components: make(map[string]ComponentHealth, len(c.probes)),
	}
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for name, probe := range c.probes {
		wg.Add(1)
		go func(name string, probe func(ctx context.Context) error) {
			defer wg.Done()
			component := ComponentHealth{Status: HealthUp}
			if err := probe(ctx); err != nil {
				component = ComponentHealth{Status: HealthDown, Message: err.Error()}
			}
			mu.Lock()
			defer mu.Unlock()
			report.Components[name] = component
			if component.Status == HealthDown {
				report.Status = HealthDown
			}
		}(name, probe)
	}
	wg.Wait()
	return report
}
