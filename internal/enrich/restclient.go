package enrich

import (
	"context"

	"github.com/codeatlas/codeatlas/internal/graph"
	"github.com/codeatlas/codeatlas/internal/jobs"
)

var httpClientTypes = []struct {
	FQN  string
	Pkg  string
	Type string
}{
	{
		FQN:  "org.springframework.web.client.RestTemplate",
		Pkg:  "org.springframework.web.client",
		Type: "RestTemplate",
	},
	{
		FQN:  "org.springframework.web.reactive.function.client.WebClient",
		Pkg:  "org.springframework.web.reactive.function.client",
		Type: "WebClient",
	},
}

// RestClients flags types that import a known HTTP client type. Import
// presence is the whole signal; no structural analysis.
type RestClients struct {
	store graph.Store
	log   jobs.Logger
}

func NewRestClients(store graph.Store, log jobs.Logger) *RestClients {
	return &RestClients{store: store, log: log}
}

func (e *RestClients) Tag() string { return "rest-clients" }

func (e *RestClients) Enrich(ctx context.Context, module string) (map[string]int, error) {
	stats := map[string]int{"http_clients": 0}

	classes, err := e.store.ModuleClasses(ctx, module)
	if err != nil {
		return nil, err
	}

	for _, cls := range classes {
		for _, ct := range httpClientTypes {
			if !importsType(cls, ct.FQN, ct.Pkg) {
				continue
			}
			e.log.Log("info", "  %s: %s", ct.Type, cls.Name)

			err := e.store.CreateHTTPClient(ctx, &graph.HTTPClient{
				Name:       cls.Name,
				ClientType: ct.Type,
				Class:      cls.FullName,
			})
			if err != nil {
				e.log.Log("warn", "  Failed to create HTTPClient: %v", err)
				continue
			}
			stats["http_clients"]++
		}
	}

	e.log.Log("info", "REST Clients: %d HTTP clients", stats["http_clients"])
	return stats, nil
}

func importsType(cls *graph.Class, fqn, pkg string) bool {
	for _, imp := range cls.Imports {
		if imp == fqn {
			return true
		}
	}
	for _, star := range cls.StarImports {
		if star == pkg {
			return true
		}
	}
	return false
}
