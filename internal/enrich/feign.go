package enrich

import (
	"context"

	"github.com/codeatlas/codeatlas/internal/graph"
	"github.com/codeatlas/codeatlas/internal/jobs"
)

const feignClientFQN = "org.springframework.cloud.openfeign.FeignClient"

// Feign derives FeignClient and FeignEndpoint nodes from declarative
// remote-client interfaces. Endpoint resolution reuses the Spring Web
// mapping rules with the client's path argument as the base path.
type Feign struct {
	store graph.Store
	log   jobs.Logger
}

func NewFeign(store graph.Store, log jobs.Logger) *Feign {
	return &Feign{store: store, log: log}
}

func (e *Feign) Tag() string { return "feign" }

func (e *Feign) Enrich(ctx context.Context, module string) (map[string]int, error) {
	stats := map[string]int{"clients": 0, "endpoints": 0}

	classes, err := e.store.ModuleClasses(ctx, module)
	if err != nil {
		return nil, err
	}

	found := false
	for _, cls := range classes {
		ann := graph.FindAnnotation(cls.Annotations, feignClientFQN)
		if ann == nil {
			continue
		}
		found = true

		clientName := ann.Arg("name").First()
		if clientName == "" {
			clientName = ann.Arg("value").First()
		}
		serviceID := clientName
		if clientName == "" {
			clientName = cls.Name
		}
		basePath := ann.Arg("path").First()

		e.log.Log("info", "  FeignClient: %s (service=%q)", cls.Name, serviceID)

		err := e.store.CreateFeignClient(ctx, &graph.FeignClient{
			Name:      clientName,
			URL:       ann.Arg("url").First(),
			Path:      basePath,
			ServiceID: serviceID,
			Class:     cls.FullName,
		})
		if err != nil {
			e.log.Log("warn", "  Failed to create FeignClient: %v", err)
			continue
		}
		stats["clients"]++

		for _, method := range cls.Methods {
			info := resolveEndpoint(method.Annotations, basePath)
			if info == nil {
				continue
			}

			e.log.Log("info", "    Endpoint: %s %s -> %s", info.Verb, info.Path, method.FullName)

			err := e.store.CreateFeignEndpoint(ctx, &graph.FeignEndpoint{
				Path:       info.Path,
				HTTPMethod: info.Verb,
				Client:     cls.FullName,
				Method:     method.FullName,
			})
			if err != nil {
				e.log.Log("warn", "    Failed to create FeignEndpoint: %v", err)
				continue
			}
			stats["endpoints"]++
		}
	}

	if !found {
		e.log.Log("info", "Feign: no clients found")
		return stats, nil
	}
	e.log.Log("info", "Feign: %d clients, %d endpoints", stats["clients"], stats["endpoints"])
	return stats, nil
}
