package enrich

import (
	"context"
	"regexp"
	"strings"

	"github.com/codeatlas/codeatlas/internal/graph"
	"github.com/codeatlas/codeatlas/internal/jobs"
)

// repoSupertypes classifies the persistence technology from the base
// interface the repository extends.
var repoSupertypes = map[string]string{
	"JpaRepository":              "JPA",
	"CrudRepository":             "CRUD",
	"PagingAndSortingRepository": "JPA",
	"MongoRepository":            "Mongo",
	"ReactiveMongoRepository":    "Mongo",
	"ReactiveCrudRepository":     "Reactive",
	"ElasticsearchRepository":    "Elasticsearch",
	"RedisRepository":            "Redis",
}

var entityPattern = buildEntityPattern()

func buildEntityPattern() *regexp.Regexp {
	names := make([]string, 0, len(repoSupertypes))
	for name := range repoSupertypes {
		names = append(names, regexp.QuoteMeta(name))
	}
	return regexp.MustCompile(`(?:extends|implements)\s+(?:` + strings.Join(names, "|") + `)\s*<\s*(\w+)`)
}

// SpringData flags repository interfaces and recovers their entity type
// from the generic argument in the extends clause of the raw source.
type SpringData struct {
	store graph.Store
	log   jobs.Logger
}

func NewSpringData(store graph.Store, log jobs.Logger) *SpringData {
	return &SpringData{store: store, log: log}
}

func (e *SpringData) Tag() string { return "spring-data" }

func (e *SpringData) Enrich(ctx context.Context, module string) (map[string]int, error) {
	stats := map[string]int{"repositories": 0}

	classes, err := e.store.ModuleClasses(ctx, module)
	if err != nil {
		return nil, err
	}

	for _, cls := range classes {
		if cls.Kind != "interface" {
			continue
		}
		repoType := ""
		for _, st := range cls.Supertypes {
			if rt, ok := repoSupertypes[st]; ok {
				repoType = rt
				break
			}
		}
		if repoType == "" {
			continue
		}

		entityType := ""
		if m := entityPattern.FindStringSubmatch(cls.Source); m != nil {
			entityType = m[1]
		}

		entityLabel := entityType
		if entityLabel == "" {
			entityLabel = "?"
		}
		e.log.Log("info", "  Repository: %s (%s, entity=%s)", cls.Name, repoType, entityLabel)

		err := e.store.CreateDataRepository(ctx, &graph.DataRepository{
			Name:       cls.Name,
			EntityType: entityType,
			RepoType:   repoType,
			Class:      cls.FullName,
		})
		if err != nil {
			e.log.Log("warn", "  Failed to create Repository: %v", err)
			continue
		}
		stats["repositories"]++
	}

	e.log.Log("info", "Spring Data: %d repositories", stats["repositories"])
	return stats, nil
}
