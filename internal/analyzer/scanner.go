package analyzer

import (
	"context"
	"sort"
	"strings"

	"github.com/codeatlas/codeatlas/internal/graph"
)

// Signals are the framework fingerprints the scanner matches against a
// module's metamodel. They are constructor configuration so tests can
// substitute a reduced rule set.
type Signals struct {
	ImportPrefixes map[string]string // import prefix -> technology tag
	Annotations    map[string]string // annotation FQN -> technology tag
	Supertypes     map[string]string // supertype simple name -> technology tag
}

// DefaultSignals covers the Spring-stack technologies the enrichers
// know how to handle.
func DefaultSignals() Signals {
	return Signals{
		ImportPrefixes: map[string]string{
			"org.springframework.web.bind.annotation":         "spring-web",
			"org.springframework.jms":                         "spring-jms",
			"org.springframework.scheduling.annotation":       "spring-scheduled",
			"org.springframework.cloud.openfeign":             "feign",
			"org.springframework.data":                        "spring-data",
			"org.springframework.web.client.RestTemplate":     "rest-clients",
			"org.springframework.web.reactive.function.client": "rest-clients",
		},
		Annotations: map[string]string{
			"org.springframework.web.bind.annotation.RestController": "spring-web",
			"org.springframework.web.bind.annotation.Controller":     "spring-web",
			"org.springframework.jms.annotation.JmsListener":         "spring-jms",
			"org.springframework.scheduling.annotation.Scheduled":    "spring-scheduled",
			"org.springframework.cloud.openfeign.FeignClient":        "feign",
		},
		Supertypes: map[string]string{
			"JpaRepository":              "spring-data",
			"CrudRepository":             "spring-data",
			"PagingAndSortingRepository": "spring-data",
			"MongoRepository":            "spring-data",
			"ReactiveMongoRepository":    "spring-data",
			"ReactiveCrudRepository":     "spring-data",
			"ElasticsearchRepository":    "spring-data",
		},
	}
}

// Scanner detects which technologies a module uses by reading its
// committed metamodel.
type Scanner struct {
	store   graph.Store
	signals Signals
}

func NewScanner(store graph.Store, signals Signals) *Scanner {
	return &Scanner{store: store, signals: signals}
}

// Detect scans the module and persists the sorted technology tags on
// its Module node. An explicit override list skips scanning entirely.
func (s *Scanner) Detect(ctx context.Context, module string, override []string) ([]string, error) {
	if len(override) > 0 {
		sorted := append([]string(nil), override...)
		sort.Strings(sorted)
		if err := s.store.SetTechnologies(ctx, module, sorted); err != nil {
			return nil, err
		}
		return sorted, nil
	}

	classes, err := s.store.ModuleClasses(ctx, module)
	if err != nil {
		return nil, err
	}

	detected := make(map[string]struct{})
	for _, cls := range classes {
		s.scanImports(cls, detected)
		s.scanAnnotations(cls, detected)
		s.scanSupertypes(cls, detected)
	}

	tags := make([]string, 0, len(detected))
	for tag := range detected {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	if err := s.store.SetTechnologies(ctx, module, tags); err != nil {
		return nil, err
	}
	return tags, nil
}

func (s *Scanner) scanImports(cls *graph.Class, detected map[string]struct{}) {
	for _, imp := range cls.Imports {
		for prefix, tag := range s.signals.ImportPrefixes {
			if strings.HasPrefix(imp, prefix) {
				detected[tag] = struct{}{}
			}
		}
	}
	for _, star := range cls.StarImports {
		for prefix, tag := range s.signals.ImportPrefixes {
			// A star import matches when it sits on either side of the
			// prefix: import org.springframework.jms.* covers the
			// prefix, and import org.springframework.* covers it too.
			if strings.HasPrefix(prefix, star+".") || strings.HasPrefix(star, prefix) {
				detected[tag] = struct{}{}
			}
		}
	}
}

func (s *Scanner) scanAnnotations(cls *graph.Class, detected map[string]struct{}) {
	for _, ann := range cls.Annotations {
		if tag, ok := s.signals.Annotations[ann.Name]; ok {
			detected[tag] = struct{}{}
		}
	}
	for _, m := range cls.Methods {
		for _, ann := range m.Annotations {
			if tag, ok := s.signals.Annotations[ann.Name]; ok {
				detected[tag] = struct{}{}
			}
		}
	}
}

func (s *Scanner) scanSupertypes(cls *graph.Class, detected map[string]struct{}) {
	for _, st := range cls.Supertypes {
		if tag, ok := s.signals.Supertypes[st]; ok {
			detected[tag] = struct{}{}
		}
	}
}
