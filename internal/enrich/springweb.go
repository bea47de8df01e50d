package enrich

import (
	"context"
	"errors"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codeatlas/codeatlas/internal/graph"
	"github.com/codeatlas/codeatlas/internal/jobs"
)

var controllerAnnotations = []string{
	springWebPkg + ".RestController",
	springWebPkg + ".Controller",
}

// SpringWeb finds controller types and derives RESTInterface and
// RESTEndpoint nodes from their mapping annotations. Base paths and
// method mappings declared on implemented interfaces are inherited,
// which may require loading types from other modules; those lookups go
// through a small LRU cache since controllers across a repository tend
// to share the same few interfaces.
type SpringWeb struct {
	store graph.Store
	log   jobs.Logger
	cache *lru.Cache[string, *graph.Class]
}

func NewSpringWeb(store graph.Store, log jobs.Logger) *SpringWeb {
	cache, _ := lru.New[string, *graph.Class](256)
	return &SpringWeb{store: store, log: log, cache: cache}
}

func (e *SpringWeb) Tag() string { return "spring-web" }

func (e *SpringWeb) Enrich(ctx context.Context, module string) (map[string]int, error) {
	stats := map[string]int{"controllers": 0, "endpoints": 0}

	classes, err := e.store.ModuleClasses(ctx, module)
	if err != nil {
		return nil, err
	}

	found := false
	for _, cls := range classes {
		if graph.FindAnnotation(cls.Annotations, controllerAnnotations...) == nil {
			continue
		}
		found = true
		stats["controllers"]++

		classMapping := graph.FindAnnotation(cls.Annotations, requestMappingFQN)
		if classMapping == nil {
			for _, iface := range e.resolveSupertypes(ctx, cls) {
				if m := graph.FindAnnotation(iface.Annotations, requestMappingFQN); m != nil {
					classMapping = m
					break
				}
			}
		}
		basePath := annotationPath(classMapping)

		e.log.Log("info", "  Controller: %s (full_name=%s, base_path=%q)", cls.Name, cls.FullName, basePath)

		err := e.store.CreateRESTInterface(ctx, &graph.RESTInterface{
			Name:     cls.Name,
			BasePath: basePath,
			Class:    cls.FullName,
		})
		if err != nil {
			e.log.Log("warn", "  Failed to create RESTInterface for %s: %v", cls.Name, err)
			continue
		}

		ifaceMethods := e.interfaceMethodMappings(ctx, cls)

		for _, method := range cls.Methods {
			info := resolveEndpoint(method.Annotations, basePath)
			if info == nil {
				if anns, ok := ifaceMethods[method.Name]; ok {
					info = resolveEndpoint(anns, basePath)
				}
			}
			if info == nil {
				continue
			}

			e.log.Log("info", "    Endpoint: %s %s -> %s", info.Verb, info.Path, method.FullName)

			err := e.store.CreateRESTEndpoint(ctx, &graph.RESTEndpoint{
				Path:       info.Path,
				HTTPMethod: info.Verb,
				Produces:   info.Produces,
				Consumes:   info.Consumes,
				Interface:  cls.Name,
				Class:      cls.FullName,
				Method:     method.FullName,
			})
			if err != nil {
				e.log.Log("warn", "    Failed to create RESTEndpoint: %v", err)
				continue
			}
			stats["endpoints"]++
		}
	}

	if !found {
		e.log.Log("info", "Spring Web: no controllers found")
		return stats, nil
	}
	e.log.Log("info", "Spring Web: %d controllers, %d endpoints", stats["controllers"], stats["endpoints"])
	return stats, nil
}

// resolveSupertypes loads the classes behind a type's raw supertype
// names: explicit import, then star imports, then same package, then a
// repository-wide unambiguous simple-name search.
func (e *SpringWeb) resolveSupertypes(ctx context.Context, cls *graph.Class) []*graph.Class {
	if len(cls.Supertypes) == 0 {
		return nil
	}

	importMap := make(map[string]string, len(cls.Imports))
	for _, imp := range cls.Imports {
		simple := imp
		if i := strings.LastIndex(imp, "."); i >= 0 {
			simple = imp[i+1:]
		}
		importMap[simple] = imp
	}

	pkg := ""
	if i := strings.LastIndex(cls.FullName, "."); i >= 0 {
		pkg = cls.FullName[:i]
	}

	var resolved []*graph.Class
	for _, st := range cls.Supertypes {
		var iface *graph.Class
		if fqn, ok := importMap[st]; ok {
			iface = e.loadClass(ctx, fqn)
		}
		if iface == nil {
			for _, star := range cls.StarImports {
				if iface = e.loadClass(ctx, star+"."+st); iface != nil {
					break
				}
			}
		}
		if iface == nil && pkg != "" {
			iface = e.loadClass(ctx, pkg+"."+st)
		}
		if iface == nil {
			iface = e.findBySimpleName(ctx, st)
		}
		if iface != nil {
			resolved = append(resolved, iface)
		} else {
			e.log.Log("info", "    Supertype %q not found in graph", st)
		}
	}
	return resolved
}

func (e *SpringWeb) loadClass(ctx context.Context, fullName string) *graph.Class {
	if cls, ok := e.cache.Get(fullName); ok {
		return cls
	}
	cls, err := e.store.ClassByFullName(ctx, fullName)
	if err != nil {
		if errors.Is(err, graph.ErrNotFound) {
			e.cache.Add(fullName, nil)
		}
		return nil
	}
	e.cache.Add(fullName, cls)
	return cls
}

func (e *SpringWeb) findBySimpleName(ctx context.Context, name string) *graph.Class {
	matches, err := e.store.ClassesBySimpleName(ctx, name)
	if err != nil || len(matches) != 1 {
		return nil
	}
	return e.loadClass(ctx, matches[0].FullName)
}

// interfaceMethodMappings maps method names to mapping annotations
// declared on implemented interfaces, so unannotated implementations
// inherit their interface's route.
func (e *SpringWeb) interfaceMethodMappings(ctx context.Context, cls *graph.Class) map[string][]graph.Annotation {
	mappings := make(map[string][]graph.Annotation)
	for _, iface := range e.resolveSupertypes(ctx, cls) {
		for _, m := range iface.Methods {
			if hasAnyMapping(m.Annotations) {
				mappings[m.Name] = m.Annotations
			}
		}
	}
	return mappings
}
