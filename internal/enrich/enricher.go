// Package enrich derives the architecture overlay from the committed
// metamodel. One enricher per technology tag; each reads the graph,
// matches its framework's patterns and writes overlay nodes linked back
// via IMPLEMENTED_BY. Overlay writes are individually fault-tolerant: a
// failed write is logged and the enricher moves on.
package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/codeatlas/codeatlas/internal/graph"
	"github.com/codeatlas/codeatlas/internal/jobs"
)

// Enricher scans one module for one technology's patterns. Stats maps
// kind (e.g. "endpoints") to created node count.
type Enricher interface {
	Tag() string
	Enrich(ctx context.Context, module string) (map[string]int, error)
}

// Registry maps technology tags to enrichers. The set is closed: an
// unknown tag is an error, not a silent no-op.
type Registry struct {
	enrichers map[string]Enricher
}

func NewRegistry(store graph.Store, log jobs.Logger) *Registry {
	r := &Registry{enrichers: make(map[string]Enricher)}
	for _, e := range []Enricher{
		NewSpringWeb(store, log),
		NewFeign(store, log),
		NewRestClients(store, log),
		NewSpringJMS(store, log),
		NewSpringScheduled(store, log),
		NewSpringData(store, log),
	} {
		r.enrichers[e.Tag()] = e
	}
	return r
}

// Get returns the enricher for a tag.
func (r *Registry) Get(tag string) (Enricher, error) {
	e, ok := r.enrichers[tag]
	if !ok {
		return nil, fmt.Errorf("no enricher registered for technology %q", tag)
	}
	return e, nil
}

// Tags lists the registered technology tags.
func (r *Registry) Tags() []string {
	tags := make([]string, 0, len(r.enrichers))
	for tag := range r.enrichers {
		tags = append(tags, tag)
	}
	return tags
}

// EnrichAll runs the enricher for each detected tag in order, merging
// per-kind counts. Tags with no registered enricher fail the call.
func (r *Registry) EnrichAll(ctx context.Context, module string, tags []string) (map[string]int, error) {
	stats := make(map[string]int)
	for _, tag := range tags {
		e, err := r.Get(tag)
		if err != nil {
			return stats, err
		}
		tagStats, err := e.Enrich(ctx, module)
		if err != nil {
			return stats, fmt.Errorf("enriching %s with %s: %w", module, tag, err)
		}
		for kind, n := range tagStats {
			stats[kind] += n
		}
	}
	return stats, nil
}

const springWebPkg = "org.springframework.web.bind.annotation"

// verbAnnotations pairs each verb-specific mapping annotation with its
// HTTP method, in the order they are tried.
var verbAnnotations = []struct {
	FQN  string
	Verb string
}{
	{springWebPkg + ".GetMapping", "GET"},
	{springWebPkg + ".PostMapping", "POST"},
	{springWebPkg + ".PutMapping", "PUT"},
	{springWebPkg + ".DeleteMapping", "DELETE"},
	{springWebPkg + ".PatchMapping", "PATCH"},
}

const requestMappingFQN = springWebPkg + ".RequestMapping"

var requestMethods = map[string]string{
	"RequestMethod.GET":     "GET",
	"RequestMethod.POST":    "POST",
	"RequestMethod.PUT":     "PUT",
	"RequestMethod.DELETE":  "DELETE",
	"RequestMethod.PATCH":   "PATCH",
	"RequestMethod.HEAD":    "HEAD",
	"RequestMethod.OPTIONS": "OPTIONS",
	"GET":                   "GET",
	"POST":                  "POST",
	"PUT":                   "PUT",
	"DELETE":                "DELETE",
	"PATCH":                 "PATCH",
}

// annotationPath reads the route path off a mapping annotation: the
// value argument first, then path; the first element of an array.
func annotationPath(ann *graph.Annotation) string {
	if ann == nil {
		return ""
	}
	if v := ann.Arg("value"); !v.IsZero() {
		return v.First()
	}
	return ann.Arg("path").First()
}

// joinPaths joins a base path and a method path with exactly one slash
// at the boundary. Both empty yields "/".
func joinPaths(base, methodPath string) string {
	base = strings.TrimRight(base, "/")
	methodPath = strings.TrimLeft(methodPath, "/")
	if base == "" && methodPath == "" {
		return "/"
	}
	if methodPath == "" {
		return base
	}
	if base == "" {
		return "/" + methodPath
	}
	return base + "/" + methodPath
}

type endpointInfo struct {
	Path     string
	Verb     string
	Produces string
	Consumes string
}

// resolveEndpoint maps a method's annotations to an endpoint: verb
// annotations first, then the generic request mapping whose verb
// defaults to GET.
func resolveEndpoint(anns []graph.Annotation, basePath string) *endpointInfo {
	for _, va := range verbAnnotations {
		if ann := graph.FindAnnotation(anns, va.FQN); ann != nil {
			info := &endpointInfo{
				Path: joinPaths(basePath, annotationPath(ann)),
				Verb: va.Verb,
			}
			info.addMediaTypes(ann)
			return info
		}
	}
	if ann := graph.FindAnnotation(anns, requestMappingFQN); ann != nil {
		verb := "GET"
		if m := ann.Arg("method").First(); m != "" {
			if resolved, ok := requestMethods[m]; ok {
				verb = resolved
			}
		}
		info := &endpointInfo{
			Path: joinPaths(basePath, annotationPath(ann)),
			Verb: verb,
		}
		info.addMediaTypes(ann)
		return info
	}
	return nil
}

func (e *endpointInfo) addMediaTypes(ann *graph.Annotation) {
	if v := ann.Arg("produces"); !v.IsZero() {
		e.Produces = mediaTypeString(v)
	}
	if v := ann.Arg("consumes"); !v.IsZero() {
		e.Consumes = mediaTypeString(v)
	}
}

func mediaTypeString(v graph.Value) string {
	if v.Kind == graph.ValueStringList {
		return strings.Join(v.List, ", ")
	}
	return v.Str
}

func hasAnyMapping(anns []graph.Annotation) bool {
	for _, va := range verbAnnotations {
		if graph.FindAnnotation(anns, va.FQN) != nil {
			return true
		}
	}
	return graph.FindAnnotation(anns, requestMappingFQN) != nil
}
