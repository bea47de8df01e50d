package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codeatlas/codeatlas/internal/graph"
	"github.com/codeatlas/codeatlas/internal/jobs"
)

func TestJoinPaths(t *testing.T) {
	tests := []struct {
		base, method, want string
	}{
		{"", "", "/"},
		{"/api", "", "/api"},
		{"", "/users", "/users"},
		{"/api/", "users", "/api/users"},
		{"/api", "/users", "/api/users"},
		{"/api/", "/users/", "/api/users/"},
		{"/", "", "/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, joinPaths(tt.base, tt.method), "base=%q method=%q", tt.base, tt.method)
	}
}

func TestResolveEndpointVerbAnnotation(t *testing.T) {
	anns := []graph.Annotation{
		{Name: springWebPkg + ".PostMapping", Args: map[string]graph.Value{
			"value":    graph.StringValue("/users"),
			"consumes": graph.StringValue("application/json"),
		}},
	}
	info := resolveEndpoint(anns, "/api")
	assert.Equal(t, "POST", info.Verb)
	assert.Equal(t, "/api/users", info.Path)
	assert.Equal(t, "application/json", info.Consumes)
}

func TestResolveEndpointRequestMappingDefaultsToGet(t *testing.T) {
	anns := []graph.Annotation{
		{Name: requestMappingFQN, Args: map[string]graph.Value{
			"value": graph.StringValue("/ping"),
		}},
	}
	info := resolveEndpoint(anns, "")
	assert.Equal(t, "GET", info.Verb)
	assert.Equal(t, "/ping", info.Path)
}

func TestResolveEndpointRequestMappingMethodArg(t *testing.T) {
	anns := []graph.Annotation{
		{Name: requestMappingFQN, Args: map[string]graph.Value{
			"value":  graph.StringValue("/users"),
			"method": graph.RawValue("RequestMethod.DELETE"),
		}},
	}
	info := resolveEndpoint(anns, "/api")
	assert.Equal(t, "DELETE", info.Verb)
}

func TestResolveEndpointPathArgumentFallback(t *testing.T) {
	anns := []graph.Annotation{
		{Name: springWebPkg + ".GetMapping", Args: map[string]graph.Value{
			"path": graph.ListValue([]string{"/a", "/b"}),
		}},
	}
	info := resolveEndpoint(anns, "")
	assert.Equal(t, "/a", info.Path, "first array element wins")
}

func TestResolveEndpointNoMapping(t *testing.T) {
	anns := []graph.Annotation{{Name: "lombok.Data"}}
	assert.Nil(t, resolveEndpoint(anns, "/api"))
}

func TestRegistryRejectsUnknownTag(t *testing.T) {
	r := NewRegistry(graph.NewMemory(), jobs.NoopLogger{})
	_, err := r.Get("quarkus")
	assert.Error(t, err)
}
