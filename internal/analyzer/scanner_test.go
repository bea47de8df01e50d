package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeatlas/codeatlas/internal/graph"
)

func TestScannerDetectsFromImports(t *testing.T) {
	s := graph.NewMemory()
	storeClasses(t, s, &graph.Class{
		Name: "UserController", FullName: "com.acme.UserController",
		Package: "com.acme", Kind: "class",
		Imports: []string{"org.springframework.web.bind.annotation.GetMapping"},
	})

	tags, err := NewScanner(s, DefaultSignals()).Detect(context.Background(), "core", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"spring-web"}, tags)
}

func TestScannerDetectsFromStarImports(t *testing.T) {
	s := graph.NewMemory()
	storeClasses(t, s, &graph.Class{
		Name: "Consumer", FullName: "com.acme.Consumer",
		Package: "com.acme", Kind: "class",
		StarImports: []string{"org.springframework.jms.annotation"},
	})

	tags, err := NewScanner(s, DefaultSignals()).Detect(context.Background(), "core", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"spring-jms"}, tags)
}

func TestScannerDetectsFromAnnotations(t *testing.T) {
	s := graph.NewMemory()
	storeClasses(t, s, &graph.Class{
		Name: "Jobs", FullName: "com.acme.Jobs",
		Package: "com.acme", Kind: "class",
		Methods: []*graph.Method{{
			Name: "tick",
			Annotations: []graph.Annotation{
				{Name: "org.springframework.scheduling.annotation.Scheduled"},
			},
		}},
	})

	tags, err := NewScanner(s, DefaultSignals()).Detect(context.Background(), "core", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"spring-scheduled"}, tags)
}

func TestScannerDetectsFromSupertypes(t *testing.T) {
	s := graph.NewMemory()
	storeClasses(t, s, &graph.Class{
		Name: "UserRepository", FullName: "com.acme.UserRepository",
		Package: "com.acme", Kind: "interface",
		Supertypes: []string{"JpaRepository"},
	})

	tags, err := NewScanner(s, DefaultSignals()).Detect(context.Background(), "core", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"spring-data"}, tags)
}

func TestScannerUnionsAndSorts(t *testing.T) {
	s := graph.NewMemory()
	storeClasses(t, s,
		&graph.Class{
			Name: "Api", FullName: "com.acme.Api",
			Package: "com.acme", Kind: "class",
			Imports: []string{"org.springframework.web.bind.annotation.RestController"},
			Annotations: []graph.Annotation{
				{Name: "org.springframework.web.bind.annotation.RestController"},
			},
		},
		&graph.Class{
			Name: "Repo", FullName: "com.acme.Repo",
			Package: "com.acme", Kind: "interface",
			Supertypes: []string{"CrudRepository"},
		},
	)

	tags, err := NewScanner(s, DefaultSignals()).Detect(context.Background(), "core", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"spring-data", "spring-web"}, tags)

	stored, err := s.Technologies(context.Background(), "core")
	require.NoError(t, err)
	assert.Equal(t, tags, stored)
}

func TestScannerOverrideShortCircuits(t *testing.T) {
	s := graph.NewMemory()
	storeClasses(t, s, &graph.Class{
		Name: "Api", FullName: "com.acme.Api",
		Package: "com.acme", Kind: "class",
		Imports: []string{"org.springframework.web.bind.annotation.RestController"},
	})

	tags, err := NewScanner(s, DefaultSignals()).Detect(context.Background(), "core", []string{"spring-jms", "feign"})
	require.NoError(t, err)
	assert.Equal(t, []string{"feign", "spring-jms"}, tags)
}

func TestScannerCustomSignals(t *testing.T) {
	s := graph.NewMemory()
	storeClasses(t, s, &graph.Class{
		Name: "Thing", FullName: "com.acme.Thing",
		Package: "com.acme", Kind: "class",
		Imports: []string{"io.vertx.core.Vertx"},
	})

	signals := Signals{ImportPrefixes: map[string]string{"io.vertx": "vertx"}}
	tags, err := NewScanner(s, signals).Detect(context.Background(), "core", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"vertx"}, tags)
}
