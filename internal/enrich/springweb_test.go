package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeatlas/codeatlas/internal/graph"
	"github.com/codeatlas/codeatlas/internal/jobs"
)

func seedClasses(t *testing.T, s *graph.Memory, module string, classes ...*graph.Class) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.UpsertModule(ctx, "/repo", "repo", module, module))
	seen := make(map[string]struct{})
	for _, cls := range classes {
		if _, ok := seen[cls.Package]; !ok {
			seen[cls.Package] = struct{}{}
			require.NoError(t, s.UpsertPackage(ctx, module, cls.Package))
		}
		require.NoError(t, s.UpsertClass(ctx, cls))
		for _, m := range cls.Methods {
			if m.FullName == "" {
				m.FullName = cls.FullName + "." + m.Name
			}
			require.NoError(t, s.CreateMethod(ctx, cls.FullName, m))
		}
	}
}

func TestSpringWebControllerWithBasePath(t *testing.T) {
	s := graph.NewMemory()
	seedClasses(t, s, "api", &graph.Class{
		Name: "UserController", FullName: "com.acme.UserController",
		Package: "com.acme", Kind: "class",
		Annotations: []graph.Annotation{
			{Name: springWebPkg + ".RestController"},
			{Name: requestMappingFQN, Args: map[string]graph.Value{
				"value": graph.StringValue("/api"),
			}},
		},
		Methods: []*graph.Method{{
			Name: "getUser",
			Annotations: []graph.Annotation{
				{Name: springWebPkg + ".GetMapping", Args: map[string]graph.Value{
					"value": graph.StringValue("/users/{id}"),
				}},
			},
		}},
	})

	e := NewSpringWeb(s, jobs.NoopLogger{})
	stats, err := e.Enrich(context.Background(), "api")
	require.NoError(t, err)
	assert.Equal(t, 1, stats["controllers"])
	assert.Equal(t, 1, stats["endpoints"])

	ifaces := s.RESTInterfaces()
	require.Len(t, ifaces, 1)
	assert.Equal(t, "UserController", ifaces[0].Name)
	assert.Equal(t, "/api", ifaces[0].BasePath)
	assert.Equal(t, "com.acme.UserController", ifaces[0].Class)

	eps := s.RESTEndpoints()
	require.Len(t, eps, 1)
	assert.Equal(t, "/api/users/{id}", eps[0].Path)
	assert.Equal(t, "GET", eps[0].HTTPMethod)
	assert.Equal(t, "com.acme.UserController.getUser", eps[0].Method)
}

func TestSpringWebInheritsInterfaceMappings(t *testing.T) {
	// The controller itself carries no mapping annotations; both the
	// base path and the method mapping come from the implemented
	// interface, resolved through the import.
	s := graph.NewMemory()
	seedClasses(t, s, "api",
		&graph.Class{
			Name: "UserApi", FullName: "com.acme.contract.UserApi",
			Package: "com.acme.contract", Kind: "interface",
			Annotations: []graph.Annotation{
				{Name: requestMappingFQN, Args: map[string]graph.Value{
					"value": graph.StringValue("/v1"),
				}},
			},
			Methods: []*graph.Method{{
				Name: "listUsers",
				Annotations: []graph.Annotation{
					{Name: springWebPkg + ".GetMapping", Args: map[string]graph.Value{
						"value": graph.StringValue("/users"),
					}},
				},
			}},
		},
		&graph.Class{
			Name: "UserApiController", FullName: "com.acme.UserApiController",
			Package: "com.acme", Kind: "class",
			Imports:    []string{"com.acme.contract.UserApi"},
			Supertypes: []string{"UserApi"},
			Annotations: []graph.Annotation{
				{Name: springWebPkg + ".RestController"},
			},
			Methods: []*graph.Method{{Name: "listUsers"}},
		},
	)

	e := NewSpringWeb(s, jobs.NoopLogger{})
	stats, err := e.Enrich(context.Background(), "api")
	require.NoError(t, err)
	assert.Equal(t, 1, stats["endpoints"])

	eps := s.RESTEndpoints()
	require.Len(t, eps, 1)
	assert.Equal(t, "/v1/users", eps[0].Path)
	assert.Equal(t, "com.acme.UserApiController.listUsers", eps[0].Method)
}

func TestSpringWebIgnoresPlainClasses(t *testing.T) {
	s := graph.NewMemory()
	seedClasses(t, s, "api", &graph.Class{
		Name: "Helper", FullName: "com.acme.Helper",
		Package: "com.acme", Kind: "class",
	})

	stats, err := NewSpringWeb(s, jobs.NoopLogger{}).Enrich(context.Background(), "api")
	require.NoError(t, err)
	assert.Zero(t, stats["controllers"])
	assert.Empty(t, s.RESTInterfaces())
}

func TestFeignClientWithEndpoints(t *testing.T) {
	s := graph.NewMemory()
	seedClasses(t, s, "clients", &graph.Class{
		Name: "BillingClient", FullName: "com.acme.BillingClient",
		Package: "com.acme", Kind: "interface",
		Annotations: []graph.Annotation{
			{Name: feignClientFQN, Args: map[string]graph.Value{
				"name": graph.StringValue("billing-service"),
				"path": graph.StringValue("/billing"),
				"url":  graph.StringValue("http://billing:8080"),
			}},
		},
		Methods: []*graph.Method{{
			Name: "invoice",
			Annotations: []graph.Annotation{
				{Name: springWebPkg + ".PostMapping", Args: map[string]graph.Value{
					"value": graph.StringValue("/invoices"),
				}},
			},
		}},
	})

	stats, err := NewFeign(s, jobs.NoopLogger{}).Enrich(context.Background(), "clients")
	require.NoError(t, err)
	assert.Equal(t, 1, stats["clients"])
	assert.Equal(t, 1, stats["endpoints"])

	fcs := s.FeignClients()
	require.Len(t, fcs, 1)
	assert.Equal(t, "billing-service", fcs[0].Name)
	assert.Equal(t, "billing-service", fcs[0].ServiceID)
	assert.Equal(t, "http://billing:8080", fcs[0].URL)

	fes := s.FeignEndpoints()
	require.Len(t, fes, 1)
	assert.Equal(t, "/billing/invoices", fes[0].Path)
	assert.Equal(t, "POST", fes[0].HTTPMethod)
}

func TestRestClientsFlagsImporters(t *testing.T) {
	s := graph.NewMemory()
	seedClasses(t, s, "clients",
		&graph.Class{
			Name: "SyncCaller", FullName: "com.acme.SyncCaller",
			Package: "com.acme", Kind: "class",
			Imports: []string{"org.springframework.web.client.RestTemplate"},
		},
		&graph.Class{
			Name: "ReactiveCaller", FullName: "com.acme.ReactiveCaller",
			Package: "com.acme", Kind: "class",
			StarImports: []string{"org.springframework.web.reactive.function.client"},
		},
	)

	stats, err := NewRestClients(s, jobs.NoopLogger{}).Enrich(context.Background(), "clients")
	require.NoError(t, err)
	assert.Equal(t, 2, stats["http_clients"])

	types := map[string]string{}
	for _, hc := range s.HTTPClients() {
		types[hc.Name] = hc.ClientType
	}
	assert.Equal(t, "RestTemplate", types["SyncCaller"])
	assert.Equal(t, "WebClient", types["ReactiveCaller"])
}
