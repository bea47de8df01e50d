package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedModule(t *testing.T, s *Memory, module string) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.UpsertModule(ctx, "/repo", "repo", module, module))
	require.NoError(t, s.UpsertPackage(ctx, module, "com.acme.orders"))
	require.NoError(t, s.UpsertClass(ctx, &Class{
		Name:     "OrderService",
		FullName: "com.acme.orders.OrderService",
		Package:  "com.acme.orders",
		Kind:     "class",
	}))
	require.NoError(t, s.CreateMethod(ctx, "com.acme.orders.OrderService", &Method{
		Name:     "place",
		FullName: "com.acme.orders.OrderService.place",
	}))
	require.NoError(t, s.CreateMethod(ctx, "com.acme.orders.OrderService", &Method{
		Name:     "validate",
		FullName: "com.acme.orders.OrderService.validate",
	}))
	require.NoError(t, s.CreateCall(ctx,
		"com.acme.orders.OrderService.place",
		"com.acme.orders.OrderService.validate"))
}

func TestMemoryUpsertIdempotent(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	seedModule(t, s, "orders")
	first, err := s.Summary(ctx, "orders")
	require.NoError(t, err)

	// Re-running the same upserts must not grow the graph. Methods are
	// recreated only after a module clear, so here we repeat the
	// merge-keyed writes.
	require.NoError(t, s.UpsertModule(ctx, "/repo", "repo", "orders", "orders"))
	require.NoError(t, s.UpsertPackage(ctx, "orders", "com.acme.orders"))
	require.NoError(t, s.UpsertClass(ctx, &Class{
		Name:     "OrderService",
		FullName: "com.acme.orders.OrderService",
		Package:  "com.acme.orders",
		Kind:     "class",
	}))

	second, err := s.Summary(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, first.Packages, second.Packages)
	assert.Equal(t, first.Classes, second.Classes)
}

func TestMemoryCallDedup(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	seedModule(t, s, "orders")

	require.NoError(t, s.CreateCall(ctx,
		"com.acme.orders.OrderService.place",
		"com.acme.orders.OrderService.validate"))
	assert.Len(t, s.Calls(), 1)
}

func TestMemoryCallRequiresBothEndpoints(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	seedModule(t, s, "orders")

	err := s.CreateCall(ctx, "com.acme.orders.OrderService.place", "com.acme.orders.Missing.run")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryClearModuleRemovesSubtree(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	seedModule(t, s, "orders")

	require.NoError(t, s.CreateRESTInterface(ctx, &RESTInterface{
		Name:     "OrderService",
		BasePath: "/api/orders",
		Class:    "com.acme.orders.OrderService",
	}))
	require.NoError(t, s.CreateJMSListener(ctx, &JMSListener{
		Destination: "orders.queue",
		Method:      "com.acme.orders.OrderService.place",
	}))

	require.NoError(t, s.ClearModule(ctx, "orders"))

	_, err := s.ClassByFullName(ctx, "com.acme.orders.OrderService")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, s.Calls())
	assert.Empty(t, s.RESTInterfaces())
	assert.Empty(t, s.JMSListeners())
	assert.Empty(t, s.Destinations(), "orphan destinations pruned with the module")
}

func TestMemoryClearModuleKeepsSharedDestination(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	seedModule(t, s, "orders")
	seedModuleNamed(t, s, "billing", "com.acme.billing", "InvoiceService")

	require.NoError(t, s.CreateJMSListener(ctx, &JMSListener{
		Destination: "events",
		Method:      "com.acme.orders.OrderService.place",
	}))
	require.NoError(t, s.CreateJMSProducer(ctx, &JMSProducer{
		Name:         "InvoiceService",
		Class:        "com.acme.billing.InvoiceService",
		Destinations: []string{"events"},
	}))

	require.NoError(t, s.ClearModule(ctx, "orders"))

	assert.Contains(t, s.Destinations(), "events", "still referenced by the billing producer")
}

func seedModuleNamed(t *testing.T, s *Memory, module, pkg, class string) {
	t.Helper()
	ctx := context.Background()
	full := pkg + "." + class

	require.NoError(t, s.UpsertModule(ctx, "/repo", "repo", module, module))
	require.NoError(t, s.UpsertPackage(ctx, module, pkg))
	require.NoError(t, s.UpsertClass(ctx, &Class{Name: class, FullName: full, Package: pkg, Kind: "class"}))
	require.NoError(t, s.CreateMethod(ctx, full, &Method{Name: "run", FullName: full + ".run"}))
}

func TestMemoryClearRepository(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	seedModule(t, s, "orders")
	seedModuleNamed(t, s, "billing", "com.acme.billing", "InvoiceService")

	require.NoError(t, s.ClearRepository(ctx, "/repo"))

	_, err := s.Summary(ctx, "orders")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Summary(ctx, "billing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryEndpointPerImplementingMethod(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	seedModule(t, s, "orders")

	// Endpoint identity is path + verb + implementing method. The same
	// route on two methods (differing only in media types) stays two
	// endpoint nodes with their own produces/consumes.
	require.NoError(t, s.CreateRESTEndpoint(ctx, &RESTEndpoint{
		Path: "/orders", HTTPMethod: "POST", Interface: "OrderService",
		Class:    "com.acme.orders.OrderService",
		Method:   "com.acme.orders.OrderService.place",
		Consumes: "application/json",
	}))
	require.NoError(t, s.CreateRESTEndpoint(ctx, &RESTEndpoint{
		Path: "/orders", HTTPMethod: "POST", Interface: "OrderService",
		Class:    "com.acme.orders.OrderService",
		Method:   "com.acme.orders.OrderService.validate",
		Consumes: "application/xml",
	}))

	endpoints := s.RESTEndpoints()
	require.Len(t, endpoints, 2)
	consumes := make(map[string]string)
	for _, ep := range endpoints {
		consumes[ep.Method] = ep.Consumes
	}
	assert.Equal(t, "application/json", consumes["com.acme.orders.OrderService.place"])
	assert.Equal(t, "application/xml", consumes["com.acme.orders.OrderService.validate"])
}

func TestMemoryUpsertMicroservice(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	err := s.UpsertMicroservice(ctx, &Microservice{Name: "repo", RepoPath: "/repo"})
	assert.ErrorIs(t, err, ErrNotFound)

	seedModule(t, s, "orders")
	require.NoError(t, s.UpsertMicroservice(ctx, &Microservice{
		Name:         "repo",
		RepoPath:     "/repo",
		Technologies: []string{"jms"},
	}))
	require.NoError(t, s.UpsertMicroservice(ctx, &Microservice{
		Name:         "repo",
		RepoPath:     "/repo",
		Technologies: []string{"jms", "spring-web"},
	}))

	services := s.Microservices()
	require.Len(t, services, 1)
	assert.Equal(t, []string{"jms", "spring-web"}, services[0].Technologies)

	require.NoError(t, s.ClearRepository(ctx, "/repo"))
	assert.Empty(t, s.Microservices())
}

func TestMemorySimpleNameLookup(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	seedModule(t, s, "orders")
	seedModuleNamed(t, s, "billing", "com.acme.billing", "OrderService")

	matches, err := s.ClassesBySimpleName(ctx, "OrderService")
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestAnnotationValueRoundTrip(t *testing.T) {
	anns := []Annotation{
		{Name: "org.springframework.web.bind.annotation.RequestMapping", Args: map[string]Value{
			"value":    StringValue("/api"),
			"produces": ListValue([]string{"application/json", "application/xml"}),
			"required": RawValue("false"),
		}},
		{Name: "lombok.Data"},
	}

	got := UnmarshalAnnotations(MarshalAnnotations(anns))
	require.Len(t, got, 2)

	rm := FindAnnotation(got, "org.springframework.web.bind.annotation.RequestMapping")
	require.NotNil(t, rm)
	assert.Equal(t, "/api", rm.Arg("value").First())
	assert.Equal(t, []string{"application/json", "application/xml"}, rm.Arg("produces").List)
	assert.Equal(t, "false", rm.Arg("required").First())
}
