package graph

import (
	"context"
	"fmt"
)

// Store is the property-graph contract the analysis pipeline writes to
// and the scanner/enrichers read from. Both the Neo4j and the in-memory
// backend implement it.
//
// All writes are idempotent upserts keyed by natural keys (full names,
// destination names, path+method pairs) except methods and overlay
// nodes, which are created fresh because their owning module subtree is
// always cleared first.
type Store interface {
	Close(ctx context.Context) error

	// Repository lifecycle (Phase 0).
	ClearRepository(ctx context.Context, repoPath string) error
	EnsureRepository(ctx context.Context, repoPath, repoName string) error

	// Module lifecycle. ClearModule removes the module's whole subtree
	// including overlay nodes derived from it.
	ClearModule(ctx context.Context, module string) error
	UpsertModule(ctx context.Context, repoPath, repoName, module, relPath string) error

	// Metamodel writes.
	UpsertPackage(ctx context.Context, module, pkg string) error
	UpsertClass(ctx context.Context, cls *Class) error
	CreateMethod(ctx context.Context, classFullName string, m *Method) error
	CreateCall(ctx context.Context, caller, callee string) error
	SetTechnologies(ctx context.Context, module string, techs []string) error

	// Metamodel reads.
	Technologies(ctx context.Context, module string) ([]string, error)
	ModuleClasses(ctx context.Context, module string) ([]*Class, error)
	ClassByFullName(ctx context.Context, fullName string) (*Class, error)
	ClassesBySimpleName(ctx context.Context, name string) ([]*Class, error)
	Summary(ctx context.Context, module string) (*ModuleSummary, error)

	// Architecture overlay writes. Every node is linked back to its
	// metamodel node at creation time; a missing implementer is an
	// error, not a partial write.
	CreateRESTInterface(ctx context.Context, ri *RESTInterface) error
	CreateRESTEndpoint(ctx context.Context, ep *RESTEndpoint) error
	CreateFeignClient(ctx context.Context, fc *FeignClient) error
	CreateFeignEndpoint(ctx context.Context, fe *FeignEndpoint) error
	CreateHTTPClient(ctx context.Context, hc *HTTPClient) error
	MergeDestination(ctx context.Context, name string) error
	CreateJMSListener(ctx context.Context, l *JMSListener) error
	CreateJMSProducer(ctx context.Context, p *JMSProducer) error
	CreateScheduledTask(ctx context.Context, t *ScheduledTask) error
	CreateDataRepository(ctx context.Context, r *DataRepository) error

	// UpsertMicroservice writes the repository-level overlay node. It
	// survives module re-runs and is refreshed after every full
	// repository analysis.
	UpsertMicroservice(ctx context.Context, ms *Microservice) error
}

// ErrNotFound is returned by reads and by overlay writes whose target
// metamodel node does not exist.
var ErrNotFound = fmt.Errorf("graph: not found")
