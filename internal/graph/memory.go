package graph

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Store. It backs tests and the "memory"
// backend; semantics match the Neo4j implementation, including subtree
// clears and idempotent upserts.
type Memory struct {
	mu sync.RWMutex

	repos   map[string]string     // repo path -> display name
	modules map[string]*memModule // module name -> module

	classes     map[string]*Class // class full name -> class (methods attached)
	classModule map[string]string // class full name -> module name
	methods     map[string]*Method

	calls map[callKey]struct{}

	restInterfaces []*RESTInterface
	restEndpoints  []*RESTEndpoint
	feignClients   []*FeignClient
	feignEndpoints []*FeignEndpoint
	httpClients    []*HTTPClient
	jmsListeners   []*JMSListener
	jmsProducers   []*JMSProducer
	scheduled      []*ScheduledTask
	dataRepos      []*DataRepository
	destinations   map[string]struct{}
	services       map[string]*Microservice // name -> microservice
}

type memModule struct {
	repoPath     string
	relPath      string
	packages     map[string]struct{}
	technologies []string
}

type callKey struct {
	caller string
	callee string
}

func NewMemory() *Memory {
	return &Memory{
		repos:        make(map[string]string),
		modules:      make(map[string]*memModule),
		classes:      make(map[string]*Class),
		classModule:  make(map[string]string),
		methods:      make(map[string]*Method),
		calls:        make(map[callKey]struct{}),
		destinations: make(map[string]struct{}),
		services:     make(map[string]*Microservice),
	}
}

func (m *Memory) Close(ctx context.Context) error { return nil }

func (m *Memory) ClearRepository(ctx context.Context, repoPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, mod := range m.modules {
		if mod.repoPath == repoPath {
			m.clearModuleLocked(name)
			delete(m.modules, name)
		}
	}
	for name, ms := range m.services {
		if ms.RepoPath == repoPath {
			delete(m.services, name)
		}
	}
	delete(m.repos, repoPath)
	return nil
}

func (m *Memory) EnsureRepository(ctx context.Context, repoPath, repoName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repos[repoPath] = repoName
	return nil
}

func (m *Memory) ClearModule(ctx context.Context, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearModuleLocked(module)
	return nil
}

func (m *Memory) clearModuleLocked(module string) {
	inModule := func(classFullName string) bool {
		return m.classModule[classFullName] == module
	}

	m.restInterfaces = filter(m.restInterfaces, func(x *RESTInterface) bool { return !inModule(x.Class) })
	m.restEndpoints = filter(m.restEndpoints, func(x *RESTEndpoint) bool { return !inModule(x.Class) })
	m.feignClients = filter(m.feignClients, func(x *FeignClient) bool { return !inModule(x.Class) })
	m.feignEndpoints = filter(m.feignEndpoints, func(x *FeignEndpoint) bool { return !inModule(x.Client) })
	m.httpClients = filter(m.httpClients, func(x *HTTPClient) bool { return !inModule(x.Class) })
	m.jmsProducers = filter(m.jmsProducers, func(x *JMSProducer) bool { return !inModule(x.Class) })
	m.jmsListeners = filter(m.jmsListeners, func(x *JMSListener) bool { return !inModule(m.methodClass(x.Method)) })
	m.scheduled = filter(m.scheduled, func(x *ScheduledTask) bool { return !inModule(m.methodClass(x.Method)) })
	m.dataRepos = filter(m.dataRepos, func(x *DataRepository) bool { return !inModule(x.Class) })
	m.pruneOrphanDestinationsLocked()

	for fullName, owner := range m.classModule {
		if owner != module {
			continue
		}
		cls := m.classes[fullName]
		if cls != nil {
			for _, meth := range cls.Methods {
				delete(m.methods, meth.FullName)
			}
		}
		delete(m.classes, fullName)
		delete(m.classModule, fullName)
	}

	for key := range m.calls {
		if _, ok := m.methods[key.caller]; !ok {
			delete(m.calls, key)
			continue
		}
		if _, ok := m.methods[key.callee]; !ok {
			delete(m.calls, key)
		}
	}

	if mod, ok := m.modules[module]; ok {
		mod.packages = make(map[string]struct{})
		mod.technologies = nil
	}
}

func (m *Memory) pruneOrphanDestinationsLocked() {
	referenced := make(map[string]struct{})
	for _, l := range m.jmsListeners {
		referenced[l.Destination] = struct{}{}
	}
	for _, p := range m.jmsProducers {
		for _, d := range p.Destinations {
			referenced[d] = struct{}{}
		}
	}
	for name := range m.destinations {
		if _, ok := referenced[name]; !ok {
			delete(m.destinations, name)
		}
	}
}

func (m *Memory) methodClass(methodFullName string) string {
	for fullName := range m.classes {
		if len(methodFullName) > len(fullName) &&
			methodFullName[:len(fullName)] == fullName &&
			methodFullName[len(fullName)] == '.' {
			return fullName
		}
	}
	return ""
}

func (m *Memory) UpsertModule(ctx context.Context, repoPath, repoName, module, relPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.repos[repoPath]; !ok {
		m.repos[repoPath] = repoName
	}
	mod, ok := m.modules[module]
	if !ok {
		mod = &memModule{packages: make(map[string]struct{})}
		m.modules[module] = mod
	}
	mod.repoPath = repoPath
	mod.relPath = relPath
	return nil
}

func (m *Memory) UpsertPackage(ctx context.Context, module, pkg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mod, ok := m.modules[module]
	if !ok {
		return fmt.Errorf("module %q: %w", module, ErrNotFound)
	}
	mod.packages[pkg] = struct{}{}
	return nil
}

func (m *Memory) UpsertClass(ctx context.Context, cls *Class) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	module := ""
	for name, mod := range m.modules {
		if _, ok := mod.packages[cls.Package]; ok {
			module = name
			break
		}
	}
	if module == "" {
		return fmt.Errorf("package %q has no module: %w", cls.Package, ErrNotFound)
	}

	stored := *cls
	stored.Methods = nil
	m.classes[cls.FullName] = &stored
	m.classModule[cls.FullName] = module
	return nil
}

func (m *Memory) CreateMethod(ctx context.Context, classFullName string, meth *Method) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cls, ok := m.classes[classFullName]
	if !ok {
		return fmt.Errorf("class %q: %w", classFullName, ErrNotFound)
	}
	stored := *meth
	stored.Invocations = nil
	cls.Methods = append(cls.Methods, &stored)
	m.methods[meth.FullName] = &stored
	return nil
}

func (m *Memory) CreateCall(ctx context.Context, caller, callee string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.methods[caller]; !ok {
		return fmt.Errorf("caller %q: %w", caller, ErrNotFound)
	}
	if _, ok := m.methods[callee]; !ok {
		return fmt.Errorf("callee %q: %w", callee, ErrNotFound)
	}
	m.calls[callKey{caller: caller, callee: callee}] = struct{}{}
	return nil
}

func (m *Memory) SetTechnologies(ctx context.Context, module string, techs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mod, ok := m.modules[module]
	if !ok {
		return fmt.Errorf("module %q: %w", module, ErrNotFound)
	}
	mod.technologies = append([]string(nil), techs...)
	return nil
}

func (m *Memory) Technologies(ctx context.Context, module string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mod, ok := m.modules[module]
	if !ok {
		return nil, fmt.Errorf("module %q: %w", module, ErrNotFound)
	}
	return append([]string(nil), mod.technologies...), nil
}

func (m *Memory) ModuleClasses(ctx context.Context, module string) ([]*Class, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Class
	for fullName, owner := range m.classModule {
		if owner == module {
			out = append(out, m.classes[fullName])
		}
	}
	return out, nil
}

func (m *Memory) ClassByFullName(ctx context.Context, fullName string) (*Class, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cls, ok := m.classes[fullName]
	if !ok {
		return nil, fmt.Errorf("class %q: %w", fullName, ErrNotFound)
	}
	return cls, nil
}

func (m *Memory) ClassesBySimpleName(ctx context.Context, name string) ([]*Class, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Class
	for _, cls := range m.classes {
		if cls.Name == name {
			out = append(out, cls)
		}
	}
	return out, nil
}

func (m *Memory) Summary(ctx context.Context, module string) (*ModuleSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mod, ok := m.modules[module]
	if !ok {
		return nil, fmt.Errorf("module %q: %w", module, ErrNotFound)
	}

	s := &ModuleSummary{Packages: len(mod.packages)}
	inModule := func(classFullName string) bool {
		return m.classModule[classFullName] == module
	}
	for fullName, cls := range m.classes {
		if !inModule(fullName) {
			continue
		}
		s.Classes++
		s.Methods += len(cls.Methods)
	}
	for key := range m.calls {
		if inModule(m.methodClass(key.caller)) {
			s.Calls++
		}
	}
	for _, x := range m.restInterfaces {
		if inModule(x.Class) {
			s.ArchNodes++
		}
	}
	for _, x := range m.restEndpoints {
		if inModule(x.Class) {
			s.ArchNodes++
		}
	}
	for _, x := range m.feignClients {
		if inModule(x.Class) {
			s.ArchNodes++
		}
	}
	for _, x := range m.feignEndpoints {
		if inModule(x.Client) {
			s.ArchNodes++
		}
	}
	for _, x := range m.httpClients {
		if inModule(x.Class) {
			s.ArchNodes++
		}
	}
	for _, x := range m.jmsListeners {
		if inModule(m.methodClass(x.Method)) {
			s.ArchNodes++
		}
	}
	for _, x := range m.jmsProducers {
		if inModule(x.Class) {
			s.ArchNodes++
		}
	}
	for _, x := range m.scheduled {
		if inModule(m.methodClass(x.Method)) {
			s.ArchNodes++
		}
	}
	for _, x := range m.dataRepos {
		if inModule(x.Class) {
			s.ArchNodes++
		}
	}
	return s, nil
}

func (m *Memory) CreateRESTInterface(ctx context.Context, ri *RESTInterface) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.classes[ri.Class]; !ok {
		return fmt.Errorf("class %q: %w", ri.Class, ErrNotFound)
	}
	stored := *ri
	m.restInterfaces = append(m.restInterfaces, &stored)
	return nil
}

func (m *Memory) CreateRESTEndpoint(ctx context.Context, ep *RESTEndpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.methods[ep.Method]; !ok {
		return fmt.Errorf("method %q: %w", ep.Method, ErrNotFound)
	}
	stored := *ep
	m.restEndpoints = append(m.restEndpoints, &stored)
	return nil
}

func (m *Memory) CreateFeignClient(ctx context.Context, fc *FeignClient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.classes[fc.Class]; !ok {
		return fmt.Errorf("class %q: %w", fc.Class, ErrNotFound)
	}
	stored := *fc
	m.feignClients = append(m.feignClients, &stored)
	return nil
}

func (m *Memory) CreateFeignEndpoint(ctx context.Context, fe *FeignEndpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.methods[fe.Method]; !ok {
		return fmt.Errorf("method %q: %w", fe.Method, ErrNotFound)
	}
	stored := *fe
	m.feignEndpoints = append(m.feignEndpoints, &stored)
	return nil
}

func (m *Memory) CreateHTTPClient(ctx context.Context, hc *HTTPClient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.classes[hc.Class]; !ok {
		return fmt.Errorf("class %q: %w", hc.Class, ErrNotFound)
	}
	stored := *hc
	m.httpClients = append(m.httpClients, &stored)
	return nil
}

func (m *Memory) MergeDestination(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destinations[name] = struct{}{}
	return nil
}

func (m *Memory) CreateJMSListener(ctx context.Context, l *JMSListener) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.methods[l.Method]; !ok {
		return fmt.Errorf("method %q: %w", l.Method, ErrNotFound)
	}
	stored := *l
	m.jmsListeners = append(m.jmsListeners, &stored)
	return nil
}

func (m *Memory) CreateJMSProducer(ctx context.Context, p *JMSProducer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.classes[p.Class]; !ok {
		return fmt.Errorf("class %q: %w", p.Class, ErrNotFound)
	}
	stored := *p
	stored.Destinations = append([]string(nil), p.Destinations...)
	m.jmsProducers = append(m.jmsProducers, &stored)
	return nil
}

func (m *Memory) CreateScheduledTask(ctx context.Context, t *ScheduledTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.methods[t.Method]; !ok {
		return fmt.Errorf("method %q: %w", t.Method, ErrNotFound)
	}
	stored := *t
	m.scheduled = append(m.scheduled, &stored)
	return nil
}

func (m *Memory) CreateDataRepository(ctx context.Context, r *DataRepository) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.classes[r.Class]; !ok {
		return fmt.Errorf("class %q: %w", r.Class, ErrNotFound)
	}
	stored := *r
	m.dataRepos = append(m.dataRepos, &stored)
	return nil
}

func (m *Memory) UpsertMicroservice(ctx context.Context, ms *Microservice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.repos[ms.RepoPath]; !ok {
		return fmt.Errorf("repository %q: %w", ms.RepoPath, ErrNotFound)
	}
	stored := *ms
	stored.Technologies = append([]string(nil), ms.Technologies...)
	m.services[ms.Name] = &stored
	return nil
}

// RESTInterfaces and friends expose overlay nodes for the browse API
// and for tests.

func (m *Memory) RESTInterfaces() []*RESTInterface {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*RESTInterface(nil), m.restInterfaces...)
}

func (m *Memory) RESTEndpoints() []*RESTEndpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*RESTEndpoint(nil), m.restEndpoints...)
}

func (m *Memory) FeignClients() []*FeignClient {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*FeignClient(nil), m.feignClients...)
}

func (m *Memory) FeignEndpoints() []*FeignEndpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*FeignEndpoint(nil), m.feignEndpoints...)
}

func (m *Memory) HTTPClients() []*HTTPClient {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*HTTPClient(nil), m.httpClients...)
}

func (m *Memory) JMSListeners() []*JMSListener {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*JMSListener(nil), m.jmsListeners...)
}

func (m *Memory) JMSProducers() []*JMSProducer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*JMSProducer(nil), m.jmsProducers...)
}

func (m *Memory) ScheduledTasks() []*ScheduledTask {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*ScheduledTask(nil), m.scheduled...)
}

func (m *Memory) DataRepositories() []*DataRepository {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*DataRepository(nil), m.dataRepos...)
}

func (m *Memory) Microservices() []*Microservice {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Microservice, 0, len(m.services))
	for _, ms := range m.services {
		out = append(out, ms)
	}
	return out
}

func (m *Memory) Destinations() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.destinations))
	for name := range m.destinations {
		out = append(out, name)
	}
	return out
}

func (m *Memory) Calls() [][2]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][2]string, 0, len(m.calls))
	for key := range m.calls {
		out = append(out, [2]string{key.caller, key.callee})
	}
	return out
}

func filter[T any](in []*T, keep func(*T) bool) []*T {
	out := in[:0]
	for _, x := range in {
		if keep(x) {
			out = append(out, x)
		}
	}
	return out
}
