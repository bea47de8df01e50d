package graph

import "context"

// Architecture overlay writes. Each statement MATCHes the implementing
// metamodel node first so a missing implementer surfaces as ErrNotFound
// instead of a floating overlay node.

func (s *Neo4j) CreateRESTInterface(ctx context.Context, ri *RESTInterface) error {
	return s.writeMatched(ctx, `
		MATCH (t:Code:Type {full_name: $class})
		MERGE (ri:Arch:RESTInterface {name: $name})
		SET ri.base_path = $base_path
		MERGE (ri)-[:IMPLEMENTED_BY]->(t)
		RETURN ri
	`, map[string]any{
		"class":     ri.Class,
		"name":      ri.Name,
		"base_path": ri.BasePath,
	})
}

func (s *Neo4j) CreateRESTEndpoint(ctx context.Context, ep *RESTEndpoint) error {
	return s.writeMatched(ctx, `
		MATCH (ri:Arch:RESTInterface {name: $interface})-[:IMPLEMENTED_BY]->(:Code:Type {full_name: $class})
		MATCH (m:Code:Method {full_name: $method})
		MERGE (e:Arch:RESTEndpoint {path: $path, http_method: $http_method, interface: $interface, method: $method})
		SET e.produces = $produces,
		    e.consumes = $consumes
		MERGE (ri)-[:HAS_ENDPOINT]->(e)
		MERGE (e)-[:IMPLEMENTED_BY]->(m)
		RETURN e
	`, map[string]any{
		"interface":   ep.Interface,
		"class":       ep.Class,
		"method":      ep.Method,
		"path":        ep.Path,
		"http_method": ep.HTTPMethod,
		"produces":    ep.Produces,
		"consumes":    ep.Consumes,
	})
}

func (s *Neo4j) CreateFeignClient(ctx context.Context, fc *FeignClient) error {
	return s.writeMatched(ctx, `
		MATCH (t:Code:Type {full_name: $class})
		MERGE (c:Arch:FeignClient {name: $name})
		SET c.url = $url,
		    c.path = $path,
		    c.service_id = $service_id
		MERGE (c)-[:IMPLEMENTED_BY]->(t)
		RETURN c
	`, map[string]any{
		"class":      fc.Class,
		"name":       fc.Name,
		"url":        fc.URL,
		"path":       fc.Path,
		"service_id": fc.ServiceID,
	})
}

func (s *Neo4j) CreateFeignEndpoint(ctx context.Context, fe *FeignEndpoint) error {
	return s.writeMatched(ctx, `
		MATCH (c:Arch:FeignClient)-[:IMPLEMENTED_BY]->(:Code:Type {full_name: $client})
		MATCH (m:Code:Method {full_name: $method})
		MERGE (e:Arch:FeignEndpoint {path: $path, http_method: $http_method, client: $client, method: $method})
		MERGE (c)-[:HAS_ENDPOINT]->(e)
		MERGE (e)-[:IMPLEMENTED_BY]->(m)
		RETURN e
	`, map[string]any{
		"client":      fe.Client,
		"method":      fe.Method,
		"path":        fe.Path,
		"http_method": fe.HTTPMethod,
	})
}

func (s *Neo4j) CreateHTTPClient(ctx context.Context, hc *HTTPClient) error {
	return s.writeMatched(ctx, `
		MATCH (t:Code:Type {full_name: $class})
		MERGE (c:Arch:HTTPClient {name: $name})
		SET c.client_type = $client_type
		MERGE (c)-[:IMPLEMENTED_BY]->(t)
		RETURN c
	`, map[string]any{
		"class":       hc.Class,
		"name":        hc.Name,
		"client_type": hc.ClientType,
	})
}

func (s *Neo4j) MergeDestination(ctx context.Context, name string) error {
	return s.write(ctx, `
		MERGE (d:Arch:JMSDestination {name: $name})
	`, map[string]any{"name": name})
}

func (s *Neo4j) CreateJMSListener(ctx context.Context, l *JMSListener) error {
	params := map[string]any{
		"method":            l.Method,
		"destination":       l.Destination,
		"selector":          l.Selector,
		"concurrency":       l.Concurrency,
		"container_factory": l.ContainerFactory,
	}
	// A dynamic-destination listener gets no destination node.
	if l.Destination == "" {
		return s.writeMatched(ctx, `
			MATCH (m:Code:Method {full_name: $method})
			MERGE (lst:Arch:JMSListener {destination: $destination, method: $method})
			SET lst.selector = $selector,
			    lst.concurrency = $concurrency,
			    lst.container_factory = $container_factory
			MERGE (lst)-[:IMPLEMENTED_BY]->(m)
			RETURN lst
		`, params)
	}
	return s.writeMatched(ctx, `
		MATCH (m:Code:Method {full_name: $method})
		MERGE (d:Arch:JMSDestination {name: $destination})
		MERGE (lst:Arch:JMSListener {destination: $destination, method: $method})
		SET lst.selector = $selector,
		    lst.concurrency = $concurrency,
		    lst.container_factory = $container_factory
		MERGE (lst)-[:LISTENS_ON]->(d)
		MERGE (lst)-[:IMPLEMENTED_BY]->(m)
		RETURN lst
	`, params)
}

func (s *Neo4j) CreateJMSProducer(ctx context.Context, p *JMSProducer) error {
	if len(p.Destinations) == 0 {
		return s.writeMatched(ctx, `
			MATCH (t:Code:Type {full_name: $class})
			MERGE (prod:Arch:JMSProducer {name: $name})
			MERGE (prod)-[:IMPLEMENTED_BY]->(t)
			RETURN prod
		`, map[string]any{"class": p.Class, "name": p.Name})
	}
	return s.writeMatched(ctx, `
		MATCH (t:Code:Type {full_name: $class})
		MERGE (prod:Arch:JMSProducer {name: $name})
		MERGE (prod)-[:IMPLEMENTED_BY]->(t)
		WITH prod
		UNWIND $destinations AS dest
		MERGE (d:Arch:JMSDestination {name: dest})
		MERGE (prod)-[:SENDS_TO]->(d)
		RETURN prod
	`, map[string]any{
		"class":        p.Class,
		"name":         p.Name,
		"destinations": toAnySlice(p.Destinations),
	})
}

func (s *Neo4j) CreateScheduledTask(ctx context.Context, t *ScheduledTask) error {
	return s.writeMatched(ctx, `
		MATCH (m:Code:Method {full_name: $method})
		MERGE (st:Arch:ScheduledTask {method: $method})
		SET st.cron = $cron,
		    st.fixed_delay = $fixed_delay,
		    st.fixed_rate = $fixed_rate,
		    st.initial_delay = $initial_delay,
		    st.zone = $zone
		MERGE (st)-[:IMPLEMENTED_BY]->(m)
		RETURN st
	`, map[string]any{
		"method":        t.Method,
		"cron":          t.Cron,
		"fixed_delay":   t.FixedDelay,
		"fixed_rate":    t.FixedRate,
		"initial_delay": t.InitialDelay,
		"zone":          t.Zone,
	})
}

func (s *Neo4j) UpsertMicroservice(ctx context.Context, ms *Microservice) error {
	return s.writeMatched(ctx, `
		MATCH (r:Code:Repository {path: $path})
		MERGE (ms:Arch:Microservice {name: $name})
		SET ms.technologies = $technologies
		MERGE (ms)-[:IMPLEMENTED_BY]->(r)
		RETURN ms
	`, map[string]any{
		"path":         ms.RepoPath,
		"name":         ms.Name,
		"technologies": toAnySlice(ms.Technologies),
	})
}

func (s *Neo4j) CreateDataRepository(ctx context.Context, r *DataRepository) error {
	return s.writeMatched(ctx, `
		MATCH (t:Code:Type {full_name: $class})
		MERGE (repo:Arch:Repository {name: $name})
		SET repo.entity_type = $entity_type,
		    repo.repository_type = $repo_type
		MERGE (repo)-[:IMPLEMENTED_BY]->(t)
		RETURN repo
	`, map[string]any{
		"class":       r.Class,
		"name":        r.Name,
		"entity_type": r.EntityType,
		"repo_type":   r.RepoType,
	})
}
