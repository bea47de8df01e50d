package graph

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4j implements Store on a Neo4j server. Metamodel nodes carry the
// Code label plus their entity label; overlay nodes carry Arch.
type Neo4j struct {
	driver   neo4j.DriverWithContext
	database string
}

// Config holds Neo4j connection configuration.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// NewNeo4j connects and verifies connectivity.
func NewNeo4j(ctx context.Context, cfg Config) (*Neo4j, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("connecting to neo4j: %w", err)
	}
	db := cfg.Database
	if db == "" {
		db = "neo4j"
	}
	return &Neo4j{driver: driver, database: db}, nil
}

func (s *Neo4j) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Neo4j) session(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
}

func (s *Neo4j) write(ctx context.Context, cypher string, params map[string]any) error {
	session := s.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		_, err = result.Consume(ctx)
		return nil, err
	})
	return err
}

// writeMatched runs a write whose first MATCH must bind; zero produced
// rows means a required node was missing.
func (s *Neo4j) writeMatched(ctx context.Context, cypher string, params map[string]any) error {
	session := s.session(ctx)
	defer session.Close(ctx)

	rows, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		records, err := result.Collect(ctx)
		if err != nil {
			return nil, err
		}
		return len(records), nil
	})
	if err != nil {
		return err
	}
	if rows.(int) == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Neo4j) readRecords(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	records, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return result.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return records.([]*neo4j.Record), nil
}

func (s *Neo4j) ClearRepository(ctx context.Context, repoPath string) error {
	records, err := s.readRecords(ctx, `
		MATCH (r:Code:Repository {path: $path})-[:CONTAINS_MODULE]->(m:Code:Module)
		RETURN m.name AS name
	`, map[string]any{"path": repoPath})
	if err != nil {
		return err
	}
	for _, rec := range records {
		name, _ := rec.Get("name")
		if err := s.ClearModule(ctx, name.(string)); err != nil {
			return err
		}
	}
	return s.write(ctx, `
		MATCH (r:Code:Repository {path: $path})
		DETACH DELETE r
	`, map[string]any{"path": repoPath})
}

func (s *Neo4j) EnsureRepository(ctx context.Context, repoPath, repoName string) error {
	return s.write(ctx, `
		MERGE (r:Code:Repository {path: $path})
		SET r.name = $name
	`, map[string]any{"path": repoPath, "name": repoName})
}

func (s *Neo4j) ClearModule(ctx context.Context, module string) error {
	stmts := []string{
		// Overlay nodes hanging off the module's types.
		`MATCH (:Code:Module {name: $name})-[:CONTAINS_PACKAGE]->(:Code:Package)
		       -[:CONTAINS_TYPE]->(t:Code:Type)
		 OPTIONAL MATCH (a:Arch)-[:IMPLEMENTED_BY]->(t)
		 DETACH DELETE a`,
		// Overlay nodes hanging off the module's methods.
		`MATCH (:Code:Module {name: $name})-[:CONTAINS_PACKAGE]->(:Code:Package)
		       -[:CONTAINS_TYPE]->(:Code:Type)-[:HAS_METHOD]->(meth:Code:Method)
		 OPTIONAL MATCH (a:Arch)-[:IMPLEMENTED_BY]->(meth)
		 DETACH DELETE a`,
		// Overlay nodes left without any edge (shared destinations etc).
		`MATCH (a:Arch)
		 WHERE NOT EXISTS { MATCH (a)-[]-() }
		 DELETE a`,
		// The module subtree itself.
		`MATCH (m:Code:Module {name: $name})
		 OPTIONAL MATCH (m)-[*]->(n)
		 DETACH DELETE n, m`,
	}
	for _, stmt := range stmts {
		if err := s.write(ctx, stmt, map[string]any{"name": module}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Neo4j) UpsertModule(ctx context.Context, repoPath, repoName, module, relPath string) error {
	return s.write(ctx, `
		MERGE (r:Code:Repository {path: $repo_path})
		ON CREATE SET r.name = $repo_name
		MERGE (m:Code:Module {name: $module})
		SET m.path = $rel_path
		MERGE (r)-[:CONTAINS_MODULE]->(m)
	`, map[string]any{
		"repo_path": repoPath,
		"repo_name": repoName,
		"module":    module,
		"rel_path":  relPath,
	})
}

func (s *Neo4j) UpsertPackage(ctx context.Context, module, pkg string) error {
	short := pkg
	if i := lastDot(pkg); i >= 0 {
		short = pkg[i+1:]
	}
	return s.writeMatched(ctx, `
		MATCH (m:Code:Module {name: $module})
		MERGE (p:Code:Package {full_name: $full_name})
		SET p.name = $name
		MERGE (m)-[:CONTAINS_PACKAGE]->(p)
		RETURN p
	`, map[string]any{
		"module":    module,
		"full_name": pkg,
		"name":      short,
	})
}

func (s *Neo4j) UpsertClass(ctx context.Context, cls *Class) error {
	statics, err := json.Marshal(cls.StaticImports)
	if err != nil {
		return fmt.Errorf("marshaling static imports: %w", err)
	}
	fields, err := json.Marshal(cls.Fields)
	if err != nil {
		return fmt.Errorf("marshaling fields: %w", err)
	}
	supertypes, err := json.Marshal(cls.Supertypes)
	if err != nil {
		return fmt.Errorf("marshaling supertypes: %w", err)
	}
	return s.writeMatched(ctx, `
		MATCH (p:Code:Package {full_name: $package})
		MERGE (t:Code:Type {full_name: $full_name})
		SET t.name = $name,
		    t.kind = $kind,
		    t.is_abstract = $is_abstract,
		    t.is_test = $is_test,
		    t.file_path = $file_path,
		    t.visibility = $visibility,
		    t.source_code = $source_code,
		    t.annotations = $annotations,
		    t.supertypes = $supertypes,
		    t.imports = $imports,
		    t.star_imports = $star_imports,
		    t.static_imports = $static_imports,
		    t.fields = $fields
		MERGE (p)-[:CONTAINS_TYPE]->(t)
		RETURN t
	`, map[string]any{
		"package":        cls.Package,
		"full_name":      cls.FullName,
		"name":           cls.Name,
		"kind":           cls.Kind,
		"is_abstract":    cls.Abstract,
		"is_test":        cls.Test,
		"file_path":      cls.FilePath,
		"visibility":     cls.Visibility,
		"source_code":    cls.Source,
		"annotations":    MarshalAnnotations(cls.Annotations),
		"supertypes":     string(supertypes),
		"imports":        toAnySlice(cls.Imports),
		"star_imports":   toAnySlice(cls.StarImports),
		"static_imports": string(statics),
		"fields":         string(fields),
	})
}

func (s *Neo4j) CreateMethod(ctx context.Context, classFullName string, m *Method) error {
	return s.writeMatched(ctx, `
		MATCH (t:Code:Type {full_name: $class_name})
		CREATE (m:Code:Method {
			name: $name,
			full_name: $full_name,
			return_type: $return_type,
			parameters: $parameters,
			is_static: $is_static,
			is_abstract: $is_abstract,
			visibility: $visibility,
			start_line: $start_line,
			end_line: $end_line,
			annotations: $annotations,
			synthetic: $synthetic
		})
		CREATE (t)-[:HAS_METHOD]->(m)
		RETURN m
	`, map[string]any{
		"class_name":  classFullName,
		"name":        m.Name,
		"full_name":   m.FullName,
		"return_type": m.ReturnType,
		"parameters":  m.Parameters,
		"is_static":   m.Static,
		"is_abstract": m.Abstract,
		"visibility":  m.Visibility,
		"start_line":  m.StartLine,
		"end_line":    m.EndLine,
		"annotations": MarshalAnnotations(m.Annotations),
		"synthetic":   m.Synthetic,
	})
}

func (s *Neo4j) CreateCall(ctx context.Context, caller, callee string) error {
	return s.writeMatched(ctx, `
		MATCH (a:Code:Method {full_name: $caller})
		MATCH (b:Code:Method {full_name: $callee})
		MERGE (a)-[:CALLS]->(b)
		RETURN a
	`, map[string]any{"caller": caller, "callee": callee})
}

func (s *Neo4j) SetTechnologies(ctx context.Context, module string, techs []string) error {
	return s.writeMatched(ctx, `
		MATCH (m:Code:Module {name: $name})
		SET m.detected_technologies = $techs
		RETURN m
	`, map[string]any{"name": module, "techs": toAnySlice(techs)})
}

func (s *Neo4j) Technologies(ctx context.Context, module string) ([]string, error) {
	records, err := s.readRecords(ctx, `
		MATCH (m:Code:Module {name: $name})
		RETURN m.detected_technologies AS techs
	`, map[string]any{"name": module})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("module %q: %w", module, ErrNotFound)
	}
	raw, _ := records[0].Get("techs")
	return toStringSlice(raw), nil
}

func (s *Neo4j) Summary(ctx context.Context, module string) (*ModuleSummary, error) {
	records, err := s.readRecords(ctx, `
		MATCH (m:Code:Module {name: $name})
		OPTIONAL MATCH (m)-[:CONTAINS_PACKAGE]->(p:Code:Package)
		OPTIONAL MATCH (p)-[:CONTAINS_TYPE]->(t:Code:Type)
		OPTIONAL MATCH (t)-[:HAS_METHOD]->(meth:Code:Method)
		OPTIONAL MATCH (meth)-[c:CALLS]->()
		OPTIONAL MATCH (a:Arch)-[:IMPLEMENTED_BY]->(impl)
		WHERE impl = t OR impl = meth
		RETURN count(DISTINCT p) AS packages,
		       count(DISTINCT t) AS types,
		       count(DISTINCT meth) AS methods,
		       count(DISTINCT c) AS calls,
		       count(DISTINCT a) AS arch
	`, map[string]any{"name": module})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("module %q: %w", module, ErrNotFound)
	}
	rec := records[0]
	return &ModuleSummary{
		Packages:  recordInt(rec, "packages"),
		Classes:   recordInt(rec, "types"),
		Methods:   recordInt(rec, "methods"),
		Calls:     recordInt(rec, "calls"),
		ArchNodes: recordInt(rec, "arch"),
	}, nil
}

func (s *Neo4j) ModuleClasses(ctx context.Context, module string) ([]*Class, error) {
	records, err := s.readRecords(ctx, classQuery(`
		MATCH (:Code:Module {name: $module})-[:CONTAINS_PACKAGE]->(pkg:Code:Package)
		      -[:CONTAINS_TYPE]->(t:Code:Type)
	`), map[string]any{"module": module})
	if err != nil {
		return nil, err
	}
	classes := make([]*Class, 0, len(records))
	for _, rec := range records {
		classes = append(classes, classFromRecord(rec))
	}
	return classes, nil
}

func (s *Neo4j) ClassByFullName(ctx context.Context, fullName string) (*Class, error) {
	records, err := s.readRecords(ctx, classQuery(`
		MATCH (pkg:Code:Package)-[:CONTAINS_TYPE]->(t:Code:Type {full_name: $full_name})
	`), map[string]any{"full_name": fullName})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("class %q: %w", fullName, ErrNotFound)
	}
	return classFromRecord(records[0]), nil
}

func (s *Neo4j) ClassesBySimpleName(ctx context.Context, name string) ([]*Class, error) {
	records, err := s.readRecords(ctx, classQuery(`
		MATCH (pkg:Code:Package)-[:CONTAINS_TYPE]->(t:Code:Type {name: $name})
	`), map[string]any{"name": name})
	if err != nil {
		return nil, err
	}
	classes := make([]*Class, 0, len(records))
	for _, rec := range records {
		classes = append(classes, classFromRecord(rec))
	}
	return classes, nil
}

func classQuery(match string) string {
	return match + `
		OPTIONAL MATCH (t)-[:HAS_METHOD]->(m:Code:Method)
		RETURN t.full_name AS full_name,
		       t.name AS name,
		       pkg.full_name AS package,
		       t.kind AS kind,
		       t.is_abstract AS is_abstract,
		       t.is_test AS is_test,
		       t.file_path AS file_path,
		       t.visibility AS visibility,
		       t.source_code AS source_code,
		       t.annotations AS annotations,
		       t.supertypes AS supertypes,
		       t.imports AS imports,
		       t.star_imports AS star_imports,
		       t.static_imports AS static_imports,
		       t.fields AS fields,
		       collect({
		           full_name: m.full_name,
		           name: m.name,
		           annotations: m.annotations,
		           synthetic: m.synthetic
		       }) AS methods
	`
}

func classFromRecord(rec *neo4j.Record) *Class {
	cls := &Class{
		FullName:    recordString(rec, "full_name"),
		Name:        recordString(rec, "name"),
		Package:     recordString(rec, "package"),
		Kind:        recordString(rec, "kind"),
		Abstract:    recordBool(rec, "is_abstract"),
		Test:        recordBool(rec, "is_test"),
		FilePath:    recordString(rec, "file_path"),
		Visibility:  recordString(rec, "visibility"),
		Source:      recordString(rec, "source_code"),
		Annotations: UnmarshalAnnotations(recordString(rec, "annotations")),
	}
	if raw, ok := rec.Get("imports"); ok {
		cls.Imports = toStringSlice(raw)
	}
	if raw, ok := rec.Get("star_imports"); ok {
		cls.StarImports = toStringSlice(raw)
	}
	var supertypes []string
	if json.Unmarshal([]byte(recordString(rec, "supertypes")), &supertypes) == nil {
		cls.Supertypes = supertypes
	}
	statics := make(map[string]string)
	if json.Unmarshal([]byte(recordString(rec, "static_imports")), &statics) == nil {
		cls.StaticImports = statics
	}
	fields := make(map[string]string)
	if json.Unmarshal([]byte(recordString(rec, "fields")), &fields) == nil {
		cls.Fields = fields
	}

	if raw, ok := rec.Get("methods"); ok {
		if items, ok := raw.([]any); ok {
			for _, item := range items {
				props, ok := item.(map[string]any)
				if !ok || props["name"] == nil {
					continue
				}
				m := &Method{
					FullName:    asString(props["full_name"]),
					Name:        asString(props["name"]),
					Annotations: UnmarshalAnnotations(asString(props["annotations"])),
				}
				if b, ok := props["synthetic"].(bool); ok {
					m.Synthetic = b
				}
				cls.Methods = append(cls.Methods, m)
			}
		}
	}
	return cls
}

func recordString(rec *neo4j.Record, key string) string {
	raw, ok := rec.Get(key)
	if !ok {
		return ""
	}
	return asString(raw)
}

func recordBool(rec *neo4j.Record, key string) bool {
	raw, ok := rec.Get(key)
	if !ok {
		return false
	}
	b, _ := raw.(bool)
	return b
}

func recordInt(rec *neo4j.Record, key string) int {
	raw, ok := rec.Get(key)
	if !ok {
		return 0
	}
	n, _ := raw.(int64)
	return int(n)
}

func asString(raw any) string {
	s, _ := raw.(string)
	return s
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func toStringSlice(raw any) []string {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func lastDot(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}
