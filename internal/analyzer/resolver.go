package analyzer

import (
	"context"

	"github.com/codeatlas/codeatlas/internal/graph"
)

// Resolver turns the raw invocations recorded by the extractor into
// CALLS edges. Resolution is best effort: an invocation whose receiver
// type cannot be determined from imports, fields or in-scope simple
// names is silently dropped.
type Resolver struct {
	classMethods map[string]map[string]struct{} // class full name -> declared method names
	bySimple     map[string][]string            // simple name -> class full names
	hierarchy    map[string][]string            // class full name -> resolved parent full names
}

func NewResolver(classes []*graph.Class) *Resolver {
	r := &Resolver{
		classMethods: make(map[string]map[string]struct{}, len(classes)),
		bySimple:     make(map[string][]string),
		hierarchy:    make(map[string][]string),
	}
	for _, cls := range classes {
		names := make(map[string]struct{}, len(cls.Methods))
		for _, m := range cls.Methods {
			names[m.Name] = struct{}{}
		}
		r.classMethods[cls.FullName] = names
		r.bySimple[cls.Name] = append(r.bySimple[cls.Name], cls.FullName)
	}
	// Supertype resolution needs the simple-name index complete first.
	for _, cls := range classes {
		importMap := buildImportMap(cls.Imports)
		var parents []string
		for _, st := range cls.Supertypes {
			if fqn, ok := importMap[st]; ok {
				parents = append(parents, fqn)
			} else if candidates := r.bySimple[st]; len(candidates) == 1 {
				parents = append(parents, candidates[0])
			}
		}
		if len(parents) > 0 {
			r.hierarchy[cls.FullName] = parents
		}
	}
	return r
}

// findMethodOwner walks the supertype hierarchy breadth-first from
// target and returns the first class declaring the method, or "".
func (r *Resolver) findMethodOwner(methodName, target string) string {
	visited := make(map[string]struct{})
	queue := []string{target}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if _, seen := visited[current]; seen {
			continue
		}
		visited[current] = struct{}{}
		if names, ok := r.classMethods[current]; ok {
			if _, declared := names[methodName]; declared {
				return current
			}
		}
		queue = append(queue, r.hierarchy[current]...)
	}
	return ""
}

// ResolveCalls resolves every invocation across the given classes and
// writes CALLS edges. Stub methods are synthesized when the receiver
// type is known in scope but the method is not declared anywhere in its
// visible hierarchy. Returns the number of CALLS edges created.
func (r *Resolver) ResolveCalls(ctx context.Context, store graph.Store, classes []*graph.Class) (int, error) {
	count := 0
	seen := make(map[[2]string]struct{})
	synthesized := make(map[string]struct{})

	for _, cls := range classes {
		importMap := buildImportMap(cls.Imports)

		fieldTypes := make(map[string]string)
		for fieldName, typeName := range cls.Fields {
			if fqn, ok := importMap[typeName]; ok {
				fieldTypes[fieldName] = fqn
			} else if candidates := r.bySimple[typeName]; len(candidates) == 1 {
				fieldTypes[fieldName] = candidates[0]
			}
		}

		for _, method := range cls.Methods {
			caller := cls.FullName + "." + method.Name

			for _, inv := range method.Invocations {
				target := r.resolveReceiver(inv, cls, importMap, fieldTypes)
				if target == "" {
					continue
				}

				owner := r.findMethodOwner(inv.Name, target)
				if owner == "" {
					if _, known := r.classMethods[target]; !known {
						continue
					}
					// Known type, undeclared method: presumed inherited
					// from outside the analyzed scope.
					owner = target
					stubFull := target + "." + inv.Name
					if _, done := synthesized[stubFull]; !done {
						synthesized[stubFull] = struct{}{}
						err := store.CreateMethod(ctx, target, &graph.Method{
							Name:       inv.Name,
							FullName:   stubFull,
							ReturnType: "Object",
							Visibility: "public",
							StartLine:  -1,
							EndLine:    -1,
							Synthetic:  true,
						})
						if err != nil {
							return count, err
						}
						r.classMethods[target][inv.Name] = struct{}{}
					}
				}

				callee := owner + "." + inv.Name
				if callee == caller {
					continue
				}
				pair := [2]string{caller, callee}
				if _, dup := seen[pair]; dup {
					continue
				}
				seen[pair] = struct{}{}
				if err := store.CreateCall(ctx, caller, callee); err != nil {
					return count, err
				}
				count++
			}
		}
	}
	return count, nil
}

// resolveReceiver maps an invocation's receiver expression to a class
// full name. Implicit and this receivers land on the declaring class
// unless a static import claims the method name.
func (r *Resolver) resolveReceiver(inv graph.Invocation, cls *graph.Class, importMap, fieldTypes map[string]string) string {
	if inv.Receiver == "" || inv.Receiver == "this" {
		if fqn, ok := cls.StaticImports[inv.Name]; ok {
			return fqn
		}
		return cls.FullName
	}
	if fqn, ok := importMap[inv.Receiver]; ok {
		return fqn
	}
	if candidates := r.bySimple[inv.Receiver]; len(candidates) == 1 {
		return candidates[0]
	}
	if fqn, ok := fieldTypes[inv.Receiver]; ok {
		return fqn
	}
	return ""
}
