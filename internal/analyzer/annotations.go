package analyzer

import (
	"strings"

	"github.com/codeatlas/codeatlas/internal/graph"
	"github.com/codeatlas/codeatlas/internal/parse"
)

// extractAnnotations reads annotations off a type or method declaration
// node. Names stay simple here; resolveAnnotationFQNs upgrades them.
func extractAnnotations(node *parse.Node) []graph.Annotation {
	var anns []graph.Annotation
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Type() != "modifiers" {
			continue
		}
		for j := uint(0); j < child.ChildCount(); j++ {
			mod := child.Child(j)
			switch mod.Type() {
			case "marker_annotation":
				if name := mod.ChildByFieldName("name"); name != nil {
					anns = append(anns, graph.Annotation{Name: name.Content()})
				}
			case "annotation":
				name := mod.ChildByFieldName("name")
				if name == nil {
					continue
				}
				anns = append(anns, graph.Annotation{
					Name: name.Content(),
					Args: extractAnnotationArgs(mod),
				})
			}
		}
		break
	}
	return anns
}

func extractAnnotationArgs(ann *parse.Node) map[string]graph.Value {
	argList := ann.ChildByFieldName("arguments")
	if argList == nil {
		return nil
	}
	args := make(map[string]graph.Value)
	for i := uint(0); i < argList.ChildCount(); i++ {
		child := argList.Child(i)
		switch child.Type() {
		case "element_value_pair":
			key := child.ChildByFieldName("key")
			value := child.ChildByFieldName("value")
			if key != nil && value != nil {
				args[key.Content()] = annotationValue(value)
			}
		case "string_literal", "string_fragment":
			// Shorthand single value: @GetMapping("/users")
			args["value"] = graph.StringValue(stripQuotes(child.Content()))
		case "element_value_array_initializer":
			// Shorthand array: @RequestMapping({"/a", "/b"})
			args["value"] = graph.ListValue(annotationArrayValues(child))
		}
	}
	if len(args) == 0 {
		return nil
	}
	return args
}

func annotationValue(node *parse.Node) graph.Value {
	switch node.Type() {
	case "string_literal":
		return graph.StringValue(stripQuotes(node.Content()))
	case "element_value_array_initializer":
		return graph.ListValue(annotationArrayValues(node))
	default:
		// Field accesses, constants, arbitrary expressions stay as raw
		// source text.
		return graph.RawValue(node.Content())
	}
}

func annotationArrayValues(node *parse.Node) []string {
	var vals []string
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "string_literal":
			vals = append(vals, stripQuotes(child.Content()))
		case "{", "}", ",":
		default:
			vals = append(vals, child.Content())
		}
	}
	return vals
}

func stripQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// resolveAnnotationFQNs maps simple annotation names to fully qualified
// ones: explicit import first, then the first star import, then the
// declaring package. Unresolvable names are kept as-is.
func resolveAnnotationFQNs(anns []graph.Annotation, importMap map[string]string, starImports []string, pkg string) []graph.Annotation {
	resolved := make([]graph.Annotation, 0, len(anns))
	for _, ann := range anns {
		name := ann.Name
		fqn := importMap[name]
		if fqn == "" && len(starImports) > 0 {
			fqn = starImports[0] + "." + name
		}
		if fqn == "" && pkg != "" {
			fqn = pkg + "." + name
		}
		if fqn == "" {
			fqn = name
		}
		resolved = append(resolved, graph.Annotation{Name: fqn, Args: ann.Args})
	}
	return resolved
}

// buildImportMap maps simple names to FQNs from explicit imports.
func buildImportMap(imports []string) map[string]string {
	m := make(map[string]string, len(imports))
	for _, imp := range imports {
		m[simpleName(imp)] = imp
	}
	return m
}

func simpleName(fqn string) string {
	if i := strings.LastIndex(fqn, "."); i >= 0 {
		return fqn[i+1:]
	}
	return fqn
}
