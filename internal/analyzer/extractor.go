package analyzer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/codeatlas/codeatlas/internal/graph"
	"github.com/codeatlas/codeatlas/internal/parse"
)

var typeDeclarations = map[string]string{
	"class_declaration":     "class",
	"interface_declaration": "interface",
	"enum_declaration":      "enum",
	"record_declaration":    "record",
}

var modifierKeywords = map[string]struct{}{
	"public": {}, "private": {}, "protected": {}, "static": {},
	"abstract": {}, "final": {}, "synchronized": {}, "native": {},
	"transient": {}, "volatile": {}, "strictfp": {}, "default": {},
	"sealed": {},
}

// Extractor parses Java sources into metamodel records. One extractor
// wraps one parser and is not safe for concurrent use.
type Extractor struct {
	parser *parse.Parser
}

func NewExtractor(loader *parse.Loader) (*Extractor, error) {
	p, err := parse.NewParser(loader, "java")
	if err != nil {
		return nil, fmt.Errorf("creating java parser: %w", err)
	}
	return &Extractor{parser: p}, nil
}

func (e *Extractor) Close() {
	e.parser.Close()
}

// FileResult is everything extracted from one source file.
type FileResult struct {
	Package string
	Partial bool // syntax errors were present; extraction is best-effort
	Classes []*graph.Class
}

// WalkSourceFiles lists .java files under the Maven source roots of a
// module, in deterministic order.
func WalkSourceFiles(modulePath string) ([]string, error) {
	var files []string
	roots := []string{
		filepath.Join(modulePath, "src", "main", "java"),
		filepath.Join(modulePath, "src", "test", "java"),
	}
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			continue
		}
		err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(d.Name(), ".java") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

// ExtractFile reads and extracts one file. relPath is the path relative
// to the module root and becomes the stored file path.
func (e *Extractor) ExtractFile(path, relPath string) (*FileResult, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", relPath, err)
	}
	return e.Extract(source, relPath)
}

// Extract parses source and walks it into class records. Test sources
// are recognized by their src/test/ prefix.
func (e *Extractor) Extract(source []byte, relPath string) (*FileResult, error) {
	tree, err := e.parser.Parse(source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	result := &FileResult{Partial: root.HasError()}

	result.Package = extractPackage(root)
	imports, starImports, staticImports := extractImports(root)
	isTest := strings.HasPrefix(filepath.ToSlash(relPath), "src/test/")

	importMap := buildImportMap(imports)

	// Depth-first over type declarations, source order, with an
	// explicit work stack so nesting depth never grows the call stack.
	type pending struct {
		node   *parse.Node
		parent string // enclosing type full name, "" for top level
	}
	var stack []pending
	for i := root.NamedChildCount(); i > 0; i-- {
		child := root.NamedChild(i - 1)
		if _, ok := typeDeclarations[child.Type()]; ok {
			stack = append(stack, pending{node: child})
		}
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node := top.node
		kind := typeDeclarations[node.Type()]
		nameNode := node.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		simple := nameNode.Content()

		fullName := simple
		switch {
		case top.parent != "":
			fullName = top.parent + "." + simple
		case result.Package != "":
			fullName = result.Package + "." + simple
		}

		mods := modifiers(node)
		_, isAbstract := mods["abstract"]

		// Nested types keep their own body text and line numbers
		// relative to it; top-level types carry the whole file.
		sourceCode := string(source)
		classStartLine := 0
		if top.parent != "" {
			sourceCode = node.Content()
			classStartLine = int(node.StartPosition().Row)
		}

		anns := resolveAnnotationFQNs(extractAnnotations(node), importMap, starImports, result.Package)
		methods := extractMethods(node, classStartLine)
		for _, m := range methods {
			m.Annotations = resolveAnnotationFQNs(m.Annotations, importMap, starImports, result.Package)
			m.FullName = fullName + "." + m.Name
		}

		result.Classes = append(result.Classes, &graph.Class{
			Name:          simple,
			FullName:      fullName,
			Package:       result.Package,
			Kind:          kind,
			Abstract:      isAbstract,
			Test:          isTest,
			FilePath:      filepath.ToSlash(relPath),
			Visibility:    visibility(mods),
			Source:        sourceCode,
			Imports:       imports,
			StarImports:   starImports,
			StaticImports: staticImports,
			Supertypes:    extractSupertypes(node),
			Annotations:   anns,
			Fields:        extractFields(node),
			Methods:       methods,
		})

		if body := node.ChildByFieldName("body"); body != nil {
			for i := body.NamedChildCount(); i > 0; i-- {
				inner := body.NamedChild(i - 1)
				if _, ok := typeDeclarations[inner.Type()]; ok {
					stack = append(stack, pending{node: inner, parent: fullName})
				}
			}
		}
	}

	return result, nil
}

func extractPackage(root *parse.Node) string {
	for i := uint(0); i < root.ChildCount(); i++ {
		child := root.Child(i)
		if child.Type() != "package_declaration" {
			continue
		}
		for j := uint(0); j < child.ChildCount(); j++ {
			c := child.Child(j)
			if t := c.Type(); t == "scoped_identifier" || t == "identifier" {
				return c.Content()
			}
		}
	}
	return ""
}

// extractImports splits import declarations into plain imports, star
// import package prefixes, and static member imports (member name to
// declaring class FQN). The declaring class of a static import is also
// recorded as a plain import.
func extractImports(root *parse.Node) (imports, starImports []string, staticImports map[string]string) {
	staticImports = make(map[string]string)
	for i := uint(0); i < root.ChildCount(); i++ {
		child := root.Child(i)
		if child.Type() != "import_declaration" {
			continue
		}
		text := strings.TrimSpace(child.Content())
		text = strings.TrimPrefix(text, "import ")
		text = strings.TrimSpace(strings.TrimSuffix(text, ";"))
		isStatic := strings.HasPrefix(text, "static ")
		if isStatic {
			text = strings.TrimSpace(strings.TrimPrefix(text, "static "))
		}
		switch {
		case strings.HasSuffix(text, ".*"):
			starImports = append(starImports, strings.TrimSuffix(text, ".*"))
		case isStatic:
			if dot := strings.LastIndex(text, "."); dot > 0 {
				classFQN := text[:dot]
				staticImports[text[dot+1:]] = classFQN
				imports = append(imports, classFQN)
			}
		default:
			imports = append(imports, text)
		}
	}
	return imports, starImports, staticImports
}

func modifiers(node *parse.Node) map[string]struct{} {
	mods := make(map[string]struct{})
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Type() != "modifiers" {
			continue
		}
		for j := uint(0); j < child.ChildCount(); j++ {
			text := child.Child(j).Content()
			if _, ok := modifierKeywords[text]; ok {
				mods[text] = struct{}{}
			}
		}
		break
	}
	return mods
}

func visibility(mods map[string]struct{}) string {
	for _, v := range []string{"public", "protected", "private"} {
		if _, ok := mods[v]; ok {
			return v
		}
	}
	return "package-private"
}

func extractSupertypes(node *parse.Node) []string {
	var supertypes []string
	add := func(n *parse.Node) {
		if t := n.Type(); t == "type_identifier" || t == "generic_type" {
			name := n.Content()
			if lt := strings.Index(name, "<"); lt >= 0 {
				name = name[:lt]
			}
			supertypes = append(supertypes, strings.TrimSpace(name))
		}
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "superclass":
			for j := uint(0); j < child.ChildCount(); j++ {
				add(child.Child(j))
			}
		case "super_interfaces", "extends_interfaces":
			for j := uint(0); j < child.ChildCount(); j++ {
				c := child.Child(j)
				if c.Type() == "type_list" {
					for k := uint(0); k < c.ChildCount(); k++ {
						add(c.Child(k))
					}
				} else {
					add(c)
				}
			}
		}
	}
	return supertypes
}

// extractFields maps field names to their declared type with generics
// stripped, e.g. List<String> users becomes users -> List.
func extractFields(node *parse.Node) map[string]string {
	fields := make(map[string]string)
	body := node.ChildByFieldName("body")
	if body == nil {
		return fields
	}
	for i := uint(0); i < body.ChildCount(); i++ {
		child := body.Child(i)
		if child.Type() != "field_declaration" {
			continue
		}
		typeNode := child.ChildByFieldName("type")
		if typeNode == nil {
			continue
		}
		typeText := typeNode.Content()
		if lt := strings.Index(typeText, "<"); lt >= 0 {
			typeText = typeText[:lt]
		}
		typeText = strings.TrimSpace(typeText)
		for j := uint(0); j < child.ChildCount(); j++ {
			decl := child.Child(j)
			if decl.Type() != "variable_declarator" {
				continue
			}
			if name := decl.ChildByFieldName("name"); name != nil {
				fields[name.Content()] = typeText
			}
		}
	}
	return fields
}

func extractMethods(node *parse.Node, classStartLine int) []*graph.Method {
	var methods []*graph.Method
	body := node.ChildByFieldName("body")
	if body == nil {
		return methods
	}
	for i := uint(0); i < body.ChildCount(); i++ {
		child := body.Child(i)
		switch child.Type() {
		case "method_declaration":
			name := "?"
			if n := child.ChildByFieldName("name"); n != nil {
				name = n.Content()
			}
			returnType := "void"
			if n := child.ChildByFieldName("type"); n != nil {
				returnType = n.Content()
			}
			mods := modifiers(child)
			_, isStatic := mods["static"]
			_, isAbstract := mods["abstract"]
			methods = append(methods, &graph.Method{
				Name:        name,
				ReturnType:  returnType,
				Parameters:  formatParams(child),
				Static:      isStatic,
				Abstract:    isAbstract,
				Visibility:  visibility(mods),
				StartLine:   int(child.StartPosition().Row) - classStartLine,
				EndLine:     int(child.EndPosition().Row) - classStartLine,
				Annotations: extractAnnotations(child),
				Invocations: extractInvocations(child),
			})
		case "constructor_declaration":
			mods := modifiers(child)
			methods = append(methods, &graph.Method{
				Name:        "<init>",
				ReturnType:  "void",
				Parameters:  formatParams(child),
				Visibility:  visibility(mods),
				StartLine:   int(child.StartPosition().Row) - classStartLine,
				EndLine:     int(child.EndPosition().Row) - classStartLine,
				Invocations: extractInvocations(child),
			})
		}
	}
	return methods
}

// extractInvocations collects every method_invocation in a method body,
// again with an explicit work stack, in source order.
func extractInvocations(methodNode *parse.Node) []graph.Invocation {
	body := methodNode.ChildByFieldName("body")
	if body == nil {
		return nil
	}
	var invocations []graph.Invocation
	stack := []*parse.Node{body}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if node.Type() == "method_invocation" {
			if name := node.ChildByFieldName("name"); name != nil {
				inv := graph.Invocation{Name: name.Content()}
				if obj := node.ChildByFieldName("object"); obj != nil {
					inv.Receiver = obj.Content()
				}
				invocations = append(invocations, inv)
			}
		}
		for i := node.ChildCount(); i > 0; i-- {
			stack = append(stack, node.Child(i-1))
		}
	}
	return invocations
}

func formatParams(methodNode *parse.Node) string {
	params := methodNode.ChildByFieldName("parameters")
	if params == nil {
		return ""
	}
	var parts []string
	for i := uint(0); i < params.ChildCount(); i++ {
		child := params.Child(i)
		t := child.Type()
		if t != "formal_parameter" && t != "spread_parameter" {
			continue
		}
		typeNode := child.ChildByFieldName("type")
		nameNode := child.ChildByFieldName("name")
		if typeNode == nil || nameNode == nil {
			continue
		}
		typeStr := typeNode.Content()
		if t == "spread_parameter" {
			typeStr += "..."
		}
		if dims := child.ChildByFieldName("dimensions"); dims != nil {
			typeStr += dims.Content()
		}
		parts = append(parts, typeStr+" "+nameNode.Content())
	}
	return strings.Join(parts, ", ")
}
