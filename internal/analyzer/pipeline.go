package analyzer

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/codeatlas/codeatlas/internal/enrich"
	"github.com/codeatlas/codeatlas/internal/graph"
	"github.com/codeatlas/codeatlas/internal/jobs"
	"github.com/codeatlas/codeatlas/internal/parse"
)

// ModuleSpec names one analysis unit inside a repository. Technologies,
// when set, overrides detection for that module.
type ModuleSpec struct {
	Name         string
	RelativePath string
	Technologies []string
}

// Pipeline runs the full analysis: extraction and call resolution per
// module, then technology detection and enrichment.
type Pipeline struct {
	store    graph.Store
	loader   *parse.Loader
	log      jobs.Logger
	signals  Signals
	registry *enrich.Registry
}

func NewPipeline(store graph.Store, loader *parse.Loader, log jobs.Logger) *Pipeline {
	return &Pipeline{
		store:    store,
		loader:   loader,
		log:      log,
		signals:  DefaultSignals(),
		registry: enrich.NewRegistry(store, log),
	}
}

// Run analyzes a whole repository. Phase 0 clears and recreates the
// repository subtree, phase 1 runs extraction and call resolution per
// module in parallel, phase 2 runs detection and enrichment per module
// in list order once the metamodel is fully committed.
func (p *Pipeline) Run(ctx context.Context, repoPath, repoName string, modules []ModuleSpec) error {
	p.log.Log("info", "Clearing repository %s", repoPath)
	if err := p.store.ClearRepository(ctx, repoPath); err != nil {
		return fmt.Errorf("clearing repository: %w", err)
	}
	if err := p.store.EnsureRepository(ctx, repoPath, repoName); err != nil {
		return fmt.Errorf("creating repository node: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, mod := range modules {
		g.Go(func() error {
			summary, err := p.RunModule(gctx, repoPath, repoName, mod.Name, mod.RelativePath)
			if err != nil {
				return fmt.Errorf("module %s: %w", mod.Name, err)
			}
			p.log.Log("info", "Module %s: %s", mod.Name, summary)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	allTags := make(map[string]struct{})
	for _, mod := range modules {
		tags, err := p.Detect(ctx, mod.Name, mod.Technologies)
		if err != nil {
			return fmt.Errorf("detecting technologies for %s: %w", mod.Name, err)
		}
		if _, err := p.Enrich(ctx, mod.Name, tags); err != nil {
			return fmt.Errorf("enriching %s: %w", mod.Name, err)
		}
		for _, tag := range tags {
			allTags[tag] = struct{}{}
		}
	}

	techs := make([]string, 0, len(allTags))
	for tag := range allTags {
		techs = append(techs, tag)
	}
	sort.Strings(techs)
	if err := p.store.UpsertMicroservice(ctx, &graph.Microservice{
		Name:         repoName,
		RepoPath:     repoPath,
		Technologies: techs,
	}); err != nil {
		return fmt.Errorf("writing microservice node: %w", err)
	}
	return nil
}

// RunModule extracts one module and resolves its calls. The module's
// existing subtree is deleted first, so a re-run rebuilds from scratch.
// Returns a short statistics summary.
func (p *Pipeline) RunModule(ctx context.Context, repoPath, repoName, module, relPath string) (string, error) {
	modulePath := filepath.Join(repoPath, relPath)
	p.log.Log("info", "Starting analysis of module %q at %s", module, modulePath)

	if err := p.store.ClearModule(ctx, module); err != nil {
		return "", fmt.Errorf("clearing module: %w", err)
	}
	if err := p.store.UpsertModule(ctx, repoPath, repoName, module, relPath); err != nil {
		return "", fmt.Errorf("creating module node: %w", err)
	}

	files, err := WalkSourceFiles(modulePath)
	if err != nil {
		return "", err
	}
	p.log.Log("info", "Found %d source files", len(files))

	extractor, err := NewExtractor(p.loader)
	if err != nil {
		return "", err
	}
	defer extractor.Close()

	var allClasses []*graph.Class
	packagesSeen := make(map[string]struct{})
	packages, classes, methods, parseErrors := 0, 0, 0, 0

	for i, file := range files {
		rel, relErr := filepath.Rel(modulePath, file)
		if relErr != nil {
			rel = file
		}

		fileClasses, fileMethods, err := p.analyzeFile(ctx, extractor, module, file, rel, packagesSeen, &packages, &allClasses)
		if err != nil {
			parseErrors++
			p.log.Log("warn", "[%d/%d] Failed %s: %v", i+1, len(files), rel, err)
			continue
		}
		if fileClasses == 0 {
			p.log.Log("warn", "No types found in %s", rel)
			continue
		}
		classes += fileClasses
		methods += fileMethods
		p.log.Log("info", "[%d/%d] %s: %d types, %d methods", i+1, len(files), rel, fileClasses, fileMethods)
	}

	p.log.Log("info", "Resolving method calls...")
	resolver := NewResolver(allClasses)
	calls, err := resolver.ResolveCalls(ctx, p.store, allClasses)
	if err != nil {
		return "", fmt.Errorf("resolving calls: %w", err)
	}
	p.log.Log("info", "Created %d CALLS relationships", calls)

	summary := fmt.Sprintf("%d packages, %d classes, %d methods, %d calls",
		packages, classes, methods, calls)
	if parseErrors > 0 {
		summary += fmt.Sprintf(", %d parse errors", parseErrors)
	}
	p.log.Log("info", "Analysis complete: %s", summary)
	return summary, nil
}

// analyzeFile extracts one file and writes its records. Store failures
// here count as the file's parse error; partial parses are walked
// anyway.
func (p *Pipeline) analyzeFile(ctx context.Context, extractor *Extractor, module, path, rel string, packagesSeen map[string]struct{}, packages *int, allClasses *[]*graph.Class) (int, int, error) {
	result, err := extractor.ExtractFile(path, rel)
	if err != nil {
		return 0, 0, err
	}
	if result.Partial {
		p.log.Log("warn", "Partial parse (syntax errors): %s", rel)
	}
	if len(result.Classes) == 0 {
		return 0, 0, nil
	}

	if _, ok := packagesSeen[result.Package]; !ok {
		packagesSeen[result.Package] = struct{}{}
		if err := p.store.UpsertPackage(ctx, module, result.Package); err != nil {
			return 0, 0, err
		}
		if result.Package != "" {
			*packages++
		}
	}

	methodCount := 0
	for _, cls := range result.Classes {
		if err := p.store.UpsertClass(ctx, cls); err != nil {
			return 0, 0, err
		}
		for _, m := range cls.Methods {
			if err := p.store.CreateMethod(ctx, cls.FullName, m); err != nil {
				return 0, 0, err
			}
			methodCount++
		}
		*allClasses = append(*allClasses, cls)
	}
	return len(result.Classes), methodCount, nil
}

// Detect runs the technology scanner for one module. An explicit
// override skips scanning.
func (p *Pipeline) Detect(ctx context.Context, module string, override []string) ([]string, error) {
	scanner := NewScanner(p.store, p.signals)
	tags, err := scanner.Detect(ctx, module, override)
	if err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		p.log.Log("info", "Technology scan for %s: none", module)
	} else {
		p.log.Log("info", "Technology scan for %s: %v", module, tags)
	}
	return tags, nil
}

// Enrich runs the enricher for each tag against one module.
func (p *Pipeline) Enrich(ctx context.Context, module string, tags []string) (map[string]int, error) {
	return p.registry.EnrichAll(ctx, module, tags)
}
