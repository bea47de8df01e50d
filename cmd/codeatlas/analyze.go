package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codeatlas/codeatlas/internal/analyzer"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <repository> [module]",
	Short: "Analyze a repository or a single module",
	Long: `Analyze parses the configured modules of a repository, stores the
metamodel, detects technologies and builds the architecture overlay.

A full-repository run clears the repository subtree first. Naming a
module rebuilds only that module's subtree, leaving the rest of the
repository untouched.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	repo, err := cfg.Repository(args[0])
	if err != nil {
		return err
	}
	if len(repo.Modules) == 0 {
		return fmt.Errorf("repository %q has no modules configured", args[0])
	}

	ctx := cmd.Context()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	loader := newLoader(cfg)
	defer loader.Close()

	pipeline := analyzer.NewPipeline(store, loader, consoleLogger{})

	if len(args) == 2 {
		var target *analyzer.ModuleSpec
		for _, m := range repo.Modules {
			if m.Name == args[1] {
				target = &analyzer.ModuleSpec{
					Name:         m.Name,
					RelativePath: m.RelativePath,
					Technologies: m.Technologies,
				}
				break
			}
		}
		if target == nil {
			return fmt.Errorf("module %q not found in repository %q", args[1], args[0])
		}

		if err := store.EnsureRepository(ctx, repo.Path, repo.Name); err != nil {
			return err
		}
		summary, err := pipeline.RunModule(ctx, repo.Path, repo.Name, target.Name, target.RelativePath)
		if err != nil {
			return err
		}
		tags, err := pipeline.Detect(ctx, target.Name, target.Technologies)
		if err != nil {
			return err
		}
		if _, err := pipeline.Enrich(ctx, target.Name, tags); err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", target.Name, summary)
		return nil
	}

	specs := make([]analyzer.ModuleSpec, len(repo.Modules))
	for i, m := range repo.Modules {
		specs[i] = analyzer.ModuleSpec{
			Name:         m.Name,
			RelativePath: m.RelativePath,
			Technologies: m.Technologies,
		}
	}
	if err := pipeline.Run(ctx, repo.Path, repo.Name, specs); err != nil {
		return err
	}
	fmt.Printf("analyzed %d modules\n", len(specs))
	return nil
}
