package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/codeatlas/codeatlas/internal/analyzer"
)

var enrichTags []string

var enrichCmd = &cobra.Command{
	Use:   "enrich <module>",
	Short: "Build the architecture overlay for a module",
	Long: `Enrich runs the overlay enrichers for a module's detected
technologies, deriving REST interfaces and endpoints, Feign clients,
HTTP clients, JMS listeners and producers, scheduled tasks and data
repositories. Passing --tags runs those enrichers instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnrich,
}

func init() {
	enrichCmd.Flags().StringSliceVar(&enrichTags, "tags", nil, "enricher tags to run, e.g. spring-web,feign")
}

func runEnrich(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	loader := newLoader(cfg)
	defer loader.Close()

	tags := enrichTags
	if len(tags) == 0 {
		tags, err = store.Technologies(ctx, args[0])
		if err != nil {
			return err
		}
	}
	if len(tags) == 0 {
		fmt.Printf("%s: no technologies to enrich, run detect first\n", args[0])
		return nil
	}

	pipeline := analyzer.NewPipeline(store, loader, consoleLogger{})
	stats, err := pipeline.Enrich(ctx, args[0], tags)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s: %d\n", k, stats[k])
	}
	return nil
}
