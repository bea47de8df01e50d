package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codeatlas/codeatlas/internal/analyzer"
)

var detectTechnologies []string

var detectCmd = &cobra.Command{
	Use:   "detect <module>",
	Short: "Detect a module's technologies",
	Long: `Detect scans an analyzed module's imports, annotations and supertypes
for known technology signals and stores the result on the module node.
Passing --technologies stores that list instead of scanning.`,
	Args: cobra.ExactArgs(1),
	RunE: runDetect,
}

func init() {
	detectCmd.Flags().StringSliceVar(&detectTechnologies, "technologies", nil, "manual technology override, e.g. spring-web,spring-jms")
}

func runDetect(cmd *cobra.Command, args []string) error {
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

	pipeline := analyzer.NewPipeline(store, loader, consoleLogger{})
	tags, err := pipeline.Detect(ctx, args[0], detectTechnologies)
	if err != nil {
		return err
	}

	if len(tags) == 0 {
		fmt.Printf("%s: no technologies detected\n", args[0])
	} else {
		fmt.Printf("%s: %s\n", args[0], strings.Join(tags, ", "))
	}
	return nil
}
