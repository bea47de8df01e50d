package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/codeatlas/codeatlas/internal/config"
	"github.com/codeatlas/codeatlas/internal/graph"
	"github.com/codeatlas/codeatlas/internal/parse"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "codeatlas",
	Short: "Build a queryable graph of Java codebases",
	Long: `codeatlas parses Java Maven modules into a property graph metamodel
(repository, modules, packages, types, methods, calls) and derives an
architecture overlay (REST endpoints, Feign clients, JMS messaging,
scheduled tasks, data repositories) on top of it.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (default $CODEATLAS_CONFIG or ./config.yaml)")
	rootCmd.AddCommand(analyzeCmd, detectCmd, enrichCmd, serveCmd)
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgPath)
}

func openStore(ctx context.Context, cfg *config.Config) (graph.Store, error) {
	switch cfg.Backend {
	case "memory":
		return graph.NewMemory(), nil
	default:
		return graph.NewNeo4j(ctx, graph.Config{
			URI:      cfg.Neo4j.URI,
			Username: cfg.Neo4j.Username,
			Password: cfg.Neo4j.Password,
			Database: cfg.Neo4j.Database,
		})
	}
}

func newLoader(cfg *config.Config) *parse.Loader {
	if cfg.GrammarDir != "" {
		return parse.NewLoader(cfg.GrammarDir)
	}
	return parse.NewLoader()
}

// consoleLogger writes analysis progress to standard logging. The
// server path uses per-job logs instead.
type consoleLogger struct{}

func (consoleLogger) Log(level, format string, args ...interface{}) {
	log.Printf("[%s] %s", level, fmt.Sprintf(format, args...))
}
