// Package config loads the codeatlas configuration: a yaml file naming
// the repositories and modules to analyze, with environment overrides
// for the graph store connection and server settings.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// PathEnv overrides the default config file location.
const PathEnv = "CODEATLAS_CONFIG"

const defaultPath = "config.yaml"

type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// ModuleConfig names one analysis unit inside a repository. A non-empty
// technologies list overrides detection for the module.
type ModuleConfig struct {
	Name         string   `yaml:"name"`
	RelativePath string   `yaml:"relative_path"`
	Technologies []string `yaml:"technologies,omitempty"`
}

type RepositoryConfig struct {
	Name    string         `yaml:"name"`
	Path    string         `yaml:"path"`
	Modules []ModuleConfig `yaml:"modules"`
}

type Config struct {
	Neo4j        Neo4jConfig        `yaml:"neo4j"`
	Backend      string             `yaml:"backend"` // neo4j | memory
	Port         string             `yaml:"port"`
	GrammarDir   string             `yaml:"grammar_dir,omitempty"`
	Repositories []RepositoryConfig `yaml:"repositories"`
}

func Default() *Config {
	return &Config{
		Neo4j: Neo4jConfig{
			URI:      "bolt://localhost:7687",
			Username: "neo4j",
			Password: "neo4j",
			Database: "neo4j",
		},
		Backend: "neo4j",
		Port:    "8080",
	}
}

// Load reads the config file at path, falling back to CODEATLAS_CONFIG
// and then ./config.yaml when path is empty. A missing file yields the
// defaults. Environment variables, including any .env file in the
// working directory, override the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path == "" {
		path = defaultPath
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setIfEnv(&c.Neo4j.URI, "NEO4J_URI")
	setIfEnv(&c.Neo4j.Username, "NEO4J_USER")
	setIfEnv(&c.Neo4j.Password, "NEO4J_PASSWORD")
	setIfEnv(&c.Neo4j.Database, "NEO4J_DATABASE")
	setIfEnv(&c.Backend, "GRAPH_BACKEND")
	setIfEnv(&c.Port, "PORT")
	setIfEnv(&c.GrammarDir, "CODEATLAS_GRAMMAR_DIR")
}

func setIfEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) validate() error {
	if c.Backend != "neo4j" && c.Backend != "memory" {
		return fmt.Errorf("unknown graph backend %q", c.Backend)
	}
	for i, repo := range c.Repositories {
		if repo.Path == "" {
			return fmt.Errorf("repository %d: path is required", i)
		}
		for _, mod := range repo.Modules {
			if mod.Name == "" {
				return fmt.Errorf("repository %s: module name is required", repo.Path)
			}
		}
	}
	return nil
}

// Repository finds a configured repository by name or path.
func (c *Config) Repository(key string) (*RepositoryConfig, error) {
	for i := range c.Repositories {
		repo := &c.Repositories[i]
		if repo.Name == key || repo.Path == key {
			return repo, nil
		}
	}
	return nil, fmt.Errorf("repository %q not found in config", key)
}
