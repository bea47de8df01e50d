// Package parse loads tree-sitter grammars from shared libraries at
// runtime and wraps the syntax trees they produce. Grammars are plain
// .so/.dylib files resolved via purego, so no cgo bindings per language
// are compiled in.
package parse

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// GrammarDirEnv names extra directories (colon separated) searched for
// grammar libraries before the system paths.
const GrammarDirEnv = "CODEATLAS_GRAMMAR_DIR"

var validGrammarName = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

var (
	ErrGrammarNotFound = fmt.Errorf("parse: grammar library not found")
	ErrBadGrammarName  = fmt.Errorf("parse: invalid grammar name")
)

type grammarHandle struct {
	libHandle uintptr
	langPtr   unsafe.Pointer
}

// Loader resolves grammar names to loaded languages. Loads are cached;
// a failed load is remembered and not retried.
type Loader struct {
	dirs   []string
	loaded map[string]*grammarHandle
	failed map[string]error
	mu     sync.Mutex
}

func NewLoader(extraDirs ...string) *Loader {
	return &Loader{
		dirs:   append(extraDirs, defaultGrammarDirs()...),
		loaded: make(map[string]*grammarHandle),
		failed: make(map[string]error),
	}
}

func defaultGrammarDirs() []string {
	var dirs []string
	if env := os.Getenv(GrammarDirEnv); env != "" {
		dirs = append(dirs, filepath.SplitList(env)...)
	}
	switch runtime.GOOS {
	case "darwin":
		dirs = append(dirs, "/opt/homebrew/lib/tree-sitter", "/opt/homebrew/lib", "/usr/local/lib/tree-sitter", "/usr/local/lib")
	default:
		dirs = append(dirs, "/usr/local/lib/tree-sitter", "/usr/lib/tree-sitter", "/usr/local/lib", "/usr/lib")
	}
	return dirs
}

// Load returns the language for the named grammar, loading its shared
// library on first use.
func (l *Loader) Load(name string) (*sitter.Language, error) {
	if !validGrammarName.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrBadGrammarName, name)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if h, ok := l.loaded[name]; ok {
		return sitter.NewLanguage(h.langPtr), nil
	}
	if err, ok := l.failed[name]; ok {
		return nil, err
	}

	h, err := l.open(name)
	if err != nil {
		l.failed[name] = err
		return nil, err
	}
	l.loaded[name] = h
	return sitter.NewLanguage(h.langPtr), nil
}

// Available reports whether the named grammar's library can be found
// without loading it.
func (l *Loader) Available(name string) bool {
	if !validGrammarName.MatchString(name) {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.loaded[name]; ok {
		return true
	}
	_, err := l.findLibrary(name)
	return err == nil
}

func (l *Loader) open(name string) (*grammarHandle, error) {
	libPath, err := l.findLibrary(name)
	if err != nil {
		return nil, err
	}

	lib, err := purego.Dlopen(libPath, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, fmt.Errorf("dlopen %s: %w", libPath, err)
	}

	var langFunc func() unsafe.Pointer
	purego.RegisterLibFunc(&langFunc, lib, "tree_sitter_"+name)

	ptr := langFunc()
	if ptr == nil {
		purego.Dlclose(lib)
		return nil, fmt.Errorf("tree_sitter_%s returned null", name)
	}
	return &grammarHandle{libHandle: lib, langPtr: ptr}, nil
}

func (l *Loader) findLibrary(name string) (string, error) {
	libName := grammarLibName(name)
	for _, dir := range l.dirs {
		path := filepath.Join(dir, libName)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrGrammarNotFound, libName)
}

// Close unloads every loaded grammar library.
func (l *Loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for name, h := range l.loaded {
		if h.libHandle != 0 {
			purego.Dlclose(h.libHandle)
		}
		delete(l.loaded, name)
	}
}

func grammarLibName(name string) string {
	switch runtime.GOOS {
	case "darwin":
		return "libtree-sitter-" + name + ".dylib"
	case "windows":
		return "tree-sitter-" + name + ".dll"
	default:
		return "libtree-sitter-" + name + ".so"
	}
}
