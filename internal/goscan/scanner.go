// Package goscan builds declaration graphs from Go source.
//
// Generic named types become templates, embedded fields become ordered
// bases and exported fields become constructor fields. A type declaration
// carrying a directive such as
//
//	//typebind:provided scope=singleton alias=Reader[User] tags=db,web
//
// is recorded as a decl.Provision for the injection container.
package goscan

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/tools/go/packages"

	"github.com/funvibe/typebind/internal/decl"
)

// CircularScanError is returned when a scan is started for patterns that
// are already being scanned.
type CircularScanError struct {
	Patterns []string
}

func (e *CircularScanError) Error() string {
	return fmt.Sprintf("circular scan detected: already scanning %s", strings.Join(e.Patterns, ", "))
}

// inflight holds the resolved patterns of every running scan in the
// process.
var inflight = struct {
	sync.Mutex
	patterns map[string]bool
}{patterns: map[string]bool{}}

func acquire(keys []string) error {
	inflight.Lock()
	defer inflight.Unlock()

	var overlap []string
	for _, k := range keys {
		if inflight.patterns[k] {
			overlap = append(overlap, k)
		}
	}
	if len(overlap) > 0 {
		sort.Strings(overlap)
		return &CircularScanError{Patterns: overlap}
	}
	for _, k := range keys {
		inflight.patterns[k] = true
	}
	return nil
}

func release(keys []string) {
	inflight.Lock()
	defer inflight.Unlock()
	for _, k := range keys {
		delete(inflight.patterns, k)
	}
}

// Scanner loads Go packages and records their declarations.
type Scanner struct {
	// Dir is the directory patterns and relative ignore entries are
	// resolved against. Empty means the current directory.
	Dir string

	// Tags keeps only provisions sharing at least one tag. Empty keeps all.
	Tags []string

	// Ignore lists package path prefixes, or relative directories, to skip.
	Ignore []string

	// Env is appended to the environment of the go command.
	Env []string

	logger *slog.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) { s.logger = logger }
}

func WithTags(tags ...string) Option {
	return func(s *Scanner) { s.Tags = append(s.Tags, tags...) }
}

func WithIgnore(prefixes ...string) Option {
	return func(s *Scanner) { s.Ignore = append(s.Ignore, prefixes...) }
}

func WithEnv(env ...string) Option {
	return func(s *Scanner) { s.Env = append(s.Env, env...) }
}

func New(dir string, opts ...Option) *Scanner {
	s := &Scanner{Dir: dir}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Scan loads the packages matching patterns into a new registry. With no
// patterns the package in Dir is scanned.
func (s *Scanner) Scan(ctx context.Context, patterns ...string) (*decl.Registry, error) {
	r := decl.NewRegistry()
	if err := s.ScanInto(ctx, r, patterns...); err != nil {
		return nil, err
	}
	return r, nil
}

// ScanInto is like Scan but records declarations into an existing
// registry.
func (s *Scanner) ScanInto(ctx context.Context, r *decl.Registry, patterns ...string) error {
	if len(patterns) == 0 {
		patterns = []string{"."}
	}

	keys := make([]string, len(patterns))
	for i, p := range patterns {
		keys[i] = s.resolve(p)
	}
	if err := acquire(keys); err != nil {
		return err
	}
	defer release(keys)

	pkgs, err := s.load(ctx, patterns)
	if err != nil {
		return err
	}

	var scanned []*packages.Package
	for _, pkg := range pkgs {
		if s.ignored(pkg) {
			s.logger.Debug("ignoring package", "package", pkg.PkgPath)
			continue
		}
		scanned = append(scanned, pkg)
	}

	b := newBuilder(r, s.logger)
	for _, pkg := range scanned {
		b.declarePackage(pkg)
	}
	for _, pkg := range scanned {
		if err := b.describePackage(pkg); err != nil {
			return err
		}
	}

	provisions := 0
	for _, pkg := range scanned {
		n, err := b.provisions(pkg, s.Tags)
		if err != nil {
			return err
		}
		provisions += n
	}

	s.logger.Info("scanned packages",
		"packages", len(scanned),
		"classes", len(r.Classes()),
		"provisions", provisions,
	)
	return nil
}

// load runs go/packages over patterns.
func (s *Scanner) load(ctx context.Context, patterns []string) ([]*packages.Package, error) {
	cfg := &packages.Config{
		Context: ctx,
		Mode: packages.NeedName |
			packages.NeedFiles |
			packages.NeedTypes |
			packages.NeedTypesInfo |
			packages.NeedSyntax |
			packages.NeedImports |
			packages.NeedDeps,
		Dir: s.Dir,
		Env: append(os.Environ(), s.Env...),
	}

	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("loading packages: %w", err)
	}

	var errs []string
	for _, pkg := range pkgs {
		for _, e := range pkg.Errors {
			errs = append(errs, fmt.Sprintf("%s: %s", pkg.PkgPath, e.Msg))
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("package errors:\n  %s", strings.Join(errs, "\n  "))
	}
	return pkgs, nil
}

// resolve turns a relative pattern (".", "./sub", "..", "../sibling/...")
// into an absolute directory pattern. Other patterns are import paths and
// are returned unchanged.
func (s *Scanner) resolve(pattern string) string {
	if !isRelative(pattern) {
		return pattern
	}
	base := s.Dir
	if abs, err := filepath.Abs(base); err == nil {
		base = abs
	}
	return filepath.Join(base, pattern)
}

func (s *Scanner) ignored(pkg *packages.Package) bool {
	for _, entry := range s.Ignore {
		if isRelative(entry) {
			dir := s.resolve(entry)
			if pkgDir := packageDir(pkg); pkgDir != "" && hasPathPrefix(pkgDir, dir, string(filepath.Separator)) {
				return true
			}
			continue
		}
		if hasPathPrefix(pkg.PkgPath, entry, "/") {
			return true
		}
	}
	return false
}

func packageDir(pkg *packages.Package) string {
	if len(pkg.GoFiles) == 0 {
		return ""
	}
	return filepath.Dir(pkg.GoFiles[0])
}

func hasPathPrefix(path, prefix, sep string) bool {
	return path == prefix || strings.HasPrefix(path, strings.TrimSuffix(prefix, sep)+sep)
}

func isRelative(pattern string) bool {
	return pattern == "." || pattern == ".." ||
		strings.HasPrefix(pattern, "./") || strings.HasPrefix(pattern, "../")
}
