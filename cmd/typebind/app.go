package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"

	"github.com/funvibe/typebind/internal/catalog"
	"github.com/funvibe/typebind/internal/config"
	"github.com/funvibe/typebind/internal/decl"
	"github.com/funvibe/typebind/internal/generics"
	"github.com/funvibe/typebind/internal/inject"
	"github.com/funvibe/typebind/internal/manifest"
	"github.com/funvibe/typebind/internal/typeparse"
	"github.com/funvibe/typebind/internal/typesystem"
)

// defaultCatalogPath is used when neither --catalog nor the configuration
// names one.
var defaultCatalogPath = filepath.Join(".typebind", "catalog.db")

// app holds global flags and the state built from them.
type app struct {
	stdout io.Writer
	stderr io.Writer

	manifests   []string
	configPath  string
	catalogPath string
	logLevel    string
	logJSON     bool
	jsonOutput  bool
	noColor     bool

	cfg    *config.Config
	logger *slog.Logger
	styles styles
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{stdout: stdout, stderr: stderr}
	return a.execute(ctx, a.root(), args)
}

func (a *app) root() *Command {
	return &Command{
		Name:    "typebind",
		Summary: "Inspect generic declaration graphs and the dependencies they imply.",
		Subcommands: []*Command{
			a.bindingsCommand(),
			a.resolveCommand(),
			a.depsCommand(),
			a.checkCommand(),
			a.scanCommand(),
			a.catalogCommand(),
			a.snapshotCommand(),
		},
	}
}

func (a *app) globalFlags(fs *pflag.FlagSet) {
	fs.StringArrayVarP(&a.manifests, "manifest", "m", nil, "declaration manifest, repeatable (default: typebind.yaml manifests, then the nearest typebind.manifest.*)")
	fs.StringVar(&a.configPath, "config", "", "path to typebind.yaml (default: searched upward from the current directory)")
	fs.StringVar(&a.catalogPath, "catalog", "", "path to the SQLite catalog (default: catalog.path, then "+defaultCatalogPath+")")
	fs.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.BoolVar(&a.logJSON, "log-json", false, "write logs as JSON")
	fs.BoolVar(&a.jsonOutput, "json", false, "print results as JSON")
	fs.BoolVar(&a.noColor, "no-color", false, "disable styled output")
}

// setup loads the configuration and builds the logger and styles.
func (a *app) setup() error {
	path := a.configPath
	if path == "" {
		found, err := config.FindConfig(".")
		if err != nil {
			return err
		}
		path = found
	}

	a.cfg = config.Default()
	if path != "" {
		cfg, err := config.LoadConfig(path)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}

	levelName := a.cfg.Log.Level
	if a.logLevel != "" {
		levelName = a.logLevel
	}
	level, err := config.ParseLevel(levelName)
	if err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(a.stderr, opts)
	if a.logJSON || a.cfg.Log.JSON {
		handler = slog.NewJSONHandler(a.stderr, opts)
	}
	a.logger = slog.New(handler)
	a.styles = newStyles(a.stdout, a.noColor)

	if path != "" {
		a.logger.Debug("configuration loaded", "path", path)
	}
	return nil
}

// manifestPaths returns the manifests to load: --manifest, then the
// configuration, then the nearest manifest file.
func (a *app) manifestPaths() ([]string, error) {
	if len(a.manifests) > 0 {
		return a.manifests, nil
	}
	if paths := a.cfg.ManifestPaths(); len(paths) > 0 {
		return paths, nil
	}
	found, err := manifest.Find(".")
	if err != nil {
		return nil, err
	}
	if found == "" {
		return nil, errors.New("no manifest found: pass --manifest or list manifests in typebind.yaml")
	}
	return []string{found}, nil
}

func (a *app) registry() (*decl.Registry, error) {
	paths, err := a.manifestPaths()
	if err != nil {
		return nil, err
	}
	r, err := manifest.LoadRegistry(paths...)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("manifests loaded", "paths", paths, "classes", len(r.Classes()))
	return r, nil
}

func (a *app) engine(r *decl.Registry) *generics.Engine {
	return generics.NewEngine(r, generics.WithLogger(a.logger), generics.WithMaxDepth(a.cfg.MaxDepth()))
}

// container returns a container with every provision of r registered.
func (a *app) container(r *decl.Registry) (*inject.Container, error) {
	c := inject.New(r, inject.WithLogger(a.logger), inject.WithMaxDepth(a.cfg.MaxDepth()))
	if _, err := c.RegisterProvisions(r); err != nil {
		return nil, err
	}
	return c, nil
}

func (a *app) openCatalog(ctx context.Context) (*catalog.Catalog, error) {
	path := a.catalogPath
	if path == "" {
		path = a.cfg.Catalog.Path
	}
	if path == "" {
		path = defaultCatalogPath
	}
	return catalog.Open(ctx, path, catalog.WithLogger(a.logger))
}

func lookupClass(r *decl.Registry, name string) (*typesystem.TCon, error) {
	con, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown class %q", name)
	}
	return con, nil
}

// classScope resolves a class's own placeholders by display name before
// the registry, so "T" can be written for the class's T.
type classScope struct {
	class    *typesystem.TCon
	registry *decl.Registry
}

func (s classScope) LookupType(name string) (typesystem.Type, bool) {
	for _, p := range s.class.Params {
		if p.Name == name {
			return p, true
		}
	}
	return s.registry.LookupType(name)
}

func formatType(t typesystem.Type) string {
	return typeparse.Format(t, func(p *typesystem.TParam) string { return p.QualifiedName() })
}

// writeJSON prints v as indented JSON.
func (a *app) writeJSON(v any) error {
	if err := json.MarshalWrite(a.stdout, v, jsontext.WithIndent("  ")); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	_, err := io.WriteString(a.stdout, "\n")
	return err
}

// writeTable prints rows as aligned columns under a styled header.
func (a *app) writeTable(header []string, rows [][]string) {
	tw := tabwriter.NewWriter(a.stdout, 2, 0, 3, ' ', 0)
	styled := make([]string, len(header))
	for i, h := range header {
		styled[i] = a.styles.header.render(h)
	}
	fmt.Fprintln(tw, strings.Join(styled, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}

// style renders text only when the output is a terminal.
type style struct {
	lipgloss.Style
	enabled bool
}

func (s style) render(text string) string {
	if !s.enabled {
		return text
	}
	return s.Render(text)
}

type styles struct {
	header style
	name   style
	muted  style
	bad    style
}

func newStyles(w io.Writer, noColor bool) styles {
	enabled := !noColor && isTerminal(w)
	return styles{
		header: style{lipgloss.NewStyle().Bold(true).Underline(true), enabled},
		name:   style{lipgloss.NewStyle().Foreground(lipgloss.Color("12")), enabled},
		muted:  style{lipgloss.NewStyle().Foreground(lipgloss.Color("8")), enabled},
		bad:    style{lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true), enabled},
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
