package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/funvibe/typebind/internal/decl"
	"github.com/funvibe/typebind/internal/goscan"
	"github.com/funvibe/typebind/internal/manifest"
	"github.com/funvibe/typebind/internal/snapshot"
)

func (a *app) scanCommand() *Command {
	var dir, out, save string
	var tags, ignore []string
	return &Command{
		Name:    "scan",
		Summary: "Scan Go packages into a declaration manifest",
		Usage:   "typebind scan [flags] [patterns...]",
		Flags: func(fs *pflag.FlagSet) {
			fs.StringVar(&dir, "dir", ".", "directory patterns are resolved against")
			fs.StringSliceVar(&tags, "tags", nil, "keep only provisions sharing one of these tags")
			fs.StringSliceVar(&ignore, "ignore", nil, "package path prefixes or relative directories to skip")
			fs.StringVarP(&out, "out", "o", "", "write the manifest to this file (.yaml or .jsonc)")
			fs.StringVar(&save, "save", "", "save the result to the catalog under this name")
		},
		Run: func(ctx context.Context, args []string) error {
			patterns := args
			if len(patterns) == 0 {
				patterns = a.cfg.Scan.Patterns
			}
			opts := []goscan.Option{
				goscan.WithLogger(a.logger),
				goscan.WithTags(append(tags, a.cfg.Scan.Tags...)...),
				goscan.WithIgnore(append(ignore, a.cfg.Scan.Ignore...)...),
			}
			r, err := goscan.New(dir, opts...).Scan(ctx, patterns...)
			if err != nil {
				return err
			}
			doc := r.Document()

			if save != "" {
				if err := a.saveToCatalog(ctx, save, doc); err != nil {
					return err
				}
			}
			if out != "" {
				if err := manifest.Write(out, doc); err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "wrote %d classes to %s\n", len(doc.Classes), out)
				return nil
			}
			return a.printDocument(doc)
		},
	}
}

// printDocument writes doc to stdout as YAML, or as JSON with --json.
func (a *app) printDocument(doc *decl.Document) error {
	if a.jsonOutput {
		return a.writeJSON(doc)
	}
	data, err := manifest.Encode(doc, manifest.YAML)
	if err != nil {
		return err
	}
	_, err = a.stdout.Write(data)
	return err
}

func (a *app) saveToCatalog(ctx context.Context, name string, doc *decl.Document) error {
	cat, err := a.openCatalog(ctx)
	if err != nil {
		return err
	}
	defer cat.Close()
	return cat.Save(ctx, name, doc)
}

// document loads the declarations named by --from, a catalog entry, or
// the manifests otherwise.
func (a *app) document(ctx context.Context, from string) (*decl.Document, error) {
	if from != "" {
		cat, err := a.openCatalog(ctx)
		if err != nil {
			return nil, err
		}
		defer cat.Close()
		return cat.Load(ctx, from)
	}
	r, err := a.registry()
	if err != nil {
		return nil, err
	}
	return r.Document(), nil
}

func (a *app) catalogCommand() *Command {
	return &Command{
		Name:    "catalog",
		Summary: "Store declaration documents in the SQLite catalog",
		Subcommands: []*Command{
			{
				Name:    "save",
				Summary: "Save the loaded manifests under a name",
				Usage:   "typebind catalog save [flags] <name>",
				Run: func(ctx context.Context, args []string) error {
					if len(args) != 1 {
						return fmt.Errorf("expected 1 argument, got %d", len(args))
					}
					doc, err := a.document(ctx, "")
					if err != nil {
						return err
					}
					if err := a.saveToCatalog(ctx, args[0], doc); err != nil {
						return err
					}
					fmt.Fprintf(a.stdout, "saved %d classes as %s\n", len(doc.Classes), a.styles.name.render(args[0]))
					return nil
				},
			},
			a.catalogLoadCommand(),
			{
				Name:    "list",
				Summary: "List stored catalogs",
				Usage:   "typebind catalog list [flags]",
				Run: func(ctx context.Context, args []string) error {
					cat, err := a.openCatalog(ctx)
					if err != nil {
						return err
					}
					defer cat.Close()
					entries, err := cat.List(ctx)
					if err != nil {
						return err
					}
					if a.jsonOutput {
						return a.writeJSON(entries)
					}
					if len(entries) == 0 {
						fmt.Fprintln(a.stdout, a.styles.muted.render("no catalogs"))
						return nil
					}
					rows := make([][]string, len(entries))
					for i, e := range entries {
						rows[i] = []string{
							a.styles.name.render(e.Name),
							fmt.Sprint(e.Classes),
							e.SavedAt.Local().Format(time.DateTime),
							a.styles.muted.render(e.Fingerprint[:12]),
						}
					}
					a.writeTable([]string{"NAME", "CLASSES", "SAVED", "FINGERPRINT"}, rows)
					return nil
				},
			},
			{
				Name:    "delete",
				Summary: "Delete a stored catalog",
				Usage:   "typebind catalog delete [flags] <name>",
				Run: func(ctx context.Context, args []string) error {
					if len(args) != 1 {
						return fmt.Errorf("expected 1 argument, got %d", len(args))
					}
					cat, err := a.openCatalog(ctx)
					if err != nil {
						return err
					}
					defer cat.Close()
					if err := cat.Delete(ctx, args[0]); err != nil {
						return err
					}
					fmt.Fprintf(a.stdout, "deleted %s\n", args[0])
					return nil
				},
			},
		},
	}
}

func (a *app) catalogLoadCommand() *Command {
	var out string
	return &Command{
		Name:    "load",
		Summary: "Print a stored catalog as a manifest",
		Usage:   "typebind catalog load [flags] <name>",
		Flags: func(fs *pflag.FlagSet) {
			fs.StringVarP(&out, "out", "o", "", "write the manifest to this file instead of stdout")
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected 1 argument, got %d", len(args))
			}
			doc, err := a.document(ctx, args[0])
			if err != nil {
				return err
			}
			if out != "" {
				return manifest.Write(out, doc)
			}
			return a.printDocument(doc)
		},
	}
}

func (a *app) snapshotCommand() *Command {
	var from, out, save string
	return &Command{
		Name:    "snapshot",
		Summary: "Export and import portable snapshot files",
		Subcommands: []*Command{
			{
				Name:    "export",
				Summary: "Write the loaded manifests, or a catalog entry, to a snapshot",
				Usage:   "typebind snapshot export [flags] <file>",
				Flags: func(fs *pflag.FlagSet) {
					fs.StringVar(&from, "from", "", "export this catalog entry instead of the manifests")
				},
				Run: func(ctx context.Context, args []string) error {
					if len(args) != 1 {
						return fmt.Errorf("expected 1 argument, got %d", len(args))
					}
					doc, err := a.document(ctx, from)
					if err != nil {
						return err
					}
					if err := snapshot.Write(ctx, args[0], doc); err != nil {
						return err
					}
					fingerprint, err := snapshot.Fingerprint(doc)
					if err != nil {
						return err
					}
					if a.jsonOutput {
						return a.writeJSON(map[string]any{"path": args[0], "classes": len(doc.Classes), "fingerprint": fingerprint})
					}
					fmt.Fprintf(a.stdout, "wrote %d classes to %s (%s)\n", len(doc.Classes), args[0], a.styles.muted.render(fingerprint[:12]))
					return nil
				},
			},
			{
				Name:    "import",
				Summary: "Read a snapshot as a manifest or into the catalog",
				Usage:   "typebind snapshot import [flags] <file>",
				Flags: func(fs *pflag.FlagSet) {
					fs.StringVarP(&out, "out", "o", "", "write the manifest to this file instead of stdout")
					fs.StringVar(&save, "save", "", "save the snapshot to the catalog under this name")
				},
				Run: func(ctx context.Context, args []string) error {
					if len(args) != 1 {
						return fmt.Errorf("expected 1 argument, got %d", len(args))
					}
					doc, err := snapshot.Read(ctx, args[0])
					if err != nil {
						return err
					}
					if _, err := decl.FromDocument(doc, args[0]); err != nil {
						return err
					}
					if save != "" {
						if err := a.saveToCatalog(ctx, save, doc); err != nil {
							return err
						}
						fmt.Fprintf(a.stdout, "saved %d classes as %s\n", len(doc.Classes), a.styles.name.render(save))
						return nil
					}
					if out != "" {
						return manifest.Write(out, doc)
					}
					return a.printDocument(doc)
				},
			},
		},
	}
}
