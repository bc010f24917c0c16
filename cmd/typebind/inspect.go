package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/funvibe/typebind/internal/config"
	"github.com/funvibe/typebind/internal/decl"
	"github.com/funvibe/typebind/internal/typeparse"
	"github.com/funvibe/typebind/internal/typesystem"
)

func (a *app) bindingsCommand() *Command {
	return &Command{
		Name:    "bindings",
		Summary: "Print the binding map of a class",
		Usage:   "typebind bindings [flags] <class>",
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected 1 argument, got %d", len(args))
			}
			r, err := a.registry()
			if err != nil {
				return err
			}
			class, err := lookupClass(r, args[0])
			if err != nil {
				return err
			}

			bindings := a.engine(r).BuildBindingMap(class)
			if a.jsonOutput {
				out := make(map[string]string, len(bindings))
				for p, t := range bindings {
					out[p.QualifiedName()] = formatType(t)
				}
				return a.writeJSON(out)
			}
			if len(bindings) == 0 {
				fmt.Fprintln(a.stdout, a.styles.muted.render("no bindings"))
				return nil
			}
			rows := make([][]string, 0, len(bindings))
			for _, p := range bindings.Params() {
				rows = append(rows, []string{a.styles.name.render(p.QualifiedName()), formatType(bindings[p])})
			}
			a.writeTable([]string{"PLACEHOLDER", "TYPE"}, rows)
			return nil
		},
	}
}

func (a *app) resolveCommand() *Command {
	return &Command{
		Name:    "resolve",
		Summary: "Rewrite a type expression with a class's binding map",
		Usage:   "typebind resolve [flags] <class> <type>",
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("expected 2 arguments, got %d", len(args))
			}
			r, err := a.registry()
			if err != nil {
				return err
			}
			class, err := lookupClass(r, args[0])
			if err != nil {
				return err
			}
			t, err := typeparse.Parse(args[1], classScope{class: class, registry: r})
			if err != nil {
				return err
			}

			resolved := typesystem.Resolve(t, a.engine(r).BuildBindingMap(class))
			if a.jsonOutput {
				return a.writeJSON(map[string]any{
					"class":      class.String(),
					"annotation": formatType(t),
					"resolved":   formatType(resolved),
					"changed":    resolved != t,
				})
			}
			fmt.Fprintln(a.stdout, formatType(resolved))
			return nil
		},
	}
}

type dependency struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func (a *app) depsCommand() *Command {
	return &Command{
		Name:    "deps",
		Summary: "List the constructor dependencies of a type",
		Usage:   "typebind deps [flags] <type>",
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected 1 argument, got %d", len(args))
			}
			r, err := a.registry()
			if err != nil {
				return err
			}
			t, err := typeparse.Parse(args[0], r)
			if err != nil {
				return err
			}
			c, err := a.container(r)
			if err != nil {
				return err
			}
			fields, err := c.Dependencies(t)
			if err != nil {
				return err
			}

			deps := make([]dependency, len(fields))
			for i, f := range fields {
				deps[i] = dependency{Name: f.Name, Type: formatType(f.Type)}
			}
			if a.jsonOutput {
				return a.writeJSON(deps)
			}
			if len(deps) == 0 {
				fmt.Fprintln(a.stdout, a.styles.muted.render("no dependencies"))
				return nil
			}
			rows := make([][]string, len(deps))
			for i, d := range deps {
				rows[i] = []string{a.styles.name.render(d.Name), d.Type}
			}
			a.writeTable([]string{"FIELD", "TYPE"}, rows)
			return nil
		},
	}
}

type problem struct {
	Class   string `json:"class"`
	Message string `json:"message"`
}

func (a *app) checkCommand() *Command {
	var strict bool
	return &Command{
		Name:    "check",
		Summary: "Validate declarations and provider dependencies",
		Usage:   "typebind check [flags]",
		Flags: func(fs *pflag.FlagSet) {
			fs.BoolVar(&strict, "strict", false, "also report provided dependencies that no provider satisfies")
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("expected no arguments, got %d", len(args))
			}
			r, err := a.registry()
			if err != nil {
				return err
			}
			problems, err := a.check(r, strict)
			if err != nil {
				return err
			}

			if a.jsonOutput {
				if err := a.writeJSON(problems); err != nil {
					return err
				}
			} else {
				for _, p := range problems {
					fmt.Fprintf(a.stdout, "%s %s: %s\n", a.styles.bad.render("✗"), p.Class, p.Message)
				}
			}
			if len(problems) > 0 {
				return fmt.Errorf("%d problem(s) found", len(problems))
			}
			if !a.jsonOutput {
				fmt.Fprintf(a.stdout, "%d classes ok\n", len(r.Classes()))
			}
			return nil
		},
	}
}

// check reports malformed types in declarations and, for every provided
// class, dependencies left with unbound placeholders. With strict, a
// dependency that no provider satisfies is also reported.
func (a *app) check(r *decl.Registry, strict bool) ([]problem, error) {
	var problems []problem
	report := func(class, format string, args ...any) {
		problems = append(problems, problem{Class: class, Message: fmt.Sprintf(format, args...)})
	}

	for _, class := range r.Classes() {
		name := class.Type.String()
		for i, b := range class.Bases {
			if _, err := typesystem.KindCheck(b); err != nil {
				report(name, "bases[%d] %s: %v", i, formatType(b), err)
			}
		}
		for _, f := range class.Fields {
			if _, err := typesystem.KindCheck(f.Type); err != nil {
				report(name, "field %s: %v", f.Name, err)
			}
		}
		if class.Provision == nil {
			continue
		}
		switch class.Provision.Scope {
		case "", config.ScopeTransient, config.ScopeSingleton, config.ScopeRequest:
		default:
			report(name, "unknown scope %q", class.Provision.Scope)
		}
		for _, alias := range class.Provision.Aliases {
			if _, err := typesystem.KindCheck(alias); err != nil {
				report(name, "alias %s: %v", formatType(alias), err)
			}
		}
	}
	if len(problems) > 0 {
		return problems, nil
	}

	c, err := a.container(r)
	if err != nil {
		return nil, err
	}
	for _, class := range r.Provisions() {
		name := class.Type.String()
		fields, err := c.Dependencies(class.Type)
		if err != nil {
			report(name, "%v", err)
			continue
		}
		for _, f := range fields {
			if free := typesystem.FreeParams(f.Type); len(free) > 0 {
				report(name, "field %s: %s keeps unbound placeholder %s", f.Name, formatType(f.Type), free[0].QualifiedName())
				continue
			}
			if strict && !c.IsRegistered(f.Type) && !isOptional(f.Type) {
				report(name, "field %s: no provider for %s", f.Name, formatType(f.Type))
			}
		}
	}
	return problems, nil
}

func isOptional(t typesystem.Type) bool {
	u, ok := t.(*typesystem.TUnion)
	if !ok {
		return false
	}
	for _, m := range u.Types {
		if typesystem.IsNone(m) {
			return true
		}
	}
	return false
}
