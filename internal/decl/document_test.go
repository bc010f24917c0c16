package decl

import (
	"strings"
	"testing"

	"github.com/funvibe/typebind/internal/generics"
	"github.com/funvibe/typebind/internal/typesystem"
)

func sampleDocument() *Document {
	return &Document{
		Params: []ParamDoc{{Name: "T"}, {Name: "U", Bound: "app.User | None"}},
		Classes: []ClassDoc{
			{Name: "app.User", Fields: []FieldDoc{}},
			{Name: "app.Guest"},
			{Name: "app.Multi", Params: []string{"T", "U"}},
			{Name: "app.Partial", Params: []string{"U"}, Bases: []string{"app.Multi[app.User, U]"}},
			{Name: "app.Full", Bases: []string{"app.Partial[app.Guest]"}},
			{
				Name:   "app.Repo",
				Params: []string{"E"},
				Fields: []FieldDoc{
					{Name: "items", Type: "list[E]"},
					{Name: "primary", Type: `Annotated[E, "primary"]`},
				},
			},
			{
				Name:     "app.UserRepo",
				Bases:    []string{"app.Repo[app.User]"},
				Provided: &ProvisionDoc{Scope: "singleton", Aliases: []string{"app.Repo[app.User]"}, Tags: []string{"db"}},
			},
		},
	}
}

func TestFromDocument(t *testing.T) {
	r, err := FromDocument(sampleDocument(), "app.manifest.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	full, ok := r.Lookup("app.Full")
	if !ok {
		t.Fatal("app.Full not declared")
	}
	T, _ := r.LookupParam("T")
	U, _ := r.LookupParam("U")
	got := generics.BuildBindingMap(r, full)
	if got[T].String() != "app.User" || got[U].String() != "app.Guest" {
		t.Errorf("got %s, want {T=app.User, U=app.Guest}", got)
	}
	if U.Bound == nil || U.Bound.String() != "app.User | None" {
		t.Errorf("bound of U = %v", U.Bound)
	}

	// E is listed only by app.Repo, so it is scoped to it.
	E, ok := r.LookupParam("app.Repo.E")
	if !ok {
		t.Fatal("app.Repo.E not declared")
	}
	repo, _ := r.Lookup("app.Repo")
	c, _ := r.Get(repo)
	if len(c.Fields) != 2 || typesystem.FreeParams(c.Fields[0].Type)[0] != E {
		t.Errorf("fields of app.Repo = %v", c.Fields)
	}

	userRepo, _ := r.Lookup("app.UserRepo")
	s := generics.BuildBindingMap(r, userRepo)
	if resolved := typesystem.Resolve(c.Fields[0].Type, s); resolved.String() != "list[app.User]" {
		t.Errorf("got %s, want list[app.User]", resolved)
	}

	ur, _ := r.Get(userRepo)
	if ur.Provision == nil || ur.Provision.Scope != "singleton" || len(ur.Provision.Aliases) != 1 {
		t.Errorf("provision = %+v", ur.Provision)
	}

	user, _ := r.Lookup("app.User")
	if uc, _ := r.Get(user); uc.Fields == nil {
		t.Errorf("explicit empty field list must be kept")
	}
	guest, _ := r.Lookup("app.Guest")
	if gc, _ := r.Get(guest); gc.Fields != nil {
		t.Errorf("omitted field list must stay nil")
	}
}

func TestFromDocumentDegradedBases(t *testing.T) {
	doc := &Document{
		Classes: []ClassDoc{
			{Name: "app.User"},
			{Name: "app.Guest"},
			{Name: "app.Pair", Params: []string{"A", "B"}},
			{Name: "app.Short", Bases: []string{"app.Pair[app.User]"}},
			{Name: "app.Long", Bases: []string{"app.Pair[app.User, app.Guest, app.User]"}},
			{Name: "app.Plain", Bases: []string{"app.User[app.User]"}},
		},
	}
	r, err := FromDocument(doc, "m.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	A, _ := r.LookupParam("app.Pair.A")
	B, _ := r.LookupParam("app.Pair.B")

	tests := []struct {
		class string
		want  map[*typesystem.TParam]string
	}{
		{"app.Short", map[*typesystem.TParam]string{A: "app.User"}},
		{"app.Long", map[*typesystem.TParam]string{A: "app.User", B: "app.Guest"}},
		{"app.Plain", map[*typesystem.TParam]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.class, func(t *testing.T) {
			con, ok := r.Lookup(tt.class)
			if !ok {
				t.Fatalf("%s not declared", tt.class)
			}
			got := generics.BuildBindingMap(r, con)
			if len(got) != len(tt.want) {
				t.Fatalf("got %s, want %d bindings", got, len(tt.want))
			}
			for p, want := range tt.want {
				if got[p] == nil || got[p].String() != want {
					t.Errorf("%s = %v, want %s", p.Name, got[p], want)
				}
			}
		})
	}

	// The malformed bases survive for the checker to report.
	short, _ := r.Lookup("app.Short")
	c, _ := r.Get(short)
	if _, err := typesystem.KindCheck(c.Bases[0]); err == nil {
		t.Errorf("KindCheck(%s) must report the arity mismatch", c.Bases[0])
	}
}

func TestFromDocumentErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
		want string
	}{
		{
			name: "unnamed class",
			doc:  Document{Classes: []ClassDoc{{}}},
			want: "classes[0]: name is required",
		},
		{
			name: "duplicate class",
			doc:  Document{Classes: []ClassDoc{{Name: "a.X"}, {Name: "a.X"}}},
			want: `classes[1]: duplicate class "a.X"`,
		},
		{
			name: "duplicate param",
			doc:  Document{Params: []ParamDoc{{Name: "T"}, {Name: "T"}}},
			want: "params[1]: duplicate placeholder",
		},
		{
			name: "unknown base",
			doc:  Document{Classes: []ClassDoc{{Name: "a.X", Bases: []string{"a.Missing"}}}},
			want: "classes[0] (a.X): bases[0]",
		},
		{
			name: "bad field type",
			doc:  Document{Classes: []ClassDoc{{Name: "a.X", Fields: []FieldDoc{{Name: "f", Type: "list["}}}}},
			want: "classes[0] (a.X): fields[0] (f)",
		},
		{
			name: "unnamed field",
			doc:  Document{Classes: []ClassDoc{{Name: "a.X", Fields: []FieldDoc{{Type: "int"}}}}},
			want: "fields[0]: name is required",
		},
		{
			name: "bad alias",
			doc:  Document{Classes: []ClassDoc{{Name: "a.X", Provided: &ProvisionDoc{Aliases: []string{"?"}}}}},
			want: "provided.aliases[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromDocument(&tt.doc, "m.yaml")
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.HasPrefix(err.Error(), "m.yaml: ") || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	first, err := FromDocument(sampleDocument(), "a.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc := first.Document()
	second, err := FromDocument(doc, "b.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(first.Classes()) != len(second.Classes()) || len(first.Params()) != len(second.Params()) {
		t.Fatalf("round trip changed the declaration count")
	}
	for _, c := range first.Classes() {
		other, ok := second.Lookup(c.Type.String())
		if !ok {
			t.Fatalf("%s lost in round trip", c.Type)
		}
		oc, _ := second.Get(other)
		if len(oc.Bases) != len(c.Bases) || len(oc.Params) != len(c.Params) || len(oc.Fields) != len(c.Fields) {
			t.Errorf("%s changed in round trip", c.Type)
		}
		for i := range c.Bases {
			if oc.Bases[i].String() != c.Bases[i].String() {
				t.Errorf("%s bases[%d] = %s, want %s", c.Type, i, oc.Bases[i], c.Bases[i])
			}
		}
	}

	full, _ := second.Lookup("app.Full")
	if got := generics.BuildBindingMap(second, full); len(got) != 2 {
		t.Errorf("got %s, want two bindings", got)
	}
}
