package goscan

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/funvibe/typebind/internal/decl"
	"github.com/funvibe/typebind/internal/generics"
	"github.com/funvibe/typebind/internal/typesystem"
)

var testModule = map[string]string{
	"go.mod": "module example.com/app\n\ngo 1.22\n",
	"models/models.go": `package models

import "fmt"

type User struct {
	Name  string
	Email string
	Tags  []string
	Raw   []byte
	age   int
}

type Guest struct{}

type Reader[T any] interface {
	Read() T
}

type Repo[T any] struct {
	Items []T
	Index map[string]*T
	db    string
}

type Named[T fmt.Stringer] struct {
	Value T
}

//typebind:provided scope=singleton alias=Reader[User] tags=db
type UserRepo struct {
	Repo[User]
	Primary *User
}
`,
	"services/services.go": `package services

import "example.com/app/models"

type Base[T any] struct {
	Store T
}

type Mid[U any] struct {
	Base[U]
}

// Handler serves users.
//
//typebind:provided scope=request tags=web,api alias=models.Reader[models.User]
type Handler struct {
	*Mid[models.User]
	Log string
}

//typebind:provided
type Plain struct{}
`,
	"internal/gen/gen.go": `package gen

//typebind:provided scope=singleton
type Generated struct{}
`,
}

func writeModule(t *testing.T, files map[string]string) string {
	t.Helper()
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go tool not available")
	}
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newTestScanner(dir string, opts ...Option) *Scanner {
	opts = append([]Option{WithEnv("GOWORK=off", "GOFLAGS=-mod=mod")}, opts...)
	return New(dir, opts...)
}

func mustLookup(t *testing.T, r *decl.Registry, name string) *typesystem.TCon {
	t.Helper()
	con, ok := r.Lookup(name)
	if !ok {
		t.Fatalf("%s not declared", name)
	}
	return con
}

func TestScanDeclarations(t *testing.T) {
	dir := writeModule(t, testModule)
	r, err := newTestScanner(dir).Scan(context.Background(), "./...")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	repo := mustLookup(t, r, "example.com/app/models.Repo")
	if !repo.IsTemplate() || len(r.Parameters(repo)) != 1 {
		t.Errorf("Repo must be a template with one placeholder")
	}
	rc, _ := r.Get(repo)
	if len(rc.Fields) != 2 {
		t.Fatalf("Repo fields = %v, want Items and Index", rc.Fields)
	}
	if got := rc.Fields[0].Type.String(); got != "list[T]" {
		t.Errorf("Items = %s, want list[T]", got)
	}
	if got := rc.Fields[1].Type.String(); got != "dict[str, T]" {
		t.Errorf("Index = %s, want dict[str, T]", got)
	}

	user := mustLookup(t, r, "example.com/app/models.User")
	uc, _ := r.Get(user)
	want := []string{"str", "str", "list[str]", "bytes"}
	if len(uc.Fields) != len(want) {
		t.Fatalf("User fields = %v", uc.Fields)
	}
	for i, w := range want {
		if got := uc.Fields[i].Type.String(); got != w {
			t.Errorf("User.%s = %s, want %s", uc.Fields[i].Name, got, w)
		}
	}

	guest := mustLookup(t, r, "example.com/app/models.Guest")
	if gc, _ := r.Get(guest); gc.Fields == nil || len(gc.Fields) != 0 {
		t.Errorf("empty struct must declare an empty field list, got %v", gc.Fields)
	}

	named := mustLookup(t, r, "example.com/app/models.Named")
	if p := named.Params[0]; p.Bound == nil || p.Bound.String() != "fmt.Stringer" {
		t.Errorf("bound of Named.T = %v, want fmt.Stringer", p.Bound)
	}

	userRepo := mustLookup(t, r, "example.com/app/models.UserRepo")
	bases := r.Bases(userRepo)
	if len(bases) != 1 || bases[0].String() != "example.com/app/models.Repo[example.com/app/models.User]" {
		t.Errorf("UserRepo bases = %v", bases)
	}
}

func TestScanBindingMaps(t *testing.T) {
	dir := writeModule(t, testModule)
	r, err := newTestScanner(dir).Scan(context.Background(), "./...")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	handler := mustLookup(t, r, "example.com/app/services.Handler")
	s := generics.BuildBindingMap(r, handler)

	for _, name := range []string{"example.com/app/services.Mid.U", "example.com/app/services.Base.T"} {
		got, ok := s.Lookup(name)
		if !ok || got.String() != "example.com/app/models.User" {
			t.Errorf("%s = %v, want example.com/app/models.User (map %s)", name, got, s)
		}
	}

	base := mustLookup(t, r, "example.com/app/services.Base")
	bc, _ := r.Get(base)
	if got := typesystem.Resolve(bc.Fields[0].Type, s); got.String() != "example.com/app/models.User" {
		t.Errorf("Store resolves to %s", got)
	}
}

func TestScanProvisions(t *testing.T) {
	dir := writeModule(t, testModule)

	r, err := newTestScanner(dir, WithIgnore("./internal")).Scan(context.Background(), "./...")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	provided := map[string]decl.Class{}
	for _, c := range r.Provisions() {
		provided[c.Type.String()] = c
	}
	if len(provided) != 3 {
		t.Fatalf("got %d provisions, want 3: %v", len(provided), provided)
	}
	if _, ok := provided["example.com/app/internal/gen.Generated"]; ok {
		t.Errorf("ignored package must not be scanned")
	}

	h := provided["example.com/app/services.Handler"]
	if h.Provision.Scope != "request" || len(h.Provision.Tags) != 2 {
		t.Errorf("Handler provision = %+v", h.Provision)
	}
	if len(h.Provision.Aliases) != 1 || h.Provision.Aliases[0].String() != "example.com/app/models.Reader[example.com/app/models.User]" {
		t.Errorf("Handler aliases = %v", h.Provision.Aliases)
	}
	if p := provided["example.com/app/services.Plain"]; p.Provision.Scope != "transient" {
		t.Errorf("default scope = %q, want transient", p.Provision.Scope)
	}
	ur := provided["example.com/app/models.UserRepo"]
	if len(ur.Provision.Aliases) != 1 || ur.Provision.Aliases[0].String() != "example.com/app/models.Reader[example.com/app/models.User]" {
		t.Errorf("UserRepo aliases = %v", ur.Provision.Aliases)
	}
}

func TestScanTagsAndIgnore(t *testing.T) {
	dir := writeModule(t, testModule)

	r, err := newTestScanner(dir, WithTags("web"), WithIgnore("example.com/app/internal")).Scan(context.Background(), "./...")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := r.Provisions()
	if len(p) != 1 || p[0].Type.Name != "Handler" {
		t.Errorf("provisions = %v, want only Handler", p)
	}
	if _, ok := r.Lookup("example.com/app/internal/gen.Generated"); ok {
		t.Errorf("ignored package must not be declared")
	}
}

func TestScanRelativePattern(t *testing.T) {
	dir := writeModule(t, testModule)

	r, err := newTestScanner(filepath.Join(dir, "services")).Scan(context.Background(), "../models")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := r.Lookup("example.com/app/models.UserRepo"); !ok {
		t.Errorf("relative pattern must resolve against the scanner directory")
	}
	if _, ok := r.Lookup("example.com/app/services.Handler"); ok {
		t.Errorf("only the matched package must be scanned")
	}
}

func TestScanDocumentRoundTrip(t *testing.T) {
	dir := writeModule(t, testModule)
	r, err := newTestScanner(dir).Scan(context.Background(), "./...")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	back, err := decl.FromDocument(r.Document(), "scan")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(back.Classes()) != len(r.Classes()) {
		t.Errorf("round trip changed class count: %d != %d", len(back.Classes()), len(r.Classes()))
	}
}

func TestScanBadDirective(t *testing.T) {
	dir := writeModule(t, map[string]string{
		"go.mod": "module example.com/bad\n\ngo 1.22\n",
		"bad.go": "package bad\n\n//typebind:provided scope=forever\ntype X struct{}\n",
	})
	_, err := newTestScanner(dir).Scan(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestScanCircular(t *testing.T) {
	s := New(t.TempDir())
	key := s.resolve("./...")
	if err := acquire([]string{key}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer release([]string{key})

	_, err := s.Scan(context.Background(), "./...")
	var circular *CircularScanError
	if !errors.As(err, &circular) {
		t.Fatalf("expected *CircularScanError, got %v", err)
	}
	if len(circular.Patterns) != 1 || circular.Patterns[0] != key {
		t.Errorf("patterns = %v, want [%s]", circular.Patterns, key)
	}
}
