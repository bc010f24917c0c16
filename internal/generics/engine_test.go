package generics

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/funvibe/typebind/internal/typesystem"
)

// graph is a minimal in-memory Provider.
type graph struct {
	bases  map[*typesystem.TCon][]typesystem.Type
	params map[*typesystem.TCon][]typesystem.Type
}

func newGraph() *graph {
	return &graph{
		bases:  map[*typesystem.TCon][]typesystem.Type{},
		params: map[*typesystem.TCon][]typesystem.Type{},
	}
}

func (g *graph) Bases(class *typesystem.TCon) []typesystem.Type { return g.bases[class] }

func (g *graph) Parameters(template *typesystem.TCon) []typesystem.Type {
	return g.params[template]
}

func (g *graph) template(name string, params ...*typesystem.TParam) *typesystem.TCon {
	con := &typesystem.TCon{Name: name, Params: params}
	for _, p := range params {
		g.params[con] = append(g.params[con], p)
	}
	return con
}

func (g *graph) class(name string, bases ...typesystem.Type) *typesystem.TCon {
	con := &typesystem.TCon{Name: name}
	g.bases[con] = bases
	return con
}

var (
	user  = &typesystem.TCon{Name: "User"}
	guest = &typesystem.TCon{Name: "Guest"}
	str   = &typesystem.TCon{Name: "str"}
)

func TestBuildBindingMapPlain(t *testing.T) {
	g := newGraph()
	base := g.class("Base")
	mid := g.class("Mid", base)
	leaf := g.class("Leaf", mid)

	if got := BuildBindingMap(g, leaf); len(got) != 0 {
		t.Errorf("got %s, want empty map", got)
	}
	if got := BuildBindingMap(g, g.class("Lonely")); got == nil {
		t.Errorf("result must never be nil")
	}
}

func TestBuildBindingMapSingleLevel(t *testing.T) {
	g := newGraph()
	T := typesystem.NewParam("T")
	repo := g.template("Repo", T)
	handler := g.class("UserHandler", typesystem.App(repo, user))

	got := BuildBindingMap(g, handler)
	if len(got) != 1 || got[T] != typesystem.Type(user) {
		t.Errorf("got %s, want {T=User}", got)
	}
}

func TestBuildBindingMapThreeLevels(t *testing.T) {
	t.Run("shared placeholder", func(t *testing.T) {
		g := newGraph()
		T := typesystem.NewParam("T")
		base := g.template("Base", T)
		mid := g.template("Mid", T)
		g.bases[mid] = []typesystem.Type{typesystem.App(base, T)}
		concrete := g.class("Concrete", typesystem.App(mid, user))

		got := BuildBindingMap(g, concrete)
		if got[T] != typesystem.Type(user) {
			t.Errorf("got %s, want T=User", got)
		}
	})

	t.Run("distinct placeholders", func(t *testing.T) {
		g := newGraph()
		T := typesystem.NewParam("T")
		M := typesystem.NewParam("M")
		base := g.template("Base", T)
		mid := g.template("Mid", M)
		g.bases[mid] = []typesystem.Type{typesystem.App(base, M)}
		concrete := g.class("Concrete", typesystem.App(mid, user))

		got := BuildBindingMap(g, concrete)
		if got[T] != typesystem.Type(user) || got[M] != typesystem.Type(user) {
			t.Errorf("got %s, want T=User and M=User", got)
		}
	})
}

func TestBuildBindingMapPartialSpecialization(t *testing.T) {
	g := newGraph()
	T := typesystem.NewParam("T")
	U := typesystem.NewParam("U")
	multi := g.template("Multi", T, U)
	partial := g.template("Partial", U)
	g.bases[partial] = []typesystem.Type{typesystem.App(multi, user, U)}
	full := g.class("Full", typesystem.App(partial, guest))

	got := BuildBindingMap(g, full)
	if len(got) != 2 || got[T] != typesystem.Type(user) || got[U] != typesystem.Type(guest) {
		t.Errorf("got %s, want {T=User, U=Guest}", got)
	}
}

func TestBuildBindingMapMultipleAncestors(t *testing.T) {
	g := newGraph()
	X := typesystem.NewParam("X")
	Y := typesystem.NewParam("Y")
	V := typesystem.NewParam("V")
	a := g.template("A", X)
	b := g.template("B", Y)
	mixed := g.template("Mixed", V)
	g.bases[mixed] = []typesystem.Type{typesystem.App(a, str), typesystem.App(b, V)}
	final := g.class("Final", typesystem.App(mixed, str))

	got := BuildBindingMap(g, final)
	if got[X] != typesystem.Type(str) || got[Y] != typesystem.Type(str) {
		t.Errorf("got %s, want X=str and Y=str", got)
	}
}

func TestBuildBindingMapTruncation(t *testing.T) {
	g := newGraph()
	T := typesystem.NewParam("T")
	U := typesystem.NewParam("U")
	pair := g.template("Pair", T, U)
	short := g.class("Short", typesystem.App(pair, user))
	long := g.class("Long", typesystem.App(pair, user, guest, str))

	var buf bytes.Buffer
	e := NewEngine(g, WithLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))))

	got := e.BuildBindingMap(short)
	if len(got) != 1 || got[T] != typesystem.Type(user) {
		t.Errorf("got %s, want {T=User}", got)
	}
	if !strings.Contains(buf.String(), "type argument count mismatch") || !strings.Contains(buf.String(), "args=1") {
		t.Errorf("expected short argument list to be logged, got %q", buf.String())
	}

	buf.Reset()
	got = e.BuildBindingMap(long)
	if len(got) != 2 || got[U] != typesystem.Type(guest) {
		t.Errorf("got %s, want {T=User, U=Guest}", got)
	}
	if !strings.Contains(buf.String(), "params=2 args=3") {
		t.Errorf("expected long argument list to be logged, got %q", buf.String())
	}
}

func TestBuildBindingMapSkipsMalformedBases(t *testing.T) {
	g := newGraph()
	T := typesystem.NewParam("T")
	repo := g.template("Repo", T)
	odd := g.class("Odd",
		typesystem.NewUnion(user, guest),
		typesystem.App(typesystem.NewParam("H"), user),
		typesystem.App(repo),
		typesystem.App(repo, user),
	)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	got := NewEngine(g, WithLogger(logger)).BuildBindingMap(odd)
	if len(got) != 1 || got[T] != typesystem.Type(user) {
		t.Errorf("got %s, want {T=User}", got)
	}
	if n := strings.Count(buf.String(), "dropping unclassifiable ancestor"); n != 3 {
		t.Errorf("got %d dropped ancestors logged, want 3: %q", n, buf.String())
	}
}

func TestBuildBindingMapFallsBackToTemplateParams(t *testing.T) {
	g := newGraph()
	T := typesystem.NewParam("T")
	// Declared on the TCon only; the provider knows nothing about it.
	repo := &typesystem.TCon{Name: "Repo", Params: []*typesystem.TParam{T}}
	handler := g.class("Handler", typesystem.App(repo, user))

	got := BuildBindingMap(g, handler)
	if got[T] != typesystem.Type(user) {
		t.Errorf("got %s, want T=User", got)
	}
}

func TestBuildBindingMapCycle(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	g := newGraph()
	T := typesystem.NewParam("T")
	loop := g.template("Loop", T)
	a := g.class("A")
	b := g.class("B", a)
	g.bases[a] = []typesystem.Type{b, typesystem.App(loop, user)}
	g.bases[loop] = []typesystem.Type{typesystem.App(loop, T), a}

	got := NewEngine(g, WithLogger(logger)).BuildBindingMap(a)
	if got[T] != typesystem.Type(user) {
		t.Errorf("got %s, want T=User", got)
	}
	if !strings.Contains(buf.String(), "skipping cyclic ancestor") {
		t.Errorf("expected cycle to be logged, got %q", buf.String())
	}
}

func TestBuildBindingMapDepthLimit(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	g := newGraph()
	T := typesystem.NewParam("T")
	root := g.template("Root", T)
	current := g.class("L0", typesystem.App(root, user))
	for i := 1; i <= 5; i++ {
		current = g.class("L"+string(rune('0'+i)), current)
	}

	limited := NewEngine(g, WithLogger(logger), WithMaxDepth(3)).BuildBindingMap(current)
	if len(limited) != 0 {
		t.Errorf("got %s, want empty map under depth limit", limited)
	}
	if !strings.Contains(buf.String(), "inheritance depth limit reached") {
		t.Errorf("expected depth warning, got %q", buf.String())
	}

	unlimited := NewEngine(g, WithMaxDepth(0)).BuildBindingMap(current)
	if unlimited[T] != typesystem.Type(user) {
		t.Errorf("got %s, want T=User", unlimited)
	}
}

func TestEngineConcurrentUse(t *testing.T) {
	g := newGraph()
	T := typesystem.NewParam("T")
	repo := g.template("Repo", T)
	handler := g.class("Handler", typesystem.App(repo, user))
	engine := NewEngine(g)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := engine.BuildBindingMap(handler); got[T] != typesystem.Type(user) {
				t.Errorf("got %s, want T=User", got)
			}
		}()
	}
	wg.Wait()
}

func TestResolveWithBindingMap(t *testing.T) {
	g := newGraph()
	T := typesystem.NewParam("T")
	repo := g.template("Repo", T)
	container := &typesystem.TCon{Name: "Container", Params: []*typesystem.TParam{typesystem.NewParam("C")}}
	handler := g.class("Handler", typesystem.App(repo, user))

	s := BuildBindingMap(g, handler)
	got := typesystem.Resolve(typesystem.App(container, typesystem.App(repo, T)), s)
	if got.String() != "Container[Repo[User]]" {
		t.Errorf("got %s, want Container[Repo[User]]", got)
	}
}

func TestBuildBindingMapFrom(t *testing.T) {
	g := newGraph()
	E := typesystem.NewParam("E")
	repo := g.template("Repo", E)
	T := typesystem.NewParam("T")
	box := g.template("Box", T)
	g.bases[box] = []typesystem.Type{typesystem.App(repo, T)}

	if s := BuildBindingMap(g, box); len(s) != 0 {
		t.Errorf("unseeded: got %s, want empty map", s)
	}

	seed := typesystem.Subst{T: user}
	s := NewEngine(g).BuildBindingMapFrom(box, seed)
	if s[E] != typesystem.Type(user) {
		t.Errorf("got E -> %v, want User", s[E])
	}
	if s[T] != typesystem.Type(user) {
		t.Errorf("seed binding lost: got T -> %v", s[T])
	}
	if len(seed) != 1 {
		t.Errorf("seed modified: %s", seed)
	}
}
