package typesystem

import "testing"

func TestResolve(t *testing.T) {
	T := NewParam("T")
	U := NewParam("U")
	user := &TCon{Name: "User", Module: "app"}
	guest := &TCon{Name: "Guest", Module: "app"}
	repo := &TCon{Name: "Repo", Params: []*TParam{NewParam("E")}}
	pair := &TCon{Name: "Pair", Params: []*TParam{NewParam("A"), NewParam("B")}}

	s := Subst{T: user, U: guest}

	tests := []struct {
		name string
		in   Type
		want Type
	}{
		{"bound placeholder", T, user},
		{"unbound placeholder", NewParam("V"), nil},
		{"nominal leaf", user, user},
		{"application", App(repo, T), App(repo, user)},
		{"nested application", App(List, App(repo, T)), App(List, App(repo, user))},
		{"two arguments", App(pair, T, U), App(pair, user, guest)},
		{"explicit union", NewUnion(T, None), NewUnion(user, None)},
		{"joined union", Join(T, None), Join(user, None)},
		{"three branches", Join(Join(T, U), None), NewUnion(user, guest, None)},
		{"annotated", &TAnnotated{Type: T, Metadata: []any{"primary"}}, &TAnnotated{Type: user, Metadata: []any{"primary"}}},
		{"optional", Optional(App(repo, T)), Optional(App(repo, user))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.in, s)
			want := tt.want
			if want == nil {
				want = tt.in
			}
			if !Equal(got, want) {
				t.Errorf("Resolve(%s) = %s, want %s", tt.in, got, want)
			}
		})
	}
}

func TestResolveIdentity(t *testing.T) {
	T := NewParam("T")
	user := &TCon{Name: "User"}
	repo := &TCon{Name: "Repo", Params: []*TParam{NewParam("E")}}

	in := App(List, App(repo, user))

	if got := Resolve(in, Subst{}); got != Type(in) {
		t.Errorf("empty map must return the input itself")
	}
	if got := Resolve(in, Subst{T: user}); got != Type(in) {
		t.Errorf("unchanged expression must return the input itself")
	}

	union := NewUnion(user, None)
	if got := Resolve(union, Subst{T: user}); got != union {
		t.Errorf("unchanged union must return the input itself")
	}

	// Only the changed branch is rebuilt.
	inner := App(repo, user)
	outer := App(&TCon{Name: "Pair", Params: []*TParam{NewParam("A"), NewParam("B")}}, inner, T)
	got, ok := Resolve(outer, Subst{T: user}).(*TApp)
	if !ok {
		t.Fatalf("expected *TApp, got %T", got)
	}
	if got.Args[0] != Type(inner) {
		t.Errorf("unchanged child must be shared")
	}
}

func TestResolveIdempotent(t *testing.T) {
	T := NewParam("T")
	user := &TCon{Name: "User"}
	repo := &TCon{Name: "Repo", Params: []*TParam{NewParam("E")}}
	s := Subst{T: user}

	for _, in := range []Type{T, App(repo, T), Join(T, None), &TAnnotated{Type: T, Metadata: []any{int64(1)}}} {
		once := Resolve(in, s)
		twice := Resolve(once, s)
		if !Equal(once, twice) {
			t.Errorf("Resolve not idempotent for %s: %s then %s", in, once, twice)
		}
	}
}

func TestResolveKeepsMetadata(t *testing.T) {
	T := NewParam("T")
	user := &TCon{Name: "User"}
	meta := []any{"primary", int64(3), true}

	got, ok := Resolve(&TAnnotated{Type: T, Metadata: meta}, Subst{T: user}).(*TAnnotated)
	if !ok {
		t.Fatalf("expected *TAnnotated, got %T", got)
	}
	if got.Type != Type(user) {
		t.Errorf("got %s, want User", got.Type)
	}
	if len(got.Metadata) != 3 || got.Metadata[0] != "primary" || got.Metadata[1] != int64(3) {
		t.Errorf("metadata changed: %v", got.Metadata)
	}
}

func TestResolveFlattensAnnotated(t *testing.T) {
	T := NewParam("T")
	user := &TCon{Name: "User"}
	s := Subst{T: &TAnnotated{Type: user, Metadata: []any{"a"}}}

	got := Resolve(&TAnnotated{Type: T, Metadata: []any{"b"}}, s)
	want := &TAnnotated{Type: user, Metadata: []any{"a", "b"}}
	if !Equal(got, want) {
		t.Fatalf("got %s, want %s", got, want)
	}
	if inner := s[T].(*TAnnotated); len(inner.Metadata) != 1 {
		t.Errorf("binding metadata changed: %v", inner.Metadata)
	}

	// An annotation nested deeper than the primary type is kept.
	list := Resolve(&TAnnotated{Type: App(List, T), Metadata: []any{"b"}}, s)
	if list.String() != `Annotated[list[Annotated[User, "a"]], "b"]` {
		t.Errorf("got %s", list)
	}
}

func TestResolveBareOriginFallback(t *testing.T) {
	T := NewParam("T")
	user := &TCon{Name: "User"}
	// A non-generic origin rejects any arguments.
	plain := &TCon{Name: "Plain"}

	got := Resolve(App(plain, T), Subst{T: user})
	if got != Type(plain) {
		t.Errorf("got %s, want bare Plain", got)
	}

	// A placeholder constructor cannot be instantiated either.
	H := NewParam("H")
	got = Resolve(App(H, T), Subst{T: user})
	if got != Type(H) {
		t.Errorf("got %s, want bare H", got)
	}
}

func TestResolveUnionCollapse(t *testing.T) {
	T := NewParam("T")
	user := &TCon{Name: "User"}

	got := Resolve(Join(T, user), Subst{T: user})
	if got != Type(user) {
		t.Errorf("got %s, want User", got)
	}
}

func TestResolveAll(t *testing.T) {
	T := NewParam("T")
	user := &TCon{Name: "User"}

	in := []Type{user, None}
	out := ResolveAll(in, Subst{T: user})
	if &out[0] != &in[0] {
		t.Errorf("unchanged slice must be returned as is")
	}

	out = ResolveAll([]Type{user, T}, Subst{T: user})
	if !Equal(out[1], user) {
		t.Errorf("got %s, want User", out[1])
	}
}
