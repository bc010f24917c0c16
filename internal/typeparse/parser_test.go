package typeparse

import (
	"errors"
	"testing"

	"github.com/funvibe/typebind/internal/typesystem"
)

func testScope() (MapScope, *typesystem.TParam) {
	T := typesystem.NewParam("T")
	repo := &typesystem.TCon{Name: "Repo", Module: "app", Params: []*typesystem.TParam{typesystem.NewParam("E")}}
	pair := &typesystem.TCon{Name: "Pair", Params: []*typesystem.TParam{typesystem.NewParam("A"), typesystem.NewParam("B")}}
	user := &typesystem.TCon{Name: "User", Module: "app"}
	guest := &typesystem.TCon{Name: "Guest", Module: "app"}
	return MapScope{
		"T":         T,
		"app.Repo":  repo,
		"Repo":      repo,
		"Pair":      pair,
		"User":      user,
		"app.User":  user,
		"Guest":     guest,
		"app.Guest": guest,
	}, T
}

func TestParse(t *testing.T) {
	scope, _ := testScope()

	tests := []struct {
		input string
		want  string
	}{
		{"User", "app.User"},
		{"app.Repo[User]", "app.Repo[app.User]"},
		{"Repo[T]", "app.Repo[T]"},
		{"Pair[User, list[T]]", "Pair[app.User, list[T]]"},
		{"T | None", "T | None"},
		{"User | Guest | None", "app.User | app.Guest | None"},
		{"Union[User, Guest]", "Union[app.User, app.Guest]"},
		{"Optional[Repo[T]]", "Union[app.Repo[T], None]"},
		{"(User | Guest) | User", "app.User | app.Guest"},
		{`Annotated[T, "primary", 3, -1.5, true]`, `Annotated[T, "primary", 3, -1.5, true]`},
		{"dict[str, int]", "dict[str, int]"},
		{"tuple[int, int, str]", "tuple[int, int, str]"},
		{"Union[User]", "app.User"},
		{`Annotated[Annotated[T, "a"], "b"]`, `Annotated[T, "a", "b"]`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input, scope)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("Parse(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestParsePlaceholderIdentity(t *testing.T) {
	scope, T := testScope()
	got, err := Parse("Repo[T]", scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	app := got.(*typesystem.TApp)
	if app.Args[0] != typesystem.Type(T) {
		t.Errorf("placeholder must resolve to the scope's identity")
	}
}

func TestParseErrors(t *testing.T) {
	scope, _ := testScope()

	tests := []struct {
		input  string
		column int
	}{
		{"Unknown", 1},
		{"Repo[User", 10},
		{"Repo[]", 6},
		{"User[Guest]", 1},
		{"Repo[User, Guest]", 1},
		{"Optional[User, Guest]", 1},
		{"Annotated[User]", 1},
		{"Annotated[User, Guest]", 17},
		{"User Guest", 6},
		{"User | ", 8},
		{"User $", 6},
		{"", 1},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := Parse(tt.input, scope)
			var syntaxErr *SyntaxError
			if !errors.As(err, &syntaxErr) {
				t.Fatalf("expected *SyntaxError, got %v", err)
			}
			if syntaxErr.Column != tt.column {
				t.Errorf("column = %d, want %d (%v)", syntaxErr.Column, tt.column, err)
			}
		})
	}
}

func TestParseUnchecked(t *testing.T) {
	scope, _ := testScope()

	tests := []struct {
		input string
		want  string
	}{
		{"User[Guest]", "app.User[app.Guest]"},
		{"Repo[User, Guest]", "app.Repo[app.User, app.Guest]"},
		{"Pair[User]", "Pair[app.User]"},
		{"Optional[Pair[User]]", "Union[Pair[app.User], None]"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseUnchecked(tt.input, scope)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseUnchecked(%q) = %s, want %s", tt.input, got, tt.want)
			}
			if _, err := Parse(tt.input, scope); err == nil {
				t.Errorf("Parse(%q) must reject the application", tt.input)
			}
		})
	}

	// Syntax errors are still reported.
	if _, err := ParseUnchecked("Repo[User", scope); err == nil {
		t.Errorf("expected syntax error")
	}
}

func TestFormatRoundTrip(t *testing.T) {
	scope, _ := testScope()

	inputs := []string{
		"app.Repo[app.User]",
		"T | None",
		"Union[app.User, app.Guest]",
		`Annotated[list[T], "a\"b", 2, 0.5, 3.0, false]`,
		"dict[str, app.Repo[T]]",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			first, err := Parse(in, scope)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			text := Format(first, nil)
			second, err := Parse(text, scope)
			if err != nil {
				t.Fatalf("reparse %q: %v", text, err)
			}
			if !typesystem.Equal(first, second) {
				t.Errorf("round trip changed %s into %s", first, second)
			}
		})
	}
}

func TestFormatParamName(t *testing.T) {
	T := &typesystem.TParam{Name: "T", Scope: "app.Repo"}
	got := Format(typesystem.Join(T, typesystem.None), func(p *typesystem.TParam) string { return p.QualifiedName() })
	if got != "app.Repo.T | None" {
		t.Errorf("got %q, want app.Repo.T | None", got)
	}
	if Format(nil, nil) != "Never" {
		t.Errorf("nil must format as Never")
	}
}
