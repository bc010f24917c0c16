// Package typeparse reads textual type expressions such as
//
//	Repo[User]
//	Handler[T] | None
//	Union[User, Guest]
//	Optional[Repo[T]]
//	Annotated[T, "primary", 3]
//
// into typesystem values, and formats them back.
package typeparse

import (
	"fmt"
	"strconv"

	"github.com/funvibe/typebind/internal/config"
	"github.com/funvibe/typebind/internal/typesystem"
)

// Scope resolves names to placeholders or nominal types. Builtins are
// consulted after the scope.
type Scope interface {
	LookupType(name string) (typesystem.Type, bool)
}

// MapScope is a Scope backed by a map.
type MapScope map[string]typesystem.Type

func (m MapScope) LookupType(name string) (typesystem.Type, bool) {
	t, ok := m[name]
	return t, ok
}

// SyntaxError reports a malformed or unresolvable type expression.
type SyntaxError struct {
	Input  string
	Column int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("type %q, column %d: %s", e.Input, e.Column, e.Msg)
}

type Parser struct {
	l     *Lexer
	input string
	scope Scope
	// unchecked builds applications without kind checks.
	unchecked bool

	curToken  Token
	peekToken Token
}

// Parse parses a single type expression. scope may be nil.
func Parse(input string, scope Scope) (typesystem.Type, error) {
	return parse(&Parser{l: NewLexer(input), input: input, scope: scope})
}

// ParseUnchecked parses a type as it appears in a declaration. Applications
// are built with typesystem.App, so arity mismatches and parameterized
// non-templates are kept for the binding engine to absorb. KindCheck
// reports them.
func ParseUnchecked(input string, scope Scope) (typesystem.Type, error) {
	return parse(&Parser{l: NewLexer(input), input: input, scope: scope, unchecked: true})
}

func parse(p *Parser) (typesystem.Type, error) {
	p.nextToken()
	p.nextToken()

	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if !p.curTokenIs(EOF) {
		return nil, p.errorf("unexpected %s after type", p.curToken.Type)
	}
	return t, nil
}

// MustParse is like Parse but panics on error.
func MustParse(input string, scope Scope) typesystem.Type {
	t, err := Parse(input, scope)
	if err != nil {
		panic(err)
	}
	return t
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) errorf(format string, args ...any) error {
	return &SyntaxError{Input: p.input, Column: p.curToken.Column, Msg: fmt.Sprintf(format, args...)}
}

func (p *Parser) expect(t TokenType) error {
	if !p.curTokenIs(t) {
		if p.curTokenIs(ILLEGAL) {
			return p.errorf("illegal input %q", p.curToken.Literal)
		}
		return p.errorf("expected %s, got %s", t, p.curToken.Type)
	}
	p.nextToken()
	return nil
}

// parseType parses a union of one or more operands joined by '|'.
func (p *Parser) parseType() (typesystem.Type, error) {
	t, err := p.parseNonUnionType()
	if err != nil {
		return nil, err
	}
	for p.curTokenIs(PIPE) {
		p.nextToken() // consume '|'
		next, err := p.parseNonUnionType()
		if err != nil {
			return nil, err
		}
		t = typesystem.Join(t, next)
	}
	return t, nil
}

func (p *Parser) parseNonUnionType() (typesystem.Type, error) {
	switch p.curToken.Type {
	case LPAREN:
		p.nextToken()
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return t, nil

	case IDENT:
		return p.parseNamedType()

	case ILLEGAL:
		return nil, p.errorf("illegal input %q", p.curToken.Literal)

	default:
		return nil, p.errorf("expected type, got %s", p.curToken.Type)
	}
}

func (p *Parser) parseNamedType() (typesystem.Type, error) {
	nameTok := p.curToken
	name := nameTok.Literal
	p.nextToken()

	if !p.curTokenIs(LBRACKET) {
		return p.resolve(nameTok)
	}

	switch name {
	case config.UnionTypeName:
		args, err := p.parseTypeArgs()
		if err != nil {
			return nil, err
		}
		return typesystem.NewUnion(args...), nil

	case config.OptionalTypeName:
		args, err := p.parseTypeArgs()
		if err != nil {
			return nil, err
		}
		if len(args) != 1 {
			return nil, &SyntaxError{Input: p.input, Column: nameTok.Column,
				Msg: fmt.Sprintf("Optional takes 1 type argument, got %d", len(args))}
		}
		return typesystem.Optional(args[0]), nil

	case config.AnnotatedTypeName:
		return p.parseAnnotated(nameTok)
	}

	ctor, err := p.resolve(nameTok)
	if err != nil {
		return nil, err
	}
	args, err := p.parseTypeArgs()
	if err != nil {
		return nil, err
	}
	if p.unchecked {
		return typesystem.App(ctor, args...), nil
	}
	t, err := typesystem.Instantiate(ctor, args)
	if err != nil {
		return nil, &SyntaxError{Input: p.input, Column: nameTok.Column, Msg: err.Error()}
	}
	return t, nil
}

// parseTypeArgs parses '[' type (',' type)* ']'.
func (p *Parser) parseTypeArgs() ([]typesystem.Type, error) {
	if err := p.expect(LBRACKET); err != nil {
		return nil, err
	}
	if p.curTokenIs(RBRACKET) {
		return nil, p.errorf("empty type argument list")
	}
	var args []typesystem.Type
	for {
		arg, err := p.parseType()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if !p.curTokenIs(COMMA) {
			break
		}
		p.nextToken() // consume ','
	}
	if err := p.expect(RBRACKET); err != nil {
		return nil, err
	}
	return args, nil
}

// parseAnnotated parses Annotated[type, literal, ...].
func (p *Parser) parseAnnotated(nameTok Token) (typesystem.Type, error) {
	p.nextToken() // consume '['
	primary, err := p.parseType()
	if err != nil {
		return nil, err
	}
	var metadata []any
	for p.curTokenIs(COMMA) {
		p.nextToken() // consume ','
		value, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		metadata = append(metadata, value)
	}
	if err := p.expect(RBRACKET); err != nil {
		return nil, err
	}
	if len(metadata) == 0 {
		return nil, &SyntaxError{Input: p.input, Column: nameTok.Column,
			Msg: "Annotated requires at least one metadata value"}
	}
	return typesystem.Annotate(primary, metadata...), nil
}

func (p *Parser) parseLiteral() (any, error) {
	tok := p.curToken
	switch tok.Type {
	case STRING:
		p.nextToken()
		return tok.Literal, nil
	case NUMBER:
		p.nextToken()
		if i, err := strconv.ParseInt(tok.Literal, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			return nil, &SyntaxError{Input: p.input, Column: tok.Column, Msg: fmt.Sprintf("bad number %q", tok.Literal)}
		}
		return f, nil
	case IDENT:
		switch tok.Literal {
		case "true":
			p.nextToken()
			return true, nil
		case "false":
			p.nextToken()
			return false, nil
		}
	}
	return nil, p.errorf("expected metadata literal, got %s", tok.Type)
}

func (p *Parser) resolve(tok Token) (typesystem.Type, error) {
	if p.scope != nil {
		if t, ok := p.scope.LookupType(tok.Literal); ok {
			return t, nil
		}
	}
	if t, ok := typesystem.Builtin(tok.Literal); ok {
		return t, nil
	}
	return nil, &SyntaxError{Input: p.input, Column: tok.Column, Msg: fmt.Sprintf("unknown type %q", tok.Literal)}
}
