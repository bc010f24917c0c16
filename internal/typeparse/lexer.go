package typeparse

import (
	"unicode"
	"unicode/utf8"
)

type TokenType int

const (
	ILLEGAL TokenType = iota
	EOF
	IDENT
	STRING
	NUMBER
	LBRACKET
	RBRACKET
	LPAREN
	RPAREN
	COMMA
	PIPE
)

var tokenNames = map[TokenType]string{
	ILLEGAL:  "illegal",
	EOF:      "end of input",
	IDENT:    "identifier",
	STRING:   "string",
	NUMBER:   "number",
	LBRACKET: "'['",
	RBRACKET: "']'",
	LPAREN:   "'('",
	RPAREN:   "')'",
	COMMA:    "','",
	PIPE:     "'|'",
}

func (t TokenType) String() string {
	return tokenNames[t]
}

type Token struct {
	Type    TokenType
	Literal string
	Column  int
}

type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           rune // current char under examination
	column       int  // current column number
}

func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	l.position = l.readPosition
	if l.readPosition >= len(l.input) {
		l.ch = 0
		return
	}
	r, w := utf8.DecodeRuneInString(l.input[l.readPosition:])
	l.ch = r
	l.readPosition += w
	l.column++
}

func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	col := l.column
	var tok Token
	switch l.ch {
	case 0:
		return Token{Type: EOF, Column: col + 1}
	case '[':
		tok = newToken(LBRACKET, l.ch, col)
	case ']':
		tok = newToken(RBRACKET, l.ch, col)
	case '(':
		tok = newToken(LPAREN, l.ch, col)
	case ')':
		tok = newToken(RPAREN, l.ch, col)
	case ',':
		tok = newToken(COMMA, l.ch, col)
	case '|':
		tok = newToken(PIPE, l.ch, col)
	case '"', '\'':
		s, ok := l.readString(l.ch)
		if !ok {
			return Token{Type: ILLEGAL, Literal: "unterminated string", Column: col}
		}
		tok = Token{Type: STRING, Literal: s, Column: col}
	default:
		if isLetter(l.ch) {
			return Token{Type: IDENT, Literal: l.readIdentifier(), Column: col}
		}
		if isDigit(l.ch) || (l.ch == '-' && isDigit(l.peekChar())) {
			return Token{Type: NUMBER, Literal: l.readNumber(), Column: col}
		}
		tok = newToken(ILLEGAL, l.ch, col)
	}
	l.readChar()
	return tok
}

// readString reads a quoted string and resolves \\, \" and \' escapes.
// The closing quote is left as the current char.
func (l *Lexer) readString(quote rune) (string, bool) {
	var result []rune
	for {
		l.readChar()
		switch l.ch {
		case 0:
			return "", false
		case quote:
			return string(result), true
		case '\\':
			l.readChar()
			switch l.ch {
			case 0:
				return "", false
			case 'n':
				result = append(result, '\n')
			case 't':
				result = append(result, '\t')
			default:
				result = append(result, l.ch)
			}
		default:
			result = append(result, l.ch)
		}
	}
}

// readIdentifier reads a possibly qualified identifier (models.User,
// example.com/app/models.User).
func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetter(l.ch) || isDigit(l.ch) || (isPathSeparator(l.ch) && isLetterOrDigit(l.peekChar())) {
		l.readChar()
	}
	return l.input[position:l.position]
}

// isPathSeparator reports characters allowed inside a qualified name when
// followed by a letter or digit.
func isPathSeparator(ch rune) bool {
	return ch == '.' || ch == '/' || ch == '-'
}

func isLetterOrDigit(ch rune) bool {
	return isLetter(ch) || isDigit(ch)
}

func (l *Lexer) readNumber() string {
	position := l.position
	if l.ch == '-' {
		l.readChar()
	}
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return l.input[position:l.position]
}

func isLetter(ch rune) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_' || (ch >= 0x80 && unicode.IsLetter(ch))
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}

func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPosition:])
	return r
}

func newToken(tokenType TokenType, ch rune, col int) Token {
	return Token{Type: tokenType, Literal: string(ch), Column: col}
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n' {
		l.readChar()
	}
}
