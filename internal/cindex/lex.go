// Package cindex is a lightweight, dependency-free C/C++ token scanner
// standing in for the real semantic-index worker's libclang-equivalent
// front end. It recognizes enough surface syntax — includes, function
// and method definitions, class/struct inheritance, global and member
// variables, enum constants, calls and identifier references — to
// populate the fact model the store expects, without building a full
// preprocessor or parser.
package cindex

import "unicode"

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokPunct
	tokString
	tokNumber
	tokDirective
)

type token struct {
	kind tokenKind
	text string
	line int
	col  int
}

var keywords = map[string]bool{
	"int": true, "char": true, "float": true, "double": true, "void": true,
	"long": true, "short": true, "unsigned": true, "signed": true, "bool": true,
	"auto": true, "struct": true, "class": true, "enum": true, "union": true,
	"static": true, "const": true, "extern": true, "virtual": true, "override": true,
	"public": true, "private": true, "protected": true, "namespace": true,
	"return": true, "template": true, "typename": true, "inline": true,
	"friend": true, "explicit": true, "final": true, "using": true, "typedef": true,
}

// lex tokenizes src, stripping comments and string/char literal bodies
// (kept as opaque tokString tokens so punctuation inside them is never
// mistaken for structure).
func lex(src []byte) []token {
	var toks []token
	line, col := 1, 1
	i := 0
	n := len(src)

	advance := func(c byte) {
		if c == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}

	for i < n {
		c := src[i]

		switch {
		case c == '\n' || c == ' ' || c == '\t' || c == '\r':
			advance(c)
			i++

		case c == '/' && i+1 < n && src[i+1] == '/':
			for i < n && src[i] != '\n' {
				advance(src[i])
				i++
			}

		case c == '/' && i+1 < n && src[i+1] == '*':
			advance(src[i])
			advance(src[i+1])
			i += 2
			for i < n && !(src[i] == '*' && i+1 < n && src[i+1] == '/') {
				advance(src[i])
				i++
			}
			if i < n {
				advance(src[i])
				advance(src[i+1])
				i += 2
			}

		case c == '#':
			startLine, startCol := line, col
			start := i
			for i < n && src[i] != '\n' {
				advance(src[i])
				i++
			}
			toks = append(toks, token{kind: tokDirective, text: string(src[start:i]), line: startLine, col: startCol})

		case c == '"' || c == '\'':
			quote := c
			startLine, startCol := line, col
			start := i
			advance(c)
			i++
			for i < n && src[i] != quote {
				if src[i] == '\\' && i+1 < n {
					advance(src[i])
					i++
				}
				advance(src[i])
				i++
			}
			if i < n {
				advance(src[i])
				i++
			}
			toks = append(toks, token{kind: tokString, text: string(src[start:i]), line: startLine, col: startCol})

		case isIdentStart(c):
			startLine, startCol := line, col
			start := i
			for i < n && isIdentPart(src[i]) {
				advance(src[i])
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: string(src[start:i]), line: startLine, col: startCol})

		case isDigit(c):
			startLine, startCol := line, col
			start := i
			for i < n && (isIdentPart(src[i]) || src[i] == '.') {
				advance(src[i])
				i++
			}
			toks = append(toks, token{kind: tokNumber, text: string(src[start:i]), line: startLine, col: startCol})

		default:
			toks = append(toks, token{kind: tokPunct, text: string(c), line: line, col: col})
			advance(c)
			i++
		}
	}

	return toks
}

func isIdentStart(c byte) bool { return c == '_' || unicode.IsLetter(rune(c)) }
func isIdentPart(c byte) bool  { return c == '_' || unicode.IsLetter(rune(c)) || isDigit(c) }
func isDigit(c byte) bool      { return c >= '0' && c <= '9' }

func isTypeKeyword(s string) bool {
	switch s {
	case "int", "char", "float", "double", "void", "long", "short",
		"unsigned", "signed", "bool", "auto":
		return true
	}
	return false
}

// isDeclQualifier reports whether s can appear in the run of tokens
// leading up to a declared name: a primitive type or a storage/type
// qualifier. Control-flow keywords (return, if, for, ...) are
// deliberately excluded so they are never mistaken for the start of a
// declaration.
func isDeclQualifier(s string) bool {
	if isTypeKeyword(s) {
		return true
	}
	switch s {
	case "static", "const", "extern", "virtual", "inline", "friend", "explicit":
		return true
	}
	return false
}
