package cindex

import (
	"strings"

	"github.com/sfowler/pygmalion/internal/fact"
)

// Result is everything one Analyze pass extracts from a translation unit.
type Result struct {
	Inclusions []fact.Inclusion
	Defs       []fact.DefInfo
	Overrides  []fact.Override
	Calls      []fact.CallEdge
	Refs       []fact.Reference
}

type symbol struct {
	usr  string
	kind string
}

// scope tracks the enclosing class (for qualified member USRs and base
// lookups) and function (for call-edge and reference attribution)
// while walking the token stream.
type scope struct {
	className   string
	baseClasses []string
	funcUSR     string
}

type analyzer struct {
	file    string
	toks    []token
	pos     int
	res     Result
	symbols map[string]symbol   // unqualified name -> symbol, last definition wins
	bases   map[string][]string // class name -> direct base class names
}

// Analyze scans src (the contents of file) and returns the facts a
// simplified single-TU pass over it would produce.
func Analyze(file string, src []byte) Result {
	a := &analyzer{
		file:    file,
		toks:    lex(src),
		symbols: make(map[string]symbol),
		bases:   make(map[string][]string),
	}
	a.run()
	return a.res
}

func (a *analyzer) run() {
	a.collectIncludes()
	a.walk(scope{})
}

func (a *analyzer) collectIncludes() {
	for _, t := range a.toks {
		if t.kind != tokDirective {
			continue
		}
		body := strings.TrimSpace(strings.TrimPrefix(t.text, "#"))
		if !strings.HasPrefix(body, "include") {
			continue
		}
		rest := strings.TrimSpace(strings.TrimPrefix(body, "include"))
		if len(rest) < 2 {
			continue
		}
		open, close := rest[0], byte(0)
		switch open {
		case '"':
			close = '"'
		case '<':
			close = '>'
		default:
			continue
		}
		end := strings.IndexByte(rest[1:], close)
		if end < 0 {
			continue
		}
		included := rest[1 : end+1]
		a.res.Inclusions = append(a.res.Inclusions, fact.Inclusion{
			Includer: a.file,
			Included: included,
			Direct:   true,
		})
	}
}

func (a *analyzer) peek() token {
	if a.pos >= len(a.toks) {
		return token{kind: tokPunct, text: ""}
	}
	return a.toks[a.pos]
}

func (a *analyzer) peekAt(offset int) token {
	if a.pos+offset >= len(a.toks) || a.pos+offset < 0 {
		return token{kind: tokPunct, text: ""}
	}
	return a.toks[a.pos+offset]
}

func (a *analyzer) next() token {
	t := a.peek()
	a.pos++
	return t
}

// walk processes tokens until the matching close brace of the scope
// (or end of file at top level), recursing into nested class and
// function bodies.
func (a *analyzer) walk(sc scope) {
	for a.pos < len(a.toks) {
		t := a.peek()

		switch {
		case t.kind == tokDirective:
			a.next()

		case t.kind == tokPunct && t.text == "}":
			a.next()
			return

		case t.kind == tokIdent && (t.text == "class" || t.text == "struct"):
			a.walkClassHeader()

		case t.kind == tokIdent && t.text == "enum":
			a.walkEnum()

		case t.kind == tokIdent && (!keywords[t.text] || isDeclQualifier(t.text)):
			a.walkDeclOrStatement(sc)

		default:
			a.next()
		}
	}
}

// walkClassHeader consumes `class Name [: base, base] {` and recurses
// into the body with the class recorded as the enclosing scope.
func (a *analyzer) walkClassHeader() {
	a.next() // class/struct
	if a.peek().kind != tokIdent {
		a.skipStatement()
		return
	}
	name := a.next().text

	var bases []string
	if a.peek().text == ":" {
		a.next()
		for a.pos < len(a.toks) && a.peek().text != "{" && a.peek().text != ";" {
			t := a.next()
			if t.kind == tokIdent && !keywords[t.text] {
				bases = append(bases, t.text)
			}
		}
	}

	if a.peek().text != "{" {
		a.skipStatement()
		return
	}
	a.next() // {

	a.bases[name] = bases
	a.symbols[name] = symbol{usr: classUSR(name), kind: "CXXRecordDecl"}
	a.res.Defs = append(a.res.Defs, fact.DefInfo{
		USR:      classUSR(name),
		Name:     name,
		Location: fact.Location{File: a.file, Line: a.toks[a.pos-2].line, Col: a.toks[a.pos-2].col},
		Kind:     "CXXRecordDecl",
	})
	for _, base := range bases {
		a.res.Overrides = append(a.res.Overrides, fact.Override{
			DefiningUSR:   classUSR(name),
			OverriddenUSR: classUSR(base),
		})
	}

	a.walk(scope{className: name, baseClasses: bases})

	if a.peek().text == ";" {
		a.next()
	}
}

func (a *analyzer) walkEnum() {
	a.next() // enum
	if a.peek().text == "class" {
		a.next()
	}
	if a.peek().kind == tokIdent {
		a.next() // name, unused
	}
	if a.peek().text != "{" {
		a.skipStatement()
		return
	}
	a.next() // {
	for a.pos < len(a.toks) && a.peek().text != "}" {
		t := a.next()
		if t.kind == tokIdent {
			a.symbols[t.text] = symbol{usr: "enum:" + t.text, kind: "EnumConstantDecl"}
			a.res.Defs = append(a.res.Defs, fact.DefInfo{
				USR:      "enum:" + t.text,
				Name:     t.text,
				Location: fact.Location{File: a.file, Line: t.line, Col: t.col},
				Kind:     "EnumConstantDecl",
			})
		}
		if a.peek().text == "=" {
			a.skipToAny(",", "}")
		}
		if a.peek().text == "," {
			a.next()
		}
	}
	if a.peek().text == "}" {
		a.next()
	}
	if a.peek().text == ";" {
		a.next()
	}
}

// walkDeclOrStatement handles the common case: a run of type/qualifier
// keywords followed by an identifier, then either "(" (function) or
// "=", "," ";" (variable). Inside a function body, bare identifier
// tokens are resolved against the known symbol table as calls or
// references.
func (a *analyzer) walkDeclOrStatement(sc scope) {
	start := a.pos

	if sc.funcUSR != "" && !isDeclQualifier(a.peek().text) {
		a.resolveUsage(sc)
		return
	}

	// Skip the leading type/qualifier run and any pointer/reference
	// declarators, leaving the declared name as the current token.
	for a.peek().kind == tokIdent && isDeclQualifier(a.peek().text) {
		a.next()
	}
	for a.peek().text == "*" || a.peek().text == "&" {
		a.next()
	}

	if a.peek().kind != tokIdent {
		a.pos = start
		a.skipStatement()
		return
	}
	nameTok := a.next()
	name := nameTok.text

	switch a.peek().text {
	case "(":
		a.walkFunctionAfterName(sc, name, nameTok)
	case "=", ";", ",", "[":
		a.finishVarDecl(sc, name, nameTok)
	default:
		a.pos = start
		a.skipStatement()
	}
}

func (a *analyzer) finishVarDecl(sc scope, name string, nameTok token) {
	kind := "VarDecl"
	usr := varUSR(sc, name)
	if sc.className != "" && sc.funcUSR == "" {
		kind = "FieldDecl"
	}
	a.symbols[name] = symbol{usr: usr, kind: kind}
	a.res.Defs = append(a.res.Defs, fact.DefInfo{
		USR:      usr,
		Name:     name,
		Location: fact.Location{File: a.file, Line: nameTok.line, Col: nameTok.col},
		Kind:     kind,
	})
	a.skipStatement()
}

// walkFunctionAfterName consumes the parameter list; if followed by a
// body, records the definition, wires override edges against base
// classes, and recurses with funcUSR set so the body's identifiers
// resolve as calls/references.
func (a *analyzer) walkFunctionAfterName(sc scope, name string, nameTok token) {
	a.skipBalanced("(", ")")

	for a.peek().kind == tokIdent && (a.peek().text == "const" || a.peek().text == "override" || a.peek().text == "final" || a.peek().text == "noexcept") {
		a.next()
	}

	if a.peek().text == ";" {
		a.next()
		return
	}
	if a.peek().text != "{" {
		a.skipStatement()
		return
	}
	a.next() // {

	usr := methodUSR(sc, name)
	kind := "FunctionDecl"
	if sc.className != "" {
		kind = "CXXMethodDecl"
		for _, base := range sc.baseClasses {
			if baseSym, ok := a.symbols[methodNameKey(base, name)]; ok {
				a.res.Overrides = append(a.res.Overrides, fact.Override{
					DefiningUSR:   usr,
					OverriddenUSR: baseSym.usr,
				})
			}
		}
	}
	a.symbols[name] = symbol{usr: usr, kind: kind}
	if sc.className != "" {
		a.symbols[methodNameKey(sc.className, name)] = symbol{usr: usr, kind: kind}
	}
	a.res.Defs = append(a.res.Defs, fact.DefInfo{
		USR:      usr,
		Name:     name,
		Location: fact.Location{File: a.file, Line: nameTok.line, Col: nameTok.col},
		Kind:     kind,
	})

	a.walk(scope{className: sc.className, baseClasses: sc.baseClasses, funcUSR: usr})
}

// resolveUsage handles one identifier token inside a function body: a
// call if followed by "(", otherwise a reference if it names a known
// symbol.
func (a *analyzer) resolveUsage(sc scope) {
	t := a.next()
	if t.kind != tokIdent || keywords[t.text] {
		return
	}
	sym, known := a.symbols[t.text]
	if !known {
		return
	}
	if a.peek().text == "(" {
		if sym.kind == "FunctionDecl" || sym.kind == "CXXMethodDecl" {
			a.res.Calls = append(a.res.Calls, fact.CallEdge{CallerUSR: sc.funcUSR, CalleeUSR: sym.usr})
		}
		return
	}
	a.res.Refs = append(a.res.Refs, fact.Reference{
		Range: fact.SourceRange{
			File: a.file, Line: t.line, Col: t.col,
			EndLine: t.line, EndCol: t.col + len(t.text),
		},
		TargetUSR: sym.usr,
	})
}

func (a *analyzer) skipStatement() {
	for a.pos < len(a.toks) {
		t := a.next()
		if t.text == ";" {
			return
		}
		if t.text == "{" {
			a.pos--
			a.skipBalanced("{", "}")
			return
		}
	}
}

func (a *analyzer) skipBalanced(open, close string) {
	if a.peek().text != open {
		return
	}
	depth := 0
	for a.pos < len(a.toks) {
		t := a.next()
		if t.text == open {
			depth++
		} else if t.text == close {
			depth--
			if depth == 0 {
				return
			}
		}
	}
}

func (a *analyzer) skipToAny(stops ...string) {
	for a.pos < len(a.toks) {
		t := a.peek()
		for _, s := range stops {
			if t.text == s {
				return
			}
		}
		a.next()
	}
}

func methodNameKey(class, method string) string { return class + "::" + method }
func classUSR(name string) string                { return "c:@S@" + name }
func methodUSR(sc scope, name string) string {
	if sc.className != "" {
		return "c:@S@" + sc.className + "@F@" + name
	}
	return "c:@F@" + name
}
func varUSR(sc scope, name string) string {
	if sc.className != "" {
		return "c:@S@" + sc.className + "@FI@" + name
	}
	return "c:@" + name
}
