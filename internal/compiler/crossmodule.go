package compiler

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/cardity-org/cardity-core/internal/ast"
	"github.com/cardity-org/cardity-core/internal/ir"
	"github.com/cardity-org/cardity-core/internal/logic"
)

// Unit is one compiled document and the file it came from.
type Unit struct {
	Path string
	Doc  *ir.Document
}

// Violation is one failed cross-module check.
type Violation struct {
	Path    string `json:"path"`
	Method  string `json:"method"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s:%s: %s", v.Path, v.Method, v.Message)
}

// Signature is the callable shape of one method.
type Signature struct {
	ParamCount int
	ParamTypes []string
}

// Registry maps module name to method name to signature. It is read-only
// once built.
type Registry map[string]map[string]Signature

// BuildRegistry indexes every unit by its protocol name. A later unit with
// the same name replaces an earlier one.
func BuildRegistry(units []Unit) Registry {
	reg := make(Registry, len(units))
	for _, u := range units {
		methods := make(map[string]Signature, len(u.Doc.CPL.Methods))
		for name, m := range u.Doc.CPL.Methods {
			sig := Signature{ParamCount: len(m.Params)}
			if len(m.ParamTypes) == len(m.Params) {
				sig.ParamTypes = m.ParamTypes
			}
			methods[name] = sig
		}
		reg[u.Doc.Protocol] = methods
	}
	return reg
}

// CallSite is one alias.method(args) occurrence in a method body.
type CallSite struct {
	Alias  string
	Method string
	Args   []string
	// Kinds holds the inferred type of each argument, "" when unknown.
	Kinds []string
}

// CheckCalls verifies every cross-module call in every unit against the
// registry built from the same units. Every violation is returned; none
// means each call resolves with matching arity. Argument type mismatches
// are best effort and come back as warnings.
func CheckCalls(units []Unit) (violations, warnings []Violation) {
	reg := BuildRegistry(units)
	for _, u := range units {
		v, w := checkUnit(reg, u)
		violations = append(violations, v...)
		warnings = append(warnings, w...)
	}
	return violations, warnings
}

func checkUnit(reg Registry, u Unit) (out, warnings []Violation) {
	aliases := make(map[string]string, len(u.Doc.CPL.Using))
	for _, us := range u.Doc.CPL.Using {
		alias := us.Alias
		if alias == "" {
			alias = us.Module
		}
		aliases[alias] = us.Module
	}
	imported := make(map[string]bool, len(u.Doc.CPL.Imports)+1)
	for _, imp := range u.Doc.CPL.Imports {
		imported[imp] = true
	}
	imported[u.Doc.Protocol] = true

	names := make([]string, 0, len(u.Doc.CPL.Methods))
	for name := range u.Doc.CPL.Methods {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		m := u.Doc.CPL.Methods[name]
		local := localParamTypes(m)
		report := func(format string, args ...any) {
			out = append(out, Violation{Path: u.Path, Method: name, Message: fmt.Sprintf(format, args...)})
		}
		for _, text := range m.Logic {
			for _, call := range FindCalls(text, local) {
				module, ok := aliases[call.Alias]
				if !ok {
					if !imported[call.Alias] {
						report("Unresolved alias '%s' (not a using alias, import or the unit itself)", call.Alias)
						continue
					}
					module = call.Alias
				}
				methods, ok := reg[module]
				if !ok {
					report("Unknown module alias '%s' -> '%s'", call.Alias, module)
					continue
				}
				sig, ok := methods[call.Method]
				if !ok {
					report("Unknown method '%s.%s'", module, call.Method)
					continue
				}
				if sig.ParamCount != len(call.Args) {
					report("Argument count mismatch for '%s.%s' (expected %d, got %d)",
						module, call.Method, sig.ParamCount, len(call.Args))
					continue
				}
				for i, want := range sig.ParamTypes {
					want = NormalizeType(want)
					have := NormalizeType(call.Kinds[i])
					if want != "" && have != "" && want != have {
						warnings = append(warnings, Violation{Path: u.Path, Method: name, Message: fmt.Sprintf("Type mismatch for '%s.%s' arg%d (expected %s, got %s)",
							module, call.Method, i+1, want, have)})
					}
				}
			}
		}
	}
	return out, warnings
}

func localParamTypes(m ir.Method) map[string]string {
	types := make(map[string]string, len(m.Params))
	for i, p := range m.Params {
		if i < len(m.ParamTypes) {
			types[p] = m.ParamTypes[i]
		}
	}
	return types
}

// FindCalls extracts the cross-module calls of one statement. Statements
// that parse are inspected structurally; anything else falls back to a
// textual scan so that a malformed body still gets its calls checked.
func FindCalls(text string, local map[string]string) []CallSite {
	stmt, err := logic.ParseStatement(text)
	if err != nil {
		return scanCalls(text, local)
	}
	var calls []*ast.Call
	walkStatement(stmt, func(e ast.Expr) {
		if c, ok := e.(*ast.Call); ok {
			calls = append(calls, c)
		}
	})
	out := make([]CallSite, 0, len(calls))
	for _, c := range calls {
		site := CallSite{Alias: c.Alias, Method: c.Method}
		for _, a := range c.Args {
			site.Args = append(site.Args, a.String())
			site.Kinds = append(site.Kinds, exprKind(a, local))
		}
		out = append(out, site)
	}
	return out
}

// NormalizeType folds type spellings onto the declared type names.
func NormalizeType(t string) string {
	switch s := strings.ToLower(strings.TrimSpace(t)); s {
	case "number", "integer":
		return ast.TypeInt
	case "boolean":
		return ast.TypeBool
	default:
		return s
	}
}

func exprKind(e ast.Expr, local map[string]string) string {
	switch e := e.(type) {
	case *ast.Literal:
		switch {
		case e.Quoted:
			return ast.TypeString
		case intLiteral.MatchString(e.Value):
			return ast.TypeInt
		case e.Value == "true" || e.Value == "false":
			return ast.TypeBool
		}
	case *ast.CtxRef:
		if e.Name == "sender" {
			return ast.TypeAddress
		}
	case *ast.ParamRef:
		return NormalizeType(local[e.Name])
	}
	return ""
}

var (
	callPattern  = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*\.\s*([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	paramPattern = regexp.MustCompile(`^params\s*\.\s*([A-Za-z_][A-Za-z0-9_]*)$`)
	ctxSender    = regexp.MustCompile(`^ctx\s*\.\s*sender$`)
)

// scanCalls is the textual fallback of FindCalls. Matches inside string
// literals are skipped and nested parentheses are respected when
// splitting arguments.
func scanCalls(text string, local map[string]string) []CallSite {
	var out []CallSite
	for _, loc := range callPattern.FindAllStringSubmatchIndex(text, -1) {
		if insideString(text, loc[0]) {
			continue
		}
		alias := text[loc[2]:loc[3]]
		if alias == "state" || alias == "params" || alias == "ctx" {
			continue
		}
		site := CallSite{Alias: alias, Method: text[loc[4]:loc[5]]}
		site.Args = splitArgs(argText(text, loc[1]-1))
		for _, a := range site.Args {
			site.Kinds = append(site.Kinds, textKind(a, local))
		}
		out = append(out, site)
	}
	return out
}

func insideString(text string, at int) bool {
	var quote byte
	for i := 0; i < at; i++ {
		c := text[i]
		switch {
		case quote != 0 && c == '\\':
			i++
		case quote != 0 && c == quote:
			quote = 0
		case quote == 0 && (c == '"' || c == '\''):
			quote = c
		}
	}
	return quote != 0
}

// argText returns the text between the parenthesis at open and its match,
// or the rest of the text when unbalanced.
func argText(text string, open int) string {
	depth := 0
	var quote byte
	for i := open; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return text[open+1 : i]
			}
		}
	}
	return text[open+1:]
}

// splitArgs splits on top-level commas. Empty pieces are dropped.
func splitArgs(s string) []string {
	var args []string
	var cur strings.Builder
	depth := 0
	var quote byte
	flush := func() {
		if a := strings.TrimSpace(cur.String()); a != "" {
			args = append(args, a)
		}
		cur.Reset()
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == ',' && depth == 0:
			flush()
			continue
		}
		cur.WriteByte(c)
	}
	flush()
	return args
}

func textKind(arg string, local map[string]string) string {
	a := strings.TrimSpace(arg)
	switch {
	case len(a) >= 2 && (a[0] == '"' && a[len(a)-1] == '"' || a[0] == '\'' && a[len(a)-1] == '\''):
		return ast.TypeString
	case intLiteral.MatchString(a):
		return ast.TypeInt
	case a == "true" || a == "false":
		return ast.TypeBool
	case ctxSender.MatchString(a):
		return ast.TypeAddress
	}
	if m := paramPattern.FindStringSubmatch(a); m != nil {
		return NormalizeType(local[m[1]])
	}
	return ""
}
