package template

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// exprGrammar is an output or condition expression:
//
//	[not] operand ( | filter [: arg, ...] )*
//
//nolint:govet // participle grammar tags are not standard struct tags
type exprGrammar struct {
	Not     bool             `@"not"?`
	Operand *operandGrammar  `@@`
	Filters []*filterGrammar `( "|" @@ )*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type operandGrammar struct {
	Str   *string `  @String`
	Int   *int64  `| @Int`
	Var   *string `| @Var`
	Ident *string `| @Ident`
}

//nolint:govet // participle grammar tags are not standard struct tags
type filterGrammar struct {
	Name string            `@Ident`
	Args []*operandGrammar `( ":" @@ ( "," @@ )* )?`
}

// tagGrammar is the content of a {% ... %} block tag.
//
//nolint:govet // participle grammar tags are not standard struct tags
type tagGrammar struct {
	If      *exprGrammar `  "if" @@`
	ElseIf  *exprGrammar `| ( "elif" | "else" "if" ) @@`
	Else    bool         `| @"else"`
	EndIf   bool         `| @"endif"`
	For     *forGrammar  `| "for" @@`
	EndFor  bool         `| @"endfor"`
	With    *withGrammar `| "with" @@`
	EndWith bool         `| @"endwith"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type forGrammar struct {
	First  string       `@Ident`
	Second *string      `( "," @Ident )?`
	In     *exprGrammar `"in" @@`
}

//nolint:govet // participle grammar tags are not standard struct tags
type withGrammar struct {
	Expr *exprGrammar `@@`
	As   string       `"as" @Ident`
}

// exprLexer tokenizes expressions and tag contents. Var covers document
// variables ($child, $../@n, @xml:id) with an optional "?." prefix.
var exprLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "String", Pattern: `"(\\.|[^"\\])*"|'(\\.|[^'\\])*'`},
	{Name: "Int", Pattern: `-?[0-9]+`},
	{Name: "Var", Pattern: `(\?\.)?[@$][\w.:/@\-]*`},
	{Name: "Ident", Pattern: `(\?\.)?[A-Za-z_]\w*(\.\w+)*`},
	{Name: "Punct", Pattern: `[|:,]`},
})

var (
	exprParser = participle.MustBuild[exprGrammar](
		participle.Lexer(exprLexer),
		participle.Elide("Whitespace"),
		participle.Unquote("String"),
		participle.UseLookahead(2),
	)
	tagParser = participle.MustBuild[tagGrammar](
		participle.Lexer(exprLexer),
		participle.Elide("Whitespace"),
		participle.Unquote("String"),
		participle.UseLookahead(3),
	)
)
