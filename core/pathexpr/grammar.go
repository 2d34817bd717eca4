package pathexpr

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// pathGrammar is the participle grammar for element path patterns.
// Examples: "p", "//tei:p", "/TEI/text//div[@type=chapter]", "tei:*", "*[text()='x']"
//
//nolint:govet // participle grammar tags are not standard struct tags
type pathGrammar struct {
	Steps []*stepGrammar `@@+`
}

//nolint:govet // participle grammar tags are not standard struct tags
type stepGrammar struct {
	Axis      string            `@("//" | "/")?`
	Prefix    *string           `( @Name ":" )?`
	Name      string            `@(Name | "*")`
	Predicate *predicateGrammar `( "[" @@ "]" )?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type predicateGrammar struct {
	Attr  *attrGrammar `( "@" @@`
	Text  bool         `| @("text" "(" ")") )`
	Op    string       `( @Op`
	Value *string      `  @(String | Name | Bare) )?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type attrGrammar struct {
	Prefix *string `( @Name ":" )?`
	Name   string  `@Name`
}

// pathLexer tokenizes path patterns. Order matters: "//" before "/", and
// Bare last so names and punctuation win.
var pathLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "DoubleSlash", Pattern: `//`},
	{Name: "Slash", Pattern: `/`},
	{Name: "Op", Pattern: `!=|=`},
	{Name: "String", Pattern: `"[^"]*"|'[^']*'`},
	{Name: "Name", Pattern: `[A-Za-z_][\w.\-]*`},
	{Name: "Punct", Pattern: `[\[\]@:*()]`},
	{Name: "Bare", Pattern: `[^\s\[\]"'=!/]+`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var pathParser = participle.MustBuild[pathGrammar](
	participle.Lexer(pathLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(4),
)
