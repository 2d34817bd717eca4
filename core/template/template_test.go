package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FocuswithJustin/standoff/core/errors"
)

// mapResolver resolves variables by their raw text with the "?." prefix
// stripped.
type mapResolver map[string]Value

func (m mapResolver) Resolve(v *Variable) (Value, bool, error) {
	key := v.Raw
	if v.Optional {
		key = key[2:]
	}
	if v.Kind == VarName && len(v.Fields) > 0 {
		root, ok := m[v.Name]
		if !ok {
			return None(), false, nil
		}
		out, ok := FieldPath(root, v.Fields)
		return out, ok, nil
	}
	val, ok := m[key]
	return val, ok, nil
}

func render(t *testing.T, src string, r Resolver) string {
	t.Helper()
	tpl, err := Compile(src)
	require.NoError(t, err)
	out, err := tpl.Render(r)
	require.NoError(t, err)
	return out
}

func TestLiteralBypassesEngine(t *testing.T) {
	tpl, err := Compile("plain {text} with braces")
	require.NoError(t, err)
	assert.True(t, tpl.IsLiteral())
	out, err := tpl.Render(nil)
	require.NoError(t, err)
	assert.Equal(t, "plain {text} with braces", out)
	assert.Empty(t, tpl.Variables())
}

func TestRenderVariables(t *testing.T) {
	r := mapResolver{
		"@xml:id":   String("p1"),
		"$title":    String("  The Title  "),
		"$.":        String("all text"),
		"localname": String("p"),
		"begin":     Int(6),
		"context":   Map(map[string]Value{"author": String("Anon")}),
	}

	tests := []struct {
		src  string
		want string
	}{
		{"{{ @xml:id }}", "p1"},
		{"id-{{@xml:id}}-x", "id-p1-x"},
		{"{{ $title | trim }}", "The Title"},
		{"{{ $. }}", "all text"},
		{"{{ localname | upper }}", "P"},
		{"{{ begin | plus: 1 }}", "7"},
		{"{{ context.author }}", "Anon"},
		{"{{ ?.@missing }}", ""},
		{"[{{ ?.@missing | upper }}]", "[]"},
		{"{{ 'lit' }}{{ \"x\" }}{{ 3 }}", "litx3"},
		{"{{ true }}", "true"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, render(t, tt.src, r))
		})
	}
}

func TestMissingVariable(t *testing.T) {
	tpl, err := Compile("{{ @missing }}")
	require.NoError(t, err)
	_, err = tpl.Render(mapResolver{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMissingVariable))

	var mv *errors.MissingVariableError
	require.True(t, errors.As(err, &mv))
	assert.Equal(t, "@missing", mv.Variable)
}

func TestBlocks(t *testing.T) {
	r := mapResolver{
		"@n":    String("3"),
		"@type": String("chapter"),
		"$w":    String("alpha beta  gamma"),
		"meta":  Map(map[string]Value{"b": Int(2), "a": Int(1)}),
	}

	tests := []struct {
		name string
		src  string
		want string
	}{
		{"if true", "{% if @n %}yes{% endif %}", "yes"},
		{"if missing optional", "{% if ?.@x %}yes{% else %}no{% endif %}", "no"},
		{"elif", "{% if @type | eq: 'verse' %}v{% elif @type | eq: 'chapter' %}c{% else %}?{% endif %}", "c"},
		{"else if", "{% if false %}a{% else if true %}b{% endif %}", "b"},
		{"not", "{% if not ?.@x %}absent{% endif %}", "absent"},
		{"for list", "{% for w in $w | tokenize %}<{{ w }}>{% endfor %}", "<alpha><beta><gamma>"},
		{"for index", "{% for i, w in $w | tokenize %}{{ i }}={{ w }};{% endfor %}", "0=alpha;1=beta;2=gamma;"},
		{"for map", "{% for k, v in meta %}{{ k }}{{ v }}{% endfor %}", "a1b2"},
		{"for range", "{% for i in @n | int | range %}{{ i }}{% endfor %}", "123"},
		{"with", "{% with @n | int | multiply: 2 as d %}{{ d }}{% endwith %}", "6"},
		{"nested", "{% for i in 2 | range %}{% if i | eq: 2 %}two{% endif %}{% endfor %}", "two"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, render(t, tt.src, r))
		})
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []string{
		"{{ @a ",
		"{% if @a %}never closed",
		"{% endif %}",
		"{{ @a | nosuchfilter }}",
		"{% for x in @a %}{% endif %}",
		"{{ @ }}",
		"{{ $a/@b/c }}",
	}
	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			_, err := Compile(src)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrTemplate), "got %v", err)
		})
	}
}

func TestRenderListFails(t *testing.T) {
	tpl, err := Compile("{{ $w | tokenize }}")
	require.NoError(t, err)
	_, err = tpl.Render(mapResolver{"$w": String("a b")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTemplate))
}

func TestEvalKeepsTypes(t *testing.T) {
	r := mapResolver{"@n": String("4"), "$w": String("a b")}

	v, err := MustCompile("{{ @n | int }}").Eval(r)
	require.NoError(t, err)
	assert.Equal(t, KindInt, v.Kind())
	assert.Equal(t, int64(4), v.IntValue())

	v, err = MustCompile("{{ $w | tokenize }}").Eval(r)
	require.NoError(t, err)
	assert.Equal(t, KindList, v.Kind())
	assert.Len(t, v.Items(), 2)

	v, err = MustCompile("n={{ @n }}").Eval(r)
	require.NoError(t, err)
	assert.Equal(t, String("n=4"), v)

	v, err = MustCompile("{{ ?.@gone }}").Eval(r)
	require.NoError(t, err)
	assert.True(t, v.IsNone())
}

func TestVariablesListed(t *testing.T) {
	tpl, err := Compile("{{ @tei:n }}{% if $tei:head@type %}{{ $../@xml:id }}{% endif %}{{ resource }}")
	require.NoError(t, err)

	var raws []string
	var prefixes []string
	for _, v := range tpl.Variables() {
		raws = append(raws, v.Raw)
		prefixes = append(prefixes, v.Prefixes()...)
	}
	assert.Equal(t, []string{"@tei:n", "$tei:head@type", "$../@xml:id", "resource"}, raws)
	assert.Equal(t, []string{"tei", "tei", "xml"}, prefixes)
}

func TestParseVariable(t *testing.T) {
	tests := []struct {
		raw       string
		kind      VarKind
		optional  bool
		steps     []Step
		attr      *QName
		name      string
		recursive bool
	}{
		{raw: "@n", kind: VarXML, attr: &QName{Local: "n"}},
		{raw: "?.@xml:id", kind: VarXML, optional: true, attr: &QName{Prefix: "xml", Local: "id"}},
		{raw: "$.", kind: VarXML, steps: []Step{{Kind: StepSelf}}, recursive: true},
		{raw: "$..", kind: VarXML, steps: []Step{{Kind: StepParent}}, recursive: true},
		{raw: "$../@n", kind: VarXML, steps: []Step{{Kind: StepParent}}, attr: &QName{Local: "n"}, recursive: true},
		{raw: "$head", kind: VarXML, steps: []Step{{Kind: StepChild, Name: QName{Local: "head"}}}},
		{raw: "$a/b@c", kind: VarXML, steps: []Step{{Kind: StepChild, Name: QName{Local: "a"}}, {Kind: StepChild, Name: QName{Local: "b"}}}, attr: &QName{Local: "c"}},
		{raw: "context.title", kind: VarName, name: "context"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			v, err := ParseVariable(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, v.Kind)
			assert.Equal(t, tt.optional, v.Optional)
			assert.Equal(t, tt.steps, v.Steps)
			assert.Equal(t, tt.attr, v.Attr)
			assert.Equal(t, tt.name, v.Name)
			if v.Kind == VarXML && v.Attr == nil {
				assert.Equal(t, tt.recursive, v.Recursive())
			}
		})
	}

	for _, bad := range []string{"", "?.", "@", "$", "$@a", "$a@b/c", "a..b", "@:x"} {
		_, err := ParseVariable(bad)
		assert.Error(t, err, bad)
	}
}
