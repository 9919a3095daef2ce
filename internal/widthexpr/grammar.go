package widthexpr

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// boundLexer tokenizes the constant expressions found inside [msb:lsb].
var boundLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
	// sized or unsized based literals: 8'd7, 'h1f, 4'b1010
	{Name: "Based", Pattern: `[0-9]*'[sS]?[dDhHbBoO][0-9a-fA-F_]+`},
	{Name: "Int", Pattern: `[0-9][0-9_]*`},
	{Name: "SysFunc", Pattern: `\$[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Punct", Pattern: `<<|>>|[-+*/%()]`},
})

// Expr is a shift-level expression: Sum (("<<" | ">>") Sum)*.
type Expr struct {
	Head *Sum       `@@`
	Tail []*ShiftOp `@@*`
}

type ShiftOp struct {
	Op  string `@("<<" | ">>")`
	Sum *Sum   `@@`
}

type Sum struct {
	Head *Term    `@@`
	Tail []*SumOp `@@*`
}

type SumOp struct {
	Op   string `@("+" | "-")`
	Term *Term  `@@`
}

type Term struct {
	Head *Factor  `@@`
	Tail []*MulOp `@@*`
}

type MulOp struct {
	Op     string  `@("*" | "/" | "%")`
	Factor *Factor `@@`
}

type Factor struct {
	Neg    *Factor `  "-" @@`
	Call   *Call   `| @@`
	Based  *string `| @Based`
	Number *string `| @Int`
	Ident  *string `| @Ident`
	Sub    *Expr   `| "(" @@ ")"`
}

// Call is a system function such as $clog2(N).
type Call struct {
	Name string `@SysFunc`
	Arg  *Expr  `"(" @@ ")"`
}

var parser = participle.MustBuild[Expr](
	participle.Lexer(boundLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)
