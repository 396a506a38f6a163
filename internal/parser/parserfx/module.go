package parserfx

import (
	"github.com/0x5457/repograph/internal/parser"
	"github.com/0x5457/repograph/internal/parser/goparser"
	"github.com/0x5457/repograph/internal/parser/pyparser"
	"github.com/0x5457/repograph/internal/parser/tsparser"
	"go.uber.org/fx"
)

// NewRegistry creates the registry of every supported language
func NewRegistry() *parser.Registry {
	r := parser.NewRegistry(
		pyparser.New(),
		tsparser.New(),
		tsparser.NewJavaScript(),
		goparser.New(),
	)
	r.Exclude(".d.ts", ".min.js")
	return r
}

// Module provides parser components
var Module = fx.Module("parser",
	fx.Provide(NewRegistry),
)
