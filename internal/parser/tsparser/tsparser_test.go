package tsparser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x5457/repograph/internal/models"
	"github.com/0x5457/repograph/internal/parser"
	p "github.com/0x5457/repograph/internal/parser/tsparser"
)

func byName(syms []models.SymbolRecord) map[string]models.SymbolRecord {
	out := map[string]models.SymbolRecord{}
	for _, s := range syms {
		out[s.Name] = s
	}
	return out
}

const tsSource = `import { readFile, writeFile as wf } from "fs/promises";
import * as path from "path";
import Client from "./client";
export { helper } from "./helper";

// Loads a config file.
export async function load(name: string, retries = 3): Promise<Config> {
  const raw = await readFile(path.join(dir, name));
  return parse(raw);
}

export const double = (x: number): number => x * 2;

@Injectable()
export class Service extends Base {
  private client = new Client();

  handler = (evt: Event) => {
    this.log(evt);
  };

  @Get("/items")
  async list(limit?: number): Promise<Item[]> {
    const items = await this.client.fetch(limit);
    return items.map((i) => format(i));
  }
}

interface Config { name: string }
`

func TestTypeScriptPrecise(t *testing.T) {
	res := parser.Extract(p.New(), "src/service.ts", []byte(tsSource))
	require.Equal(t, models.ParsePrecise, res.Mode)
	assert.Equal(t, "typescript", res.File.Language)

	syms := byName(res.Symbols)

	load := syms["load"]
	assert.Equal(t, "src/service.ts:load", load.QualifiedName)
	assert.Equal(t, models.SymbolFunction, load.Kind)
	assert.Equal(t, "Loads a config file.", load.Docstring)
	assert.Equal(t, "Promise<Config>", load.Signature.Returns)
	require.Len(t, load.Signature.Params, 2)
	assert.Equal(t, models.Param{Name: "name", Type: "string"}, load.Signature.Params[0])
	assert.Equal(t, models.Param{Name: "retries", Default: "3"}, load.Signature.Params[1])
	assert.Equal(t, []string{"readFile", "path.join", "parse"}, load.Calls)

	double := syms["double"]
	assert.Equal(t, models.SymbolFunction, double.Kind)
	assert.Equal(t, "number", double.Signature.Returns)

	svc := syms["Service"]
	assert.Equal(t, models.SymbolClass, svc.Kind)
	assert.Equal(t, []string{"Injectable()"}, svc.Decorators)

	list := syms["Service.list"]
	assert.Equal(t, models.SymbolMethod, list.Kind)
	assert.Equal(t, "Service", list.Class)
	assert.Equal(t, []string{`Get("/items")`}, list.Decorators)
	assert.Equal(t, []string{"this.client.fetch", "items.map", "format"}, list.Calls)

	handler := syms["Service.handler"]
	assert.Equal(t, models.SymbolMethod, handler.Kind)
	assert.Equal(t, []string{"this.log"}, handler.Calls)

	assert.NotContains(t, syms, "Config")

	require.Len(t, res.File.Imports, 4)
	assert.Equal(t, models.Import{Module: "fs/promises", Names: []string{"readFile", "writeFile"}}, res.File.Imports[0])
	assert.Equal(t, models.Import{Module: "path", Alias: "path"}, res.File.Imports[1])
	assert.Equal(t, models.Import{Module: "./client", Names: []string{"Client"}}, res.File.Imports[2])
	assert.Equal(t, models.Import{Module: "./helper"}, res.File.Imports[3])
}

func TestTSXUsesTSXGrammar(t *testing.T) {
	src := `export function Component(props: Props) { return <div>{render(props)}</div> }`
	res := parser.Extract(p.New(), "ui/view.tsx", []byte(src))
	require.Equal(t, models.ParsePrecise, res.Mode)
	require.Len(t, res.Symbols, 1)
	assert.Equal(t, []string{"render"}, res.Symbols[0].Calls)
}

func TestJavaScriptRequireAndNew(t *testing.T) {
	src := `const fs = require("fs");

function build(opts) {
  const b = new Builder(opts);
  return b.run();
}

module.exports = { build };
`
	res := parser.Extract(p.NewJavaScript(), "lib/build.js", []byte(src))
	require.Equal(t, models.ParsePrecise, res.Mode)
	assert.Equal(t, "javascript", res.File.Language)
	assert.Equal(t, []models.Import{{Module: "fs"}}, res.File.Imports)

	syms := byName(res.Symbols)
	assert.Equal(t, []string{"Builder", "b.run"}, syms["build"].Calls)
}

func TestStructuralHashTS(t *testing.T) {
	src := `function alpha(x) { return x + 1 }
function beta(y) { return y + 1 }
function gamma(x) { return x.size + 1 }
function delta(x) { return x.length + 1 }
`
	res := parser.Extract(p.NewJavaScript(), "h.js", []byte(src))
	syms := byName(res.Symbols)
	assert.Equal(t, syms["alpha"].StructuralHash, syms["beta"].StructuralHash)
	assert.NotEqual(t, syms["gamma"].StructuralHash, syms["delta"].StructuralHash)
}

func TestTypeScriptFallback(t *testing.T) {
	src := `import { api } from "./api";

export function fetchAll(limit: number): Item[] {
  return api.get(limit)
}

export class Repo {
  save(item: Item) {
    store.put(item);
  }
}

const broken = (;
`
	res := parser.Extract(p.New(), "src/repo.ts", []byte(src))
	require.Equal(t, models.ParseFallback, res.Mode)
	assert.Equal(t, []models.Import{{Module: "./api", Names: []string{"api"}}}, res.File.Imports)

	syms := byName(res.Symbols)
	fetch := syms["fetchAll"]
	assert.Equal(t, 3, fetch.Line)
	assert.Equal(t, 5, fetch.EndLine)
	assert.Equal(t, []string{"api.get"}, fetch.Calls)
	assert.Equal(t, "Item[]", fetch.Signature.Returns)
	require.Len(t, fetch.Signature.Params, 1)
	assert.Equal(t, models.Param{Name: "limit", Type: "number"}, fetch.Signature.Params[0])

	save := syms["Repo.save"]
	assert.Equal(t, models.SymbolMethod, save.Kind)
	assert.Equal(t, "Repo", save.Class)
	assert.Equal(t, 8, save.Line)
	assert.Equal(t, 10, save.EndLine)
	assert.Equal(t, []string{"store.put"}, save.Calls)
	assert.Equal(t, 11, syms["Repo"].EndLine)
}

func TestDeclarationFilesExcluded(t *testing.T) {
	r := parser.NewRegistry(p.New(), p.NewJavaScript())
	r.Exclude(".d.ts", ".min.js")
	assert.True(t, r.Supports("a/b.ts"))
	assert.True(t, r.Supports("a/b.mjs"))
	assert.False(t, r.Supports("a/b.d.ts"))
	assert.False(t, r.Supports("a/vendor.min.js"))
	assert.Equal(t, []string{"javascript", "typescript"}, r.Languages())
}

func TestDocCommentChangesBodyHash(t *testing.T) {
	src := func(doc string) []byte {
		return []byte("// " + doc + "\nexport function add(a: number, b: number): number {\n  return a + b;\n}\n\n// " +
			doc + "\nexport class Box {\n  size = 1;\n}\n")
	}
	before := byName(parser.Extract(p.New(), "a.ts", src("Adds numbers.")).Symbols)
	after := byName(parser.Extract(p.New(), "a.ts", src("Returns the sum.")).Symbols)
	for _, name := range []string{"add", "Box"} {
		require.Contains(t, before, name)
		require.Contains(t, after, name)
		assert.NotEqual(t, before[name].BodyHash, after[name].BodyHash, name)
	}
}
