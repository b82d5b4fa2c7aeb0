package hclext

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"github.com/specialistvlad/droidbuild/internal/buildctx"
)

// Functions are callable from extension expressions.
var Functions = map[string]function.Function{
	"concat": stdlib.ConcatFunc,
	"format": stdlib.FormatFunc,
	"join":   stdlib.JoinFunc,
	"lower":  stdlib.LowerFunc,
	"split":  stdlib.SplitFunc,
	"upper":  stdlib.UpperFunc,
}

var variables = map[string]bool{"project": true, "tool": true, "prop": true}

// EvalContext exposes the build context to extension expressions.
func EvalContext(bc *buildctx.Context) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"project": cty.ObjectVal(map[string]cty.Value{
				"dir":      cty.StringVal(bc.ProjectDir),
				"sdk_dir":  cty.StringVal(bc.SDKDir),
				"out_dir":  cty.StringVal(bc.OutDir),
				"gen_dir":  cty.StringVal(bc.GenDir),
				"src_dir":  cty.StringVal(bc.SourceDir),
				"package":  cty.StringVal(bc.PackageName),
				"has_code": cty.BoolVal(bc.HasCode),
				"apk":      cty.StringVal(bc.APK()),
			}),
			"tool": stringMap(bc.Tools()),
			"prop": stringMap(bc.Properties()),
		},
		Functions: Functions,
	}
}

func stringMap(m map[string]string) cty.Value {
	if len(m) == 0 {
		return cty.MapValEmpty(cty.String)
	}
	vals := make(map[string]cty.Value, len(m))
	for k, v := range m {
		vals[k] = cty.StringVal(v)
	}
	return cty.MapVal(vals)
}

// checkReferences rejects variables and functions an expression could never
// resolve, so that typos fail at load time rather than mid-build.
func checkReferences(exprs ...hcl.Expression) hcl.Diagnostics {
	var diags hcl.Diagnostics
	for _, expr := range exprs {
		if expr == nil {
			continue
		}
		for _, tr := range expr.Variables() {
			if !variables[tr.RootName()] {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Unknown variable",
					Detail:   fmt.Sprintf("%q is not available; use project, tool or prop.", traversalString(tr)),
					Subject:  tr.SourceRange().Ptr(),
				})
			}
		}
		if syntaxExpr, ok := expr.(hclsyntax.Expression); ok {
			for _, name := range functionCalls(syntaxExpr) {
				if _, ok := Functions[name]; !ok {
					diags = append(diags, &hcl.Diagnostic{
						Severity: hcl.DiagError,
						Summary:  "Unknown function",
						Detail:   fmt.Sprintf("There is no function named %q.", name),
						Subject:  syntaxExpr.Range().Ptr(),
					})
				}
			}
		}
	}
	return diags
}

// functionCalls returns the sorted names of functions called in expr.
func functionCalls(expr hclsyntax.Expression) []string {
	seen := make(map[string]struct{})
	_ = hclsyntax.VisitAll(expr, func(n hclsyntax.Node) hcl.Diagnostics {
		if call, ok := n.(*hclsyntax.FunctionCallExpr); ok {
			seen[call.Name] = struct{}{}
		}
		return nil
	})
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func traversalString(t hcl.Traversal) string {
	return string(hclwrite.TokensForTraversal(t).Bytes())
}
