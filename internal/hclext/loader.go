package hclext

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/specialistvlad/droidbuild/internal/buildctx"
	"github.com/specialistvlad/droidbuild/internal/ctxlog"
	"github.com/specialistvlad/droidbuild/internal/dag"
	"github.com/specialistvlad/droidbuild/internal/extcmd"
	"github.com/specialistvlad/droidbuild/internal/task"
)

// Definition is a task declared in an extension file.
type Definition struct {
	Name         string
	Description  string
	DependsOn    []string
	Before       []string
	AllowFailure bool
	// Source is the file and line of the task's command.
	Source string

	command hcl.Expression
	dir     hcl.Expression
	env     hcl.Expression
}

// LoadProject reads droidbuild.hcl from the project directory. A project
// without the file has no extensions.
func LoadProject(ctx context.Context, projectDir string) ([]*Definition, error) {
	path := filepath.Join(projectDir, FileName)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			ctxlog.FromContext(ctx).Debug("No extension file.", "path", path)
			return nil, nil
		}
		return nil, fmt.Errorf("error accessing %s: %w", path, err)
	}
	return Load(ctx, path)
}

// Load parses one extension file.
func Load(ctx context.Context, path string) ([]*Definition, error) {
	logger := ctxlog.FromContext(ctx)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse %s: %w", path, diags)
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode %s: %w", path, diags)
	}
	if diags := unexpectedContent(root.Remain); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode %s: %w", path, diags)
	}

	seen := make(map[string]string)
	defs := make([]*Definition, 0, len(root.Tasks))
	for _, b := range root.Tasks {
		// gohcl fills a missing expression attribute with a static null.
		if v, diags := b.Command.Value(nil); !diags.HasErrors() && v.IsNull() {
			return nil, fmt.Errorf("failed to decode %s: task %q: missing required argument \"command\"", path, b.Name)
		}

		r := b.Command.Range()
		src := fmt.Sprintf("%s:%d", r.Filename, r.Start.Line)
		if prev, dup := seen[b.Name]; dup {
			return nil, fmt.Errorf("%s: task %q already declared at %s", src, b.Name, prev)
		}
		seen[b.Name] = src

		if diags := checkReferences(b.Command, b.Dir, b.Env); diags.HasErrors() {
			return nil, fmt.Errorf("task %q: %w", b.Name, diags)
		}
		defs = append(defs, &Definition{
			Name:         b.Name,
			Description:  b.Description,
			DependsOn:    b.DependsOn,
			Before:       b.Before,
			AllowFailure: b.AllowFailure,
			Source:       src,
			command:      b.Command,
			dir:          b.Dir,
			env:          b.Env,
		})
	}

	logger.Debug("Extension file loaded.", "path", path, "tasks", len(defs))
	return defs, nil
}

// unexpectedContent reports top-level blocks and attributes other than task.
func unexpectedContent(body hcl.Body) hcl.Diagnostics {
	if body == nil {
		return nil
	}
	_, diags := body.Content(&hcl.BodySchema{})
	return diags
}

// Register adds the definitions to g after the built-in tasks. Dependencies
// may name built-in tasks or definitions declared earlier in the file.
// `before` entries then make the named tasks depend on the definition.
func Register(g *dag.Graph, defs []*Definition) error {
	for _, d := range defs {
		t := task.New(d.Name, d.Description, d.Action(), d.DependsOn...)
		if err := g.AddTask(t); err != nil {
			return fmt.Errorf("%s: %w", d.Source, err)
		}
	}
	for _, d := range defs {
		for _, b := range d.Before {
			if err := g.AddDependency(b, d.Name); err != nil {
				return fmt.Errorf("%s: before %q: %w", d.Source, b, err)
			}
		}
	}
	return nil
}

// Action returns the task body: the command is evaluated against the build
// context and run through its executor.
func (d *Definition) Action() task.Action {
	return task.Commands(func(bc *buildctx.Context) ([]extcmd.Command, error) {
		cmd, err := d.Command(bc)
		if err != nil {
			return nil, err
		}
		return []extcmd.Command{cmd}, nil
	})
}

// Command evaluates the definition's expressions against bc.
func (d *Definition) Command(bc *buildctx.Context) (extcmd.Command, error) {
	evalCtx := EvalContext(bc)

	var argv []string
	if err := decode(d.command, evalCtx, cty.List(cty.String), &argv); err != nil {
		return extcmd.Command{}, fmt.Errorf("task %q: command: %w", d.Name, err)
	}
	if len(argv) == 0 || argv[0] == "" {
		return extcmd.Command{}, fmt.Errorf("task %q: command must name an executable", d.Name)
	}

	cmd := extcmd.Command{
		Path:              argv[0],
		Args:              argv[1:],
		FailOnNonzeroExit: !d.AllowFailure,
	}
	if err := decode(d.dir, evalCtx, cty.String, &cmd.Dir); err != nil {
		return extcmd.Command{}, fmt.Errorf("task %q: dir: %w", d.Name, err)
	}

	var env map[string]string
	if err := decode(d.env, evalCtx, cty.Map(cty.String), &env); err != nil {
		return extcmd.Command{}, fmt.Errorf("task %q: env: %w", d.Name, err)
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cmd.Env = append(cmd.Env, k+"="+env[k])
	}
	return cmd, nil
}

// decode evaluates expr, converts it to ty and stores it in target. A
// missing optional attribute evaluates to null and leaves target untouched.
func decode(expr hcl.Expression, evalCtx *hcl.EvalContext, ty cty.Type, target any) error {
	if expr == nil {
		return nil
	}
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return diags
	}
	if val.IsNull() {
		return nil
	}
	val, err := convert.Convert(val, ty)
	if err != nil {
		return err
	}
	return gocty.FromCtyValue(val, target)
}
