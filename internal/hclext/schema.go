package hclext

import (
	"github.com/hashicorp/hcl/v2"
)

// FileName is the extension file looked up in the project directory.
const FileName = "droidbuild.hcl"

// fileRoot decodes the top level of an extension file.
type fileRoot struct {
	Tasks  []*taskBlock `hcl:"task,block"`
	Remain hcl.Body     `hcl:",remain"`
}

// taskBlock is a `task "name" { ... }` block.
type taskBlock struct {
	Name         string         `hcl:"name,label"`
	Description  string         `hcl:"description,optional"`
	DependsOn    []string       `hcl:"depends_on,optional"`
	Before       []string       `hcl:"before,optional"`
	AllowFailure bool           `hcl:"allow_failure,optional"`
	Command      hcl.Expression `hcl:"command"`
	Dir          hcl.Expression `hcl:"dir,optional"`
	Env          hcl.Expression `hcl:"env,optional"`
}
