// Package hclext loads project-specific tasks from droidbuild.hcl and hooks
// them into the built-in pipeline.
//
// A task block names an external command whose arguments are HCL
// expressions. They are evaluated when the task runs, against the build
// context of that run:
//
//	task "lint" {
//	  description = "Runs lint over the sources."
//	  depends_on  = ["compile"]
//	  before      = ["package"]
//	  command     = [tool.lint, "--quiet", project.dir]
//	}
//
// The variables project, tool and prop are available, as are the functions
// listed in Functions.
package hclext
