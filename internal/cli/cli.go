package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/specialistvlad/droidbuild/internal/app"
	"github.com/specialistvlad/droidbuild/internal/extcmd"
	"github.com/specialistvlad/droidbuild/internal/runner"
	"github.com/specialistvlad/droidbuild/internal/task"
)

// Options wire the command to its environment.
type Options struct {
	Out io.Writer
	Err io.Writer
	// Executor replaces real SDK tool execution in tests.
	Executor extcmd.Executor
}

type flags struct {
	projectDir string
	sdkDir     string
	outDir     string
	device     string
	emulator   bool
	usb        bool
	defines    []string
	failFast   bool
	list       bool
	logLevel   string
	logFormat  string
	statusPort int
}

// NewRootCommand builds the droidbuild command.
func NewRootCommand(opts Options) *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:   "droidbuild [flags] TASK...",
		Short: "Build, package and install Android applications",
		Long: `droidbuild runs the Android SDK tools (aapt, javac, dx, apkbuilder,
jarsigner, zipalign, adb) in dependency order to turn a project into a
signed APK and install it on a device.

Tasks: process-resources, compile, proguard, package, assemble, install,
uninstall, plus any declared in droidbuild.hcl. Running a task runs all
of its dependencies first.`,
		Example: `  droidbuild assemble
  droidbuild --device emulator-5554 install
  droidbuild --list install
  droidbuild -D proguard.enabled=true assemble`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd, f, opts, args)
		},
	}
	cmd.SetOut(opts.Out)
	cmd.SetErr(opts.Err)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: UsageError, Message: err.Error(), Err: err}
	})

	fs := cmd.Flags()
	fs.StringVarP(&f.projectDir, "project-dir", "C", ".", "Directory holding AndroidManifest.xml and the property files.")
	fs.StringVar(&f.sdkDir, "sdk-dir", "", "Android SDK location (overrides sdk.dir).")
	fs.StringVar(&f.outDir, "out-dir", "", "Output directory (overrides out.dir).")
	fs.StringVarP(&f.device, "device", "s", "", "Serial of the target device for adb.")
	fs.BoolVarP(&f.emulator, "emulator", "e", false, "Target the only running emulator.")
	fs.BoolVarP(&f.usb, "usb", "d", false, "Target the only USB-connected device.")
	fs.StringArrayVarP(&f.defines, "define", "D", nil, "Set a property, e.g. -D key.alias=release. Repeatable.")
	fs.BoolVar(&f.failFast, "fail-fast", false, "Stop the whole build at the first failing task.")
	fs.BoolVar(&f.list, "list", false, "Print the tasks that would run, without running them.")
	fs.StringVar(&f.logLevel, "log-level", "info", "Logging level: 'debug', 'info', 'warn' or 'error'.")
	fs.StringVar(&f.logFormat, "log-format", "text", "Log output format: 'text' or 'json'.")
	fs.IntVar(&f.statusPort, "status-port", 0, "Port of the HTTP status server. 0 disables it.")

	return cmd
}

// Execute runs the command line and returns an *ExitError on failure.
func Execute(ctx context.Context, args []string, opts Options) error {
	cmd := NewRootCommand(opts)
	cmd.SetArgs(args)
	return asExitError(cmd.ExecuteContext(ctx))
}

func run(ctx context.Context, cmd *cobra.Command, f *flags, opts Options, targets []string) error {
	if len(targets) == 0 && !f.list {
		return cmd.Help()
	}

	overrides, err := f.overrides()
	if err != nil {
		return err
	}

	cfg, err := app.NewConfig(app.Config{
		ProjectDir: f.projectDir,
		Overrides:  overrides,
		FailFast:   f.failFast,
		LogFormat:  f.logFormat,
		LogLevel:   f.logLevel,
		StatusPort: f.statusPort,
		Executor:   opts.Executor,
	})
	if err != nil {
		return &ExitError{Code: UsageError, Message: err.Error(), Err: err}
	}

	a, err := app.New(ctx, opts.Err, cfg)
	if err != nil {
		return err
	}

	if f.list {
		return a.List(opts.Out, targets...)
	}

	report, err := a.Run(ctx, targets...)
	if report != nil {
		printSummary(opts.Out, report)
	}
	return err
}

// overrides turns flags into property overrides. Flags win over files and
// the environment.
func (f *flags) overrides() (map[string]string, error) {
	o := make(map[string]string)
	for _, d := range f.defines {
		key, value, ok := strings.Cut(d, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, &ExitError{Code: UsageError, Message: fmt.Sprintf("invalid --define %q: want key=value", d)}
		}
		o[strings.TrimSpace(key)] = value
	}
	set := func(key, value string) {
		if value != "" {
			o[key] = value
		}
	}
	set("sdk.dir", f.sdkDir)
	set("out.dir", f.outDir)
	set("adb.device", f.device)
	if f.emulator {
		o["adb.emulator"] = "true"
	}
	if f.usb {
		o["adb.usb"] = "true"
	}
	return o, nil
}

func printSummary(w io.Writer, report *runner.Report) {
	fmt.Fprintln(w)
	for _, o := range report.Outcomes {
		line := fmt.Sprintf("%-18s %-9s", o.Task, o.Status)
		if o.Status == task.Succeeded || o.Status == task.Failed {
			line += " " + o.Duration.Round(time.Millisecond).String()
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
	fmt.Fprintln(w)
	if report.Succeeded() {
		fmt.Fprintln(w, "BUILD SUCCESSFUL")
		return
	}
	fmt.Fprintln(w, "BUILD FAILED")
}
