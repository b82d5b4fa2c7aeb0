package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/specialistvlad/droidbuild/internal/buildctx"
	"github.com/specialistvlad/droidbuild/internal/ctxlog"
	"github.com/specialistvlad/droidbuild/internal/dag"
	"github.com/specialistvlad/droidbuild/internal/extcmd"
	"github.com/specialistvlad/droidbuild/internal/fsutil"
	"github.com/specialistvlad/droidbuild/internal/task"
)

// Task names.
const (
	ProcessResources = "process-resources"
	Compile          = "compile"
	Proguard         = "proguard"
	Package          = "package"
	Assemble         = "assemble"
	Install          = "install"
	Uninstall        = "uninstall"
)

// Options select the optional edges of the pipeline.
type Options struct {
	// Proguard makes package consume the proguard output.
	Proguard bool
}

// New returns a graph holding the built-in tasks.
func New(opts Options) (*dag.Graph, error) {
	g := dag.New()
	if err := Register(g, opts); err != nil {
		return nil, err
	}
	return g, nil
}

// Register adds the built-in tasks to g, dependencies first.
func Register(g *dag.Graph, opts Options) error {
	packageDeps := []string{Compile}
	if opts.Proguard {
		packageDeps = append(packageDeps, Proguard)
	}

	tasks := []*task.Task{
		task.New(ProcessResources, "Generates R.java from the resources and manifest.",
			task.Func(processResources)),
		task.New(Compile, "Compiles the Java sources into classes.jar.",
			task.Func(compile), ProcessResources),
		task.New(Proguard, "Shrinks and obfuscates classes.jar with ProGuard.",
			task.Func(proguard), Compile),
		task.New(Package, "Builds, signs and aligns the APK.",
			task.Func(packageAPK), packageDeps...),
		task.New(Assemble, "Produces the final APK.",
			task.Func(assemble), Package),
		task.New(Install, "Installs the APK on a device.",
			task.Func(install), Assemble),
		task.New(Uninstall, "Removes the application from a device.",
			task.Func(uninstall)),
	}
	for _, t := range tasks {
		if err := g.AddTask(t); err != nil {
			return fmt.Errorf("registering %s: %w", t.Name, err)
		}
	}
	return nil
}

// run executes cmds in order through the context's executor.
func run(ctx context.Context, bc *buildctx.Context, cmds ...extcmd.Command) error {
	return task.Commands(func(*buildctx.Context) ([]extcmd.Command, error) {
		return cmds, nil
	}).Execute(ctx, bc)
}

func command(path string, args ...string) extcmd.Command {
	return extcmd.Command{Path: path, Args: args, FailOnNonzeroExit: true}
}

func mkdirs(dirs ...string) error {
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", d, err)
		}
	}
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func processResources(ctx context.Context, bc *buildctx.Context) error {
	if err := mkdirs(bc.GenDir); err != nil {
		return err
	}
	return run(ctx, bc, command(bc.Tool("aapt"),
		"package", "-f", "-m",
		"-J", bc.GenDir,
		"-M", bc.ManifestPath,
		"-S", bc.ResourceDir,
		"-I", bc.AndroidJar,
	))
}

func compile(ctx context.Context, bc *buildctx.Context) error {
	logger := ctxlog.FromContext(ctx)

	sources, err := fsutil.FindSources(".java", bc.SourceDir, bc.GenDir)
	if err != nil {
		return fmt.Errorf("listing sources: %w", err)
	}
	if len(sources) == 0 {
		// package dexes classes.jar, so an application with code needs one.
		if bc.HasCode {
			return fmt.Errorf("no Java sources under %s or %s; declare android:hasCode=\"false\" for a resource-only package", bc.SourceDir, bc.GenDir)
		}
		logger.Info("No Java sources found, nothing to compile.", "dir", bc.SourceDir)
		return nil
	}
	if err := mkdirs(bc.ClassesDir()); err != nil {
		return err
	}

	javac := append([]string{
		"-d", bc.ClassesDir(),
		"-classpath", bc.AndroidJar,
		"-sourcepath", strings.Join([]string{bc.SourceDir, bc.GenDir}, string(os.PathListSeparator)),
		"-encoding", "UTF-8",
	}, sources...)

	logger.Debug("Compiling sources.", "files", len(sources))
	return run(ctx, bc,
		command(bc.Tool("javac"), javac...),
		command(bc.Tool("jar"), "cf", bc.ClassesJar(), "-C", bc.ClassesDir(), "."),
	)
}

func proguard(ctx context.Context, bc *buildctx.Context) error {
	if !bc.Proguard.Enabled {
		ctxlog.FromContext(ctx).Debug("Proguard disabled, nothing to do.")
		return nil
	}
	args := []string{
		"-jar", bc.Proguard.Jar,
		"-injars", bc.ClassesJar(),
		"-outjars", bc.ProguardJar(),
		"-libraryjars", bc.AndroidJar,
	}
	if fsutil.Exists(bc.Proguard.Config) {
		args = append(args, "-include", bc.Proguard.Config)
	}
	return run(ctx, bc, command(bc.Tool("java"), args...))
}

func packageAPK(ctx context.Context, bc *buildctx.Context) error {
	logger := ctxlog.FromContext(ctx)

	if err := mkdirs(bc.OutDir); err != nil {
		return err
	}

	var cmds []extcmd.Command
	if bc.HasCode {
		cmds = append(cmds, command(bc.Tool("dx"), "--dex", "--output="+bc.DexFile(), bc.DexInput()))
	} else {
		logger.Info("Manifest declares hasCode=false, skipping dex.")
	}

	aapt := []string{"package", "-f", "-M", bc.ManifestPath, "-S", bc.ResourceDir}
	if isDir(bc.AssetsDir) {
		aapt = append(aapt, "-A", bc.AssetsDir)
	}
	aapt = append(aapt, "-I", bc.AndroidJar, "-F", bc.ResourcesPackage())
	cmds = append(cmds, command(bc.Tool("aapt"), aapt...))

	builder := []string{bc.UnsignedAPK(), "-u", "-z", bc.ResourcesPackage()}
	if bc.HasCode {
		builder = append(builder, "-f", bc.DexFile())
	}
	if isDir(bc.SourceDir) {
		builder = append(builder, "-rf", bc.SourceDir)
	}
	cmds = append(cmds, command(bc.Tool("apkbuilder"), builder...))

	if bc.Signing.Debug {
		logger.Info("Signing with the debug keystore.", "keystore", bc.Signing.KeyStore)
	}
	cmds = append(cmds,
		command(bc.Tool("jarsigner"),
			"-keystore", bc.Signing.KeyStore,
			"-storepass", bc.Signing.StorePassword,
			"-keypass", bc.Signing.KeyPassword,
			bc.UnsignedAPK(), bc.Signing.KeyAlias,
		),
		command(bc.Tool("zipalign"), "-f", "4", bc.UnsignedAPK(), bc.APK()),
	)
	return run(ctx, bc, cmds...)
}

func assemble(ctx context.Context, bc *buildctx.Context) error {
	if !fsutil.Exists(bc.APK()) {
		return fmt.Errorf("package output %s does not exist", bc.APK())
	}
	ctxlog.FromContext(ctx).Info("APK ready.", "apk", bc.APK())
	return nil
}

func install(ctx context.Context, bc *buildctx.Context) error {
	apk := bc.APK()
	args := append(append([]string(nil), bc.DeviceArgs...), "install", "-r", apk)
	return adb(ctx, bc, args...)
}

func uninstall(ctx context.Context, bc *buildctx.Context) error {
	pkg, err := bc.RequirePackageName()
	if err != nil {
		return err
	}
	args := append(append([]string(nil), bc.DeviceArgs...), "uninstall", pkg)
	return adb(ctx, bc, args...)
}

// adb runs the device bridge. Older adb versions exit 0 and report
// "Failure [REASON]" on stdout, which is treated as a failed command.
func adb(ctx context.Context, bc *buildctx.Context, args ...string) error {
	cmd := command(bc.Tool("adb"), args...)
	res, err := task.Run(ctx, bc, cmd)
	if err != nil {
		return err
	}
	if out := string(res.Stdout); strings.Contains(out, "Failure") {
		return &extcmd.Error{
			Command:  cmd.String(),
			ExitCode: 1,
			Stderr:   []byte(strings.TrimSpace(out)),
		}
	}
	return nil
}

// Describe returns "name: description" lines for the tasks of g, in
// registration order.
func Describe(g *dag.Graph) []string {
	var lines []string
	for _, t := range g.Tasks() {
		lines = append(lines, fmt.Sprintf("%-18s %s", t.Name, t.Description))
	}
	return lines
}
