package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/droidbuild/internal/buildctx"
	"github.com/specialistvlad/droidbuild/internal/ctxlog"
	"github.com/specialistvlad/droidbuild/internal/dag"
	"github.com/specialistvlad/droidbuild/internal/extcmd"
	"github.com/specialistvlad/droidbuild/internal/extcmd/extcmdtest"
	"github.com/specialistvlad/droidbuild/internal/runner"
	"github.com/specialistvlad/droidbuild/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture is a project on disk with a recording executor. zipalign's fake
// writes the APK so that assemble finds it.
type fixture struct {
	bc  *buildctx.Context
	rec *extcmdtest.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	src := filepath.Join(dir, "src", "com", "example")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "Main.java"), []byte("class Main {}"), 0o644))

	rec := extcmdtest.NewRecorder()
	rec.OnRun("zipalign", func(c extcmd.Command) {
		out := c.Args[len(c.Args)-1]
		require.NoError(t, os.WriteFile(out, []byte("apk"), 0o644))
	})

	bc := &buildctx.Context{
		ProjectDir:   dir,
		SDKDir:       filepath.Join(dir, "sdk"),
		Target:       "android-8",
		AndroidJar:   filepath.Join(dir, "sdk", "platforms", "android-8", "android.jar"),
		ManifestPath: filepath.Join(dir, "AndroidManifest.xml"),
		SourceDir:    filepath.Join(dir, "src"),
		ResourceDir:  filepath.Join(dir, "res"),
		AssetsDir:    filepath.Join(dir, "assets"),
		GenDir:       filepath.Join(dir, "gen"),
		OutDir:       filepath.Join(dir, "bin"),
		PackageName:  "com.example.app",
		HasCode:      true,
		Signing: buildctx.Signing{
			KeyStore:      "debug.keystore",
			KeyAlias:      "androiddebugkey",
			StorePassword: "android",
			KeyPassword:   "android",
			Debug:         true,
		},
	}
	return &fixture{bc: bc.WithExecutor(rec), rec: rec}
}

func (f *fixture) run(t *testing.T, g *dag.Graph, targets ...string) (*runner.Report, error) {
	t.Helper()
	ctx := ctxlog.Discard(context.Background())
	return runner.New(runner.Options{}).Run(ctx, g, f.bc, targets...)
}

func toolNames(cmds []extcmd.Command) []string {
	names := make([]string, len(cmds))
	for i, c := range cmds {
		names[i] = c.Name()
	}
	return names
}

func TestNew_RegistersTasksInDependencyOrder(t *testing.T) {
	// --- Act ---
	g, err := New(Options{})

	// --- Assert ---
	require.NoError(t, err)
	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{ProcessResources, Compile, Proguard, Package, Assemble, Install, Uninstall}, order)

	deps, _ := g.Dependencies(Package)
	assert.Equal(t, []string{Compile}, deps)
	deps, _ = g.Dependencies(Uninstall)
	assert.Empty(t, deps)
}

func TestNew_ProguardFeedsPackage(t *testing.T) {
	g, err := New(Options{Proguard: true})
	require.NoError(t, err)

	deps, _ := g.Dependencies(Package)
	assert.Equal(t, []string{Compile, Proguard}, deps)
}

func TestInstall_RunsWholeChain(t *testing.T) {
	// --- Arrange ---
	f := newFixture(t)
	g, err := New(Options{})
	require.NoError(t, err)

	// --- Act ---
	report, err := f.run(t, g, Install)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{ProcessResources, Compile, Package, Assemble, Install}, report.Order)
	assert.Equal(t,
		[]string{"aapt", "javac", "jar", "dx", "aapt", "apkbuilder", "jarsigner", "zipalign", "adb"},
		toolNames(f.rec.Commands()),
	)

	adb := f.rec.Invoked("adb")
	require.Len(t, adb, 1)
	assert.Equal(t, []string{"install", "-r", f.bc.APK()}, adb[0].Args)
}

func TestInstall_PassesDeviceArgsUnsplit(t *testing.T) {
	f := newFixture(t)
	f.bc.DeviceArgs = []string{"-s", "emulator 5554"}
	g, err := New(Options{})
	require.NoError(t, err)

	_, err = f.run(t, g, Install)
	require.NoError(t, err)

	adb := f.rec.Invoked("adb")
	require.Len(t, adb, 1)
	assert.Equal(t, []string{"-s", "emulator 5554", "install", "-r", f.bc.APK()}, adb[0].Args)
}

func TestInstall_AdbFailureOnStdout(t *testing.T) {
	f := newFixture(t)
	f.rec.Script("adb", &extcmd.Result{Stdout: []byte("Failure [INSTALL_FAILED_ALREADY_EXISTS]\n")})
	g, err := New(Options{})
	require.NoError(t, err)

	report, err := f.run(t, g, Install)

	require.Error(t, err)
	var cmdErr *extcmd.Error
	require.True(t, errors.As(err, &cmdErr))
	assert.Contains(t, string(cmdErr.Stderr), "INSTALL_FAILED_ALREADY_EXISTS")
	assert.Equal(t, task.Succeeded, report.Status(Assemble))
	assert.Equal(t, task.Failed, report.Status(Install))
}

func TestCompileFailure_SkipsDownstream(t *testing.T) {
	// --- Arrange ---
	f := newFixture(t)
	f.rec.Script("javac", &extcmd.Result{ExitCode: 1, Stderr: []byte("Main.java:1: error")})
	g, err := New(Options{})
	require.NoError(t, err)

	// --- Act ---
	report, err := f.run(t, g, Install, Proguard)

	// --- Assert ---
	require.Error(t, err)
	var execErr *runner.TaskExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, Compile, execErr.Task)

	var cmdErr *extcmd.Error
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 1, cmdErr.ExitCode)

	assert.Equal(t, task.Succeeded, report.Status(ProcessResources))
	assert.Equal(t, task.Failed, report.Status(Compile))
	for _, name := range []string{Package, Proguard, Assemble, Install} {
		assert.Equal(t, task.Skipped, report.Status(name), name)
	}
	assert.Empty(t, f.rec.Invoked("jar"))
	assert.Empty(t, f.rec.Invoked("adb"))
}

func TestUninstall_WithoutPackageNeverInvokesAdb(t *testing.T) {
	// --- Arrange ---
	f := newFixture(t)
	f.bc.PackageName = ""
	g, err := New(Options{})
	require.NoError(t, err)

	// --- Act ---
	report, err := f.run(t, g, Uninstall)

	// --- Assert ---
	require.Error(t, err)
	assert.ErrorIs(t, err, buildctx.ErrConfig)
	var cfgErr *buildctx.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "package", cfgErr.Key)

	assert.Equal(t, task.Failed, report.Status(Uninstall))
	assert.Empty(t, f.rec.Commands())
}

func TestUninstall(t *testing.T) {
	f := newFixture(t)
	f.bc.DeviceArgs = []string{"-d"}
	g, err := New(Options{})
	require.NoError(t, err)

	_, err = f.run(t, g, Uninstall)

	require.NoError(t, err)
	adb := f.rec.Invoked("adb")
	require.Len(t, adb, 1)
	assert.Equal(t, []string{"-d", "uninstall", "com.example.app"}, adb[0].Args)
}

func TestPackage_NoCodeSkipsDex(t *testing.T) {
	f := newFixture(t)
	f.bc.HasCode = false
	g, err := New(Options{})
	require.NoError(t, err)

	_, err = f.run(t, g, Assemble)

	require.NoError(t, err)
	assert.Empty(t, f.rec.Invoked("dx"))
	builder := f.rec.Invoked("apkbuilder")
	require.Len(t, builder, 1)
	assert.NotContains(t, builder[0].Args, f.bc.DexFile())
}

func TestCompile_NoSourcesFailsWhenManifestHasCode(t *testing.T) {
	// --- Arrange ---
	f := newFixture(t)
	require.NoError(t, os.RemoveAll(f.bc.SourceDir))
	g, err := New(Options{})
	require.NoError(t, err)

	// --- Act ---
	report, err := f.run(t, g, Assemble)

	// --- Assert ---
	require.Error(t, err)
	var execErr *runner.TaskExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, Compile, execErr.Task)
	assert.ErrorContains(t, err, "no Java sources under "+f.bc.SourceDir)
	assert.ErrorContains(t, err, `android:hasCode="false"`)

	assert.Equal(t, task.Failed, report.Status(Compile))
	assert.Equal(t, task.Skipped, report.Status(Package))
	assert.Empty(t, f.rec.Invoked("javac"))
	assert.Empty(t, f.rec.Invoked("dx"))
}

func TestCompile_NoSourcesWithoutCodeSucceeds(t *testing.T) {
	f := newFixture(t)
	f.bc.HasCode = false
	require.NoError(t, os.RemoveAll(f.bc.SourceDir))
	g, err := New(Options{})
	require.NoError(t, err)

	report, err := f.run(t, g, Assemble)

	require.NoError(t, err)
	assert.Equal(t, task.Succeeded, report.Status(Compile))
	assert.Empty(t, f.rec.Invoked("javac"))
	assert.Empty(t, f.rec.Invoked("dx"))
	assert.Len(t, f.rec.Invoked("apkbuilder"), 1)
}

func TestPackage_DexesProguardOutputWhenEnabled(t *testing.T) {
	// --- Arrange ---
	f := newFixture(t)
	f.bc.Proguard = buildctx.Proguard{Enabled: true, Jar: "/sdk/tools/proguard/lib/proguard.jar"}
	g, err := New(Options{Proguard: true})
	require.NoError(t, err)

	// --- Act ---
	_, err = f.run(t, g, Package)

	// --- Assert ---
	require.NoError(t, err)
	java := f.rec.Invoked("java")
	require.Len(t, java, 1)
	assert.Equal(t, []string{
		"-jar", "/sdk/tools/proguard/lib/proguard.jar",
		"-injars", f.bc.ClassesJar(),
		"-outjars", f.bc.ProguardJar(),
		"-libraryjars", f.bc.AndroidJar,
	}, java[0].Args)

	dx := f.rec.Invoked("dx")
	require.Len(t, dx, 1)
	assert.Equal(t, f.bc.ProguardJar(), dx[0].Args[len(dx[0].Args)-1])
}

func TestAssemble_FailsWhenAPKMissing(t *testing.T) {
	f := newFixture(t)
	f.rec.OnRun("zipalign", func(extcmd.Command) {})
	g, err := New(Options{})
	require.NoError(t, err)

	report, err := f.run(t, g, Assemble)

	require.Error(t, err)
	assert.ErrorContains(t, err, "does not exist")
	assert.Equal(t, task.Succeeded, report.Status(Package))
	assert.Equal(t, task.Failed, report.Status(Assemble))
}

func TestDescribe(t *testing.T) {
	g, err := New(Options{})
	require.NoError(t, err)

	lines := Describe(g)

	require.Len(t, lines, 7)
	assert.Contains(t, lines[0], ProcessResources)
	assert.Contains(t, lines[6], Uninstall)
}
