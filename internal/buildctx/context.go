// Package buildctx resolves the environment of one build: SDK tool paths,
// project directories, manifest values, signing and proguard settings. The
// resulting Context is created once before any task runs and only read
// afterwards; every task action receives it explicitly.
package buildctx

import (
	"maps"
	"path/filepath"

	"github.com/specialistvlad/droidbuild/internal/extcmd"
)

// Signing holds the keystore used by jarsigner.
type Signing struct {
	KeyStore      string
	KeyAlias      string
	StorePassword string
	KeyPassword   string
	// Debug is true when no keystore was configured and the SDK debug
	// keystore is used instead.
	Debug bool
}

// Proguard holds the shrinking/obfuscation settings.
type Proguard struct {
	Enabled bool
	Jar     string
	Config  string
}

// Context is the resolved, read-only configuration shared by all tasks of a run.
type Context struct {
	ProjectDir string
	SDKDir     string
	// Target is the platform name, e.g. "android-8".
	Target     string
	AndroidJar string

	ManifestPath string
	SourceDir    string
	ResourceDir  string
	AssetsDir    string
	GenDir       string
	OutDir       string

	// PackageName is the manifest package; empty when the manifest has none.
	PackageName string
	HasCode     bool

	// DeviceArgs selects the adb target, e.g. ["-s", "emulator-5554"].
	// It is passed to adb as pre-split arguments.
	DeviceArgs []string

	Signing  Signing
	Proguard Proguard

	tools    map[string]string
	props    map[string]string
	executor extcmd.Executor
}

// Tool returns the resolved path of an external tool. Unknown tools resolve
// to their bare name and are looked up in PATH when executed.
func (c *Context) Tool(name string) string {
	if p, ok := c.tools[name]; ok {
		return p
	}
	return name
}

// Tools returns a copy of the resolved tool table.
func (c *Context) Tools() map[string]string {
	return maps.Clone(c.tools)
}

// Property returns a merged property value.
func (c *Context) Property(key string) (string, bool) {
	v, ok := c.props[key]
	return v, ok
}

// Properties returns a copy of the merged property table.
func (c *Context) Properties() map[string]string {
	return maps.Clone(c.props)
}

// Executor returns the executor used for external commands. A Context built
// without one runs real processes.
func (c *Context) Executor() extcmd.Executor {
	if c.executor == nil {
		return extcmd.ExecExecutor{}
	}
	return c.executor
}

// WithExecutor returns a copy of c that runs commands through e.
func (c *Context) WithExecutor(e extcmd.Executor) *Context {
	cp := *c
	cp.executor = e
	return &cp
}

// RequirePackageName returns the manifest package name or a ConfigError
// when the manifest did not declare one.
func (c *Context) RequirePackageName() (string, error) {
	if c.PackageName == "" {
		return "", configErrorf("package", "no package name in %s", c.ManifestPath)
	}
	return c.PackageName, nil
}

// ClassesDir is where javac writes class files.
func (c *Context) ClassesDir() string { return filepath.Join(c.OutDir, "classes") }

// ClassesJar is the compile output consumed by proguard and dx.
func (c *Context) ClassesJar() string { return filepath.Join(c.OutDir, "classes.jar") }

// ProguardJar is the shrunk jar produced when proguard is enabled.
func (c *Context) ProguardJar() string { return filepath.Join(c.OutDir, "classes-proguard.jar") }

// DexInput is the jar dx converts: the proguard output when enabled, the
// compile output otherwise.
func (c *Context) DexInput() string {
	if c.Proguard.Enabled {
		return c.ProguardJar()
	}
	return c.ClassesJar()
}

// DexFile is the dx output.
func (c *Context) DexFile() string { return filepath.Join(c.OutDir, "classes.dex") }

// ResourcesPackage is the aapt-packaged resource archive.
func (c *Context) ResourcesPackage() string { return filepath.Join(c.OutDir, "resources.ap_") }

// UnsignedAPK is the apkbuilder output.
func (c *Context) UnsignedAPK() string { return filepath.Join(c.OutDir, c.apkBase()+"-unaligned.apk") }

// APK is the final signed and zip-aligned package.
func (c *Context) APK() string { return filepath.Join(c.OutDir, c.apkBase()+".apk") }

func (c *Context) apkBase() string {
	if c.PackageName != "" {
		return c.PackageName
	}
	return filepath.Base(c.ProjectDir)
}
