package buildctx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/specialistvlad/droidbuild/internal/ctxlog"
	"github.com/specialistvlad/droidbuild/internal/extcmd"
)

// PropertyFiles are the per-environment overlays, in load order. A later file
// overrides keys set by an earlier one, so local.properties has the last word.
var PropertyFiles = []string{"default.properties", "build.properties", "local.properties"}

// EnvPrefix is the prefix of environment variables overriding properties,
// e.g. DROIDBUILD_SDK_DIR for sdk.dir.
const EnvPrefix = "DROIDBUILD"

// Options are the inputs of Load that do not come from property files.
type Options struct {
	// ProjectDir holds AndroidManifest.xml and the property files.
	ProjectDir string
	// Overrides are applied on top of files and environment (CLI flags).
	Overrides map[string]string
	// Executor runs external commands; nil means real processes.
	Executor extcmd.Executor
}

var defaults = map[string]string{
	"target":           "android-8",
	"out.dir":          "bin",
	"source.dir":       "src",
	"resource.dir":     "res",
	"asset.dir":        "assets",
	"gen.dir":          "gen",
	"manifest.file":    "AndroidManifest.xml",
	"proguard.enabled": "false",
	"proguard.config":  "proguard.cfg",
}

// knownKeys are looked up explicitly so that environment overrides apply even
// when no file sets the key.
var knownKeys = []string{
	"sdk.dir", "target", "out.dir", "source.dir", "resource.dir", "asset.dir",
	"gen.dir", "manifest.file", "key.store", "key.alias", "key.store.password",
	"key.alias.password", "proguard.enabled", "proguard.config", "adb.device",
	"adb.emulator", "adb.usb",
}

// Load resolves the build context for the project in opts.ProjectDir.
func Load(ctx context.Context, opts Options) (*Context, error) {
	logger := ctxlog.FromContext(ctx)

	projectDir, err := filepath.Abs(opts.ProjectDir)
	if err != nil {
		return nil, &ConfigError{Key: "project.dir", Msg: "cannot resolve " + opts.ProjectDir, Err: err}
	}

	props, err := loadProperties(ctx, projectDir, opts.Overrides)
	if err != nil {
		return nil, err
	}

	sdkDir := props["sdk.dir"]
	if sdkDir == "" {
		return nil, configErrorf("sdk.dir", "Android SDK location is not set (local.properties, %s_SDK_DIR or --sdk-dir)", EnvPrefix)
	}
	sdkDir = resolve(projectDir, sdkDir)
	if info, err := os.Stat(sdkDir); err != nil || !info.IsDir() {
		return nil, configErrorf("sdk.dir", "%s is not a directory", sdkDir)
	}

	bc := &Context{
		ProjectDir:   projectDir,
		SDKDir:       sdkDir,
		Target:       props["target"],
		ManifestPath: resolve(projectDir, props["manifest.file"]),
		SourceDir:    resolve(projectDir, props["source.dir"]),
		ResourceDir:  resolve(projectDir, props["resource.dir"]),
		AssetsDir:    resolve(projectDir, props["asset.dir"]),
		GenDir:       resolve(projectDir, props["gen.dir"]),
		OutDir:       resolve(projectDir, props["out.dir"]),
		props:        props,
		executor:     opts.Executor,
	}
	bc.AndroidJar = filepath.Join(sdkDir, "platforms", bc.Target, "android.jar")
	bc.tools = resolveTools(sdkDir, bc.Target, props)

	manifest, err := ReadManifest(bc.ManifestPath)
	if err != nil {
		return nil, err
	}
	bc.PackageName = manifest.Package
	bc.HasCode = manifest.HasCode
	if bc.PackageName == "" {
		logger.Warn("Manifest declares no package name.", "manifest", bc.ManifestPath)
	}

	if bc.DeviceArgs, err = deviceArgs(props); err != nil {
		return nil, err
	}
	if bc.Signing, err = signing(props); err != nil {
		return nil, err
	}
	if bc.Proguard, err = proguard(projectDir, sdkDir, props); err != nil {
		return nil, err
	}

	logger.Debug("Build context resolved.",
		"project", bc.ProjectDir,
		"sdk", bc.SDKDir,
		"target", bc.Target,
		"package", bc.PackageName,
		"has_code", bc.HasCode,
		"out", bc.OutDir,
	)
	return bc, nil
}

// loadProperties merges defaults, property files, environment and overrides
// into a flat key/value table.
func loadProperties(ctx context.Context, projectDir string, overrides map[string]string) (map[string]string, error) {
	logger := ctxlog.FromContext(ctx)

	// Property keys are dotted ("key.store", "key.store.password"); a
	// non-dot delimiter keeps viper from nesting them into maps.
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetConfigType("properties")
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	for _, name := range PropertyFiles {
		path := filepath.Join(projectDir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, &ConfigError{Key: name, Msg: "cannot read " + path, Err: err}
		}
		if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
			return nil, &ConfigError{Key: name, Msg: "cannot parse " + path, Err: err}
		}
		logger.Debug("Property file merged.", "file", path)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for k, val := range overrides {
		if val != "" {
			v.Set(k, val)
		}
	}

	props := make(map[string]string)
	for _, k := range v.AllKeys() {
		props[k] = v.GetString(k)
	}
	for _, k := range knownKeys {
		if val := v.GetString(k); val != "" {
			props[k] = val
		}
	}
	return props, nil
}

// resolveTools picks each SDK tool from the first existing candidate
// location. Older SDK layouts keep aapt and dx under the platform directory,
// newer ones under platform-tools. A "tool.<name>" property wins over both.
func resolveTools(sdkDir, target string, props map[string]string) map[string]string {
	platformTools := filepath.Join(sdkDir, "platform-tools")
	platform := filepath.Join(sdkDir, "platforms", target, "tools")
	tools := filepath.Join(sdkDir, "tools")

	candidates := map[string][]string{
		"aapt":       {filepath.Join(platformTools, "aapt"), filepath.Join(platform, "aapt")},
		"dx":         {filepath.Join(platformTools, "dx"), filepath.Join(platform, "dx")},
		"apkbuilder": {filepath.Join(tools, "apkbuilder")},
		"zipalign":   {filepath.Join(tools, "zipalign"), filepath.Join(platformTools, "zipalign")},
		"adb":        {filepath.Join(platformTools, "adb"), filepath.Join(tools, "adb")},
	}

	resolved := map[string]string{
		"javac":     "javac",
		"jar":       "jar",
		"jarsigner": "jarsigner",
		"java":      "java",
	}
	for name, paths := range candidates {
		resolved[name] = paths[0]
		for _, p := range paths {
			if _, err := os.Stat(p); err == nil {
				resolved[name] = p
				break
			}
		}
	}
	for k, v := range props {
		if name, ok := strings.CutPrefix(k, "tool."); ok && v != "" {
			resolved[name] = v
		}
	}
	return resolved
}

// deviceArgs turns the adb selection properties into pre-split arguments.
func deviceArgs(props map[string]string) ([]string, error) {
	serial := props["adb.device"]
	emulator := isTrue(props["adb.emulator"])
	usb := isTrue(props["adb.usb"])

	selected := 0
	for _, b := range []bool{serial != "", emulator, usb} {
		if b {
			selected++
		}
	}
	if selected > 1 {
		return nil, configErrorf("adb.device", "device serial, emulator and usb selection are mutually exclusive")
	}

	switch {
	case serial != "":
		return []string{"-s", serial}, nil
	case emulator:
		return []string{"-e"}, nil
	case usb:
		return []string{"-d"}, nil
	}
	return nil, nil
}

// signing resolves the keystore. Without key.store the SDK debug keystore is
// used with its well-known alias and passwords.
func signing(props map[string]string) (Signing, error) {
	store := props["key.store"]
	if store == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Signing{}, &ConfigError{Key: "key.store", Msg: "cannot locate debug keystore", Err: err}
		}
		return Signing{
			KeyStore:      filepath.Join(home, ".android", "debug.keystore"),
			KeyAlias:      "androiddebugkey",
			StorePassword: "android",
			KeyPassword:   "android",
			Debug:         true,
		}, nil
	}

	s := Signing{
		KeyStore:      store,
		KeyAlias:      props["key.alias"],
		StorePassword: props["key.store.password"],
		KeyPassword:   props["key.alias.password"],
	}
	if s.KeyAlias == "" {
		return Signing{}, configErrorf("key.alias", "required when key.store is set")
	}
	if s.KeyPassword == "" {
		s.KeyPassword = s.StorePassword
	}
	return s, nil
}

func proguard(projectDir, sdkDir string, props map[string]string) (Proguard, error) {
	enabled, err := parseBool("proguard.enabled", props["proguard.enabled"])
	if err != nil {
		return Proguard{}, err
	}
	jar := props["proguard.jar"]
	if jar == "" {
		jar = filepath.Join(sdkDir, "tools", "proguard", "lib", "proguard.jar")
	}
	return Proguard{
		Enabled: enabled,
		Jar:     jar,
		Config:  resolve(projectDir, props["proguard.config"]),
	}, nil
}

func parseBool(key, v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "false", "no", "0":
		return false, nil
	case "true", "yes", "1":
		return true, nil
	}
	return false, configErrorf(key, "invalid boolean %q", v)
}

func isTrue(v string) bool {
	b, _ := parseBool("", v)
	return b
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// String summarises the context for debug output.
func (c *Context) String() string {
	return fmt.Sprintf("project=%s sdk=%s target=%s package=%s", c.ProjectDir, c.SDKDir, c.Target, c.PackageName)
}
