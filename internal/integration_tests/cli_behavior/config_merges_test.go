package cli_behavior

import (
	"path/filepath"
	"testing"

	"github.com/specialistvlad/droidbuild/internal/testutil"
	"github.com/stretchr/testify/require"
)

// zipalignOutput returns the APK path passed to the single zipalign call.
func zipalignOutput(t *testing.T, args []string) string {
	t.Helper()
	require.NotEmpty(t, args)
	return args[len(args)-1]
}

func TestConfig_LocalPropertiesWinOverBuildAndDefault(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	files := map[string]string{
		"default.properties": "out.dir=from-default\ntarget=android-4\n",
		"build.properties":   "out.dir=from-build\n",
		"local.properties":   "sdk.dir=sdk\nout.dir=from-local\n",
	}
	sdk := testutil.NewFakeSDK()

	// --- Act ---
	result := testutil.RunIntegrationTest(t, files, sdk, "assemble")

	// --- Assert ---
	require.NoError(t, result.Err)
	zipalign := sdk.Invoked("zipalign")
	require.Len(t, zipalign, 1)
	require.Equal(t,
		filepath.Join(result.Dir, "from-local", "com.example.app.apk"),
		zipalignOutput(t, zipalign[0].Args),
	)

	aapt := sdk.Invoked("aapt")
	require.NotEmpty(t, aapt)
	require.Contains(t, aapt[0].Args, filepath.Join(result.Dir, "sdk", "platforms", "android-4", "android.jar"),
		"target from default.properties should survive when no later file overrides it")
}

func TestConfig_DefineFlagWinsOverFiles(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	files := map[string]string{
		"local.properties": "sdk.dir=sdk\nout.dir=from-local\n",
	}
	sdk := testutil.NewFakeSDK()

	// --- Act ---
	result := testutil.RunIntegrationTest(t, files, sdk, "-D", "out.dir=from-flag", "assemble")

	// --- Assert ---
	require.NoError(t, result.Err)
	zipalign := sdk.Invoked("zipalign")
	require.Len(t, zipalign, 1)
	require.Equal(t,
		filepath.Join(result.Dir, "from-flag", "com.example.app.apk"),
		zipalignOutput(t, zipalign[0].Args),
	)
}

func TestConfig_EnvironmentWinsOverFiles(t *testing.T) {
	// --- Arrange ---
	t.Setenv("DROIDBUILD_OUT_DIR", "from-env")
	files := map[string]string{
		"local.properties": "sdk.dir=sdk\nout.dir=from-local\n",
	}
	sdk := testutil.NewFakeSDK()

	// --- Act ---
	result := testutil.RunIntegrationTest(t, files, sdk, "assemble")

	// --- Assert ---
	require.NoError(t, result.Err)
	zipalign := sdk.Invoked("zipalign")
	require.Len(t, zipalign, 1)
	require.Equal(t,
		filepath.Join(result.Dir, "from-env", "com.example.app.apk"),
		zipalignOutput(t, zipalign[0].Args),
	)
}

func TestConfig_ReleaseKeystore(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	files := map[string]string{
		"build.properties": "key.store=release.keystore\nkey.alias=release\nkey.store.password=secret\n",
	}
	sdk := testutil.NewFakeSDK()

	// --- Act ---
	result := testutil.RunIntegrationTest(t, files, sdk, "package")

	// --- Assert ---
	require.NoError(t, result.Err)
	signer := sdk.Invoked("jarsigner")
	require.Len(t, signer, 1)
	args := signer[0].Args
	require.Equal(t, []string{"-keystore", "release.keystore", "-storepass", "secret", "-keypass", "secret"}, args[:6])
	require.Equal(t, "release", args[len(args)-1])
}
