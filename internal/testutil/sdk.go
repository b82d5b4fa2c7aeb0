package testutil

import (
	"os"
	"path/filepath"

	"github.com/specialistvlad/droidbuild/internal/extcmd"
	"github.com/specialistvlad/droidbuild/internal/extcmd/extcmdtest"
)

// NewFakeSDK returns a recorder standing in for the SDK tools. It creates
// the outputs later tasks check for: zipalign writes the final APK and
// aapt writes R.java into its -J directory.
func NewFakeSDK() *extcmdtest.Recorder {
	rec := extcmdtest.NewRecorder()
	rec.OnRun("zipalign", func(c extcmd.Command) {
		_ = os.WriteFile(c.Args[len(c.Args)-1], []byte("apk"), 0o644)
	})
	rec.OnRun("aapt", func(c extcmd.Command) {
		if dir := argAfter(c.Args, "-J"); dir != "" {
			_ = os.WriteFile(filepath.Join(dir, "R.java"), []byte("final class R {}"), 0o644)
		}
	})
	return rec
}

func argAfter(args []string, flag string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}
