// Package pipeline wires the fixed Android build tasks into a task graph.
//
// The tasks and their dependencies are:
//
//	process-resources                         aapt generates R.java
//	compile            process-resources      javac + jar
//	proguard           compile                shrink classes.jar (when enabled)
//	package            compile [, proguard]   dx, aapt, apkbuilder, jarsigner, zipalign
//	assemble           package                checks the final APK
//	install            assemble               adb install -r
//	uninstall                                 adb uninstall <package>
//
// Every action builds its command lines from the buildctx.Context it
// receives when it runs, never from state captured at registration.
package pipeline
