package native

import "runtime"

// LibraryFilename applies the platform shared-library naming convention to a
// bare name: foo becomes libfoo.so, libfoo.dylib or foo.dll. The prefix and
// suffix are always added, so libfoo becomes liblibfoo.so; a name that is
// already a filename is matched literally by Resolve before this is tried.
func LibraryFilename(name string) string {
	return libraryFilename(runtime.GOOS, name)
}

func libraryFilename(goos, name string) string {
	prefix, suffix := "lib", ".so"
	switch goos {
	case "darwin", "ios":
		suffix = ".dylib"
	case "windows":
		prefix, suffix = "", ".dll"
	}
	return prefix + name + suffix
}
