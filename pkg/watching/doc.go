// Package watching provides recursive filesystem change monitoring with a
// uniform event model across macOS, Linux, and Windows, built atop each
// platform's native notification mechanism (FSEvents, inotify via recursive
// tree-of-watches, ReadDirectoryChangesW).
package watching
