// Package traverse implements a non-recursive, explicit-stack directory
// traversal engine: Iterator yields one DirectoryEntry at a time for every
// entry beneath a root, with options controlling symlink following,
// mountpoint crossing, hidden/package elision, and postorder directory
// yields.
package traverse
