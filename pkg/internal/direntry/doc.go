// Package direntry provides the low-level, race-free, read-only directory
// and metadata primitives shared by the traverse and watching packages. It is
// internal because its API is shaped entirely around those two packages'
// needs rather than being a general-purpose filesystem library.
package direntry
