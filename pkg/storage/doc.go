// Package storage maps library items to their destination file pair and
// places both files atomically. The destination holds assets under photos/
// and YAML sidecars under metadata/; a name is derived from the item
// identifier plus a sanitized title, so the mapping is stable across runs.
package storage
