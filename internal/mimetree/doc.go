// Package mimetree parses messages into an immutable tree of MIME entities
// and rebuilds them with some leaves substituted.
//
// The pipeline uses it in three steps:
//
//	root, err := mimetree.Parse(raw)
//	leaves := root.Leaves()
//	// decide, per leaf, whether to keep it or build a descriptor leaf
//	rewritten, err := mimetree.Replace(root, newLeaves)
//
// Leaves keep their wire bytes so untouched parts survive the rewrite
// unchanged. Containers keep their subtype but get fresh boundaries.
package mimetree
