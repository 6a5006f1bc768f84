// Package pathsafe turns attacker-controlled names from email headers into
// paths that stay inside a base directory and that the filesystem accepts.
//
// Names go through an ordered list of strategies: verbatim with separators
// neutralized, a conservative Unicode character class, and finally an
// ASCII-only class. The first result the filesystem accepts wins.
//
// A Resolver also hands out unique directory and file names for the
// duration of one run. Its last-resort Counter is owned by the caller.
package pathsafe
