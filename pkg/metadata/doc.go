// Package metadata writes an item's cached page and extracted details next
// to its video in the library.
package metadata
