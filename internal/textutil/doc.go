// Package textutil holds small text helpers shared across packages: word
// tokenization with Unicode case folding and sanitizers for object-storage
// key segments.
package textutil
