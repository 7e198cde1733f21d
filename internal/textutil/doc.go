// Package textutil provides Unicode-aware helpers for matching and trimming
// user-facing titles.
//
// Title matching folds case with golang.org/x/text/cases so that "NARUTO",
// "naruto", and titles with non-ASCII letters compare the way a reader
// expects. Truncation counts runes, never bytes, so descriptions are never cut
// in the middle of a character.
package textutil
