// Package chapter normalizes loosely typed chapter numbers into a single
// optional decimal value.
//
// Upstream sources report chapter numbers as strings, JSON numbers, null, or
// placeholders such as "N/A". Parse and the JSON codec collapse all of them
// into Number. An absent Number compares below every present one, so a
// missing upstream value can never mask a real chapter 0 (prologues).
package chapter
