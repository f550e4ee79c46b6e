// Package isomorph collapses card sets that differ only by a relabeling of suits.
//
// Canonicalize keys are for lookup; Group gives the exact orbit sizes enumeration weights by.
package isomorph
