// Package textutil provides text helpers shared by the sentence merger and the
// output layout: Unicode normalization, full-width folding, and filename
// sanitization.
package textutil
