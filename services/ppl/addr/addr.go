// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package addr implements the split-address parser used throughout the
// choice trie: addresses are "/"-separated path strings identifying a
// single random choice or a nested generative-function call.
package addr

import "strings"

// Split holds the result of splitting an address on its first "/".
//
// Description:
//
//	Term addresses have no further "/" and are reported as Head with
//	Terminal set. Prefix addresses report the first segment as Head and
//	everything after the first "/" as Rest, unparsed.
type Split struct {
	Head     string
	Rest     string
	Terminal bool
}

// SplitAddr splits address on its first "/", trimming whitespace facing
// the separator (and on both ends of a terminal segment). Rest is
// returned unparsed; recursive calls trim it on the next split.
func SplitAddr(address string) Split {
	idx := strings.IndexByte(address, '/')
	if idx < 0 {
		return Split{Head: strings.TrimSpace(address), Terminal: true}
	}
	return Split{
		Head: strings.TrimSpace(address[:idx]),
		Rest: address[idx+1:],
	}
}

// Normalize rewrites address into its canonical form: every segment
// trimmed, rejoined with " / ".
func Normalize(address string) string {
	sp := SplitAddr(address)
	if sp.Terminal {
		return sp.Head
	}
	return sp.Head + " / " + Normalize(sp.Rest)
}
