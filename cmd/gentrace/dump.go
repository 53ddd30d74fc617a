// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/latticeforge/gentrace/services/ppl/choicetrie"
	"github.com/mattn/go-isatty"
)

var (
	addressStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	weightStyle  = lipgloss.NewStyle().Faint(true)
	isTTY        = isatty.IsTerminal(os.Stdout.Fd())
)

// dumpTrie prints a tree-shaped rendering of node to stdout, one line
// per address, with each value's own log-weight in the margin. Falls
// back to plain text when stdout is not a terminal.
func dumpTrie(node *choicetrie.Node) {
	dumpNode(node, "", true)
}

func dumpNode(node *choicetrie.Node, prefix string, root bool) {
	children := node.Children()
	keys := make([]string, 0, len(children))
	for k := range children {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if v, ok := node.Value(); ok && len(children) == 0 {
		line := fmt.Sprintf("%s= %v", prefix, v)
		if isTTY {
			line = fmt.Sprintf("%s= %s", prefix, valueStyle.Render(fmt.Sprintf("%v", v)))
		}
		fmt.Printf("%s %s\n", line, weightStyle.Render(fmt.Sprintf("(w=%.4f)", node.Weight())))
		return
	}

	for i, key := range keys {
		child := children[key]
		label := key
		if isTTY {
			label = addressStyle.Render(key)
		}
		last := i == len(keys)-1
		connector := "├─ "
		if last {
			connector = "└─ "
		}
		fmt.Printf("%s%s%s\n", prefix, connector, label)
		nextPrefix := prefix + "│  "
		if last {
			nextPrefix = prefix + "   "
		}
		dumpNode(child, nextPrefix, false)
	}
}
