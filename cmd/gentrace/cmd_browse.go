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
	"math/rand"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/latticeforge/gentrace/services/ppl/addrmask"
	"github.com/latticeforge/gentrace/services/ppl/choicetrie"
	"github.com/latticeforge/gentrace/services/ppl/examples"
	"github.com/latticeforge/gentrace/services/ppl/gfi"
	"github.com/spf13/cobra"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Interactively browse a pointed2d trace's choice trie and resample a subtree",
	RunE:  runBrowseCommand,
}

// addrItem adapts one top-level trie address to bubbles/list's Item
// interface.
type addrItem struct {
	address string
	weight  float64
}

func (i addrItem) Title() string       { return i.address }
func (i addrItem) Description() string { return fmt.Sprintf("log-weight %.4f", i.weight) }
func (i addrItem) FilterValue() string { return i.address }

type browseModel struct {
	list      list.Model
	trace     *gfi.Trace[examples.Pointed2DArgs, []float64]
	chosen    string
	confirmed bool
	quitting  bool
}

func (m browseModel) Init() tea.Cmd { return nil }

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height-2)
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			if item, ok := m.list.SelectedItem().(addrItem); ok {
				m.chosen = item.address
				m.quitting = true
				return m, tea.Quit
			}
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m browseModel) View() string {
	if m.quitting {
		return ""
	}
	return m.list.View()
}

func runBrowseCommand(cmd *cobra.Command, args []string) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	model := examples.Pointed2D()
	modelArgs := examples.Pointed2DArgs{
		Bounds: examples.Bounds{XMin: -5, XMax: 5, YMin: -5, YMax: 5},
		ObsCov: [][]float64{{0.1, 0}, {0, 0.1}},
	}
	trace := model.Simulate(rng, modelArgs)

	items := addressItems(trace.Data)
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "pointed2d trace addresses"

	program := tea.NewProgram(browseModel{list: l, trace: trace})
	finalState, err := program.Run()
	if err != nil {
		return fmt.Errorf("browse: %w", err)
	}
	final := finalState.(browseModel)
	if final.chosen == "" {
		return nil
	}

	var confirmResample bool
	confirmForm := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Resample %q and everything beneath it?", final.chosen)).
				Value(&confirmResample),
		),
	)
	if err := confirmForm.Run(); err != nil {
		return fmt.Errorf("browse: confirm: %w", err)
	}
	if !confirmResample {
		fmt.Println("left trace unchanged")
		return nil
	}

	mask := addrmask.New()
	mask.Visit(final.chosen)
	newTrace, weight := model.Regenerate(rng, trace, modelArgs, gfi.DiffNoChange, mask)
	fmt.Printf("regenerated %q: weight=%.4f new logjp=%.4f\n", final.chosen, weight, newTrace.Logjp)
	dumpTrie(newTrace.Data)
	return nil
}

func addressItems(node *choicetrie.Node) []list.Item {
	children := node.Children()
	keys := make([]string, 0, len(children))
	for k := range children {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	items := make([]list.Item, 0, len(keys))
	for _, k := range keys {
		items = append(items, addrItem{address: k, weight: children[k].Weight()})
	}
	return items
}
