package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lumen-os/hdep/manager"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	loadedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	idleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// renderStatus formats a manager snapshot the way hdep_print_status
// always has: a summary line plus one row per cataloged module.
func renderStatus(snap manager.Snapshot) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("HDEP Module Status"))
	b.WriteByte('\n')
	fmt.Fprintf(&b, "API version: %s  NEON: %v  Modules: %d/%d\n",
		snap.APIVersion, snap.Features.NEON, len(snap.Modules), snap.Capacity)

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("NAME", "VERSION", "TYPE", "STATE", "REF", "PATH")

	for _, ms := range snap.Modules {
		state := idleStyle.Render("idle")
		if ms.Loaded {
			state = loadedStyle.Render("loaded")
		}
		tbl.Row(ms.Name, ms.Version.String(), ms.Type.String(),
			state, fmt.Sprintf("%d", ms.Refcount), ms.Path)
	}

	b.WriteString(tbl.String())
	b.WriteByte('\n')
	return b.String()
}

// renderStack formats a stack report, one line per step.
func renderStack(report []manager.StackStep) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Hibernation Stack"))
	b.WriteByte('\n')
	for _, step := range report {
		if step.Err != nil {
			fmt.Fprintf(&b, "  %-16s %s %v\n", step.Name, failStyle.Render("FAIL"), step.Err)
			continue
		}
		fmt.Fprintf(&b, "  %-16s %s\n", step.Name, loadedStyle.Render("OK"))
	}
	return b.String()
}
