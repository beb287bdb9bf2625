package main

import "github.com/charmbracelet/lipgloss"

var (
	stylePass = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	styleFail = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	styleWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	styleInfo = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	styleDim  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)
