// ============================================================================
// appstore - Terminal App Store for Python applications
// ============================================================================
//
// Package:     store
// Description: Styles for the App Store TUI
// Author:      Mike Stoffels
// Created:     2026-10-12
// License:     MIT
// ============================================================================

package store

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/msto63/appstore/internal/pyenv"
)

// Color Palette - dark theme with accent colors
var (
	// Primary colors
	ColorPrimary   = lipgloss.Color("#8B5CF6") // Violet
	ColorSecondary = lipgloss.Color("#06B6D4") // Cyan
	ColorAccent    = lipgloss.Color("#F59E0B") // Amber
	ColorSuccess   = lipgloss.Color("#10B981") // Emerald
	ColorWarning   = lipgloss.Color("#F59E0B") // Amber
	ColorError     = lipgloss.Color("#EF4444") // Red
	ColorMuted     = lipgloss.Color("#6B7280") // Gray
	ColorDimmed    = lipgloss.Color("#374151") // Dark Gray

	// Background colors
	ColorBgSelected = lipgloss.Color("#3B0764") // Purple 950

	// Text colors
	ColorText      = lipgloss.Color("#F8FAFC") // Slate 50
	ColorTextMuted = lipgloss.Color("#94A3B8") // Slate 400
	ColorTextDim   = lipgloss.Color("#64748B") // Slate 500
)

// Header styles
var (
	LogoStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorText).
			Bold(true)

	SubHeaderStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Italic(true)

	VersionStyle = lipgloss.NewStyle().
			Foreground(ColorTextDim).
			Italic(true)
)

// Panel styles
var (
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorDimmed).
			Padding(0, 1)

	FocusedPanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorPrimary).
				Padding(0, 1)

	TitlePanelStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(ColorPrimary).
			Padding(0, 2)

	DialogStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorAccent).
			Padding(1, 3)
)

// Status styles
var (
	StatusOKStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	StatusFailStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	StatusWarnStyle = lipgloss.NewStyle().
			Foreground(ColorWarning).
			Bold(true)

	StatusCheckingStyle = lipgloss.NewStyle().
				Foreground(ColorAccent)

	StatusUnknownStyle = lipgloss.NewStyle().
				Foreground(ColorMuted)

	BusyStyle = lipgloss.NewStyle().
			Foreground(ColorSecondary).
			Bold(true)
)

// Catalog list styles
var (
	AppRowStyle = lipgloss.NewStyle().
			Padding(0, 1)

	AppSelectedStyle = lipgloss.NewStyle().
				Background(ColorBgSelected).
				Foreground(ColorText).
				Bold(true).
				Padding(0, 1)

	AppNameStyle = lipgloss.NewStyle().
			Foreground(ColorText).
			Width(28)

	AppPackageStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Width(28)
)

// Log styles
var (
	LogLineStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	LogInfoStyle = lipgloss.NewStyle().
			Foreground(ColorSecondary)

	LogErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	LogSuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess).
			Bold(true)

	LogFailedStyle = lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true)
)

// Help styles
var (
	HelpStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	HelpKeyStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	HelpDescStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	HelpDisabledStyle = lipgloss.NewStyle().
				Foreground(ColorDimmed)
)

// Check list styles
var (
	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary)

	CheckStyle = lipgloss.NewStyle().
			Padding(0, 1)

	CheckNameStyle = lipgloss.NewStyle().
			Foreground(ColorText).
			Width(22)
)

// Status icons
const (
	IconError   = "✗"
	IconOK      = "✓"
	IconWarning = "⚠"
	IconArrow   = "→"
	IconBullet  = "•"
	IconRun     = "▶"
	IconLibrary = "◇"
)

// RenderKeyHint renders a keyboard shortcut hint
func RenderKeyHint(key, description string) string {
	return HelpKeyStyle.Render(key) + " " + HelpDescStyle.Render(description)
}

// RenderDisabledKeyHint renders a hint for an action that is not available
func RenderDisabledKeyHint(key, description string) string {
	return HelpDisabledStyle.Render(key + " " + description)
}

// checkIcon returns the icon and style for an environment check status
func checkIcon(status pyenv.Status) (string, lipgloss.Style) {
	switch status {
	case pyenv.StatusOK:
		return IconOK, StatusOKStyle
	case pyenv.StatusFailed:
		return IconError, StatusFailStyle
	case pyenv.StatusWarning:
		return IconWarning, StatusWarnStyle
	case pyenv.StatusChecking:
		return IconBullet, StatusCheckingStyle
	default:
		return IconBullet, StatusUnknownStyle
	}
}
