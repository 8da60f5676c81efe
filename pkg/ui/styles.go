package ui

import "github.com/charmbracelet/lipgloss"

// Common UI styles
var (
	focusedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	blurredStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true).MarginLeft(2)
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("140")).MarginTop(1)
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Margin(1, 0)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	eventStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).MarginLeft(2)
)

// Card styles
var (
	cardStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("255")).
			Foreground(lipgloss.Color("0")).
			Padding(0, 1).
			Margin(0, 1).
			Border(lipgloss.RoundedBorder())

	redCardStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("255")).
			Foreground(lipgloss.Color("196")).
			Padding(0, 1).
			Margin(0, 1).
			Border(lipgloss.RoundedBorder())

	cursorCardStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("220")).
			Foreground(lipgloss.Color("0")).
			Padding(0, 1).
			Margin(0, 1).
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("220"))

	pickedCardStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("39")).
			Foreground(lipgloss.Color("0")).
			Padding(0, 1).
			Margin(0, 1).
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("39"))

	deadCardStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("250")).
			Foreground(lipgloss.Color("244")).
			Padding(0, 1).
			Margin(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("244"))
)

// Seat styles
var (
	seatBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Margin(0, 1)

	currentSeatStyle = lipgloss.NewStyle().
				Border(lipgloss.ThickBorder()).
				BorderForeground(lipgloss.Color("46")).
				Padding(0, 1).
				Margin(0, 1)

	yourSeatStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1).
			Margin(0, 1)

	timedOutSeatStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("196")).
				Foreground(lipgloss.Color("196")).
				Padding(0, 1).
				Margin(0, 1)
)

// Action bar styles
var (
	actionButtonStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("17")).
				Foreground(lipgloss.Color("39")).
				Padding(0, 2).
				Margin(0, 1).
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("39"))

	turnBannerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("22")).
			Foreground(lipgloss.Color("46")).
			Padding(0, 2).
			Margin(1, 0).
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("46")).
			Bold(true)
)
