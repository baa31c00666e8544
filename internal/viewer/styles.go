package viewer

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/logscope/internal/logentry"
)

var (
	PrimaryColor = lipgloss.Color("#A78BFA") // Purple
	GreenColor   = lipgloss.Color("#10B981")
	AmberColor   = lipgloss.Color("#F59E0B")
	RedColor     = lipgloss.Color("#F87171")
	BlueColor    = lipgloss.Color("#60A5FA")
	MutedColor   = lipgloss.Color("#9CA3AF")
	TextColor    = lipgloss.Color("#F9FAFB")
	PinkColor    = lipgloss.Color("#F472B6")

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor)

	Muted = lipgloss.NewStyle().Foreground(MutedColor)

	Prompt = lipgloss.NewStyle().
		Bold(true).
		Foreground(AmberColor)

	ErrorText = lipgloss.NewStyle().Foreground(RedColor)

	// Help renders the key hints in the footer.
	Help = lipgloss.NewStyle().
		Foreground(MutedColor).
		Italic(true)
)

var levelColors = map[logentry.Level]lipgloss.Color{
	logentry.LevelVerbose: MutedColor,
	logentry.LevelDebug:   BlueColor,
	logentry.LevelInfo:    GreenColor,
	logentry.LevelWarning: AmberColor,
	logentry.LevelError:   RedColor,
	logentry.LevelFatal:   PinkColor,
}

// LevelStyle returns the badge style for level.
func LevelStyle(level logentry.Level) lipgloss.Style {
	color, ok := levelColors[level]
	if !ok {
		color = TextColor
	}
	return lipgloss.NewStyle().Bold(true).Foreground(color)
}

// StatusStyle colours a response code by class. Failed exchanges are red.
func StatusStyle(e logentry.NetworkLogEntry) lipgloss.Style {
	switch {
	case e.IsFailed():
		return lipgloss.NewStyle().Bold(true).Foreground(RedColor)
	case e.IsSuccessful():
		return lipgloss.NewStyle().Foreground(GreenColor)
	case e.StatusCode() >= 500:
		return lipgloss.NewStyle().Foreground(RedColor)
	case e.StatusCode() >= 400:
		return lipgloss.NewStyle().Foreground(AmberColor)
	default:
		return lipgloss.NewStyle().Foreground(BlueColor)
	}
}
