package viewer

import (
	"fmt"
	"strings"
	"time"

	"github.com/Iron-Ham/logscope/internal/logentry"
)

const timeLayout = "15:04:05.000"

// RenderLog formats one log entry as a single line, with the throwable on
// indented lines below it.
func RenderLog(e logentry.LogEntry) string {
	var b strings.Builder
	b.WriteString(Muted.Render(e.Timestamp.Local().Format(timeLayout)))
	b.WriteByte(' ')
	b.WriteString(LevelStyle(e.Level).Render(e.Level.Short()))
	b.WriteByte(' ')
	if e.Tag != "" {
		b.WriteString(Title.Render(e.Tag))
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Throwable != "" {
		for _, line := range strings.Split(strings.TrimRight(e.Throwable, "\n"), "\n") {
			b.WriteString("\n    ")
			b.WriteString(ErrorText.Render(line))
		}
	}
	return b.String()
}

// RenderNetwork formats one network exchange as a single line.
func RenderNetwork(e logentry.NetworkLogEntry) string {
	status := "---"
	if e.ResponseCode != nil {
		status = fmt.Sprintf("%d", *e.ResponseCode)
	}

	line := fmt.Sprintf("%s %s %-6s %s %s",
		Muted.Render(e.Timestamp.Local().Format(timeLayout)),
		StatusStyle(e).Render(status),
		e.Method,
		e.URL,
		Muted.Render(e.Duration.Round(time.Millisecond).String()),
	)
	if e.Error != "" {
		line += " " + ErrorText.Render(e.Error)
	}
	return line
}
