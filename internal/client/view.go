package client

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	figure "github.com/common-nighthawk/go-figure"

	"github.com/fenggwsx/SportChat/internal/api"
)

const timeLayout = "2006-01-02 15:04"

type styleSet struct {
	title   lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	user    lipgloss.Style
	reply   lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	thread  lipgloss.Style
}

var styles = buildStyles()

func buildStyles() styleSet {
	base := lipgloss.NewStyle()
	return styleSet{
		title:   base.Foreground(lipgloss.Color("13")).Bold(true),
		label:   base.Foreground(lipgloss.Color("8")),
		value:   base.Foreground(lipgloss.Color("15")),
		user:    base.Foreground(lipgloss.Color("14")).Bold(true),
		reply:   base.Foreground(lipgloss.Color("7")).PaddingLeft(2),
		success: base.Foreground(lipgloss.Color("10")).Bold(true),
		failure: base.Foreground(lipgloss.Color("9")).Bold(true),
		thread:  base.Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("12")).Padding(0, 1),
	}
}

// Banner returns the ASCII art title.
func Banner(text string) string {
	fig := figure.NewFigure(text, "small", true)
	return styles.title.Render(strings.TrimRight(fig.String(), "\n"))
}

// RenderResult renders the status line of any operation result.
func RenderResult(res api.Result) string {
	if res.Success {
		return styles.success.Render("ok")
	}
	var b strings.Builder
	b.WriteString(styles.failure.Render("error: " + res.Error))
	for _, v := range res.Violations {
		b.WriteString("\n  ")
		b.WriteString(styles.label.Render(v.Field+":") + " " + v.Message)
	}
	return b.String()
}

// RenderReply renders the answer to a sent message.
func RenderReply(res api.SendMessageResult) string {
	var b strings.Builder
	if !res.Success {
		b.WriteString(RenderResult(res.Result))
		b.WriteString("\n")
	}
	if res.ThreadID > 0 {
		b.WriteString(labelValue("thread", fmt.Sprint(res.ThreadID)))
		b.WriteString("\n")
	}
	if res.Reply != "" {
		b.WriteString(styles.reply.Render(res.Reply))
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderThreads renders grouped threads, newest first.
func RenderThreads(res api.GroupedResult) string {
	if !res.Success {
		return RenderResult(res.Result)
	}
	if len(res.Threads) == 0 {
		return styles.label.Render("No conversations yet.")
	}
	blocks := make([]string, 0, len(res.Threads))
	for _, th := range res.Threads {
		var b strings.Builder
		b.WriteString(styles.title.Render(fmt.Sprintf("Thread #%d", th.ID)))
		for _, turn := range th.Turns {
			b.WriteString("\n")
			b.WriteString(renderTurn(turn))
		}
		blocks = append(blocks, styles.thread.Render(b.String()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}

// RenderTurns renders a flat list of turns such as search results.
func RenderTurns(res api.SearchResult) string {
	if !res.Success {
		return RenderResult(res.Result)
	}
	if len(res.Turns) == 0 {
		return styles.label.Render("No matches.")
	}
	lines := make([]string, 0, len(res.Turns))
	for _, turn := range res.Turns {
		lines = append(lines, renderTurn(turn))
	}
	return strings.Join(lines, "\n")
}

// RenderStats renders the per-user statistics.
func RenderStats(res api.StatsResult) string {
	if !res.Success {
		return RenderResult(res.Result)
	}
	var b strings.Builder
	b.WriteString(labelValue("total", fmt.Sprint(res.TotalConversations)))
	b.WriteString("\n")
	b.WriteString(labelValue("last 7 days", fmt.Sprint(res.RecentActivity)))
	for _, c := range res.ConversationsBySport {
		b.WriteString("\n")
		b.WriteString(labelValue("  "+c.Sport, fmt.Sprint(c.Count)))
	}
	return b.String()
}

// RenderHealth renders a health probe.
func RenderHealth(res api.HealthResult) string {
	status := styles.success.Render(res.Status)
	if !res.Success {
		status = styles.failure.Render(res.Status)
	}
	var b strings.Builder
	b.WriteString(labelValue("status", status))
	if res.Database != "" {
		b.WriteString("\n")
		b.WriteString(labelValue("database", res.Database))
	}
	for _, name := range []string{"users", "conversations"} {
		if present, ok := res.Tables[name]; ok {
			b.WriteString("\n")
			b.WriteString(labelValue("  table "+name, fmt.Sprint(present)))
		}
	}
	return b.String()
}

func renderTurn(turn api.TurnView) string {
	header := styles.label.Render(fmt.Sprintf("[%d %s %s]", turn.ID, turn.Sport, turn.Timestamp.Local().Format(timeLayout)))
	return header + " " + styles.user.Render(turn.Message) + "\n" + styles.reply.Render(turn.Response)
}

func labelValue(label, value string) string {
	return styles.label.Render(label+":") + " " + styles.value.Render(value)
}
