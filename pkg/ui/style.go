package ui

import "github.com/charmbracelet/lipgloss"

type Style struct {
	UserMessage      lipgloss.Style
	AssistantMessage lipgloss.Style
	MediaMessage     lipgloss.Style
	Input            lipgloss.Style
	Notice           lipgloss.Style
	Warning          lipgloss.Style
	Error            lipgloss.Style
	Status           lipgloss.Style
}

type BorderColors struct {
	User      string
	Assistant string
	Media     string
	Input     string
}

func DefaultStyles() *Style {
	lightModeColors := BorderColors{
		User:      "#CCCCCC",
		Assistant: "#FFB6C1", // Light pink
		Media:     "#ADD8E6",
		Input:     "#FFFF99", // Light yellow
	}

	darkModeColors := BorderColors{
		User:      "#444444",
		Assistant: "#DD7090", // Desaturated pink for dark mode
		Media:     "#5F8FA0",
		Input:     "#DDDD77", // Desaturated yellow for dark mode
	}

	bordered := func(b lipgloss.Border, light, dark string) lipgloss.Style {
		return lipgloss.NewStyle().Border(b).
			Padding(0, 1).
			BorderForeground(lipgloss.AdaptiveColor{Light: light, Dark: dark})
	}

	return &Style{
		UserMessage:      bordered(lipgloss.NormalBorder(), lightModeColors.User, darkModeColors.User),
		AssistantMessage: bordered(lipgloss.RoundedBorder(), lightModeColors.Assistant, darkModeColors.Assistant),
		MediaMessage:     bordered(lipgloss.NormalBorder(), lightModeColors.Media, darkModeColors.Media),
		Input:            bordered(lipgloss.NormalBorder(), lightModeColors.Input, darkModeColors.Input),
		Notice:           lipgloss.NewStyle().Faint(true),
		Warning:          lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#FFD700"}),
		Error:            lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#B22222", Dark: "#FF6347"}),
		Status:           lipgloss.NewStyle().Faint(true),
	}
}
