package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

var errPromptCancelled = errors.New("no directory given")

// promptModel asks for the directory to scan
type promptModel struct {
	input     textinput.Model
	value     string
	done      bool
	cancelled bool
}

func newPromptModel() promptModel {
	ti := textinput.New()
	ti.Prompt = "Enter the IP/File Directory Here: "
	ti.Placeholder = "path/to/rtl"
	ti.CharLimit = 4096
	ti.Width = 60
	ti.Focus()
	return promptModel{input: ti}
}

func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.value = strings.TrimSpace(m.input.Value())
			m.done = true
			return m, tea.Quit
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m promptModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	return titleStyle.Render("asset-scan") + "\n\n" + m.input.View() + "\n\n" +
		mutedStyle.Render("enter to scan, esc to quit") + "\n"
}

// promptForDirectory runs the prompt on in/out and returns the entered path
func promptForDirectory(in io.Reader, out io.Writer) (string, error) {
	p := tea.NewProgram(newPromptModel(), tea.WithInput(in), tea.WithOutput(out))
	final, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("prompt: %w", err)
	}
	m, ok := final.(promptModel)
	if !ok || m.cancelled || m.value == "" {
		return "", errPromptCancelled
	}
	return m.value, nil
}
