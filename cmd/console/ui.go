package main

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/story-runtime/pkg/engine"
	"github.com/jwebster45206/story-runtime/pkg/events"
	"github.com/jwebster45206/story-runtime/pkg/inventory"
	"github.com/jwebster45206/story-runtime/pkg/saves"
)

// maxLogLines bounds the event log in the side panel
const maxLogLines = 8

// ConsoleUI is the BubbleTea model that runs the player.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	engine       *engine.Engine
	logger       *slog.Logger
	storyVp      viewport.Model
	metaViewport viewport.Model
	ready        bool
	width        int
	height       int
	status       string
	err          error
	eventLog     []string

	// Slot picker state
	showSlotModal bool
	slots         []saves.SlotInfo
	selectedSlot  int

	// Quit confirmation state
	showQuitModal bool
}

type engineEventMsg struct {
	event events.Event
}

var (
	storyPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	choiceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	lockedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")). // dark grey
			Strikethrough(true)

	textStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	modalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	modalSelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

func NewConsoleUI(eng *engine.Engine, logger *slog.Logger) ConsoleUI {
	storyVp := viewport.New(50, 20)
	storyVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	return ConsoleUI{
		engine:       eng,
		logger:       logger,
		storyVp:      storyVp,
		metaViewport: metaVp,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return nil
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}
	if m.showSlotModal {
		return m.updateSlotModal(msg)
	}

	var (
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.ready = true
		m.refresh()

	case engineEventMsg:
		m.recordEvent(msg.event)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		m.err = nil
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		}

		switch key := msg.String(); key {
		case "q":
			m.showQuitModal = true
			return m, nil
		case "b":
			if !m.engine.GoBack() {
				m.status = "Can't go back"
			} else {
				m.status = ""
			}
		case "f":
			if !m.engine.GoForward() {
				m.status = "Can't go forward"
			} else {
				m.status = ""
			}
		case "r":
			m.engine.Reset()
			m.status = "Story restarted"
		case "s":
			m.saveSlot()
		case "l":
			m.openSlotModal()
			return m, nil
		case "c":
			if n := m.engine.Node(); n != nil {
				if err := clipboard.WriteAll(n.Text); err != nil {
					m.err = fmt.Errorf("copy failed: %w", err)
				} else {
					m.status = "Copied node text"
				}
			}
		case "1", "2", "3", "4", "5", "6", "7", "8", "9":
			m.choose(int(key[0] - '1'))
		case "up", "down", "pgup", "pgdown":
			// scrolling only
			m.storyVp, vpCmd = m.storyVp.Update(msg)
			return m, vpCmd
		}
		m.refresh()
		return m, nil
	}

	m.storyVp, vpCmd = m.storyVp.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(vpCmd, mvCmd)
}

func (m *ConsoleUI) resize() {
	storyWidth := int(float64(m.width)*0.7) - 4
	metaWidth := m.width - storyWidth - 6

	m.storyVp.Width = storyWidth - 2
	m.storyVp.Height = m.height - 6
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 4
}

func (m *ConsoleUI) choose(index int) {
	n := m.engine.Node()
	if n == nil || index >= len(n.Choices) {
		return
	}
	if !m.engine.Choose(index) {
		m.status = fmt.Sprintf("%q is not available", n.Choices[index].Label)
		return
	}
	m.status = ""
}

func (m *ConsoleUI) saveSlot() {
	id := saves.NewSlotID()
	name := m.engine.NodeID()
	if n := m.engine.Node(); n != nil && n.Title != "" {
		name = n.Title
	}
	name = fmt.Sprintf("%s (%s)", name, time.Now().Format("Jan 2 15:04"))

	if _, err := m.engine.CreateSlot(id, name); err != nil {
		m.err = err
		return
	}
	m.logger.Info("Saved to slot", "slot_id", id)
	m.status = "Saved: " + name
}

func (m *ConsoleUI) openSlotModal() {
	slots, err := m.engine.ListSlots()
	if err != nil {
		m.err = err
		return
	}
	m.slots = slots
	m.selectedSlot = 0
	m.showSlotModal = true
}

func (m *ConsoleUI) recordEvent(ev events.Event) {
	var line string
	switch ev.Type {
	case events.EventTypeInventoryChanged:
		line = fmt.Sprintf("inventory %v %v", ev.Data["action"], ev.Data["itemId"])
	case events.EventTypeVariableChanged:
		line = fmt.Sprintf("%v = %v", ev.Data["key"], ev.Data["value"])
	case events.EventTypeFlagChanged:
		line = fmt.Sprintf("flag %v = %v", ev.Data["flag"], ev.Data["value"])
	case events.EventTypeTextShown:
		m.status = fmt.Sprint(ev.Data["text"])
		return
	case events.EventTypeAutosave:
		line = "autosaved"
	default:
		line = string(ev.Type)
	}
	m.eventLog = append(m.eventLog, strings.TrimSpace(line))
	if len(m.eventLog) > maxLogLines {
		m.eventLog = m.eventLog[len(m.eventLog)-maxLogLines:]
	}
}

// refresh rebuilds both panels from engine state for the current width
func (m *ConsoleUI) refresh() {
	if !m.ready {
		return
	}
	m.storyVp.SetContent(m.writeStory(m.storyVp.Width - 6))
	m.storyVp.GotoTop()
	m.metaViewport.SetContent(m.writeMetadata())
}

func (m ConsoleUI) writeStory(width int) string {
	if width < 20 {
		width = 20
	}
	var content strings.Builder
	content.WriteString(titleStyle.Render(strings.ToUpper(m.engine.Graph().Title)) + "\n\n")

	n := m.engine.Node()
	if n == nil {
		content.WriteString(errorStyle.Render(fmt.Sprintf("Node %q is missing from this story.", m.engine.NodeID())))
		content.WriteString("\n\nPress r to restart.\n")
		return content.String()
	}

	if n.Title != "" {
		content.WriteString(titleStyle.Render(n.Title) + "\n\n")
	}
	content.WriteString(textStyle.Render(wordwrap.String(n.Text, width)) + "\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", width)) + "\n\n")

	if len(n.Choices) == 0 {
		content.WriteString(promptStyle.Render("The End. Press r to play again.") + "\n")
	}
	for i, c := range n.Choices {
		label := fmt.Sprintf("%d. %s", i+1, c.Label)
		if m.engine.Graph().Has(c.Target) && m.engine.CheckConditions(c.Conditions) {
			content.WriteString(choiceStyle.Render(label) + "\n")
		} else {
			content.WriteString(lockedStyle.Render(label) + "\n")
		}
	}

	if m.err != nil {
		content.WriteString("\n" + errorStyle.Render("Error: "+m.err.Error()) + "\n")
	} else if m.status != "" {
		content.WriteString("\n" + statusStyle.Render(wordwrap.String(m.status, width)) + "\n")
	}
	return content.String()
}

func (m ConsoleUI) writeMetadata() string {
	ps := m.engine.PlayerState()

	var content strings.Builder
	content.WriteString(titleStyle.Render("PLAYER") + "\n\n")

	content.WriteString("Location:\n")
	content.WriteString(m.engine.NodeID() + "\n\n")

	content.WriteString(fmt.Sprintf("Inventory (%d/%d):\n", len(ps.Inventory.Items), ps.Inventory.MaxSlots))
	if ps.Inventory.IsEmpty() {
		content.WriteString("Empty\n")
	}
	for _, item := range ps.Inventory.Items {
		content.WriteString(fmt.Sprintf("%s %s x%d\n", inventory.Icon(item), item.Name, item.Quantity))
	}
	content.WriteString("\n")

	if len(ps.Variables) > 0 {
		content.WriteString("Variables:\n")
		keys := make([]string, 0, len(ps.Variables))
		for k := range ps.Variables {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			content.WriteString(fmt.Sprintf("• %s: %v\n", k, ps.Variables[k]))
		}
		content.WriteString("\n")
	}

	if len(m.eventLog) > 0 {
		content.WriteString("Events:\n")
		for _, line := range m.eventLog {
			content.WriteString(promptStyle.Render("• "+line) + "\n")
		}
		content.WriteString("\n")
	}

	content.WriteString("Commands:\n")
	content.WriteString("• 1-9: Choose\n")
	content.WriteString("• b/f: Back/Forward\n")
	content.WriteString("• s: Save slot\n")
	content.WriteString("• l: Load slot\n")
	content.WriteString("• c: Copy text\n")
	content.WriteString("• r: Restart\n")
	content.WriteString("• q: Quit\n")

	return content.String()
}

func (m ConsoleUI) updateSlotModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case engineEventMsg:
		m.recordEvent(msg.event)

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showSlotModal = false
			m.refresh()
			return m, nil
		case tea.KeyUp:
			if m.selectedSlot > 0 {
				m.selectedSlot--
			}
		case tea.KeyDown:
			if m.selectedSlot < len(m.slots)-1 {
				m.selectedSlot++
			}
		case tea.KeyEnter:
			if len(m.slots) == 0 {
				return m, nil
			}
			slot := m.slots[m.selectedSlot]
			if err := m.engine.LoadFromSlot(slot.ID); err != nil {
				m.err = err
			} else {
				m.status = "Loaded: " + slot.Name
			}
			m.showSlotModal = false
			m.refresh()
		default:
			if msg.String() == "d" && len(m.slots) > 0 {
				slot := m.slots[m.selectedSlot]
				if err := m.engine.DeleteSlot(slot.ID); err != nil {
					m.err = err
				}
				m.openSlotModal()
				if m.selectedSlot >= len(m.slots) && m.selectedSlot > 0 {
					m.selectedSlot = len(m.slots) - 1
				}
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				return m, nil
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit Game?"))
	content.WriteString("\n\n")
	content.WriteString("Your progress is saved automatically.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderSlotModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Load a Save"))
	content.WriteString("\n\n")

	if len(m.slots) == 0 {
		content.WriteString(promptStyle.Render("No saves yet. Press s while playing to save."))
	}
	for i, slot := range m.slots {
		line := fmt.Sprintf("%s · %s · %d%%", slot.Name, slot.Meta.CurrentLocation, slot.Meta.Progress)
		if i == m.selectedSlot {
			content.WriteString(modalSelectedItemStyle.Render("▶ " + line))
		} else {
			content.WriteString(modalItemStyle.Render("  " + line))
		}
		content.WriteString("\n")
	}

	content.WriteString("\n")
	content.WriteString(promptStyle.Render("Use ↑/↓ to navigate, Enter to load, d to delete, Esc to close"))

	modal := modalStyle.Width(70).Render(content.String())

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	if m.showSlotModal {
		return m.renderSlotModal()
	}
	if !m.ready {
		return "\n  Initializing..."
	}

	storyWidth := int(float64(m.width)*0.7) - 4
	metaWidth := m.width - storyWidth - 6

	storyPanel := storyPanelStyle.Width(storyWidth).Height(m.height - 3).Render(
		m.storyVp.View(),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, storyPanel, metaPanel)
}
