package tui

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"io"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"
	"github.com/hylla/qboard/internal/app"
	"github.com/hylla/qboard/internal/board"
	"github.com/hylla/qboard/internal/domain"
)

// defaultSyncTimeout bounds background loads and commits when no option overrides it.
const defaultSyncTimeout = 15 * time.Second

// column layout constants shared by rendering and pointer hit testing.
const (
	headerLines       = 2 // title + spacer above the board
	columnHeaderLines = 2 // column title + spacer inside each column
	columnFrameTop    = 2 // top border + top padding
)

// dragSource records which input started the active drag.
type dragSource int

// dragNone and related constants define drag input sources.
const (
	dragNone dragSource = iota
	dragKeyboard
	dragMouse
)

// Model is the interactive board shell. It owns the controller on the UI
// goroutine and hands commits to background commands.
type Model struct {
	ctrl        *app.Controller
	projectID   string
	logger      *log.Logger
	syncTimeout time.Duration
	copyText    func(string) error

	ready  bool
	width  int
	height int

	status string
	err    error

	help       help.Model
	keys       keyMap
	taskFields TaskFieldConfig
	markdown   *markdownRenderer

	selectedColumn int
	selectedTask   int
	showDetail     bool

	drag       dragSource
	hover      board.Target
	hoverCol   int
	hoverSlot  int
	preview    board.Preview
	hasPreview bool
	inFlight   int
}

// loadedMsg carries a fetched board back to the UI goroutine.
type loadedMsg struct {
	projectID string
	data      app.BoardData
	err       error
}

// syncedMsg carries one commit's sync outcome.
type syncedMsg struct {
	result app.SyncResult
}

// copiedMsg reports a clipboard write.
type copiedMsg struct {
	text string
	err  error
}

// hit describes what a pointer position lands on.
type hit struct {
	colIdx   int
	columnID string
	colRect  board.Rect
	header   bool
	taskID   string
	position board.Position
}

// NewModel constructs a board shell for projectID.
func NewModel(ctrl *app.Controller, projectID string, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	m := Model{
		ctrl:        ctrl,
		projectID:   strings.TrimSpace(projectID),
		logger:      log.New(io.Discard),
		syncTimeout: defaultSyncTimeout,
		copyText:    clipboard.WriteAll,
		status:      "loading...",
		help:        h,
		keys:        newKeyMap(),
		taskFields:  DefaultTaskFieldConfig(),
		markdown:    &markdownRenderer{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

// Init handles init.
func (m Model) Init() tea.Cmd {
	return m.loadBoard
}

// Update updates state for the requested operation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.logger.Error("board load failed", "project", msg.projectID, "err", msg.err)
			return m, nil
		}
		if err := m.ctrl.Adopt(msg.projectID, msg.data); err != nil {
			m.err = err
			return m, nil
		}
		m.err = nil
		m.clampSelections()
		if m.status == "" || m.status == "loading..." {
			m.status = "ready"
		}
		return m, nil

	case syncedMsg:
		m.inFlight = max(0, m.inFlight-1)
		if err := m.ctrl.Reconcile(msg.result); err != nil {
			m.status = syncFailureStatus(err)
		} else if m.inFlight == 0 {
			m.status = "up to date"
			if msg.result.Requests > 1 {
				m.status = "saved"
			}
		}
		m.clampSelections()
		if m.drag != dragNone {
			if !m.ctrl.Session().Active() {
				m.endDrag()
				m.status = "drag cancelled: item was removed"
			} else {
				m.applyHover()
			}
		}
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.status = "copy failed: " + msg.err.Error()
			return m, nil
		}
		m.status = "copied " + msg.text
		return m, nil

	case tea.BlurMsg:
		if m.drag != dragNone {
			m.cancelDrag()
		}
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)

	case tea.MouseWheelMsg:
		return m.handleMouseWheel(msg)

	case tea.MouseClickMsg:
		return m.handleMouseClick(msg)

	case tea.MouseMotionMsg:
		return m.handleMouseMotion(msg)

	case tea.MouseReleaseMsg:
		return m.handleMouseRelease(msg)

	default:
		return m, nil
	}
}

// View handles view.
func (m Model) View() tea.View {
	v := tea.NewView(m.render())
	v.MouseMode = tea.MouseModeCellMotion
	v.ReportFocus = true
	v.AltScreen = true
	return v
}

// render builds the full screen as a string.
func (m Model) render() string {
	if m.err != nil {
		return "error: " + m.err.Error() + "\n\npress " + m.keys.reload.Help().Key + " to retry • q quit\n"
	}
	if !m.ready || !m.ctrl.Loaded() {
		return "loading..."
	}

	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	statusStyle := lipgloss.NewStyle().Foreground(dim)

	project := m.ctrl.Data().Project
	header := titleStyle.Render("qboard") + "  " + project.Name
	header += statusStyle.Render("  [" + m.modeLabel() + "]")
	if m.ctrl.PrioritySort() {
		header += statusStyle.Render("  priority sort")
	}
	if m.inFlight > 0 {
		header += statusStyle.Render(fmt.Sprintf("  syncing %d", m.inFlight))
	}

	sections := []string{header, "", m.renderColumns(muted, dim)}
	if summary := m.dragSummary(); summary != "" {
		sections = append(sections, statusStyle.Render(summary))
	}
	if strings.TrimSpace(m.status) != "" && m.status != "ready" {
		sections = append(sections, statusStyle.Render(m.status))
	}
	content := strings.Join(sections, "\n")

	helpBubble := m.help
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(m.keys))

	if m.height > 0 {
		content = fitLines(content, max(0, m.height-lipgloss.Height(helpLine)))
	}
	full := content + "\n" + helpLine
	if m.showDetail {
		if overlay := m.renderTaskDetails(muted, dim); overlay != "" {
			height := lipgloss.Height(full)
			if m.height > 0 {
				height = m.height
			}
			full = overlayOnContent(full, overlay, max(1, m.width), max(1, height))
		}
	}
	return full
}

// renderColumns renders the board body.
func (m Model) renderColumns(muted, dim color.Color) string {
	b := m.ctrl.Board()
	cols := b.ColumnsOrdered()
	if len(cols) == 0 {
		return lipgloss.NewStyle().Foreground(muted).Render("(no columns)")
	}

	colWidth := m.columnWidth()
	innerHeight := max(1, m.columnHeight()-4)
	subject := m.ctrl.Session().Subject()
	dragging := m.drag != dragNone

	titleStyle := lipgloss.NewStyle().Bold(true)
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	draggedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Italic(true)
	hoverStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	subStyle := lipgloss.NewStyle().Foreground(muted)

	views := make([]string, 0, len(cols))
	for colIdx, column := range cols {
		accent := columnAccent(column.Color)
		style := m.columnStyle(colWidth).BorderForeground(dim)
		if colIdx == m.selectedColumn {
			style = style.BorderForeground(accent)
		}
		if dragging && subject.Kind == board.SubjectColumn {
			switch {
			case subject.ID == column.ID:
				style = style.Border(lipgloss.DoubleBorder())
			case m.hover.ReferenceID == column.ID:
				style = style.BorderForeground(lipgloss.Color("214"))
			}
		}

		tasks := b.TasksInColumn(column.ID)
		title := fmt.Sprintf("%s (%d)", column.Name, len(tasks))
		if dragging && subject.Kind == board.SubjectColumn && m.hover.ReferenceID == column.ID && subject.ID != column.ID {
			if m.hover.Position == board.After {
				title += " ▶"
			} else {
				title = "◀ " + title
			}
		}
		lines := []string{titleStyle.Foreground(accent).Render(truncate(title, colWidth)), ""}

		if len(tasks) == 0 {
			lines = append(lines, emptyStyle.Render("(empty)"))
		}
		start := m.scrollFor(colIdx, len(tasks))
		for taskIdx := start; taskIdx < len(tasks); taskIdx++ {
			task := tasks[taskIdx]
			selected := !dragging && colIdx == m.selectedColumn && taskIdx == m.selectedTask
			isSubject := dragging && subject.Kind == board.SubjectTask && subject.ID == task.ID
			isReference := dragging && subject.Kind == board.SubjectTask && m.hover.ColumnID == column.ID && m.hover.ReferenceID == task.ID && !isSubject

			prefix := "   "
			switch {
			case isReference && m.hover.Position == board.After:
				prefix = "▼  "
			case isReference:
				prefix = "▲  "
			case isSubject:
				prefix = "»  "
			case selected:
				prefix = "│  "
			}
			cardTitle := prefix + truncate(task.Title, max(1, colWidth-4))
			switch {
			case isReference:
				cardTitle = hoverStyle.Render(cardTitle)
			case isSubject:
				cardTitle = draggedStyle.Render(cardTitle)
			case selected:
				cardTitle = selectedStyle.Render(cardTitle)
			}
			lines = append(lines, cardTitle)
			if m.taskFields.ShowPriority {
				lines = append(lines, "   "+subStyle.Render(truncate(m.cardMeta(task), max(1, colWidth-4))))
			}
			if m.taskFields.ShowDescription {
				lines = append(lines, "   "+subStyle.Render(truncate(firstLine(task.Description), max(1, colWidth-4))))
			}
			lines = append(lines, "")
		}
		if dragging && subject.Kind == board.SubjectTask && m.hover.ColumnID == column.ID && m.hover.ReferenceID == "" {
			lines = append(lines, hoverStyle.Render("▼  drop here"))
		}
		views = append(views, style.Render(fitLines(strings.Join(lines, "\n"), innerHeight)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, views...)
}

// renderTaskDetails renders the selected task with its markdown description.
func (m Model) renderTaskDetails(muted, dim color.Color) string {
	task, ok := m.selectedTaskValue()
	if !ok {
		return ""
	}
	accent := lipgloss.Color("62")
	if column, ok := m.ctrl.Board().Column(task.ColumnID); ok {
		accent = columnAccent(column.Color)
	}
	width := clamp(m.width-8, 24, 80)

	lines := []string{
		lipgloss.NewStyle().Bold(true).Foreground(accent).Render("Task Details"),
		task.Title,
	}
	meta := []string{"priority: " + task.Priority.Label()}
	if id := strings.TrimSpace(task.AssigneeID); id != "" {
		meta = append(meta, "assignee: "+id)
	}
	if id := strings.TrimSpace(task.ReporterID); id != "" {
		meta = append(meta, "reporter: "+id)
	}
	lines = append(lines, lipgloss.NewStyle().Foreground(muted).Render(strings.Join(meta, "  ")))
	if hash := strings.TrimSpace(task.CommitHash); hash != "" || task.LinesOfCode > 0 {
		code := make([]string, 0, 2)
		if hash != "" {
			code = append(code, "commit: "+hash)
		}
		if task.LinesOfCode > 0 {
			code = append(code, fmt.Sprintf("lines: %d", task.LinesOfCode))
		}
		lines = append(lines, lipgloss.NewStyle().Foreground(muted).Render(strings.Join(code, "  ")))
	}
	if desc := m.markdown.render(task.Description, width-4); desc != "" {
		lines = append(lines, "", desc)
	} else {
		lines = append(lines, lipgloss.NewStyle().Foreground(muted).Render("description: -"))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dim).
		Padding(0, 1).
		Width(width).
		Render(strings.Join(lines, "\n"))
}

// loadBoard fetches the board off the UI goroutine.
func (m Model) loadBoard() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), m.syncTimeout)
	defer cancel()
	data, err := m.ctrl.Fetch(ctx, m.projectID)
	return loadedMsg{projectID: m.projectID, data: data, err: err}
}

// syncCmd commits p in the background. In-flight commits are never cancelled.
func (m Model) syncCmd(p app.PendingCommit) tea.Cmd {
	ctrl, timeout := m.ctrl, m.syncTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return syncedMsg{result: ctrl.Sync(ctx, p)}
	}
}

// handleKey routes one key press.
func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.quit) {
		return m, tea.Quit
	}
	if m.err != nil || !m.ctrl.Loaded() {
		if key.Matches(msg, m.keys.reload) {
			m.err = nil
			m.status = "loading..."
			return m, m.loadBoard
		}
		return m, nil
	}
	if m.showDetail {
		switch {
		case key.Matches(msg, m.keys.cancel), key.Matches(msg, m.keys.detail):
			m.showDetail = false
		case key.Matches(msg, m.keys.yank):
			return m.yankSelected()
		}
		return m, nil
	}
	if m.drag != dragNone {
		return m.handleDragKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.moveLeft):
		m.selectedColumn--
		m.clampSelections()
	case key.Matches(msg, m.keys.moveRight):
		m.selectedColumn++
		m.clampSelections()
	case key.Matches(msg, m.keys.moveUp):
		m.selectedTask--
		m.clampSelections()
	case key.Matches(msg, m.keys.moveDown):
		m.selectedTask++
		m.clampSelections()
	case key.Matches(msg, m.keys.grab):
		task, ok := m.selectedTaskValue()
		if !ok {
			m.status = "no task selected"
			return m, nil
		}
		if err := m.ctrl.StartTaskDrag(task.ID); err != nil {
			m.status = "grab failed: " + err.Error()
			return m, nil
		}
		m.beginKeyboardDrag()
	case key.Matches(msg, m.keys.grabColumn):
		column, ok := m.selectedColumnValue()
		if !ok {
			return m, nil
		}
		if err := m.ctrl.StartColumnDrag(column.ID); err != nil {
			m.status = "grab failed: " + err.Error()
			return m, nil
		}
		m.beginKeyboardDrag()
	case key.Matches(msg, m.keys.prioritySort):
		m.ctrl.SetPrioritySort(!m.ctrl.PrioritySort())
		if m.ctrl.PrioritySort() {
			m.status = "priority sort on"
		} else {
			m.status = "priority sort off"
		}
	case key.Matches(msg, m.keys.reload):
		m.inFlight++
		m.status = "reloading..."
		return m, m.syncCmd(m.ctrl.Reload())
	case key.Matches(msg, m.keys.detail):
		if _, ok := m.selectedTaskValue(); ok {
			m.showDetail = true
		}
	case key.Matches(msg, m.keys.yank):
		return m.yankSelected()
	}
	return m, nil
}

// handleDragKey moves the keyboard hover target, drops, or cancels.
func (m Model) handleDragKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.cancel):
		m.cancelDrag()
		return m, nil
	case key.Matches(msg, m.keys.drop):
		return m.dropAt(m.hover)
	case key.Matches(msg, m.keys.moveLeft):
		m.moveHover(-1, 0)
	case key.Matches(msg, m.keys.moveRight):
		m.moveHover(1, 0)
	case key.Matches(msg, m.keys.moveUp):
		m.moveHover(0, -1)
	case key.Matches(msg, m.keys.moveDown):
		m.moveHover(0, 1)
	}
	return m, nil
}

// beginKeyboardDrag places the hover target on the subject's current spot.
func (m *Model) beginKeyboardDrag() {
	m.drag = dragKeyboard
	m.hoverCol = m.selectedColumn
	m.hoverSlot = m.selectedTask
	if m.ctrl.Session().Subject().Kind == board.SubjectColumn {
		m.hoverSlot = m.selectedColumn
	}
	m.hover = m.keyboardTarget()
	m.applyHover()
}

// moveHover shifts the keyboard hover target by columns (dx) or slots (dy).
func (m *Model) moveHover(dx, dy int) {
	b := m.ctrl.Board()
	subject := m.ctrl.Session().Subject()
	cols := b.ColumnIDs()
	switch subject.Kind {
	case board.SubjectTask:
		m.hoverCol = clamp(m.hoverCol+dx, 0, len(cols)-1)
		others := otherTasks(b, cols[m.hoverCol], subject.ID)
		m.hoverSlot = clamp(m.hoverSlot+dy, 0, len(others))
	case board.SubjectColumn:
		m.hoverSlot = clamp(m.hoverSlot+dx, 0, len(cols)-1)
	}
	m.hover = m.keyboardTarget()
	m.applyHover()
}

// keyboardTarget maps the hover column and slot onto a drop target.
// Slots index the gaps between the items other than the subject.
func (m Model) keyboardTarget() board.Target {
	b := m.ctrl.Board()
	subject := m.ctrl.Session().Subject()
	cols := b.ColumnIDs()
	if len(cols) == 0 {
		return board.Target{}
	}
	switch subject.Kind {
	case board.SubjectTask:
		columnID := cols[clamp(m.hoverCol, 0, len(cols)-1)]
		others := otherTasks(b, columnID, subject.ID)
		switch {
		case m.hoverSlot < len(others):
			return board.Target{ColumnID: columnID, ReferenceID: others[m.hoverSlot], Position: board.Before}
		case len(others) > 0:
			return board.Target{ColumnID: columnID, ReferenceID: others[len(others)-1], Position: board.After}
		default:
			return board.Target{ColumnID: columnID}
		}
	case board.SubjectColumn:
		others := make([]string, 0, len(cols))
		for _, id := range cols {
			if id != subject.ID {
				others = append(others, id)
			}
		}
		switch {
		case m.hoverSlot < len(others):
			return board.Target{ColumnID: others[m.hoverSlot], ReferenceID: others[m.hoverSlot], Position: board.Before}
		case len(others) > 0:
			last := others[len(others)-1]
			return board.Target{ColumnID: last, ReferenceID: last, Position: board.After}
		default:
			return board.Target{ColumnID: subject.ID}
		}
	}
	return board.Target{}
}

// applyHover recomputes the preview for the current hover target.
func (m *Model) applyHover() {
	preview, err := m.ctrl.Hover(m.hover)
	if err != nil {
		m.hasPreview = false
		m.status = "invalid target: " + err.Error()
		return
	}
	m.preview = preview
	m.hasPreview = true
}

// dropAt resolves the active drag on target and starts syncing when needed.
func (m Model) dropAt(target board.Target) (tea.Model, tea.Cmd) {
	source := m.drag
	subject := m.ctrl.Session().Subject()
	pending, err := m.ctrl.Drop(target)
	m.endDrag()
	if err != nil {
		m.status = "drop failed: " + err.Error()
		return m, nil
	}
	switch {
	case pending.Commit.Cancelled:
		m.status = "move cancelled"
		return m, nil
	case pending.Commit.NoOp:
		if source == dragKeyboard {
			m.status = "no change"
		}
		return m, nil
	}
	m.focusSubject(subject)
	if !pending.NeedsSync() {
		m.status = "moved"
		return m, nil
	}
	m.inFlight++
	m.status = "saving..."
	m.logger.Debug("board commit queued", "id", pending.ID, "seq", pending.Sequence, "subject", subject.ID)
	return m, m.syncCmd(pending)
}

// cancelDrag abandons the active drag without touching the board.
func (m *Model) cancelDrag() {
	m.ctrl.Cancel()
	m.endDrag()
	m.status = "move cancelled"
}

// endDrag clears drag-local state.
func (m *Model) endDrag() {
	m.drag = dragNone
	m.hover = board.Target{}
	m.hoverCol = 0
	m.hoverSlot = 0
	m.preview = board.Preview{}
	m.hasPreview = false
}

// dragSummary describes where the current hover would land.
func (m Model) dragSummary() string {
	if m.drag == dragNone || !m.hasPreview {
		return ""
	}
	commit := m.preview.Commit
	switch {
	case m.hover.IsZero():
		return "release to cancel"
	case commit.NoOp:
		return "drop: no change"
	case commit.TaskMoved != nil:
		name := commit.TaskMoved.ToColumnID
		if column, ok := commit.Board.Column(commit.TaskMoved.ToColumnID); ok {
			name = column.Name
		}
		return fmt.Sprintf("drop: %s #%d", name, commit.TaskMoved.ToIndex+1)
	case len(commit.Reordered) > 0:
		for idx, id := range commit.Board.ColumnIDs() {
			if id == commit.Subject.ID {
				return fmt.Sprintf("drop: column position %d", idx+1)
			}
		}
	}
	return ""
}

// yankSelected copies the selected task's commit hash, or its id when unset.
func (m Model) yankSelected() (tea.Model, tea.Cmd) {
	task, ok := m.selectedTaskValue()
	if !ok {
		m.status = "no task selected"
		return m, nil
	}
	text := strings.TrimSpace(task.CommitHash)
	if text == "" {
		text = task.ID
	}
	write := m.copyText
	return m, func() tea.Msg {
		return copiedMsg{text: text, err: write(text)}
	}
}

// handleMouseWheel handles mouse wheel.
func (m Model) handleMouseWheel(msg tea.MouseWheelMsg) (tea.Model, tea.Cmd) {
	if m.drag != dragNone || m.showDetail || !m.ctrl.Loaded() {
		return m, nil
	}
	switch msg.Button {
	case tea.MouseWheelUp:
		m.selectedTask--
	case tea.MouseWheelDown:
		m.selectedTask++
	}
	m.clampSelections()
	return m, nil
}

// handleMouseClick selects what is under the pointer and starts a drag on it.
// Column titles start column drags and cards start task drags.
// A press during a mouse drag means the release was lost, so the drag is cancelled.
func (m Model) handleMouseClick(msg tea.MouseClickMsg) (tea.Model, tea.Cmd) {
	if m.drag == dragMouse {
		m.cancelDrag()
		return m, nil
	}
	if msg.Button != tea.MouseLeft || m.drag != dragNone || m.showDetail || !m.ctrl.Loaded() {
		return m, nil
	}
	h, ok := m.hitTest(msg.X, msg.Y)
	if !ok {
		return m, nil
	}
	m.selectedColumn = h.colIdx
	switch {
	case h.header:
		if err := m.ctrl.StartColumnDrag(h.columnID); err != nil {
			m.status = "grab failed: " + err.Error()
			return m, nil
		}
	case h.taskID != "":
		_, idx, _ := m.ctrl.Board().Locate(h.taskID)
		m.selectedTask = idx
		if err := m.ctrl.StartTaskDrag(h.taskID); err != nil {
			m.status = "grab failed: " + err.Error()
			return m, nil
		}
	default:
		m.clampSelections()
		return m, nil
	}
	m.drag = dragMouse
	m.hover = m.mouseTarget(msg.X, msg.Y)
	m.applyHover()
	return m, nil
}

// handleMouseMotion updates the hover target during a mouse drag.
func (m Model) handleMouseMotion(msg tea.MouseMotionMsg) (tea.Model, tea.Cmd) {
	if m.drag != dragMouse {
		return m, nil
	}
	target := m.mouseTarget(msg.X, msg.Y)
	if target == m.hover && m.hasPreview {
		return m, nil
	}
	m.hover = target
	m.applyHover()
	return m, nil
}

// handleMouseRelease drops a mouse drag where the pointer is released.
func (m Model) handleMouseRelease(msg tea.MouseReleaseMsg) (tea.Model, tea.Cmd) {
	if m.drag != dragMouse {
		return m, nil
	}
	return m.dropAt(m.mouseTarget(msg.X, msg.Y))
}

// mouseTarget maps a pointer position onto a drop target for the active subject.
// Positions outside every column yield the zero target.
func (m Model) mouseTarget(x, y int) board.Target {
	h, ok := m.hitTest(x, y)
	if !ok {
		return board.Target{}
	}
	if m.ctrl.Session().Subject().Kind == board.SubjectColumn {
		return board.Target{ColumnID: h.columnID, ReferenceID: h.columnID, Position: board.PositionFromPointer(x, h.colRect)}
	}
	switch {
	case h.header:
		tasks := m.ctrl.Board().TasksInColumn(h.columnID)
		if len(tasks) == 0 {
			return board.Target{ColumnID: h.columnID}
		}
		return board.Target{ColumnID: h.columnID, ReferenceID: tasks[0].ID, Position: board.Before}
	case h.taskID == "":
		return board.Target{ColumnID: h.columnID}
	default:
		return board.Target{ColumnID: h.columnID, ReferenceID: h.taskID, Position: h.position}
	}
}

// hitTest resolves a screen position against the committed board layout.
func (m Model) hitTest(x, y int) (hit, bool) {
	b := m.ctrl.Board()
	cols := b.ColumnsOrdered()
	stride := m.columnStride()
	if len(cols) == 0 || stride <= 0 || x < 0 {
		return hit{}, false
	}
	colIdx := x / stride
	if colIdx >= len(cols) {
		return hit{}, false
	}
	top := m.boardTop()
	if y < top || y >= top+m.columnHeight() {
		return hit{}, false
	}
	column := cols[colIdx]
	h := hit{
		colIdx:   colIdx,
		columnID: column.ID,
		colRect:  board.Rect{Top: colIdx * stride, Height: stride},
	}
	if y < m.taskTop() {
		h.header = true
		return h, true
	}

	tasks := b.TasksInColumn(column.ID)
	slot := m.slotHeight()
	start := m.scrollFor(colIdx, len(tasks))
	idx := start + (y-m.taskTop())/slot
	if idx >= len(tasks) {
		return h, true
	}
	cardTop := m.taskTop() + (idx-start)*slot
	h.taskID = tasks[idx].ID
	h.position = board.After
	if y < cardTop+m.cardHeight() {
		h.position = board.PositionFromPointer(y, board.Rect{Top: cardTop, Height: m.cardHeight()})
	}
	return h, true
}

// clampSelections clamps selections.
func (m *Model) clampSelections() {
	cols := m.ctrl.Board().ColumnIDs()
	if len(cols) == 0 {
		m.selectedColumn = 0
		m.selectedTask = 0
		return
	}
	m.selectedColumn = clamp(m.selectedColumn, 0, len(cols)-1)
	tasks := m.ctrl.Board().TasksInColumn(cols[m.selectedColumn])
	m.selectedTask = clamp(m.selectedTask, 0, len(tasks)-1)
}

// focusSubject moves the selection onto a dropped item.
func (m *Model) focusSubject(subject board.Subject) {
	b := m.ctrl.Board()
	cols := b.ColumnIDs()
	columnID := subject.ID
	taskIdx := m.selectedTask
	if subject.Kind == board.SubjectTask {
		var ok bool
		columnID, taskIdx, ok = b.Locate(subject.ID)
		if !ok {
			return
		}
	}
	for idx, id := range cols {
		if id == columnID {
			m.selectedColumn = idx
			m.selectedTask = taskIdx
			break
		}
	}
	m.clampSelections()
}

// selectedColumnValue returns the selected column.
func (m Model) selectedColumnValue() (domain.Column, bool) {
	cols := m.ctrl.Board().ColumnsOrdered()
	if len(cols) == 0 {
		return domain.Column{}, false
	}
	return cols[clamp(m.selectedColumn, 0, len(cols)-1)], true
}

// selectedTaskValue returns the selected task.
func (m Model) selectedTaskValue() (domain.Task, bool) {
	column, ok := m.selectedColumnValue()
	if !ok {
		return domain.Task{}, false
	}
	tasks := m.ctrl.Board().TasksInColumn(column.ID)
	if len(tasks) == 0 {
		return domain.Task{}, false
	}
	return tasks[clamp(m.selectedTask, 0, len(tasks)-1)], true
}

// modeLabel returns the header mode label.
func (m Model) modeLabel() string {
	switch {
	case m.showDetail:
		return "info"
	case m.drag != dragNone && m.ctrl.Session().Subject().Kind == board.SubjectColumn:
		return "drag column"
	case m.drag != dragNone:
		return "drag task"
	default:
		return "board"
	}
}

// cardMeta returns the secondary card line.
func (m Model) cardMeta(task domain.Task) string {
	meta := "priority: " + task.Priority.Label()
	if id := strings.TrimSpace(task.AssigneeID); id != "" {
		meta += "  @" + id
	}
	return meta
}

// syncFailureStatus renders a sync error for the status line.
func syncFailureStatus(err error) string {
	if errors.Is(err, app.ErrUnauthorized) {
		return "login required: " + err.Error()
	}
	return "sync failed: " + err.Error()
}

// otherTasks lists a column's task ids without the dragged one.
func otherTasks(b board.Board, columnID, subjectID string) []string {
	tasks := b.TasksInColumn(columnID)
	out := make([]string, 0, len(tasks))
	for _, task := range tasks {
		if task.ID != subjectID {
			out = append(out, task.ID)
		}
	}
	return out
}

// columnAccent maps a palette color onto a terminal color.
func columnAccent(c domain.ColumnColor) color.Color {
	switch c {
	case domain.ColorBlue:
		return lipgloss.Color("39")
	case domain.ColorAmber:
		return lipgloss.Color("214")
	case domain.ColorGreen:
		return lipgloss.Color("42")
	case domain.ColorRed:
		return lipgloss.Color("203")
	case domain.ColorPurple:
		return lipgloss.Color("141")
	case domain.ColorPink:
		return lipgloss.Color("212")
	case domain.ColorCyan:
		return lipgloss.Color("44")
	default:
		return lipgloss.Color("245")
	}
}

// columnStyle returns the base column box style.
func (m Model) columnStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(1, 2).
		MarginRight(1).
		Width(width)
}

// columnStride returns the rendered width of one column including its margin.
func (m Model) columnStride() int {
	return lipgloss.Width(m.columnStyle(m.columnWidth()).Render(""))
}

// columnWidth returns column width.
func (m Model) columnWidth() int {
	return m.columnWidthFor(m.width)
}

// columnWidthFor returns column width for.
func (m Model) columnWidthFor(boardWidth int) int {
	count := len(m.ctrl.Board().ColumnIDs())
	if count == 0 {
		return 24
	}
	w := 28
	if boardWidth > 0 {
		// Per-column overhead: left/right border (2), horizontal padding (4), margin-right (1)
		const colOverhead = 7
		usable := boardWidth - count*colOverhead
		candidate := usable / count
		if candidate > 0 {
			w = candidate
		}
	}
	return clamp(w, 24, 42)
}

// columnHeight returns column height.
func (m Model) columnHeight() int {
	footerLines := 5
	h := m.height - headerLines - footerLines
	if h < 12 {
		return 12
	}
	return h
}

// boardTop returns the first screen row of the column boxes.
func (m Model) boardTop() int {
	return headerLines
}

// taskTop returns the screen row of the first visible card.
func (m Model) taskTop() int {
	return m.boardTop() + columnFrameTop + columnHeaderLines
}

// cardHeight returns the rendered rows of one card.
func (m Model) cardHeight() int {
	h := 1
	if m.taskFields.ShowPriority {
		h++
	}
	if m.taskFields.ShowDescription {
		h++
	}
	return h
}

// slotHeight returns one card plus its spacer.
func (m Model) slotHeight() int {
	return m.cardHeight() + 1
}

// scrollFor returns the first visible task index of a column, keeping the
// selected task (or the keyboard hover slot while dragging) in view.
func (m Model) scrollFor(colIdx, taskCount int) int {
	focus := -1
	switch {
	case m.drag == dragKeyboard && colIdx == m.hoverCol:
		focus = m.hoverSlot
	case colIdx == m.selectedColumn:
		focus = m.selectedTask
	}
	if focus < 0 {
		return 0
	}
	visible := max(1, (m.columnHeight()-4-columnHeaderLines)/m.slotHeight())
	return clamp(focus-visible+1, 0, max(0, taskCount-1))
}

// clamp clamps the requested operation.
func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

// fitLines fits lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		padding := make([]string, maxLines-len(lines))
		lines = append(lines, padding...)
	}
	return strings.Join(lines, "\n")
}

// overlayOnContent overlays on content.
func overlayOnContent(base, overlay string, width, height int) string {
	if width <= 0 || height <= 0 {
		if strings.TrimSpace(overlay) == "" {
			return base
		}
		return overlay + "\n\n" + base
	}

	base = fitLines(base, height)
	canvas := lipgloss.NewCanvas(width, height)
	baseLayer := lipgloss.NewLayer(base).X(0).Y(0).Z(0)
	centeredOverlay := lipgloss.Place(
		width,
		height,
		lipgloss.Center,
		lipgloss.Center,
		overlay,
	)
	overlayLayer := lipgloss.NewLayer(centeredOverlay).X(0).Y(0).Z(10)

	canvas.Compose(baseLayer)
	canvas.Compose(overlayLayer)
	return canvas.Render()
}

// truncate truncates the requested operation.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	if max <= 1 {
		return string(rs[:max])
	}
	return string(rs[:max-1]) + "…"
}

// firstLine returns the first non-blank line of s.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
