package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/logdesk/internal/license"
	"github.com/tinytelemetry/logdesk/internal/model"
)

// Sender delivers messages into a running program. *tea.Program satisfies
// it.
type Sender interface {
	Send(msg tea.Msg)
}

// LogAppendedMsg carries one newly ingested entry.
type LogAppendedMsg struct {
	Entry model.LogEntry
}

// LogsReplacedMsg replaces every displayed entry.
type LogsReplacedMsg struct {
	Entries []model.LogEntry
}

// LogStatsMsg carries updated counters.
type LogStatsMsg struct {
	Counts model.Counts
}

// LicenseStatusMsg carries a freshly rendered license card.
type LicenseStatusMsg struct {
	View license.StatusView
}

// NotificationsMsg carries the full visible notification list.
type NotificationsMsg struct {
	List []license.Notification
}

// Bridge implements the controller rendering ports by forwarding every call
// to the program as a message. Calls made before Attach are dropped.
type Bridge struct {
	mu     sync.RWMutex
	sender Sender
}

// NewBridge returns a bridge with no program attached.
func NewBridge() *Bridge {
	return &Bridge{}
}

// Attach sets the program that receives messages.
func (b *Bridge) Attach(s Sender) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sender = s
}

func (b *Bridge) send(msg tea.Msg) {
	b.mu.RLock()
	s := b.sender
	b.mu.RUnlock()
	if s != nil {
		s.Send(msg)
	}
}

func (b *Bridge) DisplayLog(entry model.LogEntry) {
	b.send(LogAppendedMsg{Entry: entry})
}

func (b *Bridge) DisplayAll(entries []model.LogEntry) {
	b.send(LogsReplacedMsg{Entries: append([]model.LogEntry(nil), entries...)})
}

func (b *Bridge) DisplayStats(counts model.Counts) {
	b.send(LogStatsMsg{Counts: counts})
}

func (b *Bridge) DisplayLicenseStatus(view license.StatusView) {
	b.send(LicenseStatusMsg{View: view})
}

func (b *Bridge) DisplayNotifications(list []license.Notification) {
	b.send(NotificationsMsg{List: append([]license.Notification(nil), list...)})
}
