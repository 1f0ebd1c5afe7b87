// Package monitor renders a live tview/tcell terminal view of a Subscriber:
// its subject, sid and connection state, the incoming messages, and a
// message-rate sparkline. Mailbox depths are not shown.
package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/guptarohit/asciigraph"
	"github.com/rivo/tview"

	"github.com/nats-lite/gonats-core/internal/metrics"
	"github.com/nats-lite/gonats-core/internal/proto"
	"github.com/nats-lite/gonats-core/internal/subscriber"
)

// pollInterval is how often the view drains pending messages from the
// Subscriber and redraws the rate sparkline.
const pollInterval = 250 * time.Millisecond

// rateWindow bounds how many samples the sparkline keeps; at pollInterval
// this covers roughly the last minute.
const rateWindow = 240

// View drives a Subscriber's Fetch loop and renders arriving messages,
// connection state, and a rolling messages-per-second sparkline.
type View struct {
	app *tview.Application
	sub *subscriber.Subscriber
	rec *metrics.Metrics

	root     *tview.Flex
	header   *statusLine
	messages *tview.TextView
	sparkle  *tview.TextView
	footer   *statusLine
	pages    *tview.Pages

	subject string
	sid     string

	stop        chan struct{}
	rateSamples []float64
	lastCount   uint64
}

// New builds a View bound to an already-connected Subscriber. rec may be
// nil; when non-nil its counters feed the rate sparkline.
func New(app *tview.Application, sub *subscriber.Subscriber, rec *metrics.Metrics, subject, sid string) *View {
	v := &View{
		app:     app,
		sub:     sub,
		rec:     rec,
		subject: subject,
		sid:     sid,
		stop:    make(chan struct{}),
	}

	v.header = newStatusLine()

	v.messages = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(false)
	v.messages.SetBorder(true).
		SetTitle(fmt.Sprintf(" Messages: %s ", subject)).
		SetTitleAlign(tview.AlignCenter)

	v.sparkle = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false).
		SetWordWrap(false)
	v.sparkle.SetBorder(true).
		SetTitle(" Rate (msg/s) ").
		SetTitleAlign(tview.AlignCenter)

	v.footer = newStatusLine()

	v.updateHeader()
	v.updateFooter()

	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(v.header, 1, 0, false).
		AddItem(v.messages, 0, 3, false).
		AddItem(v.sparkle, 10, 0, false).
		AddItem(v.footer, 1, 0, false)

	v.pages = tview.NewPages().AddPage("main", layout, true, true)
	v.root = tview.NewFlex().AddItem(v.pages, 0, 1, true)

	v.setupKeybindings()
	return v
}

// ShowFatalError displays a dismissable error dialog over the view; onDismiss
// is called after the user acknowledges it, typically to stop the app.
func (v *View) ShowFatalError(message string, onDismiss func()) {
	modal := errorModal(message, func() {
		v.pages.RemovePage("error")
		if onDismiss != nil {
			onDismiss()
		}
	})
	v.pages.AddPage("error", modal, true, true)
}

func (v *View) setupKeybindings() {
	v.root.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC:
			v.app.Stop()
			return nil
		case tcell.KeyRune:
			if event.Rune() == 'q' {
				v.app.Stop()
				return nil
			}
		}
		return event
	})
}

// GetPrimitive returns the primitive for this view.
func (v *View) GetPrimitive() tview.Primitive {
	return v.root
}

// Run starts the poll loop and blocks in the tview event loop until Stop is
// called or the application otherwise exits.
func (v *View) Run() error {
	go v.pollLoop()
	v.app.SetRoot(v.root, true).SetFocus(v.messages)
	err := v.app.Run()
	close(v.stop)
	return err
}

func (v *View) pollLoop() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-v.stop:
			return
		case <-ticker.C:
			v.drainAvailable()
			v.app.QueueUpdateDraw(func() {
				v.updateHeader()
				v.updateSparkline()
			})
		}
	}
}

// drainAvailable fetches whatever has already arrived without blocking the
// poll loop for longer than a single tick.
func (v *View) drainAvailable() {
	for {
		m, err := v.sub.Fetch(1 * time.Millisecond)
		if err != nil {
			return
		}
		line := v.formatMessage(m)
		_ = v.sub.Reuse(m)
		v.app.QueueUpdateDraw(func() {
			fmt.Fprintln(v.messages, line)
			v.messages.ScrollToEnd()
		})
	}
}

func (v *View) formatMessage(m *proto.Message) string {
	headerCount := 0
	if body, ok := m.Headers.Body(); ok && len(body) > 0 {
		_ = m.Headers.Iterate(func(name, value string) error {
			headerCount++
			return nil
		})
	}
	body, _ := m.Payload.Body()
	preview := string(body)
	if len(preview) > 80 {
		preview = preview[:77] + "..."
	}
	preview = strings.ReplaceAll(preview, "\n", "\\n")

	reply := m.ReplyToString()
	replyPart := ""
	if reply != "" {
		replyPart = fmt.Sprintf(" reply=%s", reply)
	}
	return fmt.Sprintf("[green]%s[white] subject=%s%s hdrs=%d bytes=%d  %q",
		time.Now().Format("15:04:05.000"), m.SubjectString(), replyPart, headerCount, len(body), preview)
}

func (v *View) updateHeader() {
	state := v.sub.State()
	v.header.setHeader(v.subject, v.sid, state.String(), state == subscriber.Running)
}

func (v *View) updateFooter() {
	v.footer.setHint("q/Ctrl+C: quit")
}

func (v *View) updateSparkline() {
	if v.rec == nil {
		v.sparkle.SetText("[gray]no recorder configured[white]")
		return
	}
	total := v.rec.FramesReceivedTotal()
	delta := float64(total - v.lastCount)
	v.lastCount = total
	rate := delta / pollInterval.Seconds()

	v.rateSamples = append(v.rateSamples, rate)
	if len(v.rateSamples) > rateWindow {
		v.rateSamples = v.rateSamples[len(v.rateSamples)-rateWindow:]
	}
	if len(v.rateSamples) < 2 {
		v.sparkle.SetText("[gray]collecting samples...[white]")
		return
	}

	_, _, width, height := v.sparkle.GetInnerRect()
	graphWidth := width - 12
	if graphWidth < 20 {
		graphWidth = 20
	}
	graphHeight := height - 2
	if graphHeight < 4 {
		graphHeight = 4
	}
	graph := asciigraph.Plot(v.rateSamples,
		asciigraph.Height(graphHeight),
		asciigraph.Width(graphWidth),
		asciigraph.Caption(fmt.Sprintf("current=%.1f/s", rate)))
	v.sparkle.SetText(graph)
}
