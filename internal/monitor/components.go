package monitor

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// statusLine is a single-line, dynamically-colored TextView used for both
// the view's header and footer.
type statusLine struct {
	*tview.TextView
}

func newStatusLine() *statusLine {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	return &statusLine{TextView: tv}
}

// setHeader renders the subject, sid, and connection state banner.
func (s *statusLine) setHeader(subject, sid, state string, connected bool) {
	color := "red"
	if connected {
		color = "green"
	}
	s.SetText(fmt.Sprintf(" [yellow]gonats-sub[white] monitor   subject=[cyan]%s[white] sid=[cyan]%s[white]   state=[%s]%s[white]",
		subject, sid, color, state))
}

// setHint renders the footer's keybinding hint line.
func (s *statusLine) setHint(text string) {
	s.SetText(" " + text)
}

// errorModal builds a dismissable error dialog, for fatal connect or
// subscribe failures surfaced before the message stream starts.
func errorModal(message string, onDismiss func()) *tview.Modal {
	modal := tview.NewModal().
		SetText("Error: " + message).
		AddButtons([]string{"OK"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			if onDismiss != nil {
				onDismiss()
			}
		})
	modal.SetBackgroundColor(tcell.ColorDefault)
	modal.SetButtonBackgroundColor(tcell.ColorRed)
	modal.SetButtonTextColor(tcell.ColorWhite)
	return modal
}
