// Package notify sends fire-and-forget HTTP notifications for column session
// events. The primary use case is ntfy.sh, but any HTTP webhook works.
package notify

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/session"
	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/stream"
)

// Notifier posts plain-text HTTP notifications for selected store changes.
type Notifier struct {
	url        string
	title      string
	onComplete bool
	onFailure  bool
	client     *http.Client
}

// New creates a Notifier. title is used as the X-Title header; if empty,
// "colmon" is used instead.
func New(notifURL, title string, onComplete, onFailure bool) *Notifier {
	if title == "" {
		title = "colmon"
	}
	return &Notifier{
		url:        notifURL,
		title:      title,
		onComplete: onComplete,
		onFailure:  onFailure,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Hook is a stream.Store subscriber. It fires asynchronous POSTs for replay
// completion and session failures, as enabled.
func (n *Notifier) Hook(ch stream.Change) {
	switch {
	case ch.Completed:
		if n.onComplete {
			go n.post("Replay complete")
		}
	case ch.Kind == stream.ChangeTransition && ch.Event == session.EventFail:
		if n.onFailure {
			go n.post(failureMessage(ch))
		}
	}
}

func failureMessage(ch stream.Change) string {
	msg := fmt.Sprintf("%s session failed", strings.ToLower(ch.Prev.Label()))
	if ch.Err != nil {
		msg += ": " + ch.Err.Error()
	}
	return msg
}

// post sends a plain-text POST to the configured URL. Errors are silently
// discarded so notification failures never interrupt monitoring.
func (n *Notifier) post(message string) {
	req, err := http.NewRequest(http.MethodPost, n.url, strings.NewReader(message))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("X-Title", n.title)
	resp, err := n.client.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}
