package events

import (
	"log"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestHub_BroadcastsToClient(t *testing.T) {
	hub := NewHub(nil, log.New(os.Stderr, "", 0))
	defer hub.Close()

	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	// The client registers asynchronously after the upgrade; give the
	// handler a moment before broadcasting.
	deadline := time.Now().Add(2 * time.Second)
	var got Event
	for {
		hub.Report(Event{Level: LevelWarning, Stage: "overscan", Image: "img.fits", Message: "threshold doubled"})

		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		if err := conn.ReadJSON(&got); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no event received before deadline")
		}
	}

	if got.Level != LevelWarning || got.Stage != "overscan" || got.Image != "img.fits" {
		t.Errorf("unexpected event: %+v", got)
	}
}

func TestMultiReporter(t *testing.T) {
	var buf strings.Builder
	lr := NewLogReporter(log.New(&buf, "", 0))

	m := MultiReporter{lr, NopReporter{}}
	m.Report(Event{Level: LevelInfo, Stage: "photometry", Message: "done"})

	if !strings.Contains(buf.String(), "photometry: done") {
		t.Errorf("unexpected log line: %q", buf.String())
	}
}
