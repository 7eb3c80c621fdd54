// voice-tail follows a running agrivoice server's event stream and prints
// states, transcripts, answers and errors as they happen.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/term"

	"github.com/teslashibe/agrivoice/internal/log"
	"github.com/teslashibe/agrivoice/pkg/protocol"
)

const retryDelay = 2 * time.Second

func main() {
	url := flag.String("url", "ws://localhost:8080/ws/events", "event stream URL")
	interim := flag.Bool("interim", false, "show interim transcripts")
	noColor := flag.Bool("no-color", false, "disable colors")
	style := flag.String("style", "", "markdown style (dark, light, notty); detected when empty")
	flag.Parse()

	log.Init("warn")

	fd := int(os.Stdout.Fd())
	tty := term.IsTerminal(fd)
	width := 80
	if w, _, err := term.GetSize(fd); err == nil && w > 20 {
		width = w - 4
	}
	if !tty && *style == "" {
		*style = "notty"
	}

	d, err := newDisplay(os.Stdout, width, *style, *interim, tty && !*noColor)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	for {
		err := tail(ctx, *url, d)
		if ctx.Err() != nil {
			return
		}
		log.Warn("event stream lost, reconnecting", "url", *url, "error", err, "in", retryDelay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(retryDelay):
		}
	}
}

// tail reads one connection until it fails or ctx is done.
func tail(ctx context.Context, url string, d *display) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	fmt.Fprintf(os.Stderr, "following %s\n", url)
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return errors.New("server closed the stream")
			}
			return err
		}
		if kind != websocket.TextMessage {
			continue
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil {
			log.Debug("skipping malformed event", "error", err)
			continue
		}
		if err := d.handle(msg); err != nil {
			log.Debug("skipping undecodable event", "type", msg.Type, "error", err)
		}
	}
}
