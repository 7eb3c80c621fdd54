package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/teslashibe/agrivoice/pkg/protocol"
)

const (
	colorReset  = "\033[0m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

// display prints orchestrator events. Answers are rendered as markdown.
type display struct {
	out     io.Writer
	md      *glamour.TermRenderer
	interim bool
	color   bool
}

func newDisplay(out io.Writer, width int, style string, interim, color bool) (*display, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	md, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, fmt.Errorf("markdown renderer: %w", err)
	}
	return &display{out: out, md: md, interim: interim, color: color}, nil
}

func (d *display) paint(color, s string) string {
	if !d.color {
		return s
	}
	return color + s + colorReset
}

func (d *display) stamp(msg *protocol.Message) string {
	t := time.Now()
	if msg.Timestamp > 0 {
		t = time.UnixMilli(msg.Timestamp)
	}
	return d.paint(colorDim, t.Format("15:04:05"))
}

// handle prints one event. Unknown types are ignored.
func (d *display) handle(msg *protocol.Message) error {
	switch msg.Type {
	case protocol.TypeState:
		s, err := protocol.Decode[protocol.StateData](msg)
		if err != nil {
			return err
		}
		fmt.Fprintf(d.out, "%s %s %s → %s\n", d.stamp(msg), d.paint(colorDim, "state"), s.Previous, s.State)

	case protocol.TypeTranscription:
		tr, err := protocol.Decode[protocol.TranscriptionData](msg)
		if err != nil {
			return err
		}
		if !tr.IsFinal {
			if d.interim {
				fmt.Fprintf(d.out, "%s %s\n", d.stamp(msg), d.paint(colorDim, "… "+tr.Text))
			}
			return nil
		}
		fmt.Fprintf(d.out, "%s %s %s %s\n", d.stamp(msg), d.paint(colorCyan, "you"),
			tr.Text, d.paint(colorDim, fmt.Sprintf("[%s %.0f%%]", tr.Language, tr.Confidence*100)))

	case protocol.TypeResponse:
		r, err := protocol.Decode[protocol.ResponseData](msg)
		if err != nil {
			return err
		}
		body, err := d.md.Render(r.Response)
		if err != nil {
			body = r.Response + "\n"
		}
		meta := fmt.Sprintf("[%s via %s, %dms]", r.Language, r.Provider, r.LatencyMs)
		if r.Fallback {
			meta += " fallback"
		}
		fmt.Fprintf(d.out, "%s %s %s\n%s", d.stamp(msg), d.paint(colorGreen, "agrivoice"),
			d.paint(colorDim, meta), strings.TrimLeft(body, "\n"))

	case protocol.TypeError:
		e, err := protocol.Decode[protocol.ErrorEvent](msg)
		if err != nil {
			return err
		}
		fmt.Fprintf(d.out, "%s %s %s (%s)\n", d.stamp(msg), d.paint(colorRed, "error"), e.Message, e.Kind)

	case protocol.TypeLanguage:
		l, err := protocol.Decode[protocol.LanguageData](msg)
		if err != nil {
			return err
		}
		how := "selected"
		if l.Auto {
			how = "detected"
		}
		fmt.Fprintf(d.out, "%s %s %s → %s (%s)\n", d.stamp(msg), d.paint(colorYellow, "language"), l.Previous, l.Language, how)
	}
	return nil
}
