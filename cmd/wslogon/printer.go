package main

import (
	"fmt"
	"io"
	"sync"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/EgorLis/wslogon/internal/session"
	"github.com/EgorLis/wslogon/internal/wire"
)

// printer печатает каждое событие сессии одной строкой.
type printer struct {
	mu  sync.Mutex
	out io.Writer

	ok   *color.Color
	warn *color.Color
	bad  *color.Color
	dim  *color.Color
}

func newPrinter(out io.Writer, noColor bool) *printer {
	p := &printer{
		out:  out,
		ok:   color.New(color.FgGreen),
		warn: color.New(color.FgYellow),
		bad:  color.New(color.FgRed),
		dim:  color.New(color.FgCyan),
	}
	if noColor {
		for _, c := range []*color.Color{p.ok, p.warn, p.bad, p.dim} {
			c.DisableColor()
		}
	}
	return p
}

func (p *printer) line(c *color.Color, tag, format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s %s\n", c.Sprintf("%-6s", tag), fmt.Sprintf(format, args...))
}

func (p *printer) OnOpen() {
	p.line(p.dim, "open", "connected, logging on")
}

func (p *printer) OnMessage(msg *wire.Message) {
	switch {
	case msg.Template == wire.TemplateLogonResult:
		if msg.Code == wire.CodeOK {
			p.line(p.ok, "logon", "accepted")
		} else {
			p.line(p.bad, "logon", "rejected code=%d %s", msg.Code, msg.Text)
		}
	case msg.Template == wire.TemplateLoggedOff:
		p.line(p.warn, "logoff", "gateway logged us off: %s", msg.Text)
	case msg.IsControl():
		p.line(p.dim, "ctrl", "template=%d code=%d", msg.Template, msg.Code)
	default:
		p.line(p.ok, "recv", "template=%d %s", msg.Template, describePayload(msg))
	}
}

func (p *printer) OnClose(info session.CloseInfo) {
	switch {
	case info.Reconnecting:
		p.line(p.warn, "close", "connection lost (%v), reconnecting", info.Err)
	case info.Err != nil:
		p.line(p.bad, "close", "%v", info.Err)
	default:
		p.line(p.dim, "close", "closed")
	}
}

func (p *printer) OnError(err error) {
	p.line(p.bad, "error", "%v", err)
}

func describePayload(msg *wire.Message) string {
	s := ""
	if len(msg.UserMsg) > 0 {
		s = fmt.Sprintf("user_msg=%v ", msg.UserMsg)
	}
	switch {
	case len(msg.Payload) == 0 && msg.Text != "":
		return s + fmt.Sprintf("text=%q", msg.Text)
	case utf8.Valid(msg.Payload):
		return s + fmt.Sprintf("payload=%q", msg.Payload)
	default:
		return s + fmt.Sprintf("payload=%d bytes", len(msg.Payload))
	}
}
