package recorder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromastyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
)

const ruleWidth = 80

// ConsoleSink writes records as human-readable blocks framed by rules,
// one block per record. Each block is written with a single Write call so
// blocks of concurrent requests never interleave.
type ConsoleSink struct {
	mu    sync.Mutex
	w     io.Writer
	color bool

	incoming lipgloss.Style
	outgoing lipgloss.Style
	failed   lipgloss.Style
	label    lipgloss.Style
}

// NewConsoleSink creates a sink writing to w, or to stdout when w is nil.
// With color, JSON blocks are highlighted with ANSI 256-colour codes and
// titles are styled when w is a terminal.
func NewConsoleSink(w io.Writer, color bool) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}

	r := lipgloss.NewRenderer(w)
	s := &ConsoleSink{
		w:        w,
		color:    color,
		incoming: r.NewStyle(),
		outgoing: r.NewStyle(),
		failed:   r.NewStyle(),
		label:    r.NewStyle(),
	}
	if color {
		s.incoming = r.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
		s.outgoing = r.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
		s.failed = r.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
		s.label = r.NewStyle().Foreground(lipgloss.Color("244"))
	}
	return s
}

// Emit formats rec and writes it.
func (s *ConsoleSink) Emit(_ context.Context, _ slog.Level, rec *Record) {
	var buf bytes.Buffer

	switch rec.Kind {
	case KindRequest:
		s.writeRequest(&buf, rec)
	case KindResponse:
		s.writeResponse(&buf, rec)
	case KindError:
		s.writeError(&buf, rec)
	default:
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.w.Write(buf.Bytes())
}

func (s *ConsoleSink) writeRequest(buf *bytes.Buffer, rec *Record) {
	req := rec.Request
	if req == nil {
		req = &RequestSnapshot{}
	}

	rule := strings.Repeat("=", ruleWidth)
	fmt.Fprintf(buf, "\n%s\n", rule)
	fmt.Fprintln(buf, s.incoming.Render(fmt.Sprintf("INCOMING REQUEST [%s] - %s", rec.CorrelationID, timestamp(rec.Time))))
	fmt.Fprintln(buf, rule)

	s.field(buf, "Method", req.Method)
	s.field(buf, "URL", req.URL)
	s.field(buf, "Path", req.Path)
	s.field(buf, "Base URL", req.BasePath)
	s.field(buf, "Original URL", req.OriginalURL)
	s.field(buf, "Protocol", req.Protocol)
	s.field(buf, "Host", req.Host)
	s.field(buf, "IP", req.ClientIP)
	s.field(buf, "User Agent", req.UserAgent)
	if req.TraceID != "" {
		s.field(buf, "Trace ID", req.TraceID)
		s.field(buf, "Span ID", req.SpanID)
	}

	s.section(buf, "QUERY PARAMETERS")
	s.block(buf, Render(req.Query))

	s.section(buf, "ROUTE PARAMETERS")
	s.block(buf, Render(req.Params))

	s.section(buf, "REQUEST HEADERS")
	for _, line := range HeaderLines(req.Headers) {
		fmt.Fprintf(buf, "  %s\n", line)
	}

	s.section(buf, "COOKIES")
	s.block(buf, Render(req.Cookies))

	s.section(buf, "REQUEST BODY")
	s.block(buf, req.Body)

	if req.RawBody != "" {
		s.section(buf, "RAW REQUEST BODY")
		fmt.Fprintln(buf, req.RawBody)
	}
}

func (s *ConsoleSink) writeResponse(buf *bytes.Buffer, rec *Record) {
	resp := rec.Response
	if resp == nil {
		resp = &ResponseSnapshot{Body: NoBody}
	}

	rule := strings.Repeat("=", ruleWidth)
	fmt.Fprintf(buf, "\n%s\n", rule)
	fmt.Fprintln(buf, s.outgoing.Render(fmt.Sprintf("OUTGOING RESPONSE [%s] - %s", rec.CorrelationID, timestamp(rec.Time))))
	fmt.Fprintln(buf, rule)

	s.field(buf, "Status Code", fmt.Sprint(resp.Status))
	s.field(buf, "Status Message", resp.StatusText)
	s.field(buf, "Duration", formatDuration(rec.Duration))
	if req := rec.Request; req != nil && req.Route != "" {
		s.field(buf, "Route", req.Route)
		s.field(buf, "Route Parameters", Render(req.Params))
	}

	s.section(buf, "RESPONSE HEADERS")
	for _, line := range HeaderLines(resp.Headers) {
		fmt.Fprintf(buf, "  %s\n", line)
	}

	s.section(buf, "RESPONSE BODY")
	s.block(buf, resp.Body)

	fmt.Fprintf(buf, "\n%s\n", rule)
	fmt.Fprintln(buf, s.outgoing.Render(fmt.Sprintf("REQUEST COMPLETED [%s] in %s", rec.CorrelationID, formatDuration(rec.Duration))))
	fmt.Fprintf(buf, "%s\n\n", rule)
}

func (s *ConsoleSink) writeError(buf *bytes.Buffer, rec *Record) {
	detail := rec.Error
	if detail == nil {
		detail = &ErrorDetail{}
	}

	rule := strings.Repeat("!", ruleWidth)
	fmt.Fprintf(buf, "\n%s\n", rule)
	fmt.Fprintln(buf, s.failed.Render(fmt.Sprintf("RESPONSE ERROR [%s] - %s", rec.CorrelationID, timestamp(rec.Time))))
	fmt.Fprintln(buf, rule)

	if req := rec.Request; req != nil {
		s.field(buf, "Method", req.Method)
		s.field(buf, "URL", req.URL)
	}
	s.field(buf, "Kind", string(detail.Kind))
	s.field(buf, "Error", detail.Message)
	s.field(buf, "Duration", formatDuration(rec.Duration))
	fmt.Fprintf(buf, "%s\n\n", rule)
}

func (s *ConsoleSink) field(buf *bytes.Buffer, name, value string) {
	fmt.Fprintf(buf, "%s %s\n", s.label.Render(name+":"), value)
}

func (s *ConsoleSink) section(buf *bytes.Buffer, title string) {
	fmt.Fprintf(buf, "\n%s\n", s.label.Render(title+":"))
}

// block writes text, highlighted as JSON when color is on and text is JSON.
func (s *ConsoleSink) block(buf *bytes.Buffer, text string) {
	if s.color && json.Valid([]byte(text)) {
		text = highlightJSON(text)
	}
	fmt.Fprintln(buf, strings.TrimRight(text, "\n"))
}

// highlightJSON applies chroma syntax highlighting for 256-colour
// terminals. Highlighting failures return the source unchanged.
func highlightJSON(source string) string {
	lexer := lexers.Get("json")
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromastyles.Get("monokai")
	if style == nil {
		style = chromastyles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, source)
	if err != nil {
		return source
	}

	var out bytes.Buffer
	if err := formatter.Format(&out, style, iterator); err != nil {
		return source
	}
	return out.String()
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

func durationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.2fms", durationMillis(d))
}
