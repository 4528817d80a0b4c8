package recorder

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/tidwall/pretty"

	"mercator-hq/loupe/pkg/telemetry/logging"
)

// Display markers.
const (
	// NoBody is the rendered response body when the handler never emitted
	// a non-empty payload.
	NoBody = "No response body"

	// NoRequestBody is the rendered request body of a request without one.
	NoRequestBody = "No body"
)

// prettyOptions indents with two spaces, like JSON.stringify(v, null, 2).
var prettyOptions = &pretty.Options{Width: 80, Prefix: "", Indent: "  ", SortKeys: false}

// prettyJSON reformats valid JSON for display.
func prettyJSON(data []byte) string {
	return strings.TrimRight(string(pretty.PrettyOptions(data, prettyOptions)), "\n")
}

// renderText shows JSON text indented and any other text verbatim.
func renderText(data []byte) string {
	if json.Valid(data) {
		return prettyJSON(data)
	}
	return string(data)
}

// renderValue renders a structured value as indented JSON. ok is false
// when the value could not be serialized; the result is then a
// placeholder naming the type and the failure. The value itself is never
// formatted with fmt because it may be cyclic.
func renderValue(v any) (out string, ok bool) {
	defer func() {
		if p := recover(); p != nil {
			out = fmt.Sprintf("<unrenderable %T: panic: %v>", v, p)
			ok = false
		}
	}()

	data, err := json.Marshal(v)
	if err != nil {
		return unrenderable(v, err), false
	}
	return prettyJSON(data), true
}

func unrenderable(v any, err error) string {
	return fmt.Sprintf("<unrenderable %T: %v>", v, err)
}

// renderBytes renders a byte payload. Non-UTF-8 data is shown as a size
// marker.
func renderBytes(data []byte, size int, truncated bool) string {
	if !utf8.Valid(data) {
		return binaryMarker(size)
	}
	if truncated {
		return string(data) + truncationMarker(size)
	}
	return renderText(data)
}

// renderPayload renders a captured response payload for display.
func renderPayload(p Payload, ok bool) (string, bool) {
	if !ok {
		return NoBody, true
	}
	if p.Failure != "" {
		return p.Failure, false
	}
	return renderBytes(p.Data, p.Size, p.Truncated), true
}

func binaryMarker(size int) string {
	return fmt.Sprintf("<binary body, %s>", humanize.IBytes(uint64(size)))
}

func truncationMarker(size int) string {
	if size <= 0 {
		return " ... (truncated)"
	}
	return fmt.Sprintf(" ... (truncated, %s total)", humanize.IBytes(uint64(size)))
}

// displayHeaders clones h for display. Values of sensitive headers are
// masked when redactor is non-nil and values that are not valid UTF-8 are
// quoted. It returns the number of values that had to be quoted.
func displayHeaders(h http.Header, redactor *logging.Redactor) (http.Header, int) {
	out := make(http.Header, len(h))
	quoted := 0
	for name, values := range h {
		shown := make([]string, len(values))
		for i, v := range values {
			if redactor != nil {
				v = redactor.RedactField(name, v)
			}
			if !utf8.ValidString(v) {
				v = strconv.Quote(v)
				quoted++
			}
			shown[i] = v
		}
		out[name] = shown
	}
	return out, quoted
}

// HeaderLines returns "Name: value" lines sorted by canonical header name,
// with repeated values joined by ", ". http.Header is a map, so the order
// the headers arrived in is not available; sorting keeps the output stable.
func HeaderLines(h http.Header) []string {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, name+": "+strings.Join(h[name], ", "))
	}
	return lines
}

// FlattenHeaders joins repeated header values for structured output.
func FlattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		out[name] = strings.Join(values, ", ")
	}
	return out
}

// Render renders a map or other structured snapshot field as indented
// JSON, falling back to a placeholder. It never panics.
func Render(v any) string {
	out, _ := renderValue(v)
	return out
}
