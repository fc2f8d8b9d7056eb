package cookies

import (
	"fmt"
	"strconv"
	"strings"
)

// The interchange format is a tab-separated line per cookie with seven
// fields: domain, httpOnly flag, path, secure flag, expiry epoch, name,
// value. Blank lines and lines beginning with '#' are skipped.

const interchangeFields = 7

// Report tallies the outcome of a bulk conversion in either direction.
// Malformed or unrepresentable cookies are skipped and recorded instead of
// aborting the whole operation.
type Report struct {
	Imported int      `json:"imported"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

// representable rejects cookies whose fields would collide with the
// format's separators. The value is the final field, so tabs are fine
// there, but a line break anywhere corrupts the framing.
func representable(c *Cookie) error {
	for _, f := range []struct{ field, v string }{
		{"domain", c.Domain},
		{"path", c.Path},
		{"name", c.Name},
	} {
		if strings.ContainsAny(f.v, "\t\n\r") {
			return fmt.Errorf("%s contains a separator character", f.field)
		}
	}
	if strings.ContainsAny(c.Value, "\n\r") {
		return fmt.Errorf("value contains a line break")
	}
	return nil
}

// Format renders cookies in the interchange form, one line per cookie.
// Cookies that cannot be represented are tallied in the report and skipped,
// preserving the parse(format(cs)) round trip for everything emitted.
func Format(cs []Cookie) (string, *Report) {
	report := &Report{}
	var b strings.Builder
	for _, c := range cs {
		if err := representable(&c); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", c.Name, err))
			continue
		}
		report.Imported++
		b.WriteString(c.Domain)
		b.WriteByte('\t')
		b.WriteString(formatFlag(c.HTTPOnly))
		b.WriteByte('\t')
		b.WriteString(c.Path)
		b.WriteByte('\t')
		b.WriteString(formatFlag(c.Secure))
		b.WriteByte('\t')
		b.WriteString(strconv.FormatFloat(c.ExpirationDate, 'f', -1, 64))
		b.WriteByte('\t')
		b.WriteString(c.Name)
		b.WriteByte('\t')
		b.WriteString(c.Value)
		b.WriteByte('\n')
	}
	return b.String(), report
}

// Parse reads the interchange form. Parsing is line-by-line and tolerant:
// each malformed line is tallied in the report and skipped.
func Parse(text string) ([]Cookie, *Report) {
	report := &Report{}
	var cs []Cookie

	for i, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		c, err := parseLine(line)
		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("line %d: %v", i+1, err))
			continue
		}
		cs = append(cs, c)
		report.Imported++
	}
	return cs, report
}

func parseLine(line string) (Cookie, error) {
	// Split into exactly seven fields; the value field may itself contain
	// tabs.
	parts := strings.SplitN(strings.TrimSuffix(line, "\r"), "\t", interchangeFields)
	if len(parts) < interchangeFields {
		return Cookie{}, fmt.Errorf("expected %d tab-separated fields, got %d", interchangeFields, len(parts))
	}

	expiry, err := strconv.ParseFloat(parts[4], 64)
	if err != nil {
		return Cookie{}, fmt.Errorf("bad expiry %q: %w", parts[4], err)
	}

	if parts[5] == "" {
		return Cookie{}, fmt.Errorf("empty cookie name")
	}

	return Cookie{
		Domain:         parts[0],
		HTTPOnly:       parseFlag(parts[1]),
		Path:           parts[2],
		Secure:         parseFlag(parts[3]),
		ExpirationDate: expiry,
		Name:           parts[5],
		Value:          parts[6],
	}, nil
}

func formatFlag(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}

func parseFlag(s string) bool {
	return strings.EqualFold(s, "TRUE")
}
