package property

import (
	"bufio"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/dmitrymomot/togglekit/pkg/feature"
)

// Parse reads a line oriented properties document.
//
// Each entry is "key = value" or "key: value"; unescaped space around key and
// value is trimmed. Blank lines and lines starting with '#' or '!' are
// skipped. Backslash escapes follow the Java properties format: \n, \r, \t,
// \f, \uXXXX and a backslash before any other character, which stands for
// that character. A line without a separator or with an empty key yields an
// error wrapping feature.ErrMalformedEntry. Later duplicates override earlier
// ones.
func Parse(r io.Reader) (map[string]string, error) {
	props := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimLeft(scanner.Text(), blanks)
		if line == "" || line[0] == '#' || line[0] == '!' {
			continue
		}

		i := separatorIndex(line)
		if i < 0 {
			return nil, fmt.Errorf("%w: line %d: missing separator in %q", feature.ErrMalformedEntry, n, line)
		}
		key, err := unescape(trimBlanks(line[:i]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", feature.ErrMalformedEntry, n, err)
		}
		if key == "" {
			return nil, fmt.Errorf("%w: line %d: empty key", feature.ErrMalformedEntry, n)
		}
		value, err := unescape(trimBlanks(line[i+1:]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", feature.ErrMalformedEntry, n, err)
		}
		props[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", feature.ErrMalformedEntry, err)
	}
	return props, nil
}

// Encode writes props as "key=value" lines sorted by key, so equal maps
// always produce identical documents. Characters Parse would drop or
// misread are escaped, so Parse(Encode(props)) returns props.
func Encode(w io.Writer, props map[string]string) error {
	bw := bufio.NewWriter(w)
	for _, key := range slices.Sorted(maps.Keys(props)) {
		if _, err := fmt.Fprintf(bw, "%s=%s\n", escape(key, true), escape(props[key], false)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ParseBool reports whether s spells an enabled flag: true, yes, enable or
// enabled in any case. Everything else is false.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "enable", "enabled":
		return true
	default:
		return false
	}
}

const blanks = " \t\f"

// separatorIndex returns the position of the first unescaped '=' or ':'.
func separatorIndex(line string) int {
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case '=', ':':
			return i
		}
	}
	return -1
}

// trimBlanks drops leading blanks and trailing blanks that are not escaped.
func trimBlanks(s string) string {
	s = strings.TrimLeft(s, blanks)
	for len(s) > 0 && strings.IndexByte(blanks, s[len(s)-1]) >= 0 {
		// A blank preceded by an odd run of backslashes is escaped.
		slashes := 0
		for j := len(s) - 2; j >= 0 && s[j] == '\\'; j-- {
			slashes++
		}
		if slashes%2 == 1 {
			break
		}
		s = s[:len(s)-1]
	}
	return s
}

func unescape(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i == len(s) {
			return "", fmt.Errorf("dangling escape in %q", s)
		}
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'f':
			b.WriteByte('\f')
		case 'u':
			if i+5 > len(s) {
				return "", fmt.Errorf("short unicode escape in %q", s)
			}
			r, err := strconv.ParseUint(s[i+1:i+5], 16, 16)
			if err != nil {
				return "", fmt.Errorf("invalid unicode escape in %q", s)
			}
			b.WriteRune(rune(r))
			i += 4
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String(), nil
}

// escape quotes s for Encode. Keys also escape separators, every space and a
// leading comment marker; values escape a leading and a trailing space.
func escape(s string, key bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\f':
			b.WriteString(`\f`)
		case '=', ':':
			if key {
				b.WriteByte('\\')
			}
			b.WriteByte(c)
		case '#', '!':
			if key && i == 0 {
				b.WriteByte('\\')
			}
			b.WriteByte(c)
		case ' ':
			if key || i == 0 || i == len(s)-1 {
				b.WriteByte('\\')
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
