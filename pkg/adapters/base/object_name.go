package base

import (
	"fmt"
	"strings"

	"github.com/ruslano69/mssqldialect/pkg/core/ast"
)

// QuoteObject renders [database].[schema].[name], omitting absent leading
// parts. A database without a schema keeps the empty middle part
// ([db]..[name]).
func (p Policy) QuoteObject(o ast.ObjectName) string {
	var sb strings.Builder
	if o.Database != "" {
		sb.WriteString(p.Quote(o.Database))
		sb.WriteByte('.')
		if o.Schema != "" {
			sb.WriteString(p.Quote(o.Schema))
		}
		sb.WriteByte('.')
	} else if o.Schema != "" {
		sb.WriteString(p.Quote(o.Schema))
		sb.WriteByte('.')
	}
	sb.WriteString(p.Quote(o.Name))
	return sb.String()
}

// Qualify fills in the default schema.
func (p Policy) Qualify(o ast.ObjectName) ast.ObjectName {
	if o.Schema == "" {
		o.Schema = p.DefaultSchema
	}
	return o
}

// ParseObjectName splits a possibly quoted, dot-separated name. Dots inside
// quotes, and dots escaped with a backslash in unquoted parts, belong to
// the name. Doubled closing quotes are unescaped.
func (p Policy) ParseObjectName(s string) (ast.ObjectName, error) {
	parts, err := p.splitName(s)
	if err != nil {
		return ast.ObjectName{}, err
	}
	if len(parts) == 0 || len(parts) > 3 {
		return ast.ObjectName{}, fmt.Errorf("invalid object name %q: expected 1 to 3 parts", s)
	}

	var o ast.ObjectName
	o.Name = parts[len(parts)-1]
	if len(parts) > 1 {
		o.Schema = parts[len(parts)-2]
	}
	if len(parts) > 2 {
		o.Database = parts[0]
	}
	if o.Name == "" {
		return ast.ObjectName{}, fmt.Errorf("invalid object name %q: empty name", s)
	}
	return o, nil
}

func (p Policy) splitName(s string) ([]string, error) {
	var (
		parts []string
		cur   strings.Builder
	)
	left, right := p.QuoteLeft, p.QuoteRight

	for i := 0; i < len(s); {
		switch {
		case left != "" && strings.HasPrefix(s[i:], left) && cur.Len() == 0:
			i += len(left)
			closed := false
			for i < len(s) {
				if strings.HasPrefix(s[i:], right) {
					if strings.HasPrefix(s[i+len(right):], right) {
						cur.WriteString(right)
						i += 2 * len(right)
						continue
					}
					i += len(right)
					closed = true
					break
				}
				cur.WriteByte(s[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("invalid object name %q: unterminated quote", s)
			}
			if i < len(s) && s[i] != '.' {
				return nil, fmt.Errorf("invalid object name %q: unexpected text after quote", s)
			}
		case s[i] == '\\' && i+1 < len(s) && s[i+1] == '.':
			cur.WriteByte('.')
			i += 2
		case s[i] == '.':
			parts = append(parts, cur.String())
			cur.Reset()
			i++
		default:
			cur.WriteByte(s[i])
			i++
		}
	}
	parts = append(parts, cur.String())
	return parts, nil
}
