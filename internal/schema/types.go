package schema

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/gorm"
	gormschema "gorm.io/gorm/schema"
)

// StringArray maps to text[] on Postgres and to its array literal text elsewhere.
type StringArray []string

func (StringArray) GormDBDataType(db *gorm.DB, _ *gormschema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

// Value renders a Postgres array literal.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	quoted := make([]string, len(a))
	for i, s := range a {
		s = strings.ReplaceAll(s, `\`, `\\`)
		s = strings.ReplaceAll(s, `"`, `\"`)
		quoted[i] = `"` + s + `"`
	}
	return "{" + strings.Join(quoted, ",") + "}", nil
}

func (a *StringArray) Scan(value interface{}) error {
	var literal string
	switch v := value.(type) {
	case nil:
		*a = nil
		return nil
	case []byte:
		literal = string(v)
	case string:
		literal = v
	default:
		return fmt.Errorf("schema.StringArray: unsupported scan type %T", value)
	}

	parsed, err := parseArrayLiteral(literal)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func parseArrayLiteral(literal string) ([]string, error) {
	if len(literal) < 2 || literal[0] != '{' || literal[len(literal)-1] != '}' {
		return nil, fmt.Errorf("schema.StringArray: malformed array literal %q", literal)
	}
	body := literal[1 : len(literal)-1]
	out := []string{}
	if body == "" {
		return out, nil
	}

	var (
		cur     strings.Builder
		quoted  bool
		escaped bool
	)
	for _, r := range body {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			quoted = !quoted
		case r == ',' && !quoted:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if quoted {
		return nil, fmt.Errorf("schema.StringArray: unterminated quote in %q", literal)
	}
	return append(out, cur.String()), nil
}

// JSON stores a document as jsonb on Postgres and as text elsewhere.
type JSON []byte

func (JSON) GormDBDataType(db *gorm.DB, _ *gormschema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "jsonb"
	}
	return "text"
}

func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return "null", nil
	}
	if !json.Valid(j) {
		return nil, fmt.Errorf("schema.JSON: invalid JSON value")
	}
	return string(j), nil
}

func (j *JSON) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append((*j)[:0], v...)
	case string:
		*j = append((*j)[:0], v...)
	default:
		return fmt.Errorf("schema.JSON: unsupported scan type %T", value)
	}
	return nil
}
