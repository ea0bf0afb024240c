package language

import (
	"bytes"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
)

// Error is a located GraphQL error raised while parsing or validating a document.
type Error = gqlerror.Error

// ErrorList is an ordered list of located errors.
type ErrorList = gqlerror.List

// ParseQuery parses an executable document without validating it.
func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ParseSchema parses SDL without the built-in prelude or validation.
func ParseSchema(name, source string) (*SchemaDocument, error) {
	doc, err := parser.ParseSchema(&ast.Source{Name: name, Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// LoadSchema parses and validates SDL. Built-in scalars and directives are
// added automatically.
func LoadSchema(name, source string) (*Schema, error) {
	s, err := gqlparser.LoadSchema(&ast.Source{Name: name, Input: source})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// LoadQuery parses source and validates it against s.
func LoadQuery(s *Schema, source string) (*QueryDocument, ErrorList) {
	return gqlparser.LoadQuery(s, source)
}

// FormatSchema renders s as SDL, leaving out built-in definitions.
func FormatSchema(s *Schema) string {
	var buf bytes.Buffer
	formatter.NewFormatter(&buf).FormatSchema(s)
	return buf.String()
}
