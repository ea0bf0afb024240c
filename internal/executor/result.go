package executor

import "github.com/hanpama/gqlgate/internal/language"

// Location is a line/column position in the request document.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// GraphQLError represents an error that occurred during execution
type GraphQLError struct {
	Message    string         `json:"message"`
	Locations  []Location     `json:"locations,omitempty"`
	Path       Path           `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e GraphQLError) Error() string {
	return e.Message
}

// ExecutionResult represents the result of executing a GraphQL query. Data is
// nil only when the operation failed before execution started.
type ExecutionResult struct {
	Data   any            `json:"data"`
	Errors []GraphQLError `json:"errors,omitempty"`
}

// ErrorsFromList converts parser and validator errors.
func ErrorsFromList(list language.ErrorList) []GraphQLError {
	out := make([]GraphQLError, 0, len(list))
	for _, e := range list {
		if e == nil {
			continue
		}
		ge := GraphQLError{Message: e.Message, Extensions: e.Extensions}
		for _, loc := range e.Locations {
			ge.Locations = append(ge.Locations, Location{Line: loc.Line, Column: loc.Column})
		}
		for _, el := range e.Path {
			switch v := el.(type) {
			case language.PathName:
				ge.Path = append(ge.Path, string(v))
			case language.PathIndex:
				ge.Path = append(ge.Path, int(v))
			}
		}
		out = append(out, ge)
	}
	return out
}

func locationsOf(fields []*language.Field) []Location {
	var locs []Location
	for _, f := range fields {
		if f == nil || f.Position == nil {
			continue
		}
		locs = append(locs, Location{Line: f.Position.Line, Column: f.Position.Column})
	}
	return locs
}
