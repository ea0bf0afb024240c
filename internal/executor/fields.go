package executor

import (
	"slices"

	"github.com/hanpama/gqlgate/internal/language"
	"github.com/hanpama/gqlgate/internal/schema"
)

// fieldGroup is every field node of a selection set that answers to the same
// response key.
type fieldGroup struct {
	ResponseName string
	Fields       []*language.Field
}

// collectFields flattens fragments and applies @skip and @include. Groups are
// returned in the order their response key first appears.
func collectFields(state *executionState, objectType *schema.Type, selectionSet language.SelectionSet) []fieldGroup {
	c := fieldCollector{
		state:      state,
		objectType: objectType,
		index:      make(map[string]int),
		visited:    make(map[string]bool),
	}
	c.collect(selectionSet)
	return c.groups
}

type fieldCollector struct {
	state      *executionState
	objectType *schema.Type
	groups     []fieldGroup
	index      map[string]int
	visited    map[string]bool
}

func (c *fieldCollector) collect(selectionSet language.SelectionSet) {
	for _, selection := range selectionSet {
		switch sel := selection.(type) {
		case *language.Field:
			if c.included(sel.Directives) {
				c.add(sel)
			}
		case *language.InlineFragment:
			if c.included(sel.Directives) && c.applies(sel.TypeCondition) {
				c.collect(sel.SelectionSet)
			}
		case *language.FragmentSpread:
			if !c.included(sel.Directives) || c.visited[sel.Name] {
				continue
			}
			c.visited[sel.Name] = true
			frag := c.state.document.Fragments.ForName(sel.Name)
			if frag == nil || !c.applies(frag.TypeCondition) || !c.included(frag.Directives) {
				continue
			}
			c.collect(frag.SelectionSet)
		}
	}
}

func (c *fieldCollector) add(f *language.Field) {
	key := f.Alias
	if key == "" {
		key = f.Name
	}
	if i, ok := c.index[key]; ok {
		c.groups[i].Fields = append(c.groups[i].Fields, f)
		return
	}
	c.index[key] = len(c.groups)
	c.groups = append(c.groups, fieldGroup{ResponseName: key, Fields: []*language.Field{f}})
}

// included evaluates @skip(if:) and @include(if:). A condition that does not
// evaluate to a boolean leaves the node in.
func (c *fieldCollector) included(dirs language.DirectiveList) bool {
	if d := dirs.ForName("skip"); d != nil && c.condition(d) == true {
		return false
	}
	if d := dirs.ForName("include"); d != nil && c.condition(d) == false {
		return false
	}
	return true
}

func (c *fieldCollector) condition(d *language.Directive) any {
	if arg := d.Arguments.ForName("if"); arg != nil {
		return goValue(arg.Value, c.state.variableValues)
	}
	return nil
}

// applies reports whether a fragment with typeCondition matches the object
// type, directly or through an interface or union.
func (c *fieldCollector) applies(typeCondition string) bool {
	if typeCondition == "" || typeCondition == c.objectType.Name {
		return true
	}
	cond := c.state.schema.Types[typeCondition]
	if cond == nil {
		return false
	}
	switch cond.Kind {
	case schema.TypeKindInterface, schema.TypeKindUnion:
		return slices.Contains(cond.PossibleTypes, c.objectType.Name) ||
			slices.Contains(c.objectType.Interfaces, typeCondition)
	}
	return false
}
