package scraper

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"mediamirror/pkg/models"
)

// ItemFilter decides from its details whether an item is mirrored. The
// expression sees url, title, description, studio, director, released,
// views, likes, tags and cast.
type ItemFilter struct {
	expression string
	program    *vm.Program
}

// CompileFilter compiles expression. An empty expression yields a nil
// filter, which accepts everything.
func CompileFilter(expression string) (*ItemFilter, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, nil
	}
	program, err := expr.Compile(expression,
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compile filter %q: %w", expression, err)
	}
	return &ItemFilter{expression: expression, program: program}, nil
}

// Expression returns the source expression.
func (f *ItemFilter) Expression() string {
	if f == nil {
		return ""
	}
	return f.expression
}

// Match evaluates the filter against details.
func (f *ItemFilter) Match(d *models.ItemDetails) (bool, error) {
	if f == nil {
		return true, nil
	}
	out, err := expr.Run(f.program, filterEnv(d))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate filter: %w", err)
	}
	return out.(bool), nil
}

func filterEnv(d *models.ItemDetails) map[string]any {
	return map[string]any{
		"url":         d.URL,
		"title":       d.Title,
		"description": d.Description,
		"studio":      d.Studio,
		"director":    d.Director,
		"released":    d.Released,
		"views":       d.Views,
		"likes":       d.Likes,
		"tags":        d.TagNames(),
		"cast":        d.CastNames(),
	}
}
