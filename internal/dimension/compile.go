package dimension

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/scd2/internal/record"
)

//go:embed schema.cue
var schemaCUE string

//go:embed sales.cue
var salesCUE string

// CompileError reports an invalid dimension definition.
type CompileError struct {
	Dimension string
	Field     string
	Message   string
	Pos       token.Pos
}

func (e *CompileError) Error() string {
	prefix := e.Field
	if e.Dimension != "" {
		prefix = e.Dimension + "." + e.Field
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), prefix, e.Message)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Compiler turns CUE values into record schemas.
// Values passed to Compile must come from the same cue.Context.
type Compiler struct {
	ctx *cue.Context
	def cue.Value
}

// NewCompiler builds a compiler bound to ctx.
func NewCompiler(ctx *cue.Context) (*Compiler, error) {
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile dimension schema: %w", err)
	}
	return &Compiler{
		ctx: ctx,
		def: schema.LookupPath(cue.ParsePath("#Dimension")),
	}, nil
}

// CompileAll compiles every entry under the top-level "dimension" field.
// Returns schemas in declaration order.
func (c *Compiler) CompileAll(v cue.Value) ([]record.Schema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError("", err)
	}

	dims := v.LookupPath(cue.ParsePath("dimension"))
	if !dims.Exists() {
		return nil, &CompileError{Field: "dimension", Message: "no dimension definitions found", Pos: v.Pos()}
	}

	iter, err := dims.Fields()
	if err != nil {
		return nil, formatCUEError("", err)
	}

	var schemas []record.Schema
	for iter.Next() {
		s, err := c.Compile(iter.Selector().Unquoted(), iter.Value())
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, s)
	}

	if len(schemas) == 0 {
		return nil, &CompileError{Field: "dimension", Message: "no dimension definitions found", Pos: dims.Pos()}
	}
	return schemas, nil
}

// Compile validates one dimension value against #Dimension and converts it.
func (c *Compiler) Compile(name string, v cue.Value) (record.Schema, error) {
	u := c.def.Unify(v)
	if err := u.Validate(cue.Concrete(true)); err != nil {
		return record.Schema{}, formatCUEError(name, err)
	}

	s := record.Schema{Name: name}

	var err error
	if s.Source, err = u.LookupPath(cue.ParsePath("source")).String(); err != nil {
		return record.Schema{}, formatCUEError(name, err)
	}
	if s.Target, err = u.LookupPath(cue.ParsePath("target")).String(); err != nil {
		return record.Schema{}, formatCUEError(name, err)
	}

	if label := u.LookupPath(cue.ParsePath("label")); label.Exists() {
		if s.Label, err = label.String(); err != nil {
			return record.Schema{}, formatCUEError(name, err)
		}
	}

	colIter, err := u.LookupPath(cue.ParsePath("columns")).List()
	if err != nil {
		return record.Schema{}, formatCUEError(name, err)
	}
	for colIter.Next() {
		col, err := compileColumn(name, colIter.Value())
		if err != nil {
			return record.Schema{}, err
		}
		s.Columns = append(s.Columns, col)
	}

	if err := s.Validate(); err != nil {
		field := "columns"
		if s.Label != "" && s.Index(s.Label) < 0 {
			field = "label"
		}
		return record.Schema{}, &CompileError{Dimension: name, Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	return s, nil
}

func compileColumn(dim string, v cue.Value) (record.Column, error) {
	var col record.Column

	name, err := v.LookupPath(cue.ParsePath("name")).String()
	if err != nil {
		return col, formatCUEError(dim, err)
	}
	kind, err := v.LookupPath(cue.ParsePath("kind")).String()
	if err != nil {
		return col, formatCUEError(dim, err)
	}
	col.Name = name
	col.Kind = record.Kind(kind)

	if req := v.LookupPath(cue.ParsePath("required")); req.Exists() {
		if col.Required, err = req.Bool(); err != nil {
			return col, formatCUEError(dim, err)
		}
	}
	return col, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(dim string, err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Dimension: dim,
			Field:     "cue",
			Message:   first.Error(),
			Pos:       positions[0],
		}
	}
	return &CompileError{Dimension: dim, Field: "cue", Message: first.Error()}
}
