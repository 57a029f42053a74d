package compiler

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaSrc string

// CompileError is a CUE evaluation or schema error with its source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CompileFile evaluates a CUE scenario file and returns it as JSON.
func CompileFile(path string) ([]byte, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return Compile(path, src)
}

// Compile evaluates CUE source and exports the scenario as JSON.
//
// The scenario is either the whole file or the value of a top-level
// "scenario" field, which lets a file keep helper definitions next to it.
// The value is unified with the #Scenario schema and must be concrete.
func Compile(filename string, src []byte) ([]byte, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSrc, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("scenario schema: %w", err)
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	if sv := v.LookupPath(cue.ParsePath("scenario")); sv.Exists() {
		v = sv
	}
	if v.Kind() != cue.StructKind && v.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{
			Field:   "scenario",
			Message: "scenario must be a struct",
			Pos:     v.Pos(),
		}
	}

	v = schema.LookupPath(cue.ParsePath("#Scenario")).Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	data, err := v.MarshalJSON()
	if err != nil {
		return nil, formatCUEError(err)
	}
	return data, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	field := "cue"
	if path := first.Path(); len(path) > 0 {
		field = path[len(path)-1]
	}
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   field,
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return &CompileError{Field: field, Message: first.Error()}
}
