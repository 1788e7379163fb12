package snapshot

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cuejson "cuelang.org/go/encoding/json"
)

//go:embed schema.cue
var schemaSource string

// validator checks raw snapshot documents against the embedded schema.
//
// A cue.Context is not safe for concurrent use, so access is serialized.
type validator struct {
	mu  sync.Mutex
	ctx *cue.Context
	def cue.Value
}

var (
	schemaOnce sync.Once
	schema     *validator
	schemaErr  error
)

func loadValidator() (*validator, error) {
	schemaOnce.Do(func() {
		ctx := cuecontext.New()
		v := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile snapshot schema: %w", err)
			return
		}
		def := v.LookupPath(cue.ParsePath("#Snapshot"))
		if err := def.Err(); err != nil {
			schemaErr = fmt.Errorf("lookup #Snapshot: %w", err)
			return
		}
		schema = &validator{ctx: ctx, def: def}
	})
	return schema, schemaErr
}

// validate unifies the JSON document with #Snapshot and requires the result
// to be concrete.
func (v *validator) validate(data []byte) error {
	expr, err := cuejson.Extract("snapshot.json", data)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	doc := v.ctx.BuildExpr(expr)
	if err := doc.Err(); err != nil {
		return err
	}
	return v.def.Unify(doc).Validate(cue.Concrete(true))
}
