package opcode

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("destack.opcode")

// tableSchema constrains every opcode table before it becomes a Registry.
const tableSchema = `
#Spec: {
	mnemonic: =~"^[A-Z][A-Z0-9_.]*$"
	name?:    "" | =~"^[A-Za-z_][A-Za-z0-9_.]*$"
	pops:     int & >=0
	sign?:    "" | =~#"^\S+$"#
	output?:  string
}

#Table: {
	opcodes: [...#Spec]
}
`

func validate(t table) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(tableSchema)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile table schema: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Table")).Unify(ctx.Encode(t))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTable, cueerrors.Details(err, nil))
	}
	return nil
}
