package queue

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cuejson "cuelang.org/go/encoding/json"
)

//go:embed schema.cue
var schemaCUE string

// schema validates raw blobs against #State before they are decoded.
type schema struct {
	mu    sync.Mutex
	ctx   *cue.Context
	state cue.Value
}

var (
	defaultSchema     *schema
	defaultSchemaErr  error
	defaultSchemaOnce sync.Once
)

func loadSchema() (*schema, error) {
	defaultSchemaOnce.Do(func() {
		ctx := cuecontext.New()
		v := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			defaultSchemaErr = fmt.Errorf("compile queue schema: %w", err)
			return
		}
		state := v.LookupPath(cue.ParsePath("#State"))
		if !state.Exists() {
			defaultSchemaErr = fmt.Errorf("compile queue schema: #State not defined")
			return
		}
		defaultSchema = &schema{ctx: ctx, state: state}
	})
	return defaultSchema, defaultSchemaErr
}

// validate checks that blob is JSON conforming to #State.
func (s *schema) validate(blob []byte) error {
	expr, err := cuejson.Extract("state.json", blob)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.ctx.BuildExpr(expr)
	if err := v.Err(); err != nil {
		return err
	}
	return s.state.Unify(v).Validate(cue.Concrete(true))
}

// Encode serializes a state to its stored form.
func Encode(st State) (string, error) {
	if st.Queue == nil {
		st.Queue = []Item{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(st); err != nil {
		return "", fmt.Errorf("encode state: %w", err)
	}
	// json.Encoder adds a trailing newline
	return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// Decode validates and parses a stored blob.
func Decode(blob string) (State, error) {
	sch, err := loadSchema()
	if err != nil {
		return State{}, err
	}
	if err := sch.validate([]byte(blob)); err != nil {
		return State{}, err
	}

	var st State
	dec := json.NewDecoder(bytes.NewReader([]byte(blob)))
	dec.UseNumber()
	if err := dec.Decode(&st); err != nil {
		return State{}, err
	}
	if st.Queue == nil {
		st.Queue = []Item{}
	}
	return st, nil
}
