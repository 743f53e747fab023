package document

import (
	"fmt"
	"strings"

	"github.com/c360studio/llmanspec/ison"
)

// BlockSchema describes one block a document kind may carry.
type BlockSchema struct {
	Kind   ison.BlockKind
	Name   string
	Fields []string
	// Versioned blocks also accept a leading `version` field.
	Versioned bool
}

// Key returns `kind.name`.
func (s BlockSchema) Key() string {
	return ison.BlockKey(s.Kind, s.Name)
}

// Schema is the closed block vocabulary of a document kind.
type Schema []BlockSchema

var scenarioFields = []string{"req_id", "id", "given", "when", "then"}

// SpecSchema lists the blocks of a spec document in output order.
var SpecSchema = Schema{
	{Kind: ison.KindObject, Name: "spec", Fields: []string{"kind", "name", "purpose"}, Versioned: true},
	{Kind: ison.KindTable, Name: "requirements", Fields: []string{"req_id", "title", "statement"}},
	{Kind: ison.KindTable, Name: "scenarios", Fields: scenarioFields},
}

// DeltaSchema lists the blocks of a delta document in output order.
var DeltaSchema = Schema{
	{Kind: ison.KindObject, Name: "delta", Fields: []string{"kind"}, Versioned: true},
	{Kind: ison.KindTable, Name: "ops", Fields: []string{"op", "req_id", "title", "statement", "from", "to", "name"}},
	{Kind: ison.KindTable, Name: "op_scenarios", Fields: scenarioFields},
}

func (s Schema) keys() []string {
	keys := make([]string, 0, len(s))
	for _, b := range s {
		keys = append(keys, b.Key())
	}
	return keys
}

func (s Schema) allows(key string) bool {
	for _, b := range s {
		if b.Key() == key {
			return true
		}
	}
	return false
}

// CheckVocabulary rejects any block the schema does not name.
func (s Schema) CheckVocabulary(doc *ison.Document, context string) error {
	for _, key := range doc.Keys() {
		if !s.allows(key) {
			return fmt.Errorf("%s: unknown canonical block `%s` (expected: %s)",
				context, key, strings.Join(s.keys(), ", "))
		}
	}
	return nil
}

// Missing returns the keys of schema blocks absent from doc.
func (s Schema) Missing(doc *ison.Document) []string {
	var missing []string
	for _, b := range s {
		if doc.Get(b.Kind, b.Name) == nil {
			missing = append(missing, b.Key())
		}
	}
	return missing
}

// lookup fetches a block and checks its declared fields.
func (s Schema) lookup(doc *ison.Document, name, context string) (*ison.Block, error) {
	var bs BlockSchema
	for _, b := range s {
		if b.Name == name {
			bs = b
			break
		}
	}
	block := doc.Get(bs.Kind, bs.Name)
	if block == nil {
		return nil, fmt.Errorf("%s: missing required block `%s`", context, bs.Key())
	}
	if bs.Versioned {
		withVersion := append([]string{"version"}, bs.Fields...)
		if err := ison.ExpectFieldsAnyOf(block, [][]string{withVersion, bs.Fields}, context); err != nil {
			return nil, err
		}
	} else if err := ison.ExpectFields(block, bs.Fields, context); err != nil {
		return nil, err
	}
	return block, nil
}

// newBlock creates an empty output block for name. Versioned blocks
// always carry the version field.
func (s Schema) newBlock(name string) *ison.Block {
	for _, b := range s {
		if b.Name != name {
			continue
		}
		fields := b.Fields
		if b.Versioned {
			fields = append([]string{"version"}, fields...)
		}
		return ison.NewBlock(b.Kind, b.Name, fields...)
	}
	panic("document: no block " + name + " in schema")
}

// metaRow validates the single row of a versioned header block: version
// defaults to Version and must equal it, kind must equal wantKind.
func metaRow(block *ison.Block, label, wantKind, context string) (ison.Row, error) {
	if len(block.Rows) != 1 {
		return nil, fmt.Errorf("%s: `%s` must have exactly 1 row, got %d", context, block.Key(), len(block.Rows))
	}
	row := block.Rows[0]
	version, ok, err := ison.OptionalString(row, "version", context)
	if err != nil {
		return nil, err
	}
	version = strings.TrimSpace(version)
	if !ok || version == "" {
		version = Version
	}
	if version != Version {
		return nil, fmt.Errorf("%s: %s version must be `%s`, got `%s`", context, label, Version, version)
	}
	kind, err := ison.RequiredString(row, "kind", context, false)
	if err != nil {
		return nil, err
	}
	if kind = strings.TrimSpace(kind); kind != wantKind {
		return nil, fmt.Errorf("%s: %s kind must be `%s`, got `%s`", context, label, wantKind, kind)
	}
	return row, nil
}

func requiredTrimmed(row ison.Row, field, context string, allowEmpty bool) (string, error) {
	v, err := ison.RequiredString(row, field, context, allowEmpty)
	return strings.TrimSpace(v), err
}
