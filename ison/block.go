// Package ison implements the canonical ISON block format used by llmanspec
// documents: typed object/table blocks embedded in ```ison fences.
//
// A payload is a sequence of blocks. Each block starts with a `kind.name`
// header line, followed by a whitespace-separated field line and zero or
// more rows of values:
//
//	table.requirements
//	req_id title statement
//	auth "User login" "The system MUST authenticate users."
//
// `~` marks a missing value. Strings that could be confused with another
// token are double-quoted.
package ison

import "strings"

// BlockKind is the structural type of a block.
type BlockKind string

// Supported block kinds.
const (
	KindObject BlockKind = "object"
	KindTable  BlockKind = "table"
)

// ValueKind classifies a scalar value.
type ValueKind int

// Value kinds. Only ValueString and ValueNull are meaningful to the
// document adapters; the others exist so foreign payloads round-trip.
const (
	ValueNull ValueKind = iota
	ValueString
	ValueBool
	ValueNumber
	ValueReference
)

func (k ValueKind) String() string {
	switch k {
	case ValueNull:
		return "null"
	case ValueString:
		return "string"
	case ValueBool:
		return "bool"
	case ValueNumber:
		return "number"
	case ValueReference:
		return "reference"
	default:
		return "unknown"
	}
}

// Value is a single cell in a row.
type Value struct {
	Kind ValueKind
	Text string
}

// Null returns the missing-value marker.
func Null() Value {
	return Value{Kind: ValueNull}
}

// String returns a string value.
func String(s string) Value {
	return Value{Kind: ValueString, Text: s}
}

// OptionalValue returns a string value, or Null when ok is false.
func OptionalValue(s string, ok bool) Value {
	if !ok {
		return Null()
	}
	return String(s)
}

// IsNull reports whether v is the missing marker.
func (v Value) IsNull() bool {
	return v.Kind == ValueNull
}

// Row maps field names to values. A field absent from the map reads as Null.
type Row map[string]Value

// Get returns the value for field, treating an absent field as Null.
func (r Row) Get(field string) Value {
	if v, ok := r[field]; ok {
		return v
	}
	return Null()
}

// Block is one object or table block.
type Block struct {
	Kind   BlockKind
	Name   string
	Fields []string
	Rows   []Row
}

// NewBlock creates an empty block with the given declared fields.
func NewBlock(kind BlockKind, name string, fields ...string) *Block {
	return &Block{
		Kind:   kind,
		Name:   name,
		Fields: append([]string(nil), fields...),
		Rows:   []Row{},
	}
}

// Key returns the block identity, `kind.name`.
func (b *Block) Key() string {
	return BlockKey(b.Kind, b.Name)
}

// Append adds a row to the block.
func (b *Block) Append(row Row) {
	b.Rows = append(b.Rows, row)
}

// HasField reports whether the block declares field.
func (b *Block) HasField(field string) bool {
	for _, f := range b.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// BlockKey formats a block identity.
func BlockKey(kind BlockKind, name string) string {
	return string(kind) + "." + name
}

// Document is an ordered sequence of blocks.
type Document struct {
	Blocks []*Block
}

// Get returns the block with the given kind and name, or nil.
func (d *Document) Get(kind BlockKind, name string) *Block {
	key := BlockKey(kind, name)
	for _, b := range d.Blocks {
		if b.Key() == key {
			return b
		}
	}
	return nil
}

// Keys returns the block identities in document order.
func (d *Document) Keys() []string {
	keys := make([]string, 0, len(d.Blocks))
	for _, b := range d.Blocks {
		keys = append(keys, b.Key())
	}
	return keys
}

// Add appends a block.
func (d *Document) Add(b *Block) {
	d.Blocks = append(d.Blocks, b)
}

func fieldList(fields []string) string {
	return strings.Join(fields, " ")
}
