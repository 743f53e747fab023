package ison

import (
	"fmt"
	"strings"
)

// ExpectFields fails unless the block declares exactly the given fields.
// Order is not significant.
func ExpectFields(b *Block, fields []string, context string) error {
	if sameFieldSet(b.Fields, fields) {
		return nil
	}
	return fmt.Errorf("%s: `%s` expected fields [%s], got [%s]",
		context, b.Key(), fieldList(fields), fieldList(b.Fields))
}

// ExpectFieldsAnyOf succeeds if the block matches one of the candidate
// field sets. It is used to accept an optional leading `version` field.
func ExpectFieldsAnyOf(b *Block, candidates [][]string, context string) error {
	variants := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if sameFieldSet(b.Fields, c) {
			return nil
		}
		variants = append(variants, fieldList(c))
	}
	return fmt.Errorf("%s: `%s` expected fields [%s], got [%s]",
		context, b.Key(), strings.Join(variants, " | "), fieldList(b.Fields))
}

// OptionalString returns the string in field. A missing field or `~`
// yields ok == false; any non-string value is an error.
func OptionalString(row Row, field, context string) (value string, ok bool, err error) {
	v := row.Get(field)
	switch v.Kind {
	case ValueNull:
		return "", false, nil
	case ValueString:
		return v.Text, true, nil
	default:
		return "", false, fmt.Errorf("%s: field `%s` must be a string or null, got %s %q",
			context, field, v.Kind, v.Text)
	}
}

// RequiredString returns the string in field. It fails when the field is
// missing, or blank after trimming unless allowEmpty is set.
func RequiredString(row Row, field, context string, allowEmpty bool) (string, error) {
	v, ok, err := OptionalString(row, field, context)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%s: missing required field `%s`", context, field)
	}
	if !allowEmpty && strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%s: required field `%s` must not be empty", context, field)
	}
	return v, nil
}
