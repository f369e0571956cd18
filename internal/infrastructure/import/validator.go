package csvimport

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// FieldType represents the expected type of a field
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeDecimal FieldType = "decimal"
	TypeDate    FieldType = "date"
)

// DateLayouts are the accepted date formats, tried in order
var DateLayouts = []string{"2006-01-02", time.RFC3339, "02/01/2006", "2006/01/02"}

// FieldRule defines validation rules for a field
type FieldRule struct {
	Column    string
	Type      FieldType
	Required  bool
	MaxLength int
	Positive  bool
	Unique    bool
}

// FieldRuleBuilder helps build field rules fluently
type FieldRuleBuilder struct {
	rule FieldRule
}

// Field creates a new field rule builder
func Field(column string) *FieldRuleBuilder {
	return &FieldRuleBuilder{rule: FieldRule{Column: column, Type: TypeString}}
}

// Required marks the field as required
func (b *FieldRuleBuilder) Required() *FieldRuleBuilder {
	b.rule.Required = true
	return b
}

// Decimal expects a decimal number
func (b *FieldRuleBuilder) Decimal() *FieldRuleBuilder {
	b.rule.Type = TypeDecimal
	return b
}

// Date expects a date in one of DateLayouts
func (b *FieldRuleBuilder) Date() *FieldRuleBuilder {
	b.rule.Type = TypeDate
	return b
}

// Positive requires a decimal greater than zero
func (b *FieldRuleBuilder) Positive() *FieldRuleBuilder {
	b.rule.Positive = true
	return b
}

// MaxLength caps the value length in characters
func (b *FieldRuleBuilder) MaxLength(n int) *FieldRuleBuilder {
	b.rule.MaxLength = n
	return b
}

// Unique rejects values repeated within the file, compared case-insensitively
func (b *FieldRuleBuilder) Unique() *FieldRuleBuilder {
	b.rule.Unique = true
	return b
}

// Build returns the rule
func (b *FieldRuleBuilder) Build() FieldRule {
	return b.rule
}

// ParseDate parses s with the first matching layout in DateLayouts, in UTC
func ParseDate(s string) (time.Time, error) {
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// FieldValidator validates rows against a rule set
type FieldValidator struct {
	rules       []FieldRule
	uniqueCheck map[string]map[string]int // column -> normalized value -> first row
	errors      *ErrorCollection
}

// NewFieldValidator creates a new field validator
func NewFieldValidator(rules []FieldRule, maxErrors int) *FieldValidator {
	return &FieldValidator{
		rules:       rules,
		uniqueCheck: make(map[string]map[string]int),
		errors:      NewErrorCollection(maxErrors),
	}
}

// ValidateRow checks every rule against row and reports whether it passed
func (v *FieldValidator) ValidateRow(row *Row) bool {
	ok := true
	for _, rule := range v.rules {
		if err := v.validateField(row, rule); err != nil {
			v.errors.Add(*err)
			ok = false
		}
	}
	return ok
}

func (v *FieldValidator) validateField(row *Row, rule FieldRule) *RowError {
	value := row.Get(rule.Column)
	fail := func(code, msg string) *RowError {
		return &RowError{Row: row.LineNumber, Column: rule.Column, Code: code, Message: msg, Value: value}
	}

	if value == "" {
		if rule.Required {
			return fail(ErrCodeImportRequiredField, fmt.Sprintf("field '%s' is required", rule.Column))
		}
		return nil
	}
	if rule.MaxLength > 0 && utf8.RuneCountInString(value) > rule.MaxLength {
		return fail(ErrCodeImportInvalidLength, fmt.Sprintf("length must be at most %d", rule.MaxLength))
	}

	switch rule.Type {
	case TypeDecimal:
		d, err := decimal.NewFromString(value)
		if err != nil {
			return fail(ErrCodeImportInvalidType, "expected decimal")
		}
		if rule.Positive && !d.IsPositive() {
			return fail(ErrCodeImportInvalidRange, "value must be greater than zero")
		}
	case TypeDate:
		if _, err := ParseDate(value); err != nil {
			return fail(ErrCodeImportInvalidType, "expected date (YYYY-MM-DD)")
		}
	}

	if rule.Unique {
		seen := v.uniqueCheck[rule.Column]
		if seen == nil {
			seen = make(map[string]int)
			v.uniqueCheck[rule.Column] = seen
		}
		key := strings.ToLower(value)
		if first, dup := seen[key]; dup {
			return fail(ErrCodeImportDuplicateInFile, fmt.Sprintf("duplicate value '%s' (first seen in row %d)", value, first))
		}
		seen[key] = row.LineNumber
	}
	return nil
}

// Errors returns the error collection
func (v *FieldValidator) Errors() *ErrorCollection {
	return v.errors
}
