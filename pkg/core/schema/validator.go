package schema

import (
	"fmt"
	"strings"
)

// ValidationError reports a structural problem in a schema tree.
type ValidationError struct {
	Object  string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for '%s': %s", e.Object, e.Message)
}

// Validator checks schema trees before they are scripted.
type Validator struct{}

// NewValidator creates a validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateTable checks a single table in isolation.
func (v *Validator) ValidateTable(t *TableSchema) error {
	if t.Name == "" {
		return &ValidationError{Object: "table", Message: "table has empty name"}
	}
	obj := t.FullName()

	if len(t.Columns) == 0 {
		return &ValidationError{Object: obj, Message: "table must have at least one column"}
	}

	seen := make(map[string]bool, len(t.Columns))
	for i, c := range t.Columns {
		if c.Name == "" {
			return &ValidationError{Object: obj, Message: fmt.Sprintf("column at index %d has empty name", i)}
		}
		key := strings.ToLower(c.Name)
		if seen[key] {
			return &ValidationError{Object: obj, Message: "duplicate column name: " + c.Name}
		}
		seen[key] = true

		if c.Computed == nil && c.Type == "" {
			return &ValidationError{Object: obj, Message: "column " + c.Name + " has no type"}
		}
		if c.Identity != nil && c.Identity.Increment == 0 {
			return &ValidationError{Object: obj, Message: "column " + c.Name + " has zero identity increment"}
		}
	}

	if pk := t.PrimaryKey; pk != nil {
		if len(pk.Columns) == 0 {
			return &ValidationError{Object: obj, Message: "primary key has no columns"}
		}
		if err := v.checkColumns(t, "primary key", pk.Columns); err != nil {
			return err
		}
	}

	constraints := make(map[string]bool)
	addConstraint := func(kind, name string) error {
		if name == "" {
			return nil
		}
		key := strings.ToLower(name)
		if constraints[key] {
			return &ValidationError{Object: obj, Message: fmt.Sprintf("duplicate %s name: %s", kind, name)}
		}
		constraints[key] = true
		return nil
	}

	for _, idx := range t.Indexes {
		if err := addConstraint("index", idx.Name); err != nil {
			return err
		}
		if len(idx.Columns) == 0 {
			return &ValidationError{Object: obj, Message: "index " + idx.Name + " has no columns"}
		}
		names := make([]string, len(idx.Columns))
		for i, c := range idx.Columns {
			names[i] = c.Name
		}
		if err := v.checkColumns(t, "index "+idx.Name, names); err != nil {
			return err
		}
	}

	for _, fk := range t.ForeignKeys {
		if err := addConstraint("foreign key", fk.Name); err != nil {
			return err
		}
		if len(fk.Columns) == 0 || len(fk.Columns) != len(fk.ReferenceColumns) {
			return &ValidationError{Object: obj, Message: "foreign key " + fk.Name + " column count mismatch"}
		}
		if fk.ReferenceTable == "" {
			return &ValidationError{Object: obj, Message: "foreign key " + fk.Name + " has no reference table"}
		}
		if err := v.checkColumns(t, "foreign key "+fk.Name, fk.Columns); err != nil {
			return err
		}
	}

	for _, ck := range t.CheckConstraints {
		if err := addConstraint("check constraint", ck.Name); err != nil {
			return err
		}
		if ck.Expression == "" {
			return &ValidationError{Object: obj, Message: "check constraint " + ck.Name + " has empty expression"}
		}
	}

	return nil
}

// ValidateDatabase checks every table, then foreign key targets. A target in
// a schema the snapshot holds no tables for is not checked.
func (v *Validator) ValidateDatabase(d *DatabaseSchema) error {
	tables := make(map[string]bool, len(d.Tables))
	schemas := make(map[string]bool)
	for i := range d.Tables {
		t := &d.Tables[i]
		if err := v.ValidateTable(t); err != nil {
			return err
		}
		key := strings.ToLower(t.FullName())
		if tables[key] {
			return &ValidationError{Object: t.FullName(), Message: "duplicate table"}
		}
		tables[key] = true
		schemas[strings.ToLower(t.Schema)] = true
	}

	for i := range d.Tables {
		t := &d.Tables[i]
		for _, fk := range t.ForeignKeys {
			ref := d.Table(fk.ReferenceSchema, fk.ReferenceTable)
			if ref == nil {
				if fk.ReferenceSchema != "" && !schemas[strings.ToLower(fk.ReferenceSchema)] {
					continue
				}
				return &ValidationError{
					Object:  t.FullName(),
					Message: fmt.Sprintf("foreign key %s references missing table %s", fk.Name, fk.ReferenceTable),
				}
			}
			if err := v.checkColumns(ref, "referenced by "+fk.Name, fk.ReferenceColumns); err != nil {
				return err
			}
		}
	}
	return nil
}

func (v *Validator) checkColumns(t *TableSchema, owner string, names []string) error {
	for _, n := range names {
		if t.Column(n) == nil {
			return &ValidationError{
				Object:  t.FullName(),
				Message: fmt.Sprintf("%s uses unknown column %s", owner, n),
			}
		}
	}
	return nil
}
