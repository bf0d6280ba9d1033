package domain

// SemanticType is the type of a column or expression as seen by report authors.
type SemanticType string

// Semantic types.
const (
	TypeString  SemanticType = "string"
	TypeNumber  SemanticType = "number"
	TypeBoolean SemanticType = "boolean"
	TypeDate    SemanticType = "date"
)

// Valid reports whether t is one of the four semantic types.
func (t SemanticType) Valid() bool {
	switch t {
	case TypeString, TypeNumber, TypeBoolean, TypeDate:
		return true
	}
	return false
}

// FieldKind discriminates the two FieldSpec variants.
type FieldKind string

// Field kinds.
const (
	FieldKindColumn  FieldKind = "field"
	FieldKindFormula FieldKind = "formula"
)

// Aggregate is the function applied to a non-grouped field when the sub-report is grouped.
type Aggregate string

// Aggregates.
const (
	AggregateSum   Aggregate = "sum"
	AggregateAvg   Aggregate = "avg"
	AggregateMin   Aggregate = "min"
	AggregateMax   Aggregate = "max"
	AggregateCount Aggregate = "count"
)

// Valid reports whether a is a known aggregate.
func (a Aggregate) Valid() bool {
	switch a {
	case AggregateSum, AggregateAvg, AggregateMin, AggregateMax, AggregateCount:
		return true
	}
	return false
}

// AcceptsType reports whether the aggregate may be applied to values of type t.
func (a Aggregate) AcceptsType(t SemanticType) bool {
	switch a {
	case AggregateSum, AggregateAvg:
		return t == TypeNumber
	case AggregateMin, AggregateMax:
		return t == TypeNumber || t == TypeDate || t == TypeString
	case AggregateCount:
		return true
	}
	return false
}

// FieldSpec is one column or formula entry of a sub-report. Kind selects the
// variant: column fields carry a "{table.column}" expression, formula fields
// carry formula source.
type FieldSpec struct {
	ID               string       `json:"id" yaml:"id"`
	Kind             FieldKind    `json:"kind" yaml:"kind"`
	Expression       string       `json:"expression" yaml:"expression"`
	Label            string       `json:"label" yaml:"label"`
	Type             SemanticType `json:"type" yaml:"type"`
	GroupByAggregate *Aggregate   `json:"group_by_aggregate" yaml:"group_by_aggregate"`
}

// IsFormula reports whether the field is the formula variant.
func (f FieldSpec) IsFormula() bool { return f.Kind == FieldKindFormula }

// SortKey orders preview and export rows by a field ahead of the default ordering.
type SortKey struct {
	Field      string `json:"field" yaml:"field"`
	Descending bool   `json:"descending,omitempty" yaml:"descending,omitempty"`
}

// SubReportConfig is the executable definition of a sub-report.
type SubReportConfig struct {
	Fields  []FieldSpec `json:"fields" yaml:"fields"`
	GroupBy []string    `json:"group_by" yaml:"group_by"`
	Filters *FilterTree `json:"filters" yaml:"filters"`
	Sort    []SortKey   `json:"sort,omitempty" yaml:"sort,omitempty"`
}

// Grouped reports whether the configuration aggregates rows.
func (c SubReportConfig) Grouped() bool { return len(c.GroupBy) > 0 }

// Field returns the FieldSpec with the given id.
func (c SubReportConfig) Field(id string) (FieldSpec, bool) {
	for _, f := range c.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// IsGrouped reports whether the field id is listed in group_by.
func (c SubReportConfig) IsGrouped(id string) bool {
	for _, g := range c.GroupBy {
		if g == id {
			return true
		}
	}
	return false
}

// Canonical returns a copy of the configuration with every field id, group_by
// entry, sort key and filter field in canonical case.
func (c SubReportConfig) Canonical() SubReportConfig {
	fields := make([]FieldSpec, len(c.Fields))
	for i, f := range c.Fields {
		f.ID = CanonicalFieldID(f.ID)
		fields[i] = f
	}
	c.Fields = fields
	if c.GroupBy != nil {
		groupBy := make([]string, len(c.GroupBy))
		for i, id := range c.GroupBy {
			groupBy[i] = CanonicalFieldID(id)
		}
		c.GroupBy = groupBy
	}
	if c.Sort != nil {
		keys := make([]SortKey, len(c.Sort))
		for i, k := range c.Sort {
			k.Field = CanonicalFieldID(k.Field)
			keys[i] = k
		}
		c.Sort = keys
	}
	if c.Filters != nil {
		f := c.Filters.canonical()
		c.Filters = &f
	}
	return c
}

// WithFilters returns a copy of the configuration whose filters are replaced by f.
func (c SubReportConfig) WithFilters(f *FilterTree) SubReportConfig {
	c.Filters = f
	return c
}
