// Package testutil provides shared fixtures and fakes of domain interfaces for
// tests across the codebase.
package testutil

import "govreport/internal/domain"

// Field ids used by the shared sub-report fixtures.
const (
	FieldProjectNumber = "7a1c9f20-6a1e-4c3b-9d52-1b8e4f0a6c11"
	FieldAmount        = "8b2d0a31-7b2f-4d4c-8e63-2c9f5a1b7d22"
	FieldHundredths    = "9c3e1b42-8c3a-4e5d-9f74-3d0a6b2c8e33"
	FieldSize          = "ad4f2c53-9d4b-4f6e-8a85-4e1b7c3d9f44"
	FieldAgency        = "be5a3d64-ae5c-4a7f-9b96-5f2c8d4e0a55"
	FieldTxDate        = "cf6b4e75-bf6d-4b80-8ca7-6a3d9e5f1b66"
)

// Agg returns a pointer to a.
func Agg(a domain.Aggregate) *domain.Aggregate { return &a }

// ColumnField builds a column FieldSpec over "{table.column}".
func ColumnField(id, ref, label string, t domain.SemanticType, agg *domain.Aggregate) domain.FieldSpec {
	return domain.FieldSpec{
		ID:               id,
		Kind:             domain.FieldKindColumn,
		Expression:       "{" + ref + "}",
		Label:            label,
		Type:             t,
		GroupByAggregate: agg,
	}
}

// FormulaField builds a formula FieldSpec.
func FormulaField(id, expr, label string, t domain.SemanticType, agg *domain.Aggregate) domain.FieldSpec {
	return domain.FieldSpec{
		ID:               id,
		Kind:             domain.FieldKindFormula,
		Expression:       expr,
		Label:            label,
		Type:             t,
		GroupByAggregate: agg,
	}
}

// Ref returns the formula reference to a sibling field id.
func Ref(id string) string { return "{" + id + "}" }

// GroupedSpendConfig groups transaction totals by project number: a column
// field, a summed column and a summed formula over it.
func GroupedSpendConfig() domain.SubReportConfig {
	return domain.SubReportConfig{
		Fields: []domain.FieldSpec{
			ColumnField(FieldProjectNumber, "project.number", "Project", domain.TypeString, nil),
			ColumnField(FieldAmount, "transaction.transaction_amount", "Amount", domain.TypeNumber, Agg(domain.AggregateSum)),
			FormulaField(FieldHundredths, Ref(FieldAmount)+" / 100", "Amount (hundreds)", domain.TypeNumber, Agg(domain.AggregateSum)),
		},
		GroupBy: []string{FieldProjectNumber},
	}
}

// SizeFilteredConfig extends GroupedSpendConfig with a formula classifying
// each transaction and a filter on that formula.
func SizeFilteredConfig() domain.SubReportConfig {
	cfg := GroupedSpendConfig()
	cfg.Fields = append(cfg.Fields,
		FormulaField(FieldSize, "IF("+Ref(FieldAmount)+" > 1000, 'big', 'small')", "Size", domain.TypeString, Agg(domain.AggregateMax)),
	)
	leaf := domain.Leaf(FieldSize, domain.OpEquals, "big")
	cfg.Filters = &leaf
	return cfg
}

// DetailConfig is an ungrouped listing of transactions with their agency. Its
// aggregates only apply once the configuration is grouped.
func DetailConfig() domain.SubReportConfig {
	return domain.SubReportConfig{
		Fields: []domain.FieldSpec{
			ColumnField(FieldTxDate, "transaction.transaction_date", "Date", domain.TypeDate, Agg(domain.AggregateMin)),
			ColumnField(FieldAmount, "transaction.transaction_amount", "Amount", domain.TypeNumber, Agg(domain.AggregateSum)),
			ColumnField(FieldAgency, "agency.name", "Agency", domain.TypeString, Agg(domain.AggregateMax)),
		},
	}
}
