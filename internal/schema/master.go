package schema

import "govreport/internal/domain"

const (
	str  = domain.TypeString
	num  = domain.TypeNumber
	boo  = domain.TypeBoolean
	date = domain.TypeDate
)

func cols(pairs ...any) []Column {
	out := make([]Column, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, Column{Name: pairs[i].(string), Type: pairs[i+1].(domain.SemanticType)})
	}
	return out
}

// masterTables is the supported reporting surface of the warehouse.
var masterTables = []Table{
	{Name: "agency", Columns: cols(
		"id", num, "code", str, "name", str, "region", str, "established_on", date, "active", boo,
	)},
	{Name: "program", Columns: cols(
		"id", num, "agency_id", num, "code", str, "name", str, "category", str,
		"start_date", date, "end_date", date,
	)},
	{Name: "project", Columns: cols(
		"id", num, "program_id", num, "number", str, "name", str, "status", str,
		"start_date", date, "end_date", date, "budget", num, "is_capital", boo,
	)},
	{Name: "vendor", Columns: cols(
		"id", num, "name", str, "registration_number", str, "country", str, "is_small_business", boo,
	)},
	{Name: "contract", Columns: cols(
		"id", num, "project_id", num, "vendor_id", num, "contract_number", str, "status", str,
		"award_date", date, "award_amount", num,
	)},
	{Name: "transaction", Columns: cols(
		"id", num, "project_id", num, "contract_id", num, "transaction_date", date,
		"transaction_amount", num, "fiscal_year", num, "type", str, "description", str,
	)},
	{Name: "budget_line", Columns: cols(
		"id", num, "project_id", num, "fiscal_year", num, "category", str, "allocated_amount", num,
	)},
	{Name: "employee", Columns: cols(
		"id", num, "agency_id", num, "full_name", str, "title", str, "hire_date", date, "salary", num,
	)},
}

var masterEdges = []JoinEdge{
	{ChildTable: "program", ChildColumn: "agency_id", ParentTable: "agency", ParentColumn: "id"},
	{ChildTable: "project", ChildColumn: "program_id", ParentTable: "program", ParentColumn: "id"},
	{ChildTable: "contract", ChildColumn: "project_id", ParentTable: "project", ParentColumn: "id"},
	{ChildTable: "contract", ChildColumn: "vendor_id", ParentTable: "vendor", ParentColumn: "id"},
	{ChildTable: "transaction", ChildColumn: "project_id", ParentTable: "project", ParentColumn: "id"},
	{ChildTable: "transaction", ChildColumn: "contract_id", ParentTable: "contract", ParentColumn: "id"},
	{ChildTable: "budget_line", ChildColumn: "project_id", ParentTable: "project", ParentColumn: "id"},
	{ChildTable: "employee", ChildColumn: "agency_id", ParentTable: "agency", ParentColumn: "id"},
}

// Master returns the registry of master tables exposed to report authors.
func Master() *Registry {
	return MustNew(masterTables, masterEdges)
}
