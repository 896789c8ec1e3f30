// Package tables defines the normalized issue tables that sync passes
// read and write.
//
// Each remote issue is flattened into six relational tables: a parent
// "issues" table and five one-to-many child tables. All tables relate
// through the "issue_key" column. The registry here is fixed
// architecture, not user data: definitions are immutable and iterated
// in declaration order by every sync pass.
package tables

import (
	"fmt"
	"strconv"
)

// ForeignKey is the column every child table uses to reference its
// owning issue. The parent table uses the same column as its own key.
const ForeignKey = "issue_key"

// Row is a single normalized record, mapping column name to a scalar
// value. Values are stored as strings; timestamps are RFC 3339.
type Row map[string]string

// Snapshot is the full persisted state of one table. After a merge it
// is ordered ascending by the table's key field.
type Snapshot []Row

// Definition describes one normalized table: its logical name, the
// column holding the unique key, the storage file name, and the fixed
// column order used for the flat-file encoding.
type Definition struct {
	Name     string
	KeyField string
	FileName string
	Columns  []string
}

// Table names, in registry order.
const (
	Issues       = "issues"
	Components   = "issue_components"
	Labels       = "issue_labels"
	Stakeholders = "issue_stakeholders"
	Worklogs     = "issue_worklogs"
	Comments     = "issue_comments"
)

// Registry lists every table definition in the order sync passes
// process them. The parent table comes first so its snapshot (whose
// file modification time drives the watermark) is committed before
// any child table.
var Registry = []Definition{
	{
		Name:     Issues,
		KeyField: "issue_key",
		FileName: "ISSUES.csv",
		Columns: []string{
			"issue_key", "summary", "description", "priority", "issue_type",
			"status", "stakeholders", "create_date", "due_date", "last_viewed",
			"resolution_date", "resolution", "total_seconds_spent",
			"assignee", "reporter", "components", "labels",
		},
	},
	{
		Name:     Components,
		KeyField: "issue_component_key",
		FileName: "ISSUES_COMPONENTS.csv",
		Columns:  []string{"issue_component_key", "issue_key", "component"},
	},
	{
		Name:     Labels,
		KeyField: "issue_label_key",
		FileName: "ISSUES_LABELS.csv",
		Columns:  []string{"issue_label_key", "issue_key", "label"},
	},
	{
		Name:     Stakeholders,
		KeyField: "issue_stakeholder_key",
		FileName: "ISSUES_STAKEHOLDERS.csv",
		Columns:  []string{"issue_stakeholder_key", "issue_key", "stakeholder"},
	},
	{
		Name:     Worklogs,
		KeyField: "issue_worklog_id",
		FileName: "ISSUES_WORKLOGS.csv",
		Columns:  []string{"issue_worklog_id", "issue_key", "author", "created", "started", "seconds_spent"},
	},
	{
		Name:     Comments,
		KeyField: "issue_comments_id",
		FileName: "ISSUES_COMMENTS.csv",
		Columns:  []string{"issue_comments_id", "issue_key", "author", "created", "body_text"},
	},
}

// ByName returns the definition for a logical table name.
//
// An unknown name is a configuration-level bug, not a runtime
// condition, so it is returned as an error rather than a fallback.
func ByName(name string) (Definition, error) {
	for _, def := range Registry {
		if def.Name == name {
			return def, nil
		}
	}
	return Definition{}, fmt.Errorf("no table definition for %q", name)
}

// KeyLess compares two key values for snapshot ordering.
//
// Keys are composite strings like "PROJ-123" or "PROJ-123-2", but
// older snapshots may carry plain integer keys. Both kinds must sort
// sensibly, so the comparison is numeric when both values parse as
// integers and lexical otherwise.
func KeyLess(a, b string) bool {
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	if aerr == nil && berr == nil {
		return ai < bi
	}
	return a < b
}
