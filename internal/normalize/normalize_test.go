package normalize

import (
	"context"
	"fmt"
	"testing"

	"github.com/mschirtzinger/jiratab/internal/jira"
	"github.com/mschirtzinger/jiratab/internal/tables"
)

// fakeClient serves canned worklogs and comments per issue key.
type fakeClient struct {
	worklogs map[string][]jira.Worklog
	comments map[string][]jira.Comment
	failFor  string
}

func (f *fakeClient) Search(ctx context.Context, jql string, maxResults int) ([]jira.Issue, error) {
	return nil, nil
}

func (f *fakeClient) Worklogs(ctx context.Context, issueKey string) ([]jira.Worklog, error) {
	if issueKey == f.failFor {
		return nil, fmt.Errorf("remote unavailable")
	}
	return f.worklogs[issueKey], nil
}

func (f *fakeClient) Comments(ctx context.Context, issueKey string) ([]jira.Comment, error) {
	if issueKey == f.failFor {
		return nil, fmt.Errorf("remote unavailable")
	}
	return f.comments[issueKey], nil
}

func mustDef(t *testing.T, name string) tables.Definition {
	t.Helper()
	def, err := tables.ByName(name)
	if err != nil {
		t.Fatalf("ByName(%q) failed: %v", name, err)
	}
	return def
}

func testIssue() jira.Issue {
	seconds := int64(3600)
	return jira.Issue{
		Key:              "PROJ-1",
		Summary:          "Fix the widget",
		Description:      "line one\nline two with “quotes”",
		Priority:         "High",
		Type:             "Bug",
		Status:           "Open",
		Resolution:       "Unresolved",
		Assignee:         "Alice",
		Reporter:         "Bob",
		Stakeholders:     []string{"Carol", "Dave"},
		Components:       []string{"backend", "api"},
		Labels:           []string{"urgent"},
		Created:          "2026-08-01T09:30:00.000-0500",
		DueDate:          "2026-09-01",
		TimeSpentSeconds: &seconds,
	}
}

func TestNormalizeIssuesTable(t *testing.T) {
	n := New(&fakeClient{})
	batch := []jira.Issue{testIssue()}

	rows, err := n.Normalize(context.Background(), batch, mustDef(t, tables.Issues))
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}

	row := rows[0]
	checks := map[string]string{
		"issue_key":           "PROJ-1",
		"summary":             "Fix the widget",
		"description":         `line one-line two with "quotes"`,
		"priority":            "High",
		"issue_type":          "Bug",
		"status":              "Open",
		"stakeholders":        "Carol,Dave",
		"components":          "backend,api",
		"labels":              "urgent",
		"create_date":         "2026-08-01T09:30:00-05:00",
		"due_date":            "2026-09-01T00:00:00Z",
		"total_seconds_spent": "3600",
		"assignee":            "Alice",
		"reporter":            "Bob",
	}
	for column, want := range checks {
		if got := row[column]; got != want {
			t.Errorf("column %s: expected %q, got %q", column, want, got)
		}
	}
	if row["resolution_date"] != "" {
		t.Errorf("expected empty resolution_date, got %q", row["resolution_date"])
	}
}

func TestNormalizeChildListTables(t *testing.T) {
	n := New(&fakeClient{})
	second := testIssue()
	second.Key = "PROJ-2"
	second.Components = []string{"frontend"}
	batch := []jira.Issue{testIssue(), second}

	rows, err := n.Normalize(context.Background(), batch, mustDef(t, tables.Components))
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 component rows, got %d", len(rows))
	}

	// Keys embed the owning issue plus a per-issue ordinal.
	wantKeys := []string{"PROJ-1-1", "PROJ-1-2", "PROJ-2-1"}
	for i, row := range rows {
		if row["issue_component_key"] != wantKeys[i] {
			t.Errorf("row %d: expected key %s, got %s", i, wantKeys[i], row["issue_component_key"])
		}
	}
	if rows[0]["issue_key"] != "PROJ-1" || rows[2]["issue_key"] != "PROJ-2" {
		t.Errorf("unexpected foreign keys: %v", rows)
	}
	if rows[2]["component"] != "frontend" {
		t.Errorf("expected component frontend, got %q", rows[2]["component"])
	}
}

func TestNormalizeChildKeysStableAcrossCalls(t *testing.T) {
	// The same issue must produce the same child keys on every pass,
	// and a different issue can never produce a colliding key. Both
	// matter: the merge dedups by key, so unstable or shared keys
	// would let one parent's rows displace another's.
	n := New(&fakeClient{})
	def := mustDef(t, tables.Labels)

	first, err := n.Normalize(context.Background(), []jira.Issue{testIssue()}, def)
	if err != nil {
		t.Fatalf("first Normalize failed: %v", err)
	}
	second, err := n.Normalize(context.Background(), []jira.Issue{testIssue()}, def)
	if err != nil {
		t.Fatalf("second Normalize failed: %v", err)
	}
	if first[0]["issue_label_key"] != "PROJ-1-1" || second[0]["issue_label_key"] != "PROJ-1-1" {
		t.Errorf("expected stable key PROJ-1-1 across calls, got %q and %q",
			first[0]["issue_label_key"], second[0]["issue_label_key"])
	}

	other := testIssue()
	other.Key = "PROJ-2"
	third, err := n.Normalize(context.Background(), []jira.Issue{other}, def)
	if err != nil {
		t.Fatalf("third Normalize failed: %v", err)
	}
	if third[0]["issue_label_key"] == first[0]["issue_label_key"] {
		t.Errorf("keys of different parents must not collide, both got %q",
			third[0]["issue_label_key"])
	}
}

func TestNormalizeIssueWithoutChildrenEmitsNoRows(t *testing.T) {
	n := New(&fakeClient{})
	issue := testIssue()
	issue.Stakeholders = nil
	batch := []jira.Issue{issue}

	rows, err := n.Normalize(context.Background(), batch, mustDef(t, tables.Stakeholders))
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no stakeholder rows, got %v", rows)
	}
}

func TestNormalizeWorklogs(t *testing.T) {
	client := &fakeClient{
		worklogs: map[string][]jira.Worklog{
			"PROJ-1": {
				{Author: "Alice", Created: "2026-08-02T10:00:00.000-0500", Started: "2026-08-02T09:00:00.000-0500", TimeSpentSeconds: 1800},
				{Author: "Bob", TimeSpentSeconds: 600},
			},
		},
	}
	n := New(client)
	batch := []jira.Issue{testIssue()}

	rows, err := n.Normalize(context.Background(), batch, mustDef(t, tables.Worklogs))
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 worklog rows, got %d", len(rows))
	}
	if rows[0]["author"] != "Alice" || rows[0]["seconds_spent"] != "1800" {
		t.Errorf("unexpected first worklog row: %v", rows[0])
	}
	if rows[0]["started"] != "2026-08-02T09:00:00-05:00" {
		t.Errorf("expected parsed started timestamp, got %q", rows[0]["started"])
	}
	if rows[1]["issue_worklog_id"] != "PROJ-1-2" {
		t.Errorf("expected worklog id PROJ-1-2, got %q", rows[1]["issue_worklog_id"])
	}
}

func TestNormalizeCommentWithoutAuthorDefaultsToUnknown(t *testing.T) {
	client := &fakeClient{
		comments: map[string][]jira.Comment{
			"PROJ-1": {
				{Author: "Alice", Created: "2026-08-03T08:00:00.000-0500", Body: "looks good"},
				{Created: "2026-08-03T09:00:00.000-0500", Body: "sent by email\r\nwith breaks"},
			},
		},
	}
	n := New(client)
	batch := []jira.Issue{testIssue()}

	rows, err := n.Normalize(context.Background(), batch, mustDef(t, tables.Comments))
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 comment rows, got %d", len(rows))
	}
	if rows[0]["author"] != "Alice" {
		t.Errorf("expected author Alice, got %q", rows[0]["author"])
	}
	if rows[1]["author"] != UnknownAuthor {
		t.Errorf("expected author %q for authorless comment, got %q", UnknownAuthor, rows[1]["author"])
	}
	if rows[1]["body_text"] != "sent by email--with breaks" {
		t.Errorf("expected sanitized body, got %q", rows[1]["body_text"])
	}
}

func TestNormalizeChildFetchFailurePropagates(t *testing.T) {
	client := &fakeClient{failFor: "PROJ-1"}
	n := New(client)
	batch := []jira.Issue{testIssue()}

	if _, err := n.Normalize(context.Background(), batch, mustDef(t, tables.Comments)); err == nil {
		t.Fatal("expected error when comment fetch fails")
	}
}

func TestNormalizeUnknownTable(t *testing.T) {
	n := New(&fakeClient{})
	def := tables.Definition{Name: "issue_votes", KeyField: "id"}

	if _, err := n.Normalize(context.Background(), nil, def); err == nil {
		t.Fatal("expected error for unknown table name")
	}
}

func TestClean(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"plain text", "plain text"},
		{"“double” and ‘single’", `"double" and 'single'`},
		{"a\r\nb", "a--b"},
		{"a\fb", "a_b"},
	}
	for _, tc := range cases {
		if got := Clean(tc.in); got != tc.want {
			t.Errorf("Clean(%q): expected %q, got %q", tc.in, tc.want, got)
		}
	}
}
