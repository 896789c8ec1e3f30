// Package normalize expands raw tracker issues into flat per-table
// rows.
//
// One call handles one table: the parent "issues" table gets exactly
// one row per issue, child tables get one row per related sub-item.
// Worklog and comment rows require a per-issue fetch through the
// remote client, so normalizing those tables is where most of a sync
// pass's latency lives.
package normalize

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mschirtzinger/jiratab/internal/jira"
	"github.com/mschirtzinger/jiratab/internal/tables"
)

// UnknownAuthor is the sentinel recorded for comments whose remote
// record carries no author linkage.
const UnknownAuthor = "Unknown"

// timeLayouts are the timestamp formats the tracker emits, most
// specific first.
var timeLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05.000Z0700",
	time.RFC3339,
	"2006-01-02",
}

// Normalizer converts batches of issues into normalized rows.
type Normalizer struct {
	client jira.Client
}

// New creates a Normalizer that fetches child records (worklogs,
// comments) through the given client.
func New(client jira.Client) *Normalizer {
	return &Normalizer{client: client}
}

// Normalize expands a batch of issues into rows for one table.
//
// Child rows are keyed <issue key>-<ordinal>, the ordinal counting
// that parent's rows in fetch order. Keys embed the owning parent, so
// a child key from one pass can never collide with another parent's
// rows in a later pass. Duplicate handling is the merge engine's job,
// never this one's.
//
// An unknown table name is a configuration bug and fails immediately.
func (n *Normalizer) Normalize(ctx context.Context, batch []jira.Issue, def tables.Definition) (tables.Snapshot, error) {
	switch def.Name {
	case tables.Issues:
		return n.issueRows(batch), nil
	case tables.Components:
		return expandList(batch, "component", func(issue jira.Issue) []string { return issue.Components }), nil
	case tables.Labels:
		return expandList(batch, "label", func(issue jira.Issue) []string { return issue.Labels }), nil
	case tables.Stakeholders:
		return expandList(batch, "stakeholder", func(issue jira.Issue) []string { return issue.Stakeholders }), nil
	case tables.Worklogs:
		return n.worklogRows(ctx, batch)
	case tables.Comments:
		return n.commentRows(ctx, batch)
	default:
		return nil, fmt.Errorf("table %q has no row definition", def.Name)
	}
}

// issueRows emits one parent row per issue with the fixed column set.
func (n *Normalizer) issueRows(batch []jira.Issue) tables.Snapshot {
	rows := make(tables.Snapshot, 0, len(batch))
	for _, issue := range batch {
		rows = append(rows, tables.Row{
			"issue_key":           issue.Key,
			"summary":             issue.Summary,
			"description":         Clean(issue.Description),
			"priority":            issue.Priority,
			"issue_type":          issue.Type,
			"status":              issue.Status,
			"stakeholders":        strings.Join(issue.Stakeholders, ","),
			"create_date":         formatTime(issue.Created),
			"due_date":            formatTime(issue.DueDate),
			"last_viewed":         formatTime(issue.LastViewed),
			"resolution_date":     formatTime(issue.ResolutionDate),
			"resolution":          issue.Resolution,
			"total_seconds_spent": formatSeconds(issue.TimeSpentSeconds),
			"assignee":            issue.Assignee,
			"reporter":            issue.Reporter,
			"components":          strings.Join(issue.Components, ","),
			"labels":              strings.Join(issue.Labels, ","),
		})
	}
	return rows
}

// expandList emits one child row per list item of every issue. The
// key column name follows the issue_<value>_key convention, so
// callers pass only the value column name.
func expandList(batch []jira.Issue, valueColumn string, items func(jira.Issue) []string) tables.Snapshot {
	keyColumn := "issue_" + valueColumn + "_key"
	var rows tables.Snapshot
	for _, issue := range batch {
		for i, item := range items(issue) {
			rows = append(rows, tables.Row{
				keyColumn:         childKey(issue.Key, i+1),
				tables.ForeignKey: issue.Key,
				valueColumn:       Clean(item),
			})
		}
	}
	return rows
}

// childKey builds the composite key for one child row: the owning
// issue key plus the row's ordinal within that issue. Scoping the
// ordinal to the parent keeps keys unique and stable across passes.
func childKey(issueKey string, ordinal int) string {
	return fmt.Sprintf("%s-%d", issueKey, ordinal)
}

// worklogRows fetches and expands work-log entries, one remote call
// per issue.
func (n *Normalizer) worklogRows(ctx context.Context, batch []jira.Issue) (tables.Snapshot, error) {
	var rows tables.Snapshot
	for _, issue := range batch {
		worklogs, err := n.client.Worklogs(ctx, issue.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch worklogs for %s: %w", issue.Key, err)
		}
		for i, w := range worklogs {
			rows = append(rows, tables.Row{
				"issue_worklog_id": childKey(issue.Key, i+1),
				tables.ForeignKey:  issue.Key,
				"author":           w.Author,
				"created":          formatTime(w.Created),
				"started":          formatTime(w.Started),
				"seconds_spent":    strconv.FormatInt(w.TimeSpentSeconds, 10),
			})
		}
	}
	return rows, nil
}

// commentRows fetches and expands comments, one remote call per
// issue. A comment with no author linkage still produces a row, with
// the author defaulted to UnknownAuthor.
func (n *Normalizer) commentRows(ctx context.Context, batch []jira.Issue) (tables.Snapshot, error) {
	var rows tables.Snapshot
	for _, issue := range batch {
		comments, err := n.client.Comments(ctx, issue.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch comments for %s: %w", issue.Key, err)
		}
		for i, c := range comments {
			author := c.Author
			if author == "" {
				author = UnknownAuthor
			}
			rows = append(rows, tables.Row{
				"issue_comments_id": childKey(issue.Key, i+1),
				tables.ForeignKey:   issue.Key,
				"author":            author,
				"created":           formatTime(c.Created),
				"body_text":         Clean(c.Body),
			})
		}
	}
	return rows, nil
}

// formatTime parses a tracker timestamp and renders it as RFC 3339.
// Empty input stays empty; an unparseable value is passed through
// unchanged rather than dropped.
func formatTime(s string) string {
	if s == "" {
		return ""
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(time.RFC3339)
		}
	}
	return s
}

func formatSeconds(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
