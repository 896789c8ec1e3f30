// Package jira provides typed access to the remote issue tracker.
//
// The remote API returns loosely shaped JSON; this package maps it
// onto explicit record types so the rest of the system operates on
// known, validated shapes instead of duck-typed field access. Every
// attribute the sync consumes has a named field here, and absent
// values are empty rather than missing.
package jira

import "context"

// Issue is one parent record as returned by a search query.
//
// Timestamp fields hold the tracker's wire format untouched; the
// normalize package parses and reformats them when it builds rows.
// Nested objects such as priority or assignee
// are flattened to their display names. Nil-able numeric fields use
// pointers so "zero seconds spent" and "not tracked" stay distinct.
type Issue struct {
	Key         string
	Summary     string
	Description string
	Priority    string
	Type        string
	Status      string
	Resolution  string
	Assignee    string
	Reporter    string

	// Multi-value fields, flattened to display names in API order.
	Stakeholders []string
	Components   []string
	Labels       []string

	// Timestamps in the tracker's wire format; empty when unset.
	Created        string
	Updated        string
	DueDate        string
	LastViewed     string
	ResolutionDate string

	// Aggregate time spent across the issue and its subtasks.
	TimeSpentSeconds *int64
}

// Worklog is one work-log entry attached to an issue.
type Worklog struct {
	Author           string
	Created          string
	Started          string
	TimeSpentSeconds int64
}

// Comment is one comment attached to an issue.
//
// Author is empty when the remote record carries no author linkage
// (comments filed through a broken email integration do this); the
// normalizer substitutes a sentinel value, this package does not.
type Comment struct {
	Author  string
	Created string
	Body    string
}

// Client is the remote fetch surface the sync engine consumes.
//
// Implementations must preserve the API's ordering of worklogs and
// comments, since child row keys are assigned in fetch order.
type Client interface {
	// Search runs a JQL query and returns every matching issue.
	// maxResults of 0 means unlimited; pagination is internal.
	Search(ctx context.Context, jql string, maxResults int) ([]Issue, error)

	// Worklogs returns all work-log entries for one issue.
	Worklogs(ctx context.Context, issueKey string) ([]Worklog, error)

	// Comments returns all comments for one issue.
	Comments(ctx context.Context, issueKey string) ([]Comment, error)
}
