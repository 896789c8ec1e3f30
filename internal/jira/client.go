package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	// DefaultStakeholderField is the custom field number holding the
	// multi-value stakeholder list. Custom field ids vary per tracker
	// instance, so this is configurable.
	DefaultStakeholderField = 10800

	defaultPageSize = 50
)

// Config configures the REST client.
type Config struct {
	// Server is the base URL, e.g. https://example.atlassian.net.
	Server string
	// User is the account email or username for basic auth.
	User string
	// Token is the password or API token.
	Token string
	// StakeholderField overrides DefaultStakeholderField when non-zero.
	StakeholderField int
	// HTTPClient overrides the default HTTP client when non-nil.
	HTTPClient *http.Client
	// PageSize overrides the search page size when non-zero.
	PageSize int
}

// HTTPClient talks to the tracker's REST API (v2).
type HTTPClient struct {
	baseURL          string
	user             string
	token            string
	stakeholderField string
	pageSize         int
	httpc            *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewClient creates a REST client for the given server.
func NewClient(cfg Config) (*HTTPClient, error) {
	if cfg.Server == "" {
		return nil, fmt.Errorf("server URL is required")
	}
	base, err := url.Parse(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", cfg.Server, err)
	}

	field := cfg.StakeholderField
	if field == 0 {
		field = DefaultStakeholderField
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	httpc := cfg.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}

	return &HTTPClient{
		baseURL:          base.String(),
		user:             cfg.User,
		token:            cfg.Token,
		stakeholderField: fmt.Sprintf("customfield_%d", field),
		pageSize:         pageSize,
		httpc:            httpc,
	}, nil
}

// Search implements Client.Search.
//
// Results are fetched page by page until the server reports no more
// matches or maxResults is reached.
func (c *HTTPClient) Search(ctx context.Context, jql string, maxResults int) ([]Issue, error) {
	var issues []Issue
	startAt := 0

	for {
		pageSize := c.pageSize
		if maxResults > 0 && maxResults-len(issues) < pageSize {
			pageSize = maxResults - len(issues)
		}

		query := url.Values{}
		query.Set("jql", jql)
		query.Set("startAt", strconv.Itoa(startAt))
		query.Set("maxResults", strconv.Itoa(pageSize))

		var page searchResponse
		if err := c.get(ctx, "/rest/api/2/search", query, &page); err != nil {
			return nil, fmt.Errorf("search %q: %w", jql, err)
		}

		for _, raw := range page.Issues {
			issue, err := c.decodeIssue(raw)
			if err != nil {
				return nil, fmt.Errorf("search %q: %w", jql, err)
			}
			issues = append(issues, issue)
		}

		startAt += len(page.Issues)
		if len(page.Issues) == 0 || startAt >= page.Total {
			break
		}
		if maxResults > 0 && len(issues) >= maxResults {
			break
		}
	}

	return issues, nil
}

// Worklogs implements Client.Worklogs.
func (c *HTTPClient) Worklogs(ctx context.Context, issueKey string) ([]Worklog, error) {
	var resp worklogResponse
	path := fmt.Sprintf("/rest/api/2/issue/%s/worklog", url.PathEscape(issueKey))
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("worklogs for %s: %w", issueKey, err)
	}

	worklogs := make([]Worklog, 0, len(resp.Worklogs))
	for _, w := range resp.Worklogs {
		worklogs = append(worklogs, Worklog{
			Author:           w.Author.DisplayName,
			Created:          w.Created,
			Started:          w.Started,
			TimeSpentSeconds: w.TimeSpentSeconds,
		})
	}
	return worklogs, nil
}

// Comments implements Client.Comments.
func (c *HTTPClient) Comments(ctx context.Context, issueKey string) ([]Comment, error) {
	var resp commentResponse
	path := fmt.Sprintf("/rest/api/2/issue/%s/comment", url.PathEscape(issueKey))
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("comments for %s: %w", issueKey, err)
	}

	comments := make([]Comment, 0, len(resp.Comments))
	for _, cm := range resp.Comments {
		var author string
		if cm.Author != nil {
			author = cm.Author.DisplayName
		}
		comments = append(comments, Comment{
			Author:  author,
			Created: cm.Created,
			Body:    cm.Body,
		})
	}
	return comments, nil
}

// get performs an authenticated GET and decodes the JSON response.
func (c *HTTPClient) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.user != "" || c.token != "" {
		req.SetBasicAuth(c.user, c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d from %s: %s", resp.StatusCode, path, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// Wire shapes. Fields arrive as nested objects keyed by internal
// names; only the attributes the sync consumes are decoded.

type searchResponse struct {
	StartAt    int               `json:"startAt"`
	MaxResults int               `json:"maxResults"`
	Total      int               `json:"total"`
	Issues     []json.RawMessage `json:"issues"`
}

type issueJSON struct {
	Key    string          `json:"key"`
	Fields json.RawMessage `json:"fields"`
}

type issueFieldsJSON struct {
	Summary            string      `json:"summary"`
	Description        string      `json:"description"`
	Priority           *namedJSON  `json:"priority"`
	IssueType          *namedJSON  `json:"issuetype"`
	Status             *namedJSON  `json:"status"`
	Resolution         *namedJSON  `json:"resolution"`
	Assignee           *userJSON   `json:"assignee"`
	Reporter           *userJSON   `json:"reporter"`
	Components         []namedJSON `json:"components"`
	Labels             []string    `json:"labels"`
	Created            string      `json:"created"`
	Updated            string      `json:"updated"`
	DueDate            string      `json:"duedate"`
	LastViewed         string      `json:"lastViewed"`
	ResolutionDate     string      `json:"resolutiondate"`
	AggregateTimeSpent *int64      `json:"aggregatetimespent"`
}

type namedJSON struct {
	Name string `json:"name"`
}

type userJSON struct {
	DisplayName string `json:"displayName"`
}

type worklogResponse struct {
	Worklogs []worklogJSON `json:"worklogs"`
}

type worklogJSON struct {
	Author           userJSON `json:"author"`
	Created          string   `json:"created"`
	Started          string   `json:"started"`
	TimeSpentSeconds int64    `json:"timeSpentSeconds"`
}

type commentResponse struct {
	Comments []commentJSON `json:"comments"`
}

type commentJSON struct {
	Author  *userJSON `json:"author"`
	Created string    `json:"created"`
	Body    string    `json:"body"`
}

// stakeholderJSON accepts either a bare string or a user/option
// object, since multi-value custom fields differ across instances.
type stakeholderJSON struct {
	value string
}

func (s *stakeholderJSON) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		s.value = str
		return nil
	}
	var obj struct {
		DisplayName string `json:"displayName"`
		Value       string `json:"value"`
		Name        string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	switch {
	case obj.DisplayName != "":
		s.value = obj.DisplayName
	case obj.Value != "":
		s.value = obj.Value
	default:
		s.value = obj.Name
	}
	return nil
}

// decodeIssue maps one raw search result onto the typed Issue record.
func (c *HTTPClient) decodeIssue(raw json.RawMessage) (Issue, error) {
	var wire issueJSON
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Issue{}, fmt.Errorf("failed to decode issue: %w", err)
	}

	var fields issueFieldsJSON
	if len(wire.Fields) > 0 {
		if err := json.Unmarshal(wire.Fields, &fields); err != nil {
			return Issue{}, fmt.Errorf("failed to decode fields of %s: %w", wire.Key, err)
		}
	}

	issue := Issue{
		Key:              wire.Key,
		Summary:          fields.Summary,
		Description:      fields.Description,
		Priority:         nameOf(fields.Priority),
		Type:             nameOf(fields.IssueType),
		Status:           nameOf(fields.Status),
		Resolution:       nameOf(fields.Resolution),
		Assignee:         displayNameOf(fields.Assignee),
		Reporter:         displayNameOf(fields.Reporter),
		Labels:           fields.Labels,
		Created:          fields.Created,
		Updated:          fields.Updated,
		DueDate:          fields.DueDate,
		LastViewed:       fields.LastViewed,
		ResolutionDate:   fields.ResolutionDate,
		TimeSpentSeconds: fields.AggregateTimeSpent,
	}

	for _, comp := range fields.Components {
		issue.Components = append(issue.Components, comp.Name)
	}

	// The stakeholder list lives in a per-instance custom field, so
	// it is pulled out of the raw field map separately.
	if len(wire.Fields) > 0 {
		var rawFields map[string]json.RawMessage
		if err := json.Unmarshal(wire.Fields, &rawFields); err != nil {
			return Issue{}, fmt.Errorf("failed to decode fields of %s: %w", wire.Key, err)
		}
		if rawValue, ok := rawFields[c.stakeholderField]; ok && string(rawValue) != "null" {
			var stakeholders []stakeholderJSON
			if err := json.Unmarshal(rawValue, &stakeholders); err != nil {
				return Issue{}, fmt.Errorf("failed to decode %s of %s: %w", c.stakeholderField, wire.Key, err)
			}
			for _, s := range stakeholders {
				issue.Stakeholders = append(issue.Stakeholders, s.value)
			}
		}
	}

	return issue, nil
}

func nameOf(n *namedJSON) string {
	if n == nil {
		return ""
	}
	return n.Name
}

func displayNameOf(u *userJSON) string {
	if u == nil {
		return ""
	}
	return u.DisplayName
}
