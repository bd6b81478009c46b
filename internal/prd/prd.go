// Package prd loads the task list (prd.json) that drives a run.
package prd

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// FileName is the conventional task list file name inside the run directory.
const FileName = "prd.json"

//go:embed schema.json
var schemaJSON string

// Document is a product requirements task list.
type Document struct {
	Project     string      `json:"project"`
	BranchName  string      `json:"branchName"`
	Description string      `json:"description"`
	UserStories []UserStory `json:"userStories"`
}

// UserStory is a single unit of work tracked by the agent.
type UserStory struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	AcceptanceCriteria []string `json:"acceptanceCriteria"`
	Priority           uint     `json:"priority"`
	Passes             bool     `json:"passes"`
	Notes              string   `json:"notes"`
}

// Display renders "<id> - <title>".
func (s UserStory) Display() string {
	return s.ID + " - " + s.Title
}

// Load reads and validates the task list at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prd: %w", err)
	}
	return Parse(data)
}

// Parse validates data against the task list schema and decodes it.
func Parse(data []byte) (*Document, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schemaJSON),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("parse prd: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, 0, len(result.Errors()))
		for _, schemaErr := range result.Errors() {
			errs = append(errs, fmt.Sprintf("%s: %s", schemaErr.Field(), schemaErr.Description()))
		}
		sort.Strings(errs)
		return nil, fmt.Errorf("prd schema validation failed: %s", strings.Join(errs, "; "))
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode prd: %w", err)
	}
	return &doc, nil
}

// Total returns the number of stories.
func (d *Document) Total() int {
	return len(d.UserStories)
}

// Completed returns the number of passing stories.
func (d *Document) Completed() int {
	n := 0
	for _, s := range d.UserStories {
		if s.Passes {
			n++
		}
	}
	return n
}

// Pending returns the number of stories that do not pass yet.
func (d *Document) Pending() int {
	return d.Total() - d.Completed()
}

// NextPending returns the pending story with the lowest priority value.
// Ties resolve to the story listed first.
func (d *Document) NextPending() (UserStory, bool) {
	var (
		best  UserStory
		found bool
	)
	for _, s := range d.UserStories {
		if s.Passes {
			continue
		}
		if !found || s.Priority < best.Priority {
			best = s
			found = true
		}
	}
	return best, found
}
