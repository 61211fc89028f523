// internal/api/types.go
//
// Wire types for the brandguard compliance service. These mirror the
// server's JSON contract; anything the client derives from them lives in
// the wizard and catalog packages instead.

package api

import (
	"fmt"
	"time"
)

// Category classifies which guideline family a rule enforces.
type Category string

const (
	CategoryIRDAI Category = "irdai"
	CategoryBrand Category = "brand"
	CategorySEO   Category = "seo"
)

// Categories lists every category the server understands, in display order.
func Categories() []Category {
	return []Category{CategoryIRDAI, CategoryBrand, CategorySEO}
}

// Valid reports whether the category is one the client knows how to handle.
func (c Category) Valid() bool {
	switch c {
	case CategoryIRDAI, CategoryBrand, CategorySEO:
		return true
	}
	return false
}

// Severity grades how serious a rule violation is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Severities lists every severity from most to least serious.
func Severities() []Severity {
	return []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}
}

// Valid reports whether the severity is a known grade.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Rule is a single compliance check extracted from a guideline document or
// authored directly by an operator.
type Rule struct {
	ID                string    `json:"id"`
	Text              string    `json:"rule_text"`
	Category          Category  `json:"category"`
	Severity          Severity  `json:"severity"`
	PointsDeduction   float64   `json:"points_deduction"`
	IsActive          bool      `json:"is_active"`
	SourceGuidelineID string    `json:"source_guideline_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// Validate rejects rules whose enumerated fields fall outside the closed
// sets. The server should never send these, but a client that renders an
// unknown severity silently is worse than one that refuses it.
func (r Rule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("api: rule has no id")
	}
	if !r.Category.Valid() {
		return fmt.Errorf("api: rule %s has unknown category %q", r.ID, r.Category)
	}
	if !r.Severity.Valid() {
		return fmt.Errorf("api: rule %s has unknown severity %q", r.ID, r.Severity)
	}
	return nil
}

// RulePatch carries the fields of a partial rule update. Nil fields are
// omitted from the request body so the server merges rather than replaces.
type RulePatch struct {
	Text            *string   `json:"rule_text,omitempty"`
	Category        *Category `json:"category,omitempty"`
	Severity        *Severity `json:"severity,omitempty"`
	PointsDeduction *float64  `json:"points_deduction,omitempty"`
}

// Empty reports whether the patch would change nothing.
func (p RulePatch) Empty() bool {
	return p.Text == nil && p.Category == nil && p.Severity == nil && p.PointsDeduction == nil
}

// Workspace is the top-level container for one brand's compliance work.
// The web UI calls it a "project"; the wire format keeps that name.
type Workspace struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Guideline is an uploaded source document rules were extracted from.
type Guideline struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"project_id"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"created_at"`
}

// Agent describes a specialist analysis agent that can be attached to a
// workspace at creation time.
type Agent struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Required bool   `json:"required"`
	Default  bool   `json:"default"`
}

// UploadResult reports the outcome of a guideline document upload.
type UploadResult struct {
	GuidelineID    string `json:"guideline_id"`
	ExtractedCount int    `json:"rules_extracted"`
	Success        bool   `json:"success"`
}
