package models

import (
	"time"

	"github.com/google/uuid"
)

// ProjectStatus tracks the publication lifecycle of a project.
type ProjectStatus string

const (
	StatusDraft     ProjectStatus = "draft"
	StatusPublished ProjectStatus = "published"
	StatusArchived  ProjectStatus = "archived"
)

// ProjectCategory distinguishes loose ideas from concrete policy proposals.
type ProjectCategory string

const (
	CategoryIdea           ProjectCategory = "idea"
	CategoryFleshedOut     ProjectCategory = "fleshed-out"
	CategoryPolicyProposal ProjectCategory = "policy-proposal"
)

// Project is a posted idea or policy proposal together with its derived
// aggregates. Score is always upvotes - downvotes; Comments counts
// top-level comments only.
type Project struct {
	ID              uuid.UUID       `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Category        ProjectCategory `json:"category"`
	Tags            []string        `json:"tags"`
	Status          ProjectStatus   `json:"status"`
	AuthorID        uuid.UUID       `json:"authorId"`
	AuthorName      string          `json:"authorName"`
	Upvotes         int             `json:"upvotes"`
	Downvotes       int             `json:"downvotes"`
	Score           int             `json:"score"`
	Comments        int             `json:"comments"`
	Views           int             `json:"views"`
	ExperienceLevel string          `json:"experienceLevel"`
	TimeCommitment  string          `json:"timeCommitment"`
	Duration        string          `json:"duration"`
	ContactMethod   string          `json:"contactMethod"`
	ContactInfo     string          `json:"contactInfo"`
	GithubURL       *string         `json:"githubUrl"`
	ImageURL        *string         `json:"imageUrl"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// ProjectUpdate carries the owner-editable fields of a project. Nil
// fields are left untouched; aggregates and ownership are never
// updatable through this path.
type ProjectUpdate struct {
	Title           *string          `json:"title,omitempty"`
	Description     *string          `json:"description,omitempty"`
	Category        *ProjectCategory `json:"category,omitempty"`
	Tags            []string         `json:"tags,omitempty"`
	Status          *ProjectStatus   `json:"status,omitempty"`
	ExperienceLevel *string          `json:"experienceLevel,omitempty"`
	TimeCommitment  *string          `json:"timeCommitment,omitempty"`
	Duration        *string          `json:"duration,omitempty"`
	ContactMethod   *string          `json:"contactMethod,omitempty"`
	ContactInfo     *string          `json:"contactInfo,omitempty"`
	GithubURL       *string          `json:"githubUrl,omitempty"`
	ImageURL        *string          `json:"imageUrl,omitempty"`
}

// StatusResponse is the generic success envelope returned by mutating
// operations that have no richer payload.
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
