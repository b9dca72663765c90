// Package scrape defines the core domain types and ports for the job-posting
// fetch service.
package scrape

import (
	"net/http"
	"time"
)

// Platform identifies a supported job-posting site.
type Platform string

// Supported platforms.
const (
	PlatformLinkedIn    Platform = "linkedin"
	PlatformInternshala Platform = "internshala"
	PlatformIndeed      Platform = "indeed"
	PlatformUnknown     Platform = "unknown"
)

// Target is a resolved scrape target: the caller's raw URL plus the canonical
// form used for caching and fetching.
type Target struct {
	Raw       string
	Canonical string
	Platform  Platform
}

// Posting is the extracted content of a single job posting.
type Posting struct {
	Title          string    `json:"title"`
	Company        string    `json:"company"`
	CompanyURL     string    `json:"company_url,omitempty"`
	Location       string    `json:"location,omitempty"`
	EmploymentType string    `json:"employment_type,omitempty"`
	Description    string    `json:"description"`
	ApplyURL       string    `json:"apply_url,omitempty"`
	PostedAt       string    `json:"posted_at,omitempty"`
	SourceURL      string    `json:"source_url"`
	FetchedAt      time.Time `json:"fetched_at"`
}

// Extraction is the output of one extractor: the posting plus how it was
// produced and how much to trust it.
type Extraction struct {
	Posting    Posting
	Method     string
	Confidence float64
}

// FetchRequest describes a single HTTP retrieval.
type FetchRequest struct {
	URL      string
	Headers  http.Header
	UseProxy bool
}

// FetchResponse captures the retrieved document. A non-2xx status is a valid
// response, not a fetch error; classification happens in the session.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// WorkState tracks a WorkItem through the executor.
type WorkState string

// WorkItem lifecycle states.
const (
	WorkPending   WorkState = "pending"
	WorkAdmitted  WorkState = "admitted"
	WorkExecuting WorkState = "executing"
	WorkSucceeded WorkState = "succeeded"
	WorkFailed    WorkState = "failed"
	WorkRetrying  WorkState = "retrying"
)

// WorkItem is one unit of batch work, bound to its position in the input.
type WorkItem struct {
	Index       int
	Target      Target
	Key         string
	Attempt     int
	SubmittedAt time.Time
	State       WorkState
}

// ItemResult is the per-target outcome inside a BatchResult. Exactly one of
// Posting or ErrorKind is meaningful, selected by Success.
type ItemResult struct {
	Target       string        `json:"target"`
	Platform     Platform      `json:"platform"`
	Success      bool          `json:"success"`
	Posting      *Posting      `json:"posting,omitempty"`
	ErrorKind    ErrorKind     `json:"error_kind,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Cached       bool          `json:"cached"`
	CacheAge     time.Duration `json:"-"`
	Attempts     int           `json:"attempts"`
	Duration     time.Duration `json:"-"`
}

// BatchOptions tune one executor run.
type BatchOptions struct {
	BypassCache bool
	TTLOverride time.Duration
}

// SessionStats is the admin view of one platform session.
type SessionStats struct {
	Platform     Platform      `json:"platform"`
	State        string        `json:"state"`
	RequestCount int64         `json:"request_count"`
	SessionAge   time.Duration `json:"-"`
	IdleFor      time.Duration `json:"-"`
}

// ScrapeRecord is the persisted audit row for one completed WorkItem.
type ScrapeRecord struct {
	ID        string
	Target    string
	Platform  Platform
	Success   bool
	ErrorKind ErrorKind
	Cached    bool
	Attempts  int
	Duration  time.Duration
	FetchedAt time.Time
}

// CompletionEvent is published after a WorkItem finishes.
type CompletionEvent struct {
	ID        string    `json:"id"`
	Target    string    `json:"target"`
	Platform  Platform  `json:"platform"`
	Success   bool      `json:"success"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	Cached    bool      `json:"cached"`
	FetchedAt time.Time `json:"fetched_at"`
}
