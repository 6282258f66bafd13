// Package signal defines the records that flow through the daily digest
// pipeline: raw fetched items, their classification, the scored drafts that
// become an edition, and the run and source bookkeeping around them.
package signal

import "time"

// Heat is the urgency bucket of a signal.
type Heat string

const (
	HeatHot     Heat = "HOT"
	HeatNotable Heat = "NOTABLE"
	HeatQuiet   Heat = "QUIET"
)

// Confidence records whether a classification was corroborated.
type Confidence string

const (
	ConfidenceVerified   Confidence = "VERIFIED"
	ConfidenceUnverified Confidence = "UNVERIFIED"
)

// StreamKey is a presentation grouping.
type StreamKey string

const (
	StreamHeadliners    StreamKey = "HEADLINERS"
	StreamToolchain     StreamKey = "TOOLCHAIN"
	StreamModelsMethods StreamKey = "MODELS_METHODS"
	StreamOpsRuntime    StreamKey = "OPS_RUNTIME"
	StreamWilds         StreamKey = "WILDS"
)

// SourceType selects the adapter used to fetch a source.
type SourceType string

const (
	SourceRSS            SourceType = "RSS"
	SourceGitHubReleases SourceType = "GITHUB_RELEASES"
	SourceNPMUpdates     SourceType = "NPM_UPDATES"
	SourceRedditRSS      SourceType = "REDDIT_RSS"
	SourceCustomRSS      SourceType = "CUSTOM_RSS"
)

// RunStatus is the lifecycle state of an ingestion run.
type RunStatus string

const (
	RunRunning RunStatus = "RUNNING"
	RunSuccess RunStatus = "SUCCESS"
	RunPartial RunStatus = "PARTIAL"
	RunFailed  RunStatus = "FAILED"
)

// Terminal reports whether s is a final status.
func (s RunStatus) Terminal() bool {
	return s == RunSuccess || s == RunPartial || s == RunFailed
}

// EmptySnippet replaces snippets that are missing or too short to be useful.
const EmptySnippet = "No snippet available from source feed."

// Length limits shared by adapters, the classifier and validation.
const (
	MaxTitleLen     = 220
	MinTitleLen     = 6
	MaxSummaryLen   = 240
	MinSummaryLen   = 20
	MaxRationaleLen = 420
	MinRationaleLen = 20
	MaxSentences    = 3
	MinSnippetLen   = 10
	MaxSnippetLen   = 1000
	MaxCitations    = 8
	MaxLastError    = 500
)

// RawItem is one normalized item produced by a source adapter.
type RawItem struct {
	SourceID      string    `json:"sourceId"`
	SourceURL     string    `json:"sourceUrl"`
	SourceDomain  string    `json:"sourceDomain"`
	Title         string    `json:"title"`
	Snippet       string    `json:"snippet"`
	PublishedAt   time.Time `json:"publishedAt"`
	ProviderLabel string    `json:"providerLabel"`
	ProviderKey   string    `json:"providerKey"`
	Tier          int       `json:"tier"`
}

// URL satisfies the deduplication key accessor.
func (r RawItem) URL() string { return r.SourceURL }

// WithURL returns a copy of r pointing at u.
func (r RawItem) WithURL(u string) RawItem {
	r.SourceURL = u
	return r
}

// Classification is the taxonomy verdict for a single item.
type Classification struct {
	Title       string     `json:"title"`
	Summary     string     `json:"summary"`
	Rationale   string     `json:"rationale"`
	Heat        Heat       `json:"heat"`
	TrackKey    string     `json:"trackKey"`
	TrackLabel  string     `json:"trackLabel"`
	StreamKey   StreamKey  `json:"streamKey"`
	StreamLabel string     `json:"streamLabel"`
	Confidence  Confidence `json:"confidence"`
	Tier        int        `json:"tier"`
	Citations   []string   `json:"citations"`
}

// Draft is a classified signal ready for scoring and persistence. Rank is
// set only for headliners.
type Draft struct {
	Classification
	SourceURL     string    `json:"sourceUrl"`
	SourceDomain  string    `json:"sourceDomain"`
	ProviderKey   string    `json:"providerKey"`
	ProviderLabel string    `json:"providerLabel"`
	OccurredAt    time.Time `json:"occurredAt"`
	Rank          *int      `json:"rank"`
}

// Signal is a persisted draft.
type Signal struct {
	ID        string `json:"id"`
	EditionID string `json:"editionId"`
	Draft
}

// Edition is the set of signals for one calendar date.
type Edition struct {
	ID           string    `json:"id"`
	Date         string    `json:"date"`
	TotalCount   int       `json:"totalCount"`
	HotCount     int       `json:"hotCount"`
	NotableCount int       `json:"notableCount"`
	QuietCount   int       `json:"quietCount"`
	MorningNote  string    `json:"morningNote"`
	GeneratedAt  time.Time `json:"generatedAt"`
	Signals      []Signal  `json:"signals,omitempty"`
}

// EditionSummary is the metadata of an edition without its signals.
type EditionSummary struct {
	ID           string    `json:"id"`
	Date         string    `json:"date"`
	TotalCount   int       `json:"totalCount"`
	HotCount     int       `json:"hotCount"`
	NotableCount int       `json:"notableCount"`
	QuietCount   int       `json:"quietCount"`
	GeneratedAt  time.Time `json:"generatedAt"`
}

// EditionSnapshot is what a run writes: edition metadata plus the ordered
// drafts that replace its previous signal set.
type EditionSnapshot struct {
	Date         string
	TotalCount   int
	HotCount     int
	NotableCount int
	QuietCount   int
	MorningNote  string
	GeneratedAt  time.Time
	Drafts       []Draft
}

// Run is the audit record of one ingestion execution.
type Run struct {
	ID           string     `json:"id"`
	Status       RunStatus  `json:"status"`
	StartedAt    time.Time  `json:"startedAt"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
	ItemsFetched int        `json:"itemsFetched"`
	ItemsCreated int        `json:"itemsCreated"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	LogText      string     `json:"-"`
	LogPath      string     `json:"logPath,omitempty"`
	TriggeredBy  string     `json:"triggeredBy"`
	EditionID    *string    `json:"editionId,omitempty"`
}

// RunFinal carries the fields written when a run is finalized.
type RunFinal struct {
	Status       RunStatus
	FinishedAt   time.Time
	ItemsFetched int
	ItemsCreated int
	ErrorMessage string
	LogText      string
	LogPath      string
	EditionID    string
}

// Source is a configured upstream feed.
type Source struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Type          SourceType `json:"type"`
	Identifier    string     `json:"identifier"`
	ProviderLabel string     `json:"providerLabel"`
	Tier          int        `json:"tier"`
	Enabled       bool       `json:"enabled"`
	LastFetchedAt *time.Time `json:"lastFetchedAt,omitempty"`
	LastError     string     `json:"lastError,omitempty"`
}
