package engine

import "time"

// State is the crawl loop's current phase.
type State int32

const (
	StateIdle State = iota
	StateFetchPage
	StateExtractLinks
	StateProcessArticles
	StateAdvancePage
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateFetchPage:
		return "FETCH_PAGE"
	case StateExtractLinks:
		return "EXTRACT_LINKS"
	case StateProcessArticles:
		return "PROCESS_ARTICLES"
	case StateAdvancePage:
		return "ADVANCE_PAGE"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// StopReason explains why a crawl reached DONE.
type StopReason string

const (
	ReasonQuotaReached        StopReason = "quota_reached"
	ReasonPaginationExhausted StopReason = "pagination_exhausted"
	ReasonPageFetchFailed     StopReason = "page_fetch_failed"
	ReasonCancelled           StopReason = "cancelled"
)

// CrawlState is the mutable progress of a crawl. ArticlesSaved counts
// persisted articles, so the next file index is ArticlesSaved+1.
type CrawlState struct {
	CurrentPageURL string
	ArticlesSaved  int
}

// Result summarizes a finished crawl.
type Result struct {
	State              State
	Reason             StopReason
	PagesVisited       int
	ArticlesSaved      int
	ArticlesFailed     int
	CheckpointsWritten int
	LastPageURL        string
	Duration           time.Duration

	// Err holds the failure that ended a crawl early.
	Err error
}
