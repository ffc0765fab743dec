package scrape

import (
	"fmt"

	"breederchat/internal/core/record"
)

type PageRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Request is the inbound scrape call. Exactly one variant is selected from
// which fields are present; see Variant.
type Request struct {
	URL        string     `json:"url,omitempty"`
	Pagination bool       `json:"pagination,omitempty"`
	PageRange  *PageRange `json:"pageRange,omitempty"`
	SessionID  string     `json:"sessionId,omitempty"`
}

type Variant string

const (
	VariantInitial   Variant = "initial"
	VariantNextPage  Variant = "next_page"
	VariantPageRange Variant = "page_range"
)

// Variant classifies the request. pagination and pageRange together are
// ambiguous and rejected.
func (r Request) Variant() (Variant, error) {
	switch {
	case r.Pagination && r.PageRange != nil:
		return "", newError(CodeInvalidRequest, "pagination and pageRange cannot be combined", nil)
	case r.PageRange != nil:
		return VariantPageRange, nil
	case r.Pagination:
		return VariantNextPage, nil
	case r.URL != "":
		return VariantInitial, nil
	default:
		return "", newError(CodeInvalidRequest, "url is required", nil)
	}
}

// Clamp applies start=max(1,start) and end=min(start+maxPages-1,end).
func (p PageRange) Clamp(maxPages int) (PageRange, error) {
	if maxPages < 1 {
		maxPages = 1
	}
	start := max(1, p.Start)
	end := min(start+maxPages-1, p.End)
	if end < start {
		return PageRange{}, &Error{
			Code:    CodeInvalidRequest,
			Message: fmt.Sprintf("invalid page range %d-%d", p.Start, p.End),
		}
	}
	return PageRange{Start: start, End: end}, nil
}

type Result struct {
	Message    string          `json:"message"`
	Records    []record.Record `json:"results"`
	SessionID  string          `json:"sessionId"`
	Page       int             `json:"page"`
	PageRange  *PageRange      `json:"pageRange,omitempty"`
	TotalItems int             `json:"totalItems"`
	HasMore    bool            `json:"hasMore"`
	// Incomplete is set when a multi-page loop stopped on a fetch failure.
	Incomplete bool   `json:"incomplete,omitempty"`
	Warning    string `json:"warning,omitempty"`
	FromCache  bool   `json:"fromCache,omitempty"`

	Variant Variant `json:"-"`
}
