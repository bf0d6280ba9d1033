package domain

import (
	"encoding/base64"
	"strconv"
	"strings"
)

// List page sizes for reports, templates, tags and export history.
const (
	DefaultListSize = 100
	MaxListSize     = 1000
)

// MaxPreviewPageSize bounds the rows fetched by one preview call.
const MaxPreviewPageSize = 5000

const pageTokenPrefix = "offset:"

// PageRequest is the window of a list call. PageToken is opaque to clients and
// names the offset of the first row of the page.
type PageRequest struct {
	MaxResults int
	PageToken  string
}

// Validate rejects negative sizes and page tokens this service did not issue.
func (p PageRequest) Validate() error {
	if p.MaxResults < 0 {
		return ErrValidation("max_results must not be negative")
	}
	if _, ok := decodePageToken(p.PageToken); !ok {
		return ErrValidation("invalid page_token")
	}
	return nil
}

// Offset is the number of rows skipped before the page. Unreadable tokens
// read as the first page.
func (p PageRequest) Offset() int {
	offset, _ := decodePageToken(p.PageToken)
	return offset
}

// Limit is the page size, DefaultListSize when unset and at most MaxListSize.
func (p PageRequest) Limit() int {
	switch {
	case p.MaxResults <= 0:
		return DefaultListSize
	case p.MaxResults > MaxListSize:
		return MaxListSize
	}
	return p.MaxResults
}

// Next returns the token of the following page, or "" when this page reaches
// total.
func (p PageRequest) Next(total int64) string {
	next := p.Offset() + p.Limit()
	if int64(next) >= total {
		return ""
	}
	return EncodePageToken(next)
}

// EncodePageToken returns the token of the page starting at offset.
func EncodePageToken(offset int) string {
	if offset <= 0 {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(pageTokenPrefix + strconv.Itoa(offset)))
}

func decodePageToken(token string) (int, bool) {
	if token == "" {
		return 0, true
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, false
	}
	digits, ok := strings.CutPrefix(string(raw), pageTokenPrefix)
	if !ok {
		return 0, false
	}
	offset, err := strconv.Atoi(digits)
	if err != nil || offset < 0 {
		return 0, false
	}
	return offset, true
}

// SearchOptions echoes the window of a preview together with its totals.
type SearchOptions struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalCount int64 `json:"total_count"`
	TotalPages int64 `json:"total_pages"`
}

// NewSearchOptions computes total_pages as ceil(total/pageSize).
func NewSearchOptions(page, pageSize int, total int64) SearchOptions {
	pages := int64(0)
	if pageSize > 0 {
		pages = (total + int64(pageSize) - 1) / int64(pageSize)
	}
	return SearchOptions{Page: page, PageSize: pageSize, TotalCount: total, TotalPages: pages}
}
