// Package faq serves the public frequently-asked-questions feed.
package faq

import "time"

// Entry is one question/answer pair.
type Entry struct {
	ID        string
	Question  string
	Answer    string
	CreatedAt time.Time
}
