// Package capacity holds the entitlement predicate consulted before a new
// session may open. The billing layer supplies the real implementation;
// the core only asks a yes/no question.
package capacity

// Checker decides whether another concurrent session may be opened given
// the number currently open.
type Checker interface {
	AllowSession(open int) bool
}

// FixedQuota allows up to Max concurrent sessions. Max <= 0 means
// unlimited.
type FixedQuota struct {
	Max int
}

// AllowSession reports whether a caller with `open` live sessions may
// open one more.
func (q FixedQuota) AllowSession(open int) bool {
	if q.Max <= 0 {
		return true
	}
	return open < q.Max
}
