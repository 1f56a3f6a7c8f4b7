package ports

// Matcher is a predicate over a directory path.
// A nil Matcher matches every path.
//
//go:generate mockgen -source=matcher.go -destination=mocks/mock_matcher.go -package=mocks
type Matcher interface {
	// Match reports whether path satisfies the predicate.
	Match(path string) bool
}

// MatcherFunc adapts a plain function to a Matcher.
type MatcherFunc func(path string) bool

// Match calls f(path).
func (f MatcherFunc) Match(path string) bool {
	return f(path)
}
