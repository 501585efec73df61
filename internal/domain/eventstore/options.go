package eventstore

import "github.com/okian/pitwall/pkg/logger"

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithNAValues replaces the set of strings treated as MISSING.
func WithNAValues(values []string) Option {
	return func(s *Store) {
		if values == nil {
			return
		}
		s.naValues = make(map[string]struct{}, len(values))
		for _, v := range values {
			s.naValues[v] = struct{}{}
		}
	}
}

// WithLogger sets the store's logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}
