package label

import "github.com/okian/pitwall/pkg/logger"

// Option applies a configuration option to the Labeler.
type Option func(*Labeler)

// WithLogger sets the labeler's logger.
func WithLogger(l logger.Logger) Option {
	return func(lb *Labeler) {
		if l != nil {
			lb.logger = l
		}
	}
}
