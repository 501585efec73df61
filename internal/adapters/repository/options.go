package repository

// Option applies a configuration option to the SnapshotStore.
type Option func(*SnapshotStore)

// WithExpectedEntities pre-sizes each dimension's entity map.
func WithExpectedEntities(n int) Option {
	return func(s *SnapshotStore) {
		if n > 0 {
			s.expectedEntities = n
		}
	}
}
