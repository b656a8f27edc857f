package storage

// Mapping is the set of value operations shared by the live store and the
// snapshots taken from it.
type Mapping interface {
	// Get returns the value for key and whether it was set.
	Get(key string) (string, bool)

	// Set inserts or overwrites key.
	Set(key, value string)

	// Delete removes key and returns the previous value, if any.
	// Deleting a missing key is not an error.
	Delete(key string) (string, bool)

	// Count returns how many entries hold exactly value.
	Count(value string) int
}

var _ Mapping = (*MemoryStore)(nil)
