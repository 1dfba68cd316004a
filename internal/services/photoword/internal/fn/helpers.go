package fn

// Map applies selector to every item. The result is never nil.
func Map[T any, V any](items []T, selector func(T) V) []V {
	results := make([]V, 0, len(items))
	for _, item := range items {
		results = append(results, selector(item))
	}
	return results
}
