//go:build !darwin

package gate

// NewSystemResolver returns nil on platforms without a foreground-app
// resolver; the gate skips exclusion checks when the resolver is nil.
func NewSystemResolver() AppResolver {
	return nil
}
