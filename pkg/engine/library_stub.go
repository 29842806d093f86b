//go:build !darwin && !linux

package engine

// Library is unavailable on this platform.
type Library struct{}

// Load always fails with ErrUnsupportedPlatform.
func Load(path string) (*Library, error) {
	return nil, ErrUnsupportedPlatform
}

// Close is a no-op.
func (l *Library) Close() error { return nil }

// Version returns an empty string.
func (l *Library) Version() string { return "" }

// VersionInt returns zero.
func (l *Library) VersionInt() int32 { return 0 }

// Create always fails with ErrUnsupportedPlatform.
func (l *Library) Create(licenseKey string) (Handle, error) {
	return nil, ErrUnsupportedPlatform
}
