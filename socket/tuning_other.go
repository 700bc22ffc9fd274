//go:build !linux

package socket

// applyPlatformOptions is a no-op outside Linux: QuickACK, user-timeout
// and fine-grained keepalive tuning have no portable equivalent, and
// SO_KEEPALIVE alone (already applied in Apply) is what every other
// unix actually offers.
func applyPlatformOptions(fd int, cfg *Config) {}

// applyListenerOptions is a no-op outside Linux: TCP_DEFER_ACCEPT and
// the Linux TCP_FASTOPEN listener option don't exist here.
func applyListenerOptions(fd int, cfg *Config) error { return nil }
