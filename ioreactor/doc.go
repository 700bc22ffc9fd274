// Package ioreactor implements transfer.Scheduler over the host's native
// readiness-notification facility: epoll on Linux, with a portable
// fallback for everything else. It is the concrete event loop the
// abstract transfer package assumes but never names (spec.md §5 "the
// caller's responsibility"; SPEC_FULL §2 SYSTEM OVERVIEW).
//
// A Reactor owns one OS-level polling descriptor and runs a single
// dispatch loop on whichever goroutine calls Run. Channels registered
// with WatchRead/WatchWrite must be safe to use from that goroutine only;
// the reactor never touches a channel from any other.
package ioreactor
