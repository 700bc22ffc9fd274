//go:build linux

package ioreactor

import (
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

// epollPoller is the Linux pollerImpl, grounded on the same
// epoll_create1/epoll_ctl/epoll_wait/eventfd shape as znet's
// defaultPoller, rewritten against golang.org/x/sys/unix instead of raw
// syscall.RawSyscall6 so error handling stays in terms of named errno
// values rather than uintptr returns.
type epollPoller struct {
	epfd    int
	wakeFD  int
	events  []unix.EpollEvent
	closed  bool
}

func newPollerImpl() (pollerImpl, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	wakeFD, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, err
	}
	p := &epollPoller{epfd: epfd, wakeFD: wakeFD, events: make([]unix.EpollEvent, 128)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFD, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeFD)}); err != nil {
		unix.Close(wakeFD)
		unix.Close(epfd)
		return nil, err
	}
	return p, nil
}

func interestMask(wantWrite bool) uint32 {
	mask := uint32(unix.EPOLLIN | unix.EPOLLRDHUP)
	if wantWrite {
		mask |= unix.EPOLLOUT
	}
	return mask
}

func (p *epollPoller) add(fd int, wantWrite bool) error {
	ev := unix.EpollEvent{Events: interestMask(wantWrite), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (p *epollPoller) modify(fd int, wantWrite bool) error {
	ev := unix.EpollEvent{Events: interestMask(wantWrite), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (p *epollPoller) remove(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) wait(dispatch func(fd int, readable, writable, hangup bool)) error {
	n, err := unix.EpollWait(p.epfd, p.events, -1)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return err
	}
	for i := 0; i < n; i++ {
		ev := p.events[i]
		fd := int(ev.Fd)
		if fd == p.wakeFD {
			if p.closed {
				return errReactorClosed
			}
			var buf [8]byte
			unix.Read(p.wakeFD, buf[:])
			continue
		}
		hangup := ev.Events&(unix.EPOLLHUP|unix.EPOLLRDHUP|unix.EPOLLERR) != 0
		readable := ev.Events&unix.EPOLLIN != 0
		writable := ev.Events&unix.EPOLLOUT != 0
		dispatch(fd, readable, writable, hangup)
	}
	return nil
}

func (p *epollPoller) wake() error {
	var one [8]byte
	one[0] = 1
	_, err := unix.Write(p.wakeFD, one[:])
	return err
}

func (p *epollPoller) close() error {
	p.closed = true
	wakeErr := p.wake()
	closeErr := unix.Close(p.wakeFD)
	epErr := unix.Close(p.epfd)
	return multierr.Combine(wakeErr, closeErr, epErr)
}
