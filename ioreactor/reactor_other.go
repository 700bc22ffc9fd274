//go:build !linux

package ioreactor

import (
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

// pollPoller is the non-Linux pollerImpl. It uses poll(2) instead of
// epoll: O(fds) per wait rather than O(ready fds), but portable to every
// other unix the examples' stacks target.
type pollPoller struct {
	fds    map[int]bool // fd -> wantWrite
	wakeR  int
	wakeW  int
	closed bool
}

func newPollerImpl() (pollerImpl, error) {
	fds, err := pipeNonblock()
	if err != nil {
		return nil, err
	}
	return &pollPoller{fds: make(map[int]bool), wakeR: fds[0], wakeW: fds[1]}, nil
}

// pipeNonblock opens a self-pipe used only to wake the poll(2) call on
// Close; unix.Pipe (not Pipe2, which Darwin lacks) plus an explicit
// SetNonblock keeps this portable across every target of this file.
func pipeNonblock() ([2]int, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return fds, err
	}
	for _, fd := range fds {
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(fds[0])
			unix.Close(fds[1])
			return fds, err
		}
	}
	return fds, nil
}

func (p *pollPoller) add(fd int, wantWrite bool) error {
	p.fds[fd] = wantWrite
	return nil
}

func (p *pollPoller) modify(fd int, wantWrite bool) error {
	p.fds[fd] = wantWrite
	return nil
}

func (p *pollPoller) remove(fd int) error {
	delete(p.fds, fd)
	return nil
}

func (p *pollPoller) wait(dispatch func(fd int, readable, writable, hangup bool)) error {
	pfds := make([]unix.PollFd, 0, len(p.fds)+1)
	pfds = append(pfds, unix.PollFd{Fd: int32(p.wakeR), Events: unix.POLLIN})
	order := make([]int, 0, len(p.fds))
	for fd, wantWrite := range p.fds {
		events := int16(unix.POLLIN)
		if wantWrite {
			events |= unix.POLLOUT
		}
		pfds = append(pfds, unix.PollFd{Fd: int32(fd), Events: events})
		order = append(order, fd)
	}

	_, err := unix.Poll(pfds, -1)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return err
	}

	if pfds[0].Revents&unix.POLLIN != 0 {
		if p.closed {
			return errReactorClosed
		}
		var buf [64]byte
		unix.Read(p.wakeR, buf[:])
	}
	for i, fd := range order {
		rev := pfds[i+1].Revents
		if rev == 0 {
			continue
		}
		hangup := rev&(unix.POLLHUP|unix.POLLERR) != 0
		readable := rev&unix.POLLIN != 0
		writable := rev&unix.POLLOUT != 0
		dispatch(fd, readable, writable, hangup)
	}
	return nil
}

func (p *pollPoller) wake() error {
	_, err := unix.Write(p.wakeW, []byte{1})
	return err
}

func (p *pollPoller) close() error {
	p.closed = true
	wakeErr := p.wake()
	rErr := unix.Close(p.wakeR)
	wErr := unix.Close(p.wakeW)
	return multierr.Combine(wakeErr, rErr, wErr)
}
