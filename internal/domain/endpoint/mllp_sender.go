package endpoint

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/meddatabridge/pam-bridge/internal/platform/hl7v2"
)

// mllpSender holds the lazily-opened connection for one MLLP-sender
// endpoint: dial on first send, reuse until idle for DefaultIdleTeardown,
// then close (spec §4.11: "open a connection on first send ... tear down
// on idle (60 s)").
type mllpSender struct {
	endpoint *Endpoint

	mu       sync.Mutex
	conn     net.Conn
	lastSend time.Time
	idleStop chan struct{}
}

func newMLLPSender(e *Endpoint) *mllpSender {
	return &mllpSender{endpoint: e}
}

// send dials if necessary, writes the framed message, and reads one ACK
// frame up to DefaultACKTimeout (spec §4.11).
func (s *mllpSender) send(msg []byte) (DispatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", s.endpoint.Host, s.endpoint.Port), DefaultACKTimeout)
		if err != nil {
			return classifyDialError(err), nil
		}
		s.conn = conn
		s.startIdleWatcher()
	}

	framed := hl7v2.FrameMessage(msg)
	s.conn.SetWriteDeadline(time.Now().Add(DefaultACKTimeout))
	if _, err := s.conn.Write(framed); err != nil {
		s.closeLocked()
		return DispatchResult{FailureKind: classifyWriteError(err), Detail: err.Error()}, nil
	}

	ack, err := s.readACK()
	if err != nil {
		s.closeLocked()
		return DispatchResult{FailureKind: classifyReadError(err), Detail: err.Error()}, nil
	}
	s.lastSend = time.Now()

	return classifyACK(ack), nil
}

// readACK reads bytes until one full MLLP frame is assembled or the ACK
// timeout elapses.
func (s *mllpSender) readACK() ([]byte, error) {
	s.conn.SetReadDeadline(time.Now().Add(DefaultACKTimeout))
	buf := make([]byte, 0, 4096)
	readBuf := make([]byte, 4096)
	for {
		n, err := s.conn.Read(readBuf)
		if n > 0 {
			buf = append(buf, readBuf[:n]...)
			if msg, _, found := hl7v2.UnframeMessage(buf); found {
				return msg, nil
			}
		}
		if err != nil {
			return nil, err
		}
	}
}

// startIdleWatcher closes the connection if no send has occurred for
// DefaultIdleTeardown (spec §4.11). Call with s.mu held.
func (s *mllpSender) startIdleWatcher() {
	s.idleStop = make(chan struct{})
	s.lastSend = time.Now()
	stop := s.idleStop
	go func() {
		ticker := time.NewTicker(DefaultIdleTeardown / 4)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.mu.Lock()
				idle := time.Since(s.lastSend)
				if s.conn != nil && idle >= DefaultIdleTeardown {
					s.closeLocked()
					s.mu.Unlock()
					return
				}
				s.mu.Unlock()
			}
		}
	}()
}

// testConnect dials and immediately closes, used by Manager.Test to check
// reachability without transmitting a message.
func (s *mllpSender) testConnect() (DispatchResult, error) {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", s.endpoint.Host, s.endpoint.Port), DefaultACKTimeout)
	if err != nil {
		return classifyDialError(err), nil
	}
	conn.Close()
	return DispatchResult{Success: true}, nil
}

// close tears down the connection if open, used by endpoint stop().
func (s *mllpSender) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *mllpSender) closeLocked() {
	if s.idleStop != nil {
		close(s.idleStop)
		s.idleStop = nil
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

func classifyDialError(err error) DispatchResult {
	msg := err.Error()
	kind := FailureConnectionRefused
	if strings.Contains(msg, "refused") {
		kind = FailureConnectionRefused
	} else if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		kind = FailureTimeout
	}
	return DispatchResult{FailureKind: kind, Detail: msg}
}

func classifyWriteError(err error) FailureKind {
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return FailureTimeout
	}
	if strings.Contains(err.Error(), "reset") {
		return FailurePeerReset
	}
	return FailureProtocol
}

func classifyReadError(err error) FailureKind {
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return FailureTimeout
	}
	if err.Error() == "EOF" {
		return FailurePeerReset
	}
	return FailureProtocol
}

// classifyACK parses an ACK message's MSA-1 to decide the dispatch result
// (spec §6: "MSA-1 ∈ {AA, AE, AR}").
func classifyACK(raw []byte) DispatchResult {
	msg, err := hl7v2.Parse(raw)
	if err != nil {
		return DispatchResult{FailureKind: FailureProtocol, Detail: err.Error()}
	}
	msa := msg.GetSegment("MSA")
	if msa == nil {
		return DispatchResult{FailureKind: FailureProtocol, Detail: "ACK has no MSA segment"}
	}
	code := msa.GetField(1)
	switch code {
	case "AA":
		return DispatchResult{Success: true, AckCode: code}
	case "AE":
		return DispatchResult{AckCode: code, FailureKind: FailureAckRejected, Detail: msa.GetField(3)}
	case "AR":
		return DispatchResult{AckCode: code, FailureKind: FailureAckError, Detail: msa.GetField(3)}
	default:
		return DispatchResult{AckCode: code, FailureKind: FailureProtocol, Detail: "unrecognized MSA-1 " + code}
	}
}
