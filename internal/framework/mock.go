package framework

import (
	"fmt"
	"sync"
	"sync/atomic"
)

var mockIDCounter uint64

func nextMockID(kind string) string {
	return fmt.Sprintf("%s-%d", kind, atomic.AddUint64(&mockIDCounter, 1))
}

// MockGoneObject is a minimal Gone implementation embedded by every mock
// framework object below.
type MockGoneObject struct {
	id string
	mu sync.Mutex
}

func (o *MockGoneObject) ID() string { return o.id }

// MockTag is a scriptable Tag used by adapter tests.
type MockTag struct {
	MockGoneObject
	Accept           bool
	ReactivatedCalls int
	mu               sync.Mutex
}

func (t *MockTag) Reactivated() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ReactivatedCalls++
}

// MockInitiator is a scriptable Initiator used by adapter tests.
type MockInitiator struct {
	MockGoneObject
	Accept           bool
	ReactivatedCalls int
	ReleaseCalls     int
	mu               sync.Mutex
}

func (i *MockInitiator) Reactivated() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ReactivatedCalls++
}

func (i *MockInitiator) Release() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ReleaseCalls++
}

// MockHost is a scriptable Host used by adapter tests.
type MockHost struct {
	MockGoneObject
	Accept           bool
	ReactivatedCalls int
	mu               sync.Mutex
}

func (h *MockHost) Reactivated() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ReactivatedCalls++
}

// MockPeer is a scriptable Peer used by adapter tests.
type MockPeer struct {
	MockGoneObject
	Accept           bool
	ReactivatedCalls int
	mu               sync.Mutex
}

func (p *MockPeer) Reactivated() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ReactivatedCalls++
}

// MockFramework is the reference in-memory Framework implementation used
// throughout adapter tests, grounded on the teacher's mock-provider idiom
// (internal/hal/mock.go).
type MockFramework struct {
	mu sync.Mutex

	// Accept* toggle whether the corresponding factory call succeeds; all
	// default to true (a test disables the ones it wants the detector to
	// fall through).
	AcceptT2Tag           bool
	AcceptT4ATag          bool
	AcceptT4BTag          bool
	AcceptOtherTag        bool
	AcceptInitiatorPeer   bool
	AcceptTargetPeer      bool
	AcceptHost            bool
	AcceptInitiatorEntity bool

	LastTag       *MockTag
	LastPeer      *MockPeer
	LastHost      *MockHost
	LastInitiator *MockInitiator
}

// NewMockFramework returns a MockFramework where every factory accepts by
// default.
func NewMockFramework() *MockFramework {
	return &MockFramework{
		AcceptT2Tag: true, AcceptT4ATag: true, AcceptT4BTag: true, AcceptOtherTag: true,
		AcceptInitiatorPeer: true, AcceptTargetPeer: true, AcceptHost: true,
		AcceptInitiatorEntity: true,
	}
}

func (f *MockFramework) Tags() TagFactory             { return f }
func (f *MockFramework) Peers() PeerFactory           { return f }
func (f *MockFramework) Hosts() HostFactory           { return f }
func (f *MockFramework) Initiators() InitiatorFactory { return f }

func (f *MockFramework) NewT2Tag(pollA PollAParams) (Tag, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.AcceptT2Tag {
		return nil, false
	}
	t := &MockTag{MockGoneObject: MockGoneObject{id: nextMockID("tag")}}
	f.LastTag = t
	return t, true
}

func (f *MockFramework) NewT4ATag(pollA PollAParams, isoDep IsoDepPollAParams) (Tag, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.AcceptT4ATag {
		return nil, false
	}
	t := &MockTag{MockGoneObject: MockGoneObject{id: nextMockID("tag")}}
	f.LastTag = t
	return t, true
}

func (f *MockFramework) NewT4BTag(pollB PollBParams, isoDep IsoDepPollBParams) (Tag, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.AcceptT4BTag {
		return nil, false
	}
	t := &MockTag{MockGoneObject: MockGoneObject{id: nextMockID("tag")}}
	f.LastTag = t
	return t, true
}

func (f *MockFramework) NewOtherTag(pollA *PollAParams, pollB *PollBParams) (Tag, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.AcceptOtherTag {
		return nil, false
	}
	t := &MockTag{MockGoneObject: MockGoneObject{id: nextMockID("tag")}}
	f.LastTag = t
	return t, true
}

func (f *MockFramework) NewInitiatorPeer(pollA *PollAParams, pollF *PollFParams, atrRes NFCDepPollParams) (Peer, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.AcceptInitiatorPeer {
		return nil, false
	}
	p := &MockPeer{MockGoneObject: MockGoneObject{id: nextMockID("peer")}}
	f.LastPeer = p
	return p, true
}

func (f *MockFramework) NewTargetPeer(atrReq NFCDepListenParams) (Peer, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.AcceptTargetPeer {
		return nil, false
	}
	p := &MockPeer{MockGoneObject: MockGoneObject{id: nextMockID("peer")}}
	f.LastPeer = p
	return p, true
}

func (f *MockFramework) NewHost() (Host, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.AcceptHost {
		return nil, false
	}
	h := &MockHost{MockGoneObject: MockGoneObject{id: nextMockID("host")}}
	f.LastHost = h
	return h, true
}

func (f *MockFramework) NewInitiator() (Initiator, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.AcceptInitiatorEntity {
		return nil, false
	}
	i := &MockInitiator{MockGoneObject: MockGoneObject{id: nextMockID("initiator")}}
	f.LastInitiator = i
	return i, true
}

// MockSequence is a scriptable Sequence used by presence-check tests.
type MockSequence struct {
	Allow bool
}

func (s *MockSequence) AllowsPresenceCheck() bool { return s.Allow }
