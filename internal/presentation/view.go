package presentation

import (
	"maps"
	"sync"
)

type EventKind string

const (
	KindText     EventKind = "text"
	KindImage    EventKind = "image"
	KindProgress EventKind = "progress"
	KindVisible  EventKind = "visible"
	KindNavigate EventKind = "navigate"
	KindAlert    EventKind = "alert"
)

// Event is a single change applied to a View.
type Event struct {
	Seq     uint64    `json:"seq"`
	Kind    EventKind `json:"kind"`
	Target  Target    `json:"target,omitempty"`
	Value   string    `json:"value,omitempty"`
	Percent int       `json:"percent,omitempty"`
	Visible bool      `json:"visible,omitempty"`
}

// Snapshot is the accumulated state of a View.
type Snapshot struct {
	Seq           uint64            `json:"seq"`
	Texts         map[Target]string `json:"texts"`
	Images        map[Target]string `json:"images"`
	Visible       map[Target]bool   `json:"visible"`
	Progress      int               `json:"progress"`
	ProgressLabel string            `json:"progress_label"`
	Location      string            `json:"location,omitempty"`
	LastAlert     string            `json:"last_alert,omitempty"`
}

// View records every change made through the Surface and fans the changes
// out to subscribers. Subscribers that fall behind are dropped; the
// snapshot stays authoritative.
type View struct {
	mu     sync.Mutex
	snap   Snapshot
	subs   map[int]chan Event
	nextID int
	closed bool
}

var _ Surface = (*View)(nil)

func NewView() *View {
	return &View{
		snap: Snapshot{
			Texts:   make(map[Target]string),
			Images:  make(map[Target]string),
			Visible: make(map[Target]bool),
		},
		subs: make(map[int]chan Event),
	}
}

func (v *View) SetText(target Target, text string) {
	v.apply(Event{Kind: KindText, Target: target, Value: text}, func(s *Snapshot) {
		s.Texts[target] = text
	})
}

func (v *View) SetImage(target Target, src string) {
	v.apply(Event{Kind: KindImage, Target: target, Value: src}, func(s *Snapshot) {
		s.Images[target] = src
	})
}

func (v *View) SetProgress(percent int, label string) {
	v.apply(Event{Kind: KindProgress, Percent: percent, Value: label}, func(s *Snapshot) {
		s.Progress = percent
		if label != "" {
			s.ProgressLabel = label
		}
	})
}

func (v *View) SetVisible(target Target, visible bool) {
	v.apply(Event{Kind: KindVisible, Target: target, Visible: visible}, func(s *Snapshot) {
		s.Visible[target] = visible
	})
}

func (v *View) Navigate(location string) {
	v.apply(Event{Kind: KindNavigate, Value: location}, func(s *Snapshot) {
		s.Location = location
	})
}

func (v *View) Alert(message string) {
	v.apply(Event{Kind: KindAlert, Value: message}, func(s *Snapshot) {
		s.LastAlert = message
	})
}

func (v *View) apply(ev Event, update func(*Snapshot)) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return
	}

	v.snap.Seq++
	ev.Seq = v.snap.Seq
	update(&v.snap)

	for id, ch := range v.subs {
		select {
		case ch <- ev:
		default:
			close(ch)
			delete(v.subs, id)
		}
	}
}

// Snapshot returns a copy of the current state.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := v.snap
	s.Texts = maps.Clone(v.snap.Texts)
	s.Images = maps.Clone(v.snap.Images)
	s.Visible = maps.Clone(v.snap.Visible)
	return s
}

// Subscribe returns a channel of subsequent events and a function that
// cancels the subscription. The channel is closed when the subscription is
// cancelled, dropped, or the View is closed.
func (v *View) Subscribe(buffer int) (<-chan Event, func()) {
	v.mu.Lock()
	defer v.mu.Unlock()

	ch := make(chan Event, buffer)
	if v.closed {
		close(ch)
		return ch, func() {}
	}

	id := v.nextID
	v.nextID++
	v.subs[id] = ch

	return ch, func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		if sub, ok := v.subs[id]; ok {
			close(sub)
			delete(v.subs, id)
		}
	}
}

// Close ends all subscriptions. Later changes are ignored.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return
	}
	v.closed = true
	for id, ch := range v.subs {
		close(ch)
		delete(v.subs, id)
	}
}
