package narration

import (
	evbus "github.com/asaskevich/EventBus"
)

// Event topics published by the coordinator.
const (
	TopicVerseStarted     = "verse:started"
	TopicVerseCompleted   = "verse:completed"
	TopicChapterCompleted = "chapter:completed"
	TopicNarrationError   = "narration:error"
	TopicPlaybackState    = "playback:state"
)

// VerseEvent accompanies verse:started and verse:completed.
type VerseEvent struct {
	ChapterKey string  `json:"chapter_key"`
	Verse      int     `json:"verse"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
}

// ChapterEvent accompanies chapter:completed.
type ChapterEvent struct {
	ChapterKey string `json:"chapter_key"`
	Book       string `json:"book"`
	Chapter    int    `json:"chapter"`
}

// ErrorEvent accompanies narration:error.
type ErrorEvent struct {
	ChapterKey string `json:"chapter_key,omitempty"`
	Stage      string `json:"stage"`
	Message    string `json:"message"`
}

// Bus wraps the process event bus. Injected rather than global so tests
// and embedders can run isolated buses side by side.
type Bus struct {
	bus evbus.Bus
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{bus: evbus.New()}
}

// Subscribe registers a handler for a topic.
func (b *Bus) Subscribe(topic string, fn interface{}) error {
	return b.bus.Subscribe(topic, fn)
}

// SubscribeAsync registers a handler invoked on its own goroutine.
func (b *Bus) SubscribeAsync(topic string, fn interface{}) error {
	return b.bus.SubscribeAsync(topic, fn, false)
}

// Unsubscribe removes a previously registered handler.
func (b *Bus) Unsubscribe(topic string, fn interface{}) error {
	return b.bus.Unsubscribe(topic, fn)
}

// Publish emits an event on a topic.
func (b *Bus) Publish(topic string, args ...interface{}) {
	b.bus.Publish(topic, args...)
}

func (b *Bus) publishVerseStarted(ev VerseEvent) {
	b.bus.Publish(TopicVerseStarted, ev)
}

func (b *Bus) publishVerseCompleted(ev VerseEvent) {
	b.bus.Publish(TopicVerseCompleted, ev)
}

func (b *Bus) publishChapterCompleted(ev ChapterEvent) {
	b.bus.Publish(TopicChapterCompleted, ev)
}

func (b *Bus) publishError(ev ErrorEvent) {
	b.bus.Publish(TopicNarrationError, ev)
}

func (b *Bus) publishPlaybackState(snap interface{}) {
	b.bus.Publish(TopicPlaybackState, snap)
}

// WaitAsync blocks until all async handlers have drained.
func (b *Bus) WaitAsync() {
	b.bus.WaitAsync()
}
