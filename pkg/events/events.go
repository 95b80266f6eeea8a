package events

import (
	"sync"
	"time"

	"github.com/forgepipe/anvil/pkg/idset"
)

// Type identifies the kind of event flowing through the pipeline's broker.
type Type string

const (
	TypeAssetCreated      Type = "asset.created"
	TypeAssetModified     Type = "asset.modified"
	TypeAssetDeleted      Type = "asset.deleted"
	TypeImportCompleted   Type = "import.completed"
	TypeImportFailed      Type = "import.failed"
	TypeJobCompleted      Type = "job.completed"
	TypeArtifactCommitted Type = "artifact.committed"
	TypeHotReload         Type = "artifact.hot_reload"
)

// Event is one occurrence broadcast to subscribers. AssetID and
// ArtifactID are populated according to Type; a zero idset.ID means "not
// applicable to this event."
type Event struct {
	Type       Type
	Timestamp  time.Time
	AssetID    idset.AssetId
	ArtifactID idset.ArtifactId
	Message    string
}

// Subscriber is a channel that receives events from a Broker.
type Subscriber chan *Event

// Broker is a non-blocking, in-memory pub/sub bus: publishers never block
// on slow subscribers, and a full subscriber buffer drops the event for
// that subscriber rather than stalling the broadcast loop.
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
}

// NewBroker returns a Broker with a buffered intake channel.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's broadcast loop on a new goroutine.
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broadcast loop. Subscribers are not closed; callers that
// hold a Subscriber should Unsubscribe before discarding it.
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe registers a new subscriber with its own buffered channel.
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes and closes sub.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	close(sub)
}

// Publish enqueues event for broadcast, stamping Timestamp if unset.
func (b *Broker) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
		}
	}
}

// SubscriberCount reports the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
