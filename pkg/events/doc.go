/*
Package events is a small in-memory pub/sub broker for pipeline-domain
notifications: asset edits, import outcomes, job completions, artifact
commits, and hot-reload batches.

A Broker fans out published events to every current Subscriber over a
buffered channel. Publish never blocks on a slow subscriber — a full
subscriber buffer simply drops that event for that subscriber, so this is
best-effort notification, not a durable log.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			log.Info().Str("type", string(event.Type)).Msg("pipeline event")
		}
	}()

	broker.Publish(&events.Event{Type: events.TypeJobCompleted, AssetID: id})

The editor uses this to drive live UI updates as assets change; the
builder batch runner uses it to report import/build progress; the loader
uses TypeHotReload to tell consumers a reload group just committed.
*/
package events
