// Package relay carries "event created" notifications from the creation
// pipeline to subscription streams.
//
// # Overview
//
//   - Message and Broker abstract the transport (Kafka or in-process)
//   - Encode and Decode define the JSON payload {id, summary, description}
//   - Publisher sends one message per created event, with bounded retry
//   - Hub runs a single upstream consumer per process and fans every decoded
//     event out to in-process subscriber channels
//
// # Delivery
//
// Publishing is best-effort: a committed event whose notification fails is
// not rolled back. Subscribers only see events published after they
// subscribed; there is no replay. A subscriber that falls behind by more
// than its buffer loses notifications rather than stalling the others.
//
// # Usage
//
//	broker := relay.NewMemoryBroker()
//	hub := relay.NewHub(broker, relay.HubConfig{Topic: "events"})
//	if err := hub.Start(ctx); err != nil {
//	    return err
//	}
//	defer hub.Close()
//
//	events, unsubscribe, err := hub.Subscribe(ctx)
//	...
//	pub := relay.NewPublisher(broker, "events")
//	err = pub.Notify(ctx, created)
package relay
