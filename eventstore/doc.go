// Package eventstore defines the contracts between a projector and the
// systems that record and deliver events.
//
// A Store provides finite, ordered "catch-up" streams of events that have
// already been recorded. A Subscriber provides a live stream of events that
// are recorded after the subscription is opened.
package eventstore
