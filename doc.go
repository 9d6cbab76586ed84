// Package projector builds in-memory projections from an ordered event source.
//
// A Projector reads every historical event from an eventstore.Store, then
// continues with the live events delivered by an eventstore.Subscriber. Each
// event is folded into the projection exactly once, and each new state is
// made available to any number of Watcher values.
//
// Projectors do not persist their progress. Each call to Projector.Run()
// begins with the zero-value of the projection and reads every event.
package projector
