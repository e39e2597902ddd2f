/*
Package event provides typed listener lists with disposable subscription handles.

Every call to On or Once returns a *Subscription. Disposing a subscription removes
the listener; disposing twice is a no-op. A Group collects the subscriptions made
for one unit of work and disposes all of them together, exactly once, no matter
how many terminal paths try to tear them down.

	var g event.Group
	g.Add(
		src.OnEnd(onEnd),
		src.OnError(onError),
	)
	// later, from whichever handler fires first
	g.Dispose()
*/
package event
