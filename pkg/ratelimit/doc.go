// Package ratelimit provides request pacing for the Flickr API client.
//
// Two strategies are available: Interval, which keeps a minimum delay
// between consecutive calls, and TokenBucket, which allows a burst up to a
// capacity that refills periodically. The export pipeline uses Interval by
// default since the remote service cares about sustained call spacing.
package ratelimit
