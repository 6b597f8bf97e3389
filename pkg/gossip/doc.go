// Package gossip pushes locally written wiki pages to peer nodes.
//
// Delivery is best effort. A Broadcaster reads the peer registry, stamps the
// page with its origin and author, and POSTs it to every peer's gossip
// endpoint at once. It waits for the batch to settle or time out, logs the
// failures and returns nothing: the local write it follows has already
// committed. There are no retries, acknowledgements or ordering guarantees.
//
// Typical usage:
//
//	b := gossip.NewBroadcaster(wiki.NewPeerRegistry(backend), gossip.NewHTTPTransport(5*time.Second), logger,
//		gossip.Config{SelfURL: "http://wiki-a:8080"})
//	svc := wiki.NewService(backend, b, logger, wiki.Options{})
package gossip
