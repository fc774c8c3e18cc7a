// Package ws implements the WebSocket hub for sensordash-server.
//
// Hub manages a set of connected clients and pushes the current snapshot to
// all of them. A push happens whenever the pipeline publishes a new evaluated
// list (Hub.Notify) and additionally on a heartbeat interval so idle clients
// still see the stale flag flip.
//
// New(store, interval, metrics) creates a Hub. A zero interval disables the
// heartbeat.
// Hub.Run(ctx) runs the broadcast loop. It blocks until ctx is cancelled,
// then closes all active connections.
// Hub.ServeHTTP upgrades an HTTP connection to WebSocket, sends the current
// snapshot immediately on connect, then streams updates.
//
// Message format sent to clients:
//
//	{
//	  "event": "snapshot",
//	  "data":  { /* same schema as GET /api/v1/snapshot */ }
//	}
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level. The endpoint is mounted at /ws/stream by the server.
package ws
