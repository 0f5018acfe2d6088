// Package transfer implements the file handoff between the collection node
// and the storage node.
//
// The collector runs a Server exposing exactly four routes:
//
//	GET    /             the staging file, verbatim
//	DELETE /             remove the staging file (form field "token")
//	GET    /favicon.ico  an embedded icon
//	*                    400 Bad Request
//
// Deletion only happens while the second of the minute is between 10 and 45
// inclusive. The producer rewrites the staging file around the top of the
// minute, so a request arriving outside the window waits for the next one.
// The wait is aborted when the server shuts down and the file is left alone.
//
// The storage node runs a Client: fetch, write the bytes locally, then ask
// the collector to delete its copy with a freshly minted token. The client
// never deletes without a successful fetch.
package transfer
