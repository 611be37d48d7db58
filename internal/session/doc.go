// Package session coordinates an editor session with the external lint
// analysis process.
//
// The session decides which open documents the analysis process should see
// (the sync reconciler driven by the validation policy), answers the
// process's batched configuration requests (the resolver, which routes
// every item through the settings-migration gate), and consumes the
// process's custom requests and notifications: missing configuration,
// missing library, probe rejections, and per-document status.
//
// The session owns the flags with session lifetime, such as the migration
// "not now" deferral and whether the process exited on its own request.
// Both reset when a new analysis process reaches the running state.
package session
