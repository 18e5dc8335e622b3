// Package provider implements channel Seekers and Senders backed by GitHub
// and the local filesystem.
//
// Sources poll a release body, issue bodies, an app installation or a file,
// or receive signed webhook deliveries.
// GitHub sources use conditional requests, keep the last good batch through
// transient failures and pace themselves against the rate-limit window.
// Sinks write environment secrets, repository_dispatch events or a file,
// retrying transient GitHub failures.
package provider
