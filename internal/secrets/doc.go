// Package secrets keeps credentials out of outbound batches.
//
// Detection uses the gitleaks default rule set. Guard wraps a channel
// Sender so that a batch carrying a match is refused before it reaches a
// store where other parties can read it, such as a repository_dispatch
// payload or a shared file.
package secrets
