// Package session keeps an authenticated HTTP session with the site.
//
// A Session moves through Uninitialized, Restoring, Authenticated and
// Expired. RestoreOrLogin loads the persisted snapshot, verifies it with a
// single request to the members URL, and logs in from scratch when the
// snapshot is missing, unreadable, written by another version, or no longer
// accepted. Every successful login overwrites the snapshot.
//
// Snapshots are versioned JSON holding the cookies the site set, written
// atomically with mode 0600.
package session
