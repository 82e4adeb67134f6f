// Package swarmengine is the façade over github.com/anacrolix/torrent
// that implements swarmfs.PieceSource. It is the only package in this
// module that imports the torrent engine directly; lib/swarmfs sees
// only the narrow PieceSource interface.
//
// Session owns the torrent.Client and the one *torrent.Torrent this
// process mounts, waits for its metadata, builds the directory index,
// zeroes every file's priority, and runs the alert-pump goroutine that
// turns the engine's piece-state-change subscription into calls on a
// *swarmfs.Core.
package swarmengine
