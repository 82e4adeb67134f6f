// Package swarmfs implements the read–piece reactor that sits between
// a read-only filesystem view of a BitTorrent swarm and the swarm
// engine that actually fetches bytes.
//
// The package is organized in four layers, leaf to root:
//
//   - Index ([NewIndex]): builds a POSIX directory tree from a
//     torrent's flat file list. Answers getattr/readdir/open.
//
//   - Read ([NewRead]): decomposes one (file, offset, length) request
//     into piece-aligned parts against the caller's output buffer, and
//     tracks which parts have been filled.
//
//   - Scheduler (internal to [Core]): maintains a single cursor and
//     steers piece priorities in a window ahead of it, biasing the
//     swarm toward sequential delivery.
//
//   - Core: the reactor itself. One mutex and one condition variable
//     guard the active read set and the cursor; the index is
//     immutable and read without the mutex. FUSE
//     worker goroutines call [Core.Read] and block on the condition
//     variable; the swarm engine's alert pump calls
//     [Core.OnPieceFinished] and [Core.OnReadPieceDelivered] to drive
//     reads toward completion.
//
// swarmfs knows nothing about the wire protocol, tracker, DHT, or
// on-disk piece storage. It consumes those through [PieceSource], a
// narrow interface the engine façade (lib/swarmengine) implements.
// This keeps the reactor — the part of the system where FUSE worker
// goroutines, the engine's alert pump, and priority scheduling all
// meet — testable with a fake source and no network.
package swarmfs
