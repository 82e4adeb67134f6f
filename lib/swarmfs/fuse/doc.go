// Package fuse mounts a [swarmfs.Core] as a read-only go-fuse/v2
// filesystem. It is pure glue: path resolution goes through
// [swarmfs.Index], and every Read call blocks on [swarmfs.Core.Read]
// rather than touching the swarm engine directly.
package fuse
