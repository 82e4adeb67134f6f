// Package process provides binary entrypoint helpers for btfs. It
// centralizes the one raw I/O pattern that exists outside the
// structured logger: process exit after an unrecoverable error in
// main().
package process
