package swarmengine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/types"
	"golang.org/x/time/rate"

	"github.com/gobtfs/btfs/lib/swarmfs"
)

// listenPortRangeStart and listenPortRangeEnd bound the ports probed
// when Options.ListenPort is zero, matching the original's
// std::make_pair(6881, 6889).
const (
	listenPortRangeStart = 6881
	listenPortRangeEnd   = 6889
)

// Options configures a Session.
type Options struct {
	// DataDir is where the engine stores downloaded piece data.
	DataDir string

	// ListenPort is the TCP/UDP port the client binds. Zero probes
	// 6881-6889 in order and keeps the first one that binds, matching
	// the original's listening port range.
	ListenPort int

	// MaxUploadRate and MaxDownloadRate are byte/sec ceilings. Zero
	// means unlimited, matching rate.Inf semantics.
	MaxUploadRate   float64
	MaxDownloadRate float64

	// Logger receives diagnostic messages. If nil, a text logger
	// writing error-level messages to stderr is used.
	Logger *slog.Logger
}

// Session wraps one torrent.Client and the single torrent this
// process mounts. It implements swarmfs.PieceSource and owns the
// alert-pump goroutine (alerts.go) that drives a *swarmfs.Core.
type Session struct {
	client  *torrent.Client
	torrent *torrent.Torrent
	logger  *slog.Logger

	// files caches the per-file metadata swarmfs.PieceSource needs,
	// built once metadata is available (WaitMetadata). Immutable after
	// that point, so reads need no lock.
	files []*torrent.File

	core *swarmfs.Core

	pumpCancel context.CancelFunc
	pumpDone   sync.WaitGroup
}

var _ swarmfs.PieceSource = (*Session)(nil)

// NewSession constructs a torrent.Client from options but adds no
// torrent yet. Call AddFromFile or AddMagnet next.
func NewSession(options Options) (*Session, error) {
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	}
	if options.DataDir == "" {
		return nil, fmt.Errorf("data dir is required")
	}

	cfg := torrent.NewDefaultClientConfig()
	cfg.DataDir = options.DataDir
	if options.MaxUploadRate > 0 {
		cfg.UploadRateLimiter = rate.NewLimiter(rate.Limit(options.MaxUploadRate), 256<<10)
	}
	if options.MaxDownloadRate > 0 {
		cfg.DownloadRateLimiter = rate.NewLimiter(rate.Limit(options.MaxDownloadRate), 256<<10)
	}

	client, err := newClientOnPort(cfg, options.ListenPort)
	if err != nil {
		return nil, err
	}

	return &Session{
		client: client,
		logger: options.Logger,
	}, nil
}

// newClientOnPort binds the client to listenPort, or, if listenPort is
// zero, probes listenPortRangeStart..listenPortRangeEnd in order and
// keeps the client built on the first port that binds successfully.
func newClientOnPort(cfg *torrent.ClientConfig, listenPort int) (*torrent.Client, error) {
	if listenPort != 0 {
		cfg.ListenPort = listenPort
		client, err := torrent.NewClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("creating torrent client on port %d: %w", listenPort, err)
		}
		return client, nil
	}

	var lastErr error
	for port := listenPortRangeStart; port <= listenPortRangeEnd; port++ {
		cfg.ListenPort = port
		client, err := torrent.NewClient(cfg)
		if err == nil {
			return client, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("creating torrent client on ports %d-%d: %w", listenPortRangeStart, listenPortRangeEnd, lastErr)
}

// AddFromFile adds a torrent described by a local .torrent metainfo
// file (spec §1's "metadata" argument when it names a file rather
// than a magnet URI).
func (s *Session) AddFromFile(path string) error {
	t, err := s.client.AddTorrentFromFile(path)
	if err != nil {
		return fmt.Errorf("adding torrent from %s: %w", path, err)
	}
	s.torrent = t
	return nil
}

// AddMagnet adds a torrent described by a magnet URI.
func (s *Session) AddMagnet(uri string) error {
	t, err := s.client.AddMagnet(uri)
	if err != nil {
		return fmt.Errorf("adding magnet: %w", err)
	}
	s.torrent = t
	return nil
}

// IsMagnet reports whether metadata looks like a magnet URI rather
// than a metainfo file path, so cmd/btfs can dispatch without
// depending on swarmengine internals.
func IsMagnet(metadata string) bool {
	return strings.HasPrefix(metadata, "magnet:")
}

// WaitMetadata blocks until the added torrent's metadata (piece
// count, piece length, file list) has been received — via the swarm
// for a magnet link, or immediately for a metainfo file — or until
// ctx is canceled. It must be called exactly once, after AddFromFile
// or AddMagnet and before Start.
func (s *Session) WaitMetadata(ctx context.Context) error {
	if s.torrent == nil {
		return fmt.Errorf("no torrent added")
	}
	select {
	case <-s.torrent.GotInfo():
	case <-ctx.Done():
		return ctx.Err()
	}

	s.files = s.torrent.Files()

	// Every file starts at priority none; a Read is what raises a
	// piece's priority, matching the original setup()'s
	// t->file_priorities behaviour of zeroing every file up front.
	for _, f := range s.files {
		f.SetPriority(types.PiecePriorityNone)
	}

	return nil
}

// BuildIndex constructs the directory index for the added torrent's
// file list (spec §4.1), to be handed to swarmfs.NewCore alongside
// this Session as the PieceSource.
func (s *Session) BuildIndex() *swarmfs.Index {
	entries := make([]swarmfs.TorrentFile, len(s.files))
	for i, f := range s.files {
		entries[i] = swarmfs.TorrentFile{
			Path:      "/" + f.Path(),
			Size:      f.Length(),
			FileIndex: i,
		}
	}
	return swarmfs.NewIndex(entries)
}

// Close tears down the torrent client. Callers must call Stop first
// if the alert pump is running.
func (s *Session) Close() error {
	errs := s.client.Close()
	if len(errs) > 0 {
		return fmt.Errorf("closing torrent client: %v", errs)
	}
	return nil
}

// --- swarmfs.PieceSource ---

func (s *Session) NumPieces() int {
	return s.torrent.NumPieces()
}

func (s *Session) PieceLength(piece int) int {
	info := s.torrent.Info()
	if info == nil {
		return 0
	}
	if piece == s.torrent.NumPieces()-1 {
		return int(s.torrent.Length() - info.PieceLength*int64(piece))
	}
	return int(info.PieceLength)
}

func (s *Session) HavePiece(piece int) bool {
	return s.torrent.PieceState(piece).Complete
}

func (s *Session) MapFile(fileIndex int, offset, length int64) (piece, start, partLength int) {
	file := s.files[fileIndex]
	info := s.torrent.Info()

	abs := file.Offset() + offset
	pieceLength := info.PieceLength

	piece = int(abs / pieceLength)
	start = int(abs % pieceLength)

	remainingInPiece := int64(s.PieceLength(piece)) - int64(start)
	partLength64 := remainingInPiece
	if partLength64 > length {
		partLength64 = length
	}
	if remainingInFile := file.Length() - offset; partLength64 > remainingInFile {
		partLength64 = remainingInFile
	}
	if partLength64 < 0 {
		partLength64 = 0
	}
	return piece, start, int(partLength64)
}

func (s *Session) FileSize(fileIndex int) int64 {
	return s.files[fileIndex].Length()
}

// RequestPiece is a scheduling hint: it never waits for bytes. For a
// piece the engine does not have yet it does nothing — priority
// promotion (SetPiecePriority) is what causes the engine to fetch it,
// and the alert pump (alerts.go) delivers it once complete. For an
// already-complete piece it starts deliverPiece on its own goroutine,
// which calls Core.OnReadPieceDelivered after the caller has released
// Core's mutex. Repeated calls only cause repeated deliveries, which
// Read.Copy ignores for parts already filled.
func (s *Session) RequestPiece(piece int) {
	if !s.HavePiece(piece) {
		return
	}
	go s.deliverPiece(piece)
}

func (s *Session) SetPiecePriority(piece int, priority swarmfs.Priority) {
	s.torrent.Piece(piece).SetPriority(toEnginePriority(priority))
}

// toEnginePriority maps the reactor's libtorrent-style 0/1/7 scale
// onto anacrolix/torrent's types.PiecePriority enum. There is no
// exact numeric correspondence between the two scales — this chooses
// the closest semantic match (None stays None; the hot window's
// PriorityHigh maps to the engine's "fetch now" tier; the cold tail's
// PriorityLow maps to its default wanted-but-not-urgent tier).
func toEnginePriority(p swarmfs.Priority) types.PiecePriority {
	switch p {
	case swarmfs.PriorityNone:
		return types.PiecePriorityNone
	case swarmfs.PriorityHigh:
		return types.PiecePriorityNow
	default:
		return types.PiecePriorityNormal
	}
}
