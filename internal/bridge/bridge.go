// Package bridge accepts raw TCP connections from RFID readers and turns
// their binary frames into detection events. Readers on the shop floor speak
// a bare socket protocol; the bridge is the only component that touches it.
package bridge

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"net"
	"strings"

	"github.com/roach88/shelftrack/internal/tag"
)

// Submitter receives decoded detections and connectivity changes. Satisfied
// by *engine.Engine in-process and by the HTTP forwarder in the CLI.
type Submitter interface {
	SubmitDetection(ctx context.Context, readerIdentity, key string, kind tag.ReaderKind, detected bool) error
	ReportConnectivity(identity string, connected bool) error
}

// Bridge is a TCP acceptor translating reader frames into engine events.
// The reader's network identity determines its kind via the kinds table; a
// connection from an address not in the table is logged and dropped.
type Bridge struct {
	submitter Submitter
	kinds     map[string]tag.ReaderKind
}

// New creates a bridge that submits to the given sink. kinds maps reader
// identity (host without port) to reader kind, typically built from the
// topology file.
func New(submitter Submitter, kinds map[string]tag.ReaderKind) *Bridge {
	return &Bridge{submitter: submitter, kinds: kinds}
}

// Serve accepts connections on lis until ctx is cancelled. Each connection
// is handled on its own goroutine.
func (b *Bridge) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		<-ctx.Done()
		lis.Close()
	}()

	slog.Info("bridge listening", "addr", lis.Addr().String())
	for {
		conn, err := lis.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go b.handleConn(ctx, conn)
	}
}

func (b *Bridge) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	identity := RemoteIdentity(conn.RemoteAddr().String())
	kind, ok := b.kinds[identity]
	if !ok {
		slog.Warn("connection from unknown reader", "reader", identity)
		return
	}

	slog.Info("reader connected", "reader", identity, "kind", kind)
	if err := b.submitter.ReportConnectivity(identity, true); err != nil {
		slog.Error("reporting connectivity", "reader", identity, "error", err)
	}
	defer func() {
		slog.Info("reader disconnected", "reader", identity)
		if err := b.submitter.ReportConnectivity(identity, false); err != nil {
			slog.Error("reporting connectivity", "reader", identity, "error", err)
		}
	}()

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			b.handleFrame(ctx, identity, kind, buf[:n])
		}
		if err != nil {
			return
		}
	}
}

// handleFrame decodes one raw chunk and submits the key it carries. Frames
// too short to hold a key segment are discarded; submission rejections are
// logged and never tear down the connection.
func (b *Bridge) handleFrame(ctx context.Context, identity string, kind tag.ReaderKind, frame []byte) {
	frameHex := strings.ToUpper(hex.EncodeToString(frame))

	key, err := tag.ExtractKey(frameHex)
	if err != nil {
		slog.Debug("discarding malformed frame", "reader", identity, "len", len(frameHex))
		return
	}

	if err := b.submitter.SubmitDetection(ctx, identity, string(key), kind, true); err != nil {
		slog.Error("submitting detection", "reader", identity, "key", key, "error", err)
	}
}

// RemoteIdentity extracts the reader identity from a connection's remote
// address: the host with the port removed and any IPv6-mapped-IPv4 prefix
// stripped, so "[::ffff:192.168.1.101]:40312" becomes "192.168.1.101".
func RemoteIdentity(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	return strings.TrimPrefix(host, "::ffff:")
}
