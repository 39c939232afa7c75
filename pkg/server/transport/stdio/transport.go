// Package stdio implements the single-session direct-stream transport:
// newline-delimited JSON envelopes over a reader/writer pair, one
// implicit session for the process lifetime.
package stdio

import (
	"bufio"
	"bytes"
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/forgeline/sitesmith/pkg/server"
	"github.com/forgeline/sitesmith/pkg/session"
)

// Options holds configuration for the stdio transport
type Options struct {
	// Reader is the input stream, normally os.Stdin
	Reader io.Reader
	// Writer is the output stream, normally os.Stdout
	Writer io.Writer
	// Logger instance
	Logger *zap.Logger
}

// Transport reads requests line by line and writes one response line
// per request. Requests are naturally serialized by the read loop.
type Transport struct {
	sess   *session.Transport
	reader *bufio.Reader
	writer *bufio.Writer
	logger *zap.Logger
}

// New creates a new stdio transport bound to srv
func New(srv *server.Server, opts Options) *Transport {
	if opts.Logger == nil {
		opts.Logger = srv.Logger()
	}
	return &Transport{
		sess:   srv.NewImplicitSession("stdio"),
		reader: bufio.NewReader(opts.Reader),
		writer: bufio.NewWriter(opts.Writer),
		logger: opts.Logger,
	}
}

// Session returns the implicit session transport
func (t *Transport) Session() *session.Transport {
	return t.sess
}

// Start runs the read loop until EOF or ctx cancellation. EOF is a
// normal shutdown; any other read error is a transport-level failure.
func (t *Transport) Start(ctx context.Context) error {
	t.sess.Start()
	defer t.sess.Close()
	t.logger.Info("stdio transport started")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := t.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				t.logger.Info("stdio transport received EOF, shutting down")
				return nil
			}
			t.logger.Error("stdio read failed", zap.Error(err))
			return err
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		resp := t.sess.HandleRequest(ctx, line)
		if err := t.write(resp); err != nil {
			t.logger.Error("stdio write failed", zap.Error(err))
			return err
		}
	}
}

func (t *Transport) write(resp []byte) error {
	if _, err := t.writer.Write(resp); err != nil {
		return err
	}
	if err := t.writer.WriteByte('\n'); err != nil {
		return err
	}
	return t.writer.Flush()
}
