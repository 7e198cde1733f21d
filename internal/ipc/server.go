package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mangawatch/internal/daemon"
	"mangawatch/internal/logging"
	"mangawatch/internal/logs"
	"mangawatch/internal/poller"
	"mangawatch/internal/services"
	"mangawatch/internal/watchlist"
)

const serviceName = "MangaWatch"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ServerOption customizes the IPC server.
type ServerOption func(*service)

// WithStopHandler runs fn after a Stop request has been answered. The daemon
// process uses it to leave its main loop; without it Stop only halts polling.
func WithStopHandler(fn func()) ServerOption {
	return func(s *service) {
		s.onStop = fn
	}
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger, opts ...ServerOption) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logging.NewComponentLogger(logger, "ipc"), ctx: ctx}
	for _, opt := range opts {
		if opt != nil {
			opt(srv)
		}
	}
	if err := rpcServer.RegisterName(serviceName, srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
	onStop func()
}

// request derives a per-call context carrying a request id and, when known,
// the calling user.
func (s *service) request(user string) (context.Context, *slog.Logger) {
	ctx := services.WithRequestID(s.ctx, uuid.NewString())
	if user = strings.TrimSpace(user); user != "" {
		ctx = services.WithUserID(ctx, user)
	}
	return ctx, logging.WithContext(ctx, s.logger)
}

func (s *service) Track(req TrackRequest, resp *CommandResponse) error {
	ctx, logger := s.request(req.User)
	logger.Debug("track requested", logging.String("title", req.Title))
	result, err := s.daemon.Tracking().Track(ctx, req.User, req.Title)
	*resp = result
	return err
}

func (s *service) Select(req SelectRequest, resp *CommandResponse) error {
	ctx, logger := s.request(req.User)
	logger.Debug("select requested", logging.Int("index", req.Index))
	result, err := s.daemon.Tracking().Select(ctx, req.User, req.Index)
	*resp = result
	return err
}

func (s *service) Untrack(req UntrackRequest, resp *CommandResponse) error {
	ctx, logger := s.request(req.User)
	logger.Debug("untrack requested", logging.String("title", req.Title))
	result, err := s.daemon.Tracking().Untrack(ctx, req.User, req.Title)
	*resp = result
	return err
}

func (s *service) ConfirmRemove(req ConfirmRemoveRequest, resp *CommandResponse) error {
	ctx, logger := s.request(req.User)
	logger.Debug("confirm remove requested", logging.Int("index", req.Index))
	result, err := s.daemon.Tracking().ConfirmRemove(ctx, req.User, req.Index)
	*resp = result
	return err
}

func (s *service) List(_ ListRequest, resp *CommandResponse) error {
	*resp = s.daemon.Tracking().List()
	return nil
}

func (s *service) Latest(req TitleRequest, resp *CommandResponse) error {
	*resp = s.daemon.Tracking().Latest(req.Title)
	return nil
}

func (s *service) Search(req TitleRequest, resp *CommandResponse) error {
	ctx, _ := s.request("")
	*resp = s.daemon.Tracking().SearchOnly(ctx, req.Title)
	return nil
}

func (s *service) Info(req TitleRequest, resp *CommandResponse) error {
	ctx, _ := s.request("")
	*resp = s.daemon.Tracking().Info(ctx, req.Title)
	return nil
}

func (s *service) MarkRead(req TitleRequest, resp *CommandResponse) error {
	ctx, _ := s.request("")
	result, err := s.daemon.Tracking().MarkRead(ctx, req.Title)
	*resp = result
	return err
}

func (s *service) SetScraper(req SetScraperRequest, resp *CommandResponse) error {
	ctx, _ := s.request("")
	result, err := s.daemon.Tracking().SetScraper(ctx, req.Title, watchlist.ScraperConfig{
		CheckURL:        req.CheckURL,
		CheckSelector:   req.CheckSelector,
		ReadURLTemplate: req.ReadURLTemplate,
	})
	*resp = result
	return err
}

func (s *service) ClearScraper(req TitleRequest, resp *CommandResponse) error {
	ctx, _ := s.request("")
	result, err := s.daemon.Tracking().ClearScraper(ctx, req.Title)
	*resp = result
	return err
}

func (s *service) Recheck(_ RecheckRequest, resp *RecheckResponse) error {
	ctx, logger := s.request("")
	logger.Debug("manual recheck requested")
	cycle, err := s.daemon.Recheck(ctx)
	if errors.Is(err, poller.ErrRecheckThrottled) || errors.Is(err, poller.ErrCycleInProgress) {
		resp.Ran = false
		resp.Message = err.Error()
		return nil
	}
	resp.Ran = true
	resp.Cycle = cycle.Summarize()
	resp.Updates = cycle.Report.Updates
	if err != nil {
		resp.Message = err.Error()
		return nil
	}
	switch n := len(cycle.Report.Updates); n {
	case 0:
		resp.Message = "✅ No new chapters."
	case 1:
		resp.Message = "📢 1 series has a new chapter."
	default:
		resp.Message = fmt.Sprintf("📢 %d series have new chapters.", n)
	}
	logger.Info("manual recheck finished",
		logging.String(logging.FieldEventType, "manual_recheck"),
		logging.Int("updates", len(cycle.Report.Updates)))
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	ctx, _ := s.request("")
	deliveries, err := s.daemon.History(ctx, req.Title, req.Limit)
	if err != nil {
		return err
	}
	resp.Deliveries = deliveries
	if req.Cycles {
		cycles, err := s.daemon.Cycles(ctx, req.Limit)
		if err != nil {
			return err
		}
		resp.Cycles = cycles
	}
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	*resp = s.daemon.Status(s.ctx)
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("daemon stop requested")
	resp.Stopped = true
	s.logger.Info("daemon stop requested via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	if s.onStop != nil {
		// Give the reply time to reach the client before the socket closes.
		time.AfterFunc(100*time.Millisecond, s.onStop)
		return nil
	}
	s.daemon.Stop()
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.daemon.LogPath()
	if logPath == "" {
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	ctx := s.ctx
	if wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	page, err := logs.Tail(ctx, logPath, logs.Options{
		From:  req.Offset,
		Lines: req.Limit,
		Wait:  wait,
		Match: req.Match,
	})
	resp.Lines = page.Lines
	resp.Offset = page.Next
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
