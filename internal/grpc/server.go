package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"redstring/internal/content"
	"redstring/internal/progress"
	"redstring/pkg/logger"
	"redstring/pkg/models"
)

const serviceName = "redstring.Progress"

type ChapterProgressRequest struct {
	UserID    string `json:"userId"`
	ChapterID string `json:"chapterId"`
}

type LastReadRequest struct {
	UserID string `json:"userId"`
}

// LastReadResponse.Progress is nil when nothing was read yet.
type LastReadResponse struct {
	Progress *models.ReadingProgress `json:"progress"`
}

// ProgressServer is the reading progress service for non-HTTP clients.
type ProgressServer interface {
	SaveProgress(ctx context.Context, in *models.ProgressWrite) (*models.ReadingProgress, error)
	ChapterProgress(ctx context.Context, in *ChapterProgressRequest) (*models.ChapterProgress, error)
	LastRead(ctx context.Context, in *LastReadRequest) (*LastReadResponse, error)
}

type Server struct {
	tracker *progress.Tracker
	fanout  *progress.Fanout
	log     *logger.Logger
}

// NewServer serves the tracker. Saved rows go to fanout, which may be nil.
func NewServer(tracker *progress.Tracker, fanout *progress.Fanout, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{tracker: tracker, fanout: fanout, log: log.With("component", "grpc")}
}

// Register attaches the service to gs.
func Register(gs *grpc.Server, srv ProgressServer) {
	gs.RegisterService(&serviceDesc, srv)
}

func (s *Server) SaveProgress(ctx context.Context, in *models.ProgressWrite) (*models.ReadingProgress, error) {
	p, err := s.tracker.Upsert(ctx, *in)
	if err != nil {
		return nil, s.toStatus(err)
	}
	s.fanout.Publish(ctx, p)
	return &p, nil
}

func (s *Server) ChapterProgress(ctx context.Context, in *ChapterProgressRequest) (*models.ChapterProgress, error) {
	if in.UserID == "" || in.ChapterID == "" {
		return nil, status.Error(codes.InvalidArgument, "userId and chapterId are required")
	}
	cp, err := s.tracker.ChapterProgress(ctx, in.UserID, in.ChapterID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &cp, nil
}

func (s *Server) LastRead(ctx context.Context, in *LastReadRequest) (*LastReadResponse, error) {
	if in.UserID == "" {
		return nil, status.Error(codes.InvalidArgument, "userId is required")
	}
	p, err := s.tracker.LastRead(ctx, in.UserID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return &LastReadResponse{Progress: p}, nil
}

func (s *Server) toStatus(err error) error {
	switch {
	case errors.Is(err, progress.ErrInvalidSession):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, progress.ErrInvalidProgress):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, content.ErrChapterNotFound),
		errors.Is(err, content.ErrSectionNotFound),
		errors.Is(err, content.ErrPageNotFound):
		return status.Error(codes.NotFound, err.Error())
	default:
		s.log.Error("grpc call failed", "error", err)
		return status.Errorf(codes.Internal, "internal error: %v", err)
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ProgressServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SaveProgress", Handler: saveProgressHandler},
		{MethodName: "ChapterProgress", Handler: chapterProgressHandler},
		{MethodName: "LastRead", Handler: lastReadHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "redstring/progress",
}

func saveProgressHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(models.ProgressWrite)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProgressServer).SaveProgress(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/SaveProgress"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(ProgressServer).SaveProgress(ctx, req.(*models.ProgressWrite))
	})
}

func chapterProgressHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ChapterProgressRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProgressServer).ChapterProgress(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/ChapterProgress"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(ProgressServer).ChapterProgress(ctx, req.(*ChapterProgressRequest))
	})
}

func lastReadHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(LastReadRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProgressServer).LastRead(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/LastRead"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(ProgressServer).LastRead(ctx, req.(*LastReadRequest))
	})
}
