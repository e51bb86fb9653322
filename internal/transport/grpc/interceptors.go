package grpcx

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/cwrk-planet/meet-service/internal/domain"
	"github.com/cwrk-planet/meet-service/internal/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultCallTimeout = 10 * time.Second

// UnaryServerInterceptor logs the call, recovers panics, maps domain errors to
// status codes and bounds calls that arrive without a deadline.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp any, err error) {
		start := time.Now()
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, defaultCallTimeout)
			defer cancel()
		}

		defer func() {
			if r := recover(); r != nil {
				logger.Ctx(ctx).Error("grpc unary panic",
					"method", info.FullMethod,
					"panic", r,
					"stack", string(debug.Stack()))
				err = status.Error(codes.Internal, "internal server error")
			}
			logger.Ctx(ctx).Info("grpc unary",
				"method", info.FullMethod,
				"dur_ms", time.Since(start).Milliseconds(),
				"code", status.Code(err).String(),
				"err", errString(err))
		}()

		resp, err = handler(ctx, req)
		return resp, mapErr(err)
	}
}

func StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) (err error) {
		start := time.Now()
		ctx := ss.Context()

		defer func() {
			if r := recover(); r != nil {
				logger.Ctx(ctx).Error("grpc stream panic",
					"method", info.FullMethod,
					"panic", r,
					"stack", string(debug.Stack()))
				err = status.Error(codes.Internal, "internal server error")
			}
			logger.Ctx(ctx).Info("grpc stream",
				"method", info.FullMethod,
				"dur_ms", time.Since(start).Milliseconds(),
				"err", errString(err))
		}()

		return mapErr(handler(srv, ss))
	}
}

// mapErr leaves status errors alone and translates registry errors.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, domain.ErrRoomNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrNotInRoom):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrRoomFull), errors.Is(err, domain.ErrRoomEnded):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
