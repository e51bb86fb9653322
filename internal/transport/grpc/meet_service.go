package grpcx

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cwrk-planet/meet-service/internal/domain"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Registry is the part of the room registry served over gRPC.
type Registry interface {
	CreateRoom(ctx context.Context, name, host string, maxSize int) (*domain.Room, string, error)
	JoinRoom(ctx context.Context, roomID, user string) (*domain.Session, error)
	LeaveRoom(ctx context.Context, roomID, user string) (*domain.Session, error)
	LeaveSession(ctx context.Context, sessionID string) (*domain.Session, error)
	ToggleMedia(ctx context.Context, roomID, user string, upd domain.MediaUpdate) (*domain.Session, error)
	EndRoom(ctx context.Context, roomID, recordingURL string) (*domain.Room, error)
	GetRoom(roomID string) (domain.RoomSnapshot, bool)
	ActiveRooms() []domain.RoomSnapshot
	UserHistory(user string, n int) []domain.RoomSnapshot
	RoomStats(ctx context.Context, roomID string) (domain.RoomStats, error)
}

// MeetServiceServer carries requests and replies as google.protobuf.Struct
// whose fields mirror the HTTP JSON bodies.
type MeetServiceServer interface {
	CreateRoom(context.Context, *structpb.Struct) (*structpb.Struct, error)
	JoinRoom(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LeaveRoom(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LeaveSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ToggleMedia(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EndRoom(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRoom(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListActiveRooms(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UserHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RoomStats(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type methodFunc func(MeetServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call methodFunc) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(MeetServiceServer), ctx, req.(*structpb.Struct))
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var MeetServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MeetServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("CreateRoom", MeetServiceServer.CreateRoom),
		unaryMethod("JoinRoom", MeetServiceServer.JoinRoom),
		unaryMethod("LeaveRoom", MeetServiceServer.LeaveRoom),
		unaryMethod("LeaveSession", MeetServiceServer.LeaveSession),
		unaryMethod("ToggleMedia", MeetServiceServer.ToggleMedia),
		unaryMethod("EndRoom", MeetServiceServer.EndRoom),
		unaryMethod("GetRoom", MeetServiceServer.GetRoom),
		unaryMethod("ListActiveRooms", MeetServiceServer.ListActiveRooms),
		unaryMethod("UserHistory", MeetServiceServer.UserHistory),
		unaryMethod("RoomStats", MeetServiceServer.RoomStats),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "meet/v1/meet.proto",
}

type meetService struct {
	reg          Registry
	historyLimit int
}

var _ MeetServiceServer = (*meetService)(nil)

func (s *meetService) CreateRoom(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	name, host := str(in, "name"), str(in, "host")
	if name == "" || host == "" {
		return nil, fmt.Errorf("%w: name and host are required", domain.ErrInvalidInput)
	}
	maxSize := int(in.GetFields()["max_size"].GetNumberValue())
	if maxSize < 0 {
		return nil, fmt.Errorf("%w: max_size must not be negative", domain.ErrInvalidInput)
	}
	room, url, err := s.reg.CreateRoom(ctx, name, host, maxSize)
	if err != nil {
		return nil, err
	}
	snap, _ := s.reg.GetRoom(room.ID)
	return toStruct(map[string]any{"room": snap, "join_url": url})
}

func (s *meetService) JoinRoom(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	sess, err := s.reg.JoinRoom(ctx, str(in, "room_id"), str(in, "user"))
	if err != nil {
		return nil, err
	}
	return sessionStruct(sess)
}

func (s *meetService) LeaveRoom(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	sess, err := s.reg.LeaveRoom(ctx, str(in, "room_id"), str(in, "user"))
	if err != nil {
		return nil, err
	}
	return sessionStruct(sess)
}

func (s *meetService) LeaveSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	sess, err := s.reg.LeaveSession(ctx, str(in, "session_id"))
	if err != nil {
		return nil, err
	}
	return sessionStruct(sess)
}

func (s *meetService) ToggleMedia(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	upd := domain.MediaUpdate{Camera: optBool(in, "camera_on"), Mic: optBool(in, "mic_on")}
	if upd.Empty() {
		return nil, fmt.Errorf("%w: camera_on or mic_on is required", domain.ErrInvalidInput)
	}
	sess, err := s.reg.ToggleMedia(ctx, str(in, "room_id"), str(in, "user"), upd)
	if err != nil {
		return nil, err
	}
	return sessionStruct(sess)
}

func (s *meetService) EndRoom(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	room, err := s.reg.EndRoom(ctx, str(in, "room_id"), str(in, "recording_url"))
	if err != nil {
		return nil, err
	}
	snap, _ := s.reg.GetRoom(room.ID)
	return toStruct(snap)
}

func (s *meetService) GetRoom(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	snap, ok := s.reg.GetRoom(str(in, "room_id"))
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return toStruct(snap)
}

func (s *meetService) ListActiveRooms(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(map[string]any{"items": s.reg.ActiveRooms()})
}

func (s *meetService) UserHistory(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	n := int(in.GetFields()["n"].GetNumberValue())
	if n <= 0 {
		n = s.historyLimit
	}
	return toStruct(map[string]any{"items": s.reg.UserHistory(str(in, "user"), n)})
}

func (s *meetService) RoomStats(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	stats, err := s.reg.RoomStats(ctx, str(in, "room_id"))
	if err != nil {
		return nil, err
	}
	return toStruct(stats)
}

func sessionStruct(s *domain.Session) (*structpb.Struct, error) {
	return toStruct(map[string]any{
		"id":        s.ID,
		"room_id":   s.RoomID,
		"user":      s.User,
		"joined_at": s.JoinedAt,
		"left_at":   s.LeftAt,
		"camera_on": s.CameraOn,
		"mic_on":    s.MicOn,
	})
}

func str(in *structpb.Struct, key string) string {
	return strings.TrimSpace(in.GetFields()[key].GetStringValue())
}

func optBool(in *structpb.Struct, key string) *bool {
	v, ok := in.GetFields()[key]
	if !ok {
		return nil
	}
	if _, isBool := v.GetKind().(*structpb.Value_BoolValue); !isBool {
		return nil
	}
	b := v.GetBoolValue()
	return &b
}

// toStruct reuses the domain JSON tags so gRPC replies match HTTP bodies.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal reply: %w", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, fmt.Errorf("convert reply: %w", err)
	}
	return out, nil
}
