package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"eventplace/internal/models"
	"eventplace/internal/service"
	"eventplace/internal/worker"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	confirmationServiceName = "eventplace.confirmation.v1.ConfirmationService"

	confirmMethod     = "/" + confirmationServiceName + "/Confirm"
	retryMethod       = "/" + confirmationServiceName + "/Retry"
	getWorkflowMethod = "/" + confirmationServiceName + "/GetWorkflow"
)

// ConfirmationServiceServer is served over gRPC with google.protobuf.Struct
// requests and responses. Requests carry booking_id and, for Confirm, an
// optional payment_intent_id, amount_cents and currency.
type ConfirmationServiceServer interface {
	Confirm(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Retry(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetWorkflow(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var ConfirmationServiceDesc = grpc.ServiceDesc{
	ServiceName: confirmationServiceName,
	HandlerType: (*ConfirmationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Confirm", Handler: unaryHandler(confirmMethod, ConfirmationServiceServer.Confirm)},
		{MethodName: "Retry", Handler: unaryHandler(retryMethod, ConfirmationServiceServer.Retry)},
		{MethodName: "GetWorkflow", Handler: unaryHandler(getWorkflowMethod, ConfirmationServiceServer.GetWorkflow)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "eventplace/confirmation/v1/confirmation.proto",
}

func RegisterConfirmationServiceServer(s grpc.ServiceRegistrar, srv ConfirmationServiceServer) {
	s.RegisterService(&ConfirmationServiceDesc, srv)
}

type unaryCall func(ConfirmationServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryCall) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ConfirmationServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ConfirmationServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ConfirmationService adapts the confirmation handler to gRPC.
type ConfirmationService struct {
	handlers Handlers
	now      func() time.Time
}

func NewConfirmationService(handlers Handlers) *ConfirmationService {
	return &ConfirmationService{handlers: handlers, now: time.Now}
}

func (s *ConfirmationService) Confirm(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	bookingID, err := requireBookingID(req)
	if err != nil {
		return nil, err
	}

	fields := req.GetFields()
	intentID := strings.TrimSpace(fields["payment_intent_id"].GetStringValue())

	var res *service.ConfirmationResult
	if intentID != "" {
		res, err = s.handlers.Confirmer.ConfirmWithPayment(ctx, bookingID, models.PaymentEvidence{
			PaymentIntentID: intentID,
			Provider:        "grpc",
			AmountCents:     int64(fields["amount_cents"].GetNumberValue()),
			Currency:        strings.ToUpper(fields["currency"].GetStringValue()),
			ReceivedAt:      s.now().UTC(),
		})
	} else {
		res, err = s.handlers.Confirmer.ConfirmDirect(ctx, bookingID)
	}
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(confirmationResponse(res))
}

// Retry re-runs the saga inline, or queues it when async is true.
func (s *ConfirmationService) Retry(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	bookingID, err := requireBookingID(req)
	if err != nil {
		return nil, err
	}

	if req.GetFields()["async"].GetBoolValue() {
		if s.handlers.Tasks == nil {
			return nil, status.Error(codes.Unavailable, "recovery queue is not configured")
		}
		if err := s.handlers.Tasks.EnqueueTask(ctx, worker.TaskRetrySaga, bookingID, nil); err != nil {
			return nil, grpcError(err)
		}
		return toStruct(map[string]any{"booking_id": bookingID, "queued": true})
	}

	res, err := s.handlers.Confirmer.Retry(ctx, bookingID)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(confirmationResponse(res))
}

func (s *ConfirmationService) GetWorkflow(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	bookingID, err := requireBookingID(req)
	if err != nil {
		return nil, err
	}
	wf, err := s.handlers.Workflows.GetWorkflowByBooking(ctx, bookingID)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(wf)
}

func requireBookingID(req *structpb.Struct) (string, error) {
	id := strings.TrimSpace(req.GetFields()["booking_id"].GetStringValue())
	if id == "" {
		return "", status.Error(codes.InvalidArgument, "booking_id is required")
	}
	return id, nil
}

// toStruct converts v through its JSON encoding, the same body the HTTP API returns.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return out, nil
}
