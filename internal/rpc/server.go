package rpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/cardity-org/cardity-core/internal/abi"
	"github.com/cardity-org/cardity-core/internal/compiler"
	"github.com/cardity-org/cardity-core/internal/engine"
	"github.com/cardity-org/cardity-core/internal/ir"
)

// Compile-time interface check.
var _ ProtocolServiceServer = (*Server)(nil)

// Server implements ProtocolService on top of an engine.
//
// Invoke goes through engine.Submit, so the engine's Run loop must be
// running for invocations to complete. Compile and DeriveABI are pure
// and need no engine state.
type Server struct {
	engine *engine.Engine
	logger *slog.Logger
}

// NewServer creates a server over eng. A nil logger discards output.
func NewServer(eng *engine.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{engine: eng, logger: logger}
}

// Register adds ProtocolService to a gRPC server.
func (s *Server) Register(gs *grpc.Server) {
	RegisterProtocolServiceServer(gs, s)
}

// Serve starts a gRPC server on lis and blocks until it stops.
func (s *Server) Serve(lis net.Listener, opts ...grpc.ServerOption) error {
	gs := grpc.NewServer(opts...)
	s.Register(gs)
	return gs.Serve(lis)
}

func (s *Server) Compile(ctx context.Context, req *CompileRequest) (*CompileResponse, error) {
	name := req.Name
	if name == "" {
		name = "input.car"
	}
	res, err := compiler.Compile(name, []byte(req.Source))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	hash, err := ir.UnitHash(res.Document)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	warnings := make([]string, 0, len(res.Diagnostics)+len(res.Warnings))
	for _, d := range res.Diagnostics {
		warnings = append(warnings, d.Pos.String()+": "+d.Message)
	}
	for _, w := range res.Warnings {
		warnings = append(warnings, w.Error())
	}

	s.logger.Debug("compiled", "file", name, "protocol", res.Document.Protocol, "hash", hash)
	return &CompileResponse{
		Protocol: res.Document.Protocol,
		UnitHash: hash,
		IR:       res.JSON,
		Binary:   res.Binary,
		Warnings: warnings,
	}, nil
}

func (s *Server) DeriveABI(ctx context.Context, req *DeriveABIRequest) (*DeriveABIResponse, error) {
	doc, err := ir.Load("request", req.IR)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	a, err := abi.Derive(doc)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	data, err := abi.Marshal(a)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &DeriveABIResponse{ABI: data}, nil
}

func (s *Server) Deploy(ctx context.Context, req *DeployRequest) (*DeployResponse, error) {
	doc, err := ir.Load("request", req.IR)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	u, err := engine.Load(doc)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.engine.Deploy(ctx, u); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	s.logger.Info("deployed", "protocol", u.Name, "hash", u.Hash)
	return &DeployResponse{Protocol: u.Name, UnitHash: u.Hash, Methods: u.Methods()}, nil
}

func (s *Server) Invoke(ctx context.Context, req *InvokeRequest) (*InvokeResponse, error) {
	res, err := s.engine.Submit(ctx, engine.Request{
		UnitHash: req.UnitHash,
		Method:   req.Method,
		Args:     req.Args,
		Ctx:      EntryMap(req.Ctx),
	})
	if err != nil {
		return nil, statusFromError(err)
	}

	out := &InvokeResponse{
		InvocationID: res.InvocationID,
		Seq:          res.Seq,
		Output:       res.Output,
		Events:       make([]EventRecord, 0, len(res.Events)),
		State:        Entries(res.State),
	}
	for _, ev := range res.Events {
		out.Events = append(out.Events, EventRecord{Name: ev.Name, Values: ev.Values})
	}
	if res.Fault != nil {
		out.FaultCode = string(res.Fault.Code)
		out.FaultMessage = res.Fault.Message
	}
	return out, nil
}

// statusFromError maps engine errors onto gRPC status codes.
func statusFromError(err error) error {
	switch {
	case errors.Is(err, engine.ErrUnitNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, engine.ErrStopped):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
