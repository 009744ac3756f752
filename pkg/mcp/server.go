// Package mcp exposes structural search as Model Context Protocol tools.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/astrule/pkg/observability"
	"github.com/Sumatoshi-tech/astrule/pkg/version"
)

const (
	serverName    = "astrule"
	mcpSpanPrefix = "mcp."

	searchToolDescription = "Search source code structurally. Give the code, its language, and either " +
		"a code pattern with placeholders ($NAME binds one node, $_ matches one node, $$$ARGS binds " +
		"a run of sibling nodes) or a YAML rule combining pattern, kind, all, any, not, inside, " +
		"not_inside and has. Returns matches with positions and placeholder captures."

	validateToolDescription = "Check YAML rule documents without running them. Reports schema " +
		"violations and rules without an affirmative pattern or kind term."
)

// ServerDeps holds injectable dependencies. Zero values disable the feature.
type ServerDeps struct {
	Logger  *slog.Logger
	Metrics *observability.REDMetrics
	Tracer  trace.Tracer
}

// Server wraps the MCP SDK server with the astrule tools.
type Server struct {
	inner   *mcpsdk.Server
	tools   []string
	metrics *observability.REDMetrics
	tracer  trace.Tracer
}

// NewServer creates a server with every tool registered.
func NewServer(deps ServerDeps) *Server {
	opts := &mcpsdk.ServerOptions{}
	if deps.Logger != nil {
		opts.Logger = deps.Logger
	}

	srv := &Server{
		inner:   mcpsdk.NewServer(&mcpsdk.Implementation{Name: serverName, Version: version.Get().Version}, opts),
		metrics: deps.Metrics,
		tracer:  deps.Tracer,
	}

	addTool(srv, ToolNameSearch, searchToolDescription, handleSearch)
	addTool(srv, ToolNameValidate, validateToolDescription, handleValidate)

	return srv
}

// ListToolNames returns the sorted names of the registered tools.
func (s *Server) ListToolNames() []string {
	names := slices.Clone(s.tools)
	slices.Sort(names)

	return names
}

// Run serves on stdio until ctx is canceled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport serves on transport until ctx is canceled or the
// connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	if err := s.inner.Run(ctx, transport); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

type toolHandler[In any] func(context.Context, *mcpsdk.CallToolRequest, In) (*mcpsdk.CallToolResult, ToolOutput, error)

func addTool[In any](s *Server, name, description string, handler toolHandler[In]) {
	wrapped := withMetrics(s.metrics, name, withTracing(s.tracer, name, handler))
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{Name: name, Description: description},
		mcpsdk.ToolHandlerFor[In, ToolOutput](wrapped))

	s.tools = append(s.tools, name)
}

// withTracing starts a span per tool call.
func withTracing[In any](tracer trace.Tracer, name string, handler toolHandler[In]) toolHandler[In] {
	if tracer == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input In) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, mcpSpanPrefix+name,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", name)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)
		if err != nil || (result != nil && result.IsError) {
			span.SetStatus(codes.Error, "tool call failed")
		}

		return result, output, err
	}
}

// withMetrics records RED metrics per tool call.
func withMetrics[In any](metrics *observability.REDMetrics, name string, handler toolHandler[In]) toolHandler[In] {
	if metrics == nil {
		return handler
	}

	op := mcpSpanPrefix + name

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input In) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()

		done := metrics.TrackInflight(ctx, op)
		defer done()

		result, output, err := handler(ctx, req, input)

		status := observability.StatusOK
		if err != nil || (result != nil && result.IsError) {
			status = observability.StatusError
		}

		metrics.RecordRequest(ctx, op, status, time.Since(start))

		return result, output, err
	}
}
