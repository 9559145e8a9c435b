package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/urbanism-zoning/internal/core/domain"
	"github.com/kirillkom/urbanism-zoning/internal/core/ports"
)

const (
	serverName = "urbanism-zoning"

	toolLookupZoning = "lookup_zoning"
	toolListCities   = "list_cities"
)

// Server exposes zoning lookup and the city directory as MCP tools.
type Server struct {
	zoning ports.ZoningLookupService
	cities ports.CityDirectory
	mcp    *server.MCPServer
}

func NewServer(zoning ports.ZoningLookupService, cities ports.CityDirectory, version string) *Server {
	s := &Server{
		zoning: zoning,
		cities: cities,
		mcp:    server.NewMCPServer(serverName, version, server.WithToolCapabilities(false)),
	}

	s.mcp.AddTool(mcp.NewTool(toolLookupZoning,
		mcp.WithDescription("Resolve a street address to the urban planning zones that contain it, with their regulation attributes (POT, CUT, heights, regulation PDF)."),
		mcp.WithString("address", mcp.Required(), mcp.Description("Street address, e.g. \"Strada Memorandumului 28\"")),
		mcp.WithString("city_id", mcp.Description("City identifier from list_cities. Defaults to the configured city.")),
	), s.lookupZoning)

	s.mcp.AddTool(mcp.NewTool(toolListCities,
		mcp.WithDescription("List the cities whose urbanism portals are supported, grouped by county."),
		mcp.WithString("county", mcp.Description("Only return cities in this county")),
	), s.listCities)

	return s
}

// ServeStdio blocks until stdin closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) lookupZoning(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	address, err := req.RequireString("address")
	if err != nil || strings.TrimSpace(address) == "" {
		return mcp.NewToolResultError("address is required"), nil
	}
	cityID := req.GetString("city_id", "")

	result, err := s.zoning.Lookup(ctx, cityID, address, false)
	if err != nil {
		slog.Warn("mcp_tool_failed", "tool", toolLookupZoning, "city_id", cityID, "error", err)
		return mcp.NewToolResultError(toolErrorMessage(err)), nil
	}
	return jsonResult(result)
}

func (s *Server) listCities(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	county := strings.TrimSpace(req.GetString("county", ""))
	if county != "" {
		return jsonResult(s.cities.CitiesByCounty(county))
	}
	return jsonResult(s.cities.Counties())
}

func toolErrorMessage(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrCityNotFound):
		return "unknown city_id; call list_cities for supported cities"
	case domain.IsKind(err, domain.ErrInvalidInput):
		return err.Error()
	case domain.IsKind(err, domain.ErrTemporary):
		return "the city portal is temporarily unavailable, retry later"
	default:
		return "zoning lookup failed"
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
