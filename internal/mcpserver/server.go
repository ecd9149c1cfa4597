// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Waypoint itinerary tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/waypoint/internal/apperr"
	"github.com/starford/waypoint/internal/models"
	"github.com/starford/waypoint/internal/tripservice"
)

const formatURI = "waypoint://trip-format"

// Server wraps the MCP server with Waypoint tools.
type Server struct {
	mcp *server.MCPServer
	svc *tripservice.Service
}

// New creates a new MCP server with all Waypoint tools registered.
func New(svc *tripservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Waypoint",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_places",
		mcp.WithDescription("Full-text search through trip titles and itinerary items."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchPlaces)

	s.mcp.AddTool(mcp.NewTool("list_trips",
		mcp.WithDescription("List trips, most recently updated first."),
	), s.listTrips)

	s.mcp.AddTool(mcp.NewTool("get_trip",
		mcp.WithDescription("Read a trip with its full day-by-day itinerary."),
		mcp.WithString("trip_id", mcp.Required(), mcp.Description("Trip id")),
	), s.getTrip)

	s.mcp.AddTool(mcp.NewTool("create_trip",
		mcp.WithDescription("Create a trip with empty days. Read the format first via "+
			"the get_trip_format tool or the "+formatURI+" resource."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Trip title")),
		mcp.WithString("trip_id", mcp.Description("Optional id (letters, digits, '-' or '_')")),
		mcp.WithString("start_date", mcp.Description("Optional first day, YYYY-MM-DD")),
		mcp.WithNumber("days", mcp.Description("Number of days (default 1)")),
	), s.createTrip)

	s.mcp.AddTool(mcp.NewTool("add_item",
		mcp.WithDescription("Append a place to the end of a day."),
		mcp.WithString("trip_id", mcp.Required(), mcp.Description("Trip id")),
		mcp.WithNumber("day", mcp.Required(), mcp.Description("Day number")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Place name")),
		mcp.WithString("location", mcp.Description("Address or area")),
		mcp.WithString("category", mcp.Description("Category such as sight, food or hotel")),
		mcp.WithString("start_time", mcp.Description("HH:MM")),
		mcp.WithString("end_time", mcp.Description("HH:MM")),
		mcp.WithString("notes", mcp.Description("Free-form notes")),
	), s.addItem)

	s.mcp.AddTool(mcp.NewTool("move_item",
		mcp.WithDescription("Move an item to the end of another day."),
		mcp.WithString("trip_id", mcp.Required(), mcp.Description("Trip id")),
		mcp.WithString("item_id", mcp.Required(), mcp.Description("Item id")),
		mcp.WithNumber("from_day", mcp.Required(), mcp.Description("Current day")),
		mcp.WithNumber("to_day", mcp.Required(), mcp.Description("Target day")),
	), s.moveItem)

	s.mcp.AddTool(mcp.NewTool("reorder_day",
		mcp.WithDescription("Set the full item order of a day. item_ids must list every item of the day exactly once."),
		mcp.WithString("trip_id", mcp.Required(), mcp.Description("Trip id")),
		mcp.WithNumber("day", mcp.Required(), mcp.Description("Day number")),
		mcp.WithArray("item_ids", mcp.Required(), mcp.Description("Item ids in the new order"),
			mcp.Items(map[string]any{"type": "string"})),
	), s.reorderDay)

	s.mcp.AddTool(mcp.NewTool("remove_item",
		mcp.WithDescription("Remove an item from its day."),
		mcp.WithString("trip_id", mcp.Required(), mcp.Description("Trip id")),
		mcp.WithString("item_id", mcp.Required(), mcp.Description("Item id")),
	), s.removeItem)

	s.mcp.AddTool(mcp.NewTool("add_day",
		mcp.WithDescription("Append an empty day."),
		mcp.WithString("trip_id", mcp.Required(), mcp.Description("Trip id")),
	), s.addDay)

	s.mcp.AddTool(mcp.NewTool("delete_day",
		mcp.WithDescription("Remove a day and its items. Later days shift down unless renumber is false."),
		mcp.WithString("trip_id", mcp.Required(), mcp.Description("Trip id")),
		mcp.WithNumber("day", mcp.Required(), mcp.Description("Day number")),
		mcp.WithBoolean("renumber", mcp.Description("Shift later days down (default true)")),
	), s.deleteDay)

	s.mcp.AddTool(mcp.NewTool("duplicate_day",
		mcp.WithDescription("Copy the items of one day to the end of another, creating missing days."),
		mcp.WithString("trip_id", mcp.Required(), mcp.Description("Trip id")),
		mcp.WithNumber("source_day", mcp.Required(), mcp.Description("Day to copy")),
		mcp.WithNumber("dest_day", mcp.Required(), mcp.Description("Day to copy into")),
	), s.duplicateDay)

	s.mcp.AddTool(mcp.NewTool("get_trip_format",
		mcp.WithDescription("Returns the trip document format and editing rules."),
	), s.getTripFormat)

	// Resource: trip format contract.
	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Trip Format",
			mcp.WithResourceDescription("Trip document layout and itinerary editing rules."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readTripFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func tripResult(op string, t *models.Trip, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(apperr.Message(op, err)), nil
	}
	return jsonResult(t)
}

func (s *Server) searchPlaces(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no results"), nil
	}
	return jsonResult(results)
}

func (s *Server) listTrips(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	trips, _, err := s.svc.ListTrips(ctx, 200, 0, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lines := make([]string, 0, len(trips))
	for _, t := range trips {
		lines = append(lines, fmt.Sprintf("%s\t%s\t%d days\t%d items", t.ID, t.Title, t.DayCount, t.ItemCount))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getTrip(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("trip_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	trip, _, err := s.svc.GetTrip(ctx, id)
	return tripResult("load the trip", trip, err)
}

func (s *Server) createTrip(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	trip, err := s.svc.CreateTrip(ctx, tripservice.CreateTripInput{
		ID:        req.GetString("trip_id", ""),
		Title:     title,
		StartDate: req.GetString("start_date", ""),
		Days:      req.GetInt("days", 1),
	})
	return tripResult("create the trip", trip, err)
}

func (s *Server) addItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("trip_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	day, err := req.RequireInt("day")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	trip, err := s.svc.AddItem(ctx, id, day, models.Place{
		Name:      title,
		Location:  req.GetString("location", ""),
		Category:  req.GetString("category", ""),
		StartTime: req.GetString("start_time", ""),
		EndTime:   req.GetString("end_time", ""),
		Notes:     req.GetString("notes", ""),
	})
	return tripResult("add the place", trip, err)
}

func (s *Server) moveItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("trip_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	itemID, err := req.RequireString("item_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	from, err := req.RequireInt("from_day")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := req.RequireInt("to_day")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	trip, err := s.svc.MoveItem(ctx, id, itemID, from, to)
	return tripResult("move the place", trip, err)
}

func (s *Server) reorderDay(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("trip_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	day, err := req.RequireInt("day")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ids, err := req.RequireStringSlice("item_ids")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	trip, err := s.svc.ReorderDay(ctx, id, day, ids)
	return tripResult("reorder the day", trip, err)
}

func (s *Server) removeItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("trip_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	itemID, err := req.RequireString("item_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	trip, err := s.svc.DeleteItem(ctx, id, itemID)
	return tripResult("remove the place", trip, err)
}

func (s *Server) addDay(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("trip_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	trip, err := s.svc.AddDay(ctx, id)
	return tripResult("add a day", trip, err)
}

func (s *Server) deleteDay(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("trip_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	day, err := req.RequireInt("day")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	trip, err := s.svc.DeleteDay(ctx, id, day, req.GetBool("renumber", true))
	return tripResult("remove the day", trip, err)
}

func (s *Server) duplicateDay(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("trip_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	src, err := req.RequireInt("source_day")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dst, err := req.RequireInt("dest_day")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	trip, err := s.svc.DuplicateDay(ctx, id, src, dst)
	return tripResult("duplicate the day", trip, err)
}

func (s *Server) getTripFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(TripFormatContract), nil
}

func (s *Server) readTripFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     TripFormatContract,
		},
	}, nil
}
