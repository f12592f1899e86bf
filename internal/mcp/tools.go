package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/socraticlab/recall/internal/ranker"
	"github.com/socraticlab/recall/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeEmptyQuery    = -32004 // Query parameter is empty
)

// handleSearchMemory handles the search_memory tool invocation
func (s *Server) handleSearchMemory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	userID, ok := args["user_id"].(string)
	if !ok || userID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "user_id parameter is required", nil)
	}
	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required", nil)
	}

	req := ranker.Request{
		UserID: userID,
		Query:  query,
		Mode:   types.SearchMode(getStringDefault(args, "mode", string(types.ModeHybrid))),
		Limit:  getIntDefault(args, "limit", ranker.DefaultLimit),
	}
	if raw, ok := args["project_id"].(string); ok && raw != "" {
		projectID, err := uuid.Parse(raw)
		if err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "project_id must be a UUID", map[string]interface{}{
				"value": raw,
			})
		}
		req.ProjectID = &projectID
	}

	resp, err := s.ranker.Search(ctx, req)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"mode":    resp.Mode,
		"results": resp.Results,
	})), nil
}

// handleFetchReferenceContext handles the fetch_reference_context tool invocation
func (s *Server) handleFetchReferenceContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	userID, ok := args["user_id"].(string)
	if !ok || userID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "user_id parameter is required", nil)
	}
	raw, ok := args["project_id"].(string)
	if !ok || raw == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "project_id parameter is required", nil)
	}
	projectID, err := uuid.Parse(raw)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "project_id must be a UUID", map[string]interface{}{
			"value": raw,
		})
	}
	message, ok := args["message"].(string)
	if !ok || message == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "message parameter is required", nil)
	}

	detected := s.detector.Detect(message)
	response := map[string]interface{}{"detected": detected}
	if detected {
		bundle, err := s.detector.FetchContext(ctx, userID, projectID, message)
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "reference lookup failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		response["context"] = bundle
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleExportMemory handles the export_memory tool invocation
func (s *Server) handleExportMemory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	userID, ok := args["user_id"].(string)
	if !ok || userID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "user_id parameter is required", nil)
	}

	projects, err := s.store.ListProjects(ctx, userID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list projects", map[string]interface{}{
			"error": err.Error(),
		})
	}

	memories := make([]map[string]interface{}, 0, len(projects))
	for _, p := range projects {
		turns, err := s.store.ListTurns(ctx, userID, p.ID)
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "failed to list turns", map[string]interface{}{
				"error": err.Error(),
			})
		}
		memories = append(memories, map[string]interface{}{
			"project": p,
			"turns":   turns,
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"user":     userID,
		"projects": memories,
	})), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}
