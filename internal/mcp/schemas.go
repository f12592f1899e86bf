package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// searchMemoryTool returns the tool definition for search_memory
func searchMemoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_memory",
		Description: "Search a user's conversation memory across all their planning projects",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"user_id": map[string]interface{}{
					"type":        "string",
					"description": "User whose memory to search",
				},
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (Korean or English)",
				},
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "Scoring mode",
					"enum":        []string{"tfidf", "vector", "hybrid"},
					"default":     "hybrid",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results (1-50)",
					"default":     5,
					"minimum":     1,
					"maximum":     50,
				},
				"project_id": map[string]interface{}{
					"type":        "string",
					"description": "Restrict the search to one project (UUID)",
				},
			},
			Required: []string{"user_id", "query"},
		},
	}
}

// fetchReferenceContextTool returns the tool definition for fetch_reference_context
func fetchReferenceContextTool() mcp.Tool {
	return mcp.Tool{
		Name:        "fetch_reference_context",
		Description: "Detect a back-reference in a message and fetch related turns from the user's other projects",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"user_id": map[string]interface{}{
					"type":        "string",
					"description": "User the message belongs to",
				},
				"project_id": map[string]interface{}{
					"type":        "string",
					"description": "Current project (UUID); its turns are excluded",
				},
				"message": map[string]interface{}{
					"type":        "string",
					"description": "The user's message",
				},
			},
			Required: []string{"user_id", "project_id", "message"},
		},
	}
}

// exportMemoryTool returns the tool definition for export_memory
func exportMemoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "export_memory",
		Description: "Export a user's full conversation memory: every project with its turns",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"user_id": map[string]interface{}{
					"type":        "string",
					"description": "User whose memory to export",
				},
			},
			Required: []string{"user_id"},
		},
	}
}
