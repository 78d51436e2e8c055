package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// analyzeRequest mirrors the Sitelens API request model.
type analyzeRequest struct {
	URL       string `json:"url"`
	Mobile    bool   `json:"mobile,omitempty"`
	WaitUntil string `json:"wait_until,omitempty"`
	Stealth   bool   `json:"stealth,omitempty"`
}

// analyzeResponse mirrors the Sitelens API response model.
type analyzeResponse struct {
	Success    bool    `json:"success"`
	FinalURL   string  `json:"final_url"`
	TimingMs   int64   `json:"timing_ms"`
	HTTPStatus int     `json:"http_status"`
	Title      *string `json:"title"`
	Meta       struct {
		Description *string `json:"description"`
		Robots      *string `json:"robots"`
		Canonical   *string `json:"canonical"`
	} `json:"meta"`
	Headings struct {
		H1 []string `json:"h1"`
		H2 []string `json:"h2"`
	} `json:"headings"`
	Links struct {
		Internal int `json:"internal"`
		External int `json:"external"`
		Nofollow int `json:"nofollow"`
	} `json:"links"`
	SchemaTypes []string `json:"schema_types"`
	Issues      []string `json:"issues"`
	Error       *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	apiURL := os.Getenv("SITELENS_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("SITELENS_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "SITELENS_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"sitelens",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	analyzePageTool := mcp.NewTool("analyze_page",
		mcp.WithDescription("Render a web page in a headless browser and return its SEO signals (title, meta tags, headings, links, structured data) plus a list of detected issues."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the web page to analyze"),
		),
		mcp.WithBoolean("mobile",
			mcp.Description("Render with a mobile viewport and user agent instead of desktop"),
		),
		mcp.WithString("wait_until",
			mcp.Description("Wait strategy: 'networkidle' (default, waits for deferred scripts), 'load', or 'domcontentloaded'"),
			mcp.Enum("networkidle", "load", "domcontentloaded"),
		),
		mcp.WithBoolean("stealth",
			mcp.Description("Enable anti-bot-detection evasions for sites that block headless browsers"),
		),
	)

	s.AddTool(analyzePageTool, handleAnalyzePage(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleAnalyzePage(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 150 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		reqBody := analyzeRequest{
			URL:       url,
			Mobile:    request.GetBool("mobile", false),
			WaitUntil: request.GetString("wait_until", ""),
			Stealth:   request.GetBool("stealth", false),
		}

		body, err := json.Marshal(reqBody)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal request: %v", err)), nil
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/api/v1/analyze", bytes.NewReader(body))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("X-API-Key", apiKey)

		resp, err := client.Do(httpReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read response: %v", err)), nil
		}

		var analyzeResp analyzeResponse
		if err := json.Unmarshal(respBody, &analyzeResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		if !analyzeResp.Success {
			errMsg := "analysis failed"
			if analyzeResp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", analyzeResp.Error.Code, analyzeResp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		return mcp.NewToolResultText(formatReport(&analyzeResp)), nil
	}
}

// formatReport renders the analysis as readable text for the tool result.
func formatReport(r *analyzeResponse) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("URL: %s (HTTP %d, %dms)\n", r.FinalURL, r.HTTPStatus, r.TimingMs))
	if r.Title != nil {
		sb.WriteString("Title: " + *r.Title + "\n")
	} else {
		sb.WriteString("Title: (missing)\n")
	}
	if r.Meta.Description != nil {
		sb.WriteString("Description: " + *r.Meta.Description + "\n")
	}
	if r.Meta.Canonical != nil {
		sb.WriteString("Canonical: " + *r.Meta.Canonical + "\n")
	}

	sb.WriteString(fmt.Sprintf("\nH1 (%d): %s\n", len(r.Headings.H1), strings.Join(r.Headings.H1, " | ")))
	sb.WriteString(fmt.Sprintf("Links: %d internal, %d external, %d nofollow\n",
		r.Links.Internal, r.Links.External, r.Links.Nofollow))

	if len(r.SchemaTypes) > 0 {
		sb.WriteString("Structured data: " + strings.Join(r.SchemaTypes, ", ") + "\n")
	}

	if len(r.Issues) > 0 {
		sb.WriteString(fmt.Sprintf("\nIssues (%d):\n", len(r.Issues)))
		for _, issue := range r.Issues {
			sb.WriteString("  - " + issue + "\n")
		}
	} else {
		sb.WriteString("\nNo issues detected.\n")
	}

	return sb.String()
}
