package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"
)

var (
	syncScopeID string
	syncForce   bool

	statusScopeID string

	searchScopeID string
	searchTopN    int
)

func init() {
	syncCmd.Flags().StringVar(&syncScopeID, "scope", "", "scope (project) id")
	syncCmd.Flags().BoolVar(&syncForce, "force", false, "drop and rebuild the cache collection")

	statusCmd.Flags().StringVar(&statusScopeID, "scope", "", "scope (project) id")

	searchCmd.Flags().StringVar(&searchScopeID, "scope", "", "scope (project) id")
	searchCmd.Flags().IntVar(&searchTopN, "top", 5, "maximum number of results")
}

var syncCmd = &cobra.Command{
	Use:   "sync <tenant-id>",
	Short: "Synchronize a tenant's documents into the cache",
	Long: `Trigger a sync pass on a running doccached server.

Examples:
  doccached sync acme --scope proj-1
  doccached sync acme --scope proj-1 --force`,
	Args: cobra.ExactArgs(1),
	RunE: runSync,
}

var statusCmd = &cobra.Command{
	Use:   "status <tenant-id>",
	Short: "Show cache/primary alignment for a tenant scope",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var searchCmd = &cobra.Command{
	Use:   "search <tenant-id> <query>",
	Short: "Search a tenant's cached documents",
	Long: `Run a retrieval query through the fallback chain on a running server.

Examples:
  doccached search acme "concurrent users" --scope proj-1 --top 3`,
	Args: cobra.ExactArgs(2),
	RunE: runSearch,
}

func apiClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}

func postJSON(path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := apiClient().Post(serverURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request failed (is the server running at %s?): %w", serverURL, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

func getJSON(path string, out any) error {
	resp, err := apiClient().Get(serverURL + path)
	if err != nil {
		return fmt.Errorf("request failed (is the server running at %s?): %w", serverURL, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		// Sync failures carry a structured body worth decoding; anything
		// else surfaces raw.
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("server returned %s: %s", resp.Status, bytes.TrimSpace(data))
		}
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func runSync(cmd *cobra.Command, args []string) error {
	var result struct {
		Success        bool   `json:"success"`
		Message        string `json:"message"`
		DocumentsFound int    `json:"documents_found"`
		ChunksSynced   int    `json:"chunks_synced"`
		AlreadyWarm    bool   `json:"already_warm"`
		InProgress     bool   `json:"in_progress"`
	}
	err := postJSON("/api/v1/sync", map[string]any{
		"tenant_id": args[0],
		"scope_id":  syncScopeID,
		"force":     syncForce,
	}, &result)
	if err != nil {
		return err
	}

	switch {
	case result.InProgress:
		fmt.Println("sync already in progress")
	case result.AlreadyWarm:
		fmt.Println("cache already warm (use --force to rebuild)")
	case result.Success:
		fmt.Printf("synced %d chunks from %d documents\n", result.ChunksSynced, result.DocumentsFound)
	default:
		return fmt.Errorf("sync failed: %s", result.Message)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	var st struct {
		CacheChunks      int  `json:"cache_chunks"`
		PrimaryDocuments int  `json:"primary_documents"`
		IsSynced         bool `json:"is_synced"`
		SyncNeeded       bool `json:"sync_needed"`
	}
	params := url.Values{"tenant_id": {args[0]}, "scope_id": {statusScopeID}}
	if err := getJSON("/api/v1/status?"+params.Encode(), &st); err != nil {
		return err
	}

	fmt.Printf("cache chunks:      %d\n", st.CacheChunks)
	fmt.Printf("primary documents: %d\n", st.PrimaryDocuments)
	fmt.Printf("synced:            %v\n", st.IsSynced)
	fmt.Printf("sync needed:       %v\n", st.SyncNeeded)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	var resp struct {
		Results []string `json:"results"`
		Count   int      `json:"count"`
	}
	err := postJSON("/api/v1/search", map[string]any{
		"tenant_id": args[0],
		"scope_id":  searchScopeID,
		"query":     args[1],
		"top_n":     searchTopN,
	}, &resp)
	if err != nil {
		return err
	}

	if resp.Count == 0 {
		fmt.Println("no results")
		return nil
	}
	for i, r := range resp.Results {
		if i > 0 {
			fmt.Println("---")
		}
		fmt.Println(r)
	}
	return nil
}
