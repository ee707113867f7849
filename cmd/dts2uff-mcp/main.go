// dts2uff-mcp - Model Context Protocol front end for the DTS to UFF converter
// This program runs a stdio MCP server exposing the conversion pipeline as
// tools, for clients that speak the MCP standard.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"dts2uff/internal/converter"
	"dts2uff/internal/dts"
	"dts2uff/internal/uff"
	"dts2uff/internal/version"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	s := server.NewMCPServer(
		"dts2uff",
		version.GetVersion(),
		server.WithToolCapabilities(false),
	)

	registerTools(s)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

// registerTools registers all available MCP tools
func registerTools(s *server.MCPServer) {
	// Tool: convert_dts_to_uff
	s.AddTool(
		mcp.NewTool("convert_dts_to_uff",
			mcp.WithDescription("Convert a DTS test folder into a UFF Type 58 file. Provide absolute paths readable by the server. Track names can be newline- or comma-separated in the supplied text file."),
			mcp.WithString("input_dir",
				mcp.Required(),
				mcp.Description("Absolute path to the DTS export directory containing .dts/.chn files. Pass a directory path, not an individual file."),
			),
			mcp.WithString("tracks_file",
				mcp.Required(),
				mcp.Description("Absolute path to the text file with track names (newline or comma separated)."),
			),
			mcp.WithString("output_path",
				mcp.Required(),
				mcp.Description("Absolute path (including filename) where the generated .uff file should be written. The parent directory must already exist."),
			),
			mcp.WithString("format",
				mcp.Description("Output sample encoding: 'ascii' or 'binary'"),
				mcp.DefaultString("ascii"),
			),
			mcp.WithString("track_list_output",
				mcp.Description("Optional comma-separated list of track names to write; omit to write all tracks"),
			),
			mcp.WithString("slice",
				mcp.Description("Optional sample slice 'start:end' in zero-based native sample units, end exclusive, applied identically to every track. Requests outside the available samples return an error instead of clamping."),
			),
		),
		handleConvert,
	)

	// Tool: list_dts_tracks
	s.AddTool(
		mcp.NewTool("list_dts_tracks",
			mcp.WithDescription("List metadata for each track inside a DTS export directory: channel number, name, description, sampling rate, serial number and engineering unit."),
			mcp.WithString("input_dir",
				mcp.Required(),
				mcp.Description("Absolute path to the DTS export directory containing .dts/.chn files."),
			),
			mcp.WithString("tracks_file",
				mcp.Description("Optional absolute path to the text file with track names used for UFF export ordering."),
			),
		),
		handleListTracks,
	)
}

func handleConvert(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	inputDir := strings.TrimSpace(request.GetString("input_dir", ""))
	tracksFile := strings.TrimSpace(request.GetString("tracks_file", ""))
	outputPath := strings.TrimSpace(request.GetString("output_path", ""))
	if inputDir == "" {
		return mcp.NewToolResultError("input_dir cannot be empty"), nil
	}
	if tracksFile == "" {
		return mcp.NewToolResultError("tracks_file cannot be empty"), nil
	}
	if outputPath == "" {
		return mcp.NewToolResultError("output_path cannot be empty"), nil
	}

	encoding, err := uff.ParseEncoding(request.GetString("format", "ascii"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var slice *dts.SampleRange
	if raw := strings.TrimSpace(request.GetString("slice", "")); raw != "" {
		slice, err = dts.ParseSampleRange(raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	var trackFilter []string
	if raw := strings.TrimSpace(request.GetString("track_list_output", "")); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				trackFilter = append(trackFilter, name)
			}
		}
		if len(trackFilter) == 0 {
			return mcp.NewToolResultError("at least one track name must be provided in track_list_output"), nil
		}
	}

	report, err := converter.Convert(ctx, converter.Options{
		InputDir:    inputDir,
		TracksFile:  tracksFile,
		OutputPath:  outputPath,
		Encoding:    encoding,
		Slice:       slice,
		TrackFilter: trackFilter,
		Workers:     4,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var summary strings.Builder
	fmt.Fprintf(&summary, "DTS to UFF conversion succeeded\n\n")
	fmt.Fprintf(&summary, "- Input directory: %s\n", inputDir)
	fmt.Fprintf(&summary, "- Track names file: %s\n", tracksFile)
	fmt.Fprintf(&summary, "- Output file: %s\n", outputPath)
	fmt.Fprintf(&summary, "- Format: %s\n", encoding)
	fmt.Fprintf(&summary, "- Datasets written: %d\n", len(report.ProcessedTracks))
	fmt.Fprintf(&summary, "- Track names provided: %d\n", report.TrackNameCount)
	if len(trackFilter) > 0 {
		fmt.Fprintf(&summary, "- Requested tracks: %s\n", strings.Join(trackFilter, ", "))
	} else {
		fmt.Fprintf(&summary, "- Requested tracks: All\n")
	}
	if slice != nil {
		fmt.Fprintf(&summary, "- Sample slice: %d:%d\n", slice.Start, slice.End)
	} else {
		fmt.Fprintf(&summary, "- Sample slice: full range\n")
	}
	for _, warning := range report.Warnings {
		fmt.Fprintf(&summary, "- Warning: %s\n", warning)
	}

	return mcp.NewToolResultText(summary.String()), nil
}

func handleListTracks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	inputDir := strings.TrimSpace(request.GetString("input_dir", ""))
	if inputDir == "" {
		return mcp.NewToolResultError("input_dir cannot be empty"), nil
	}
	tracksFile := strings.TrimSpace(request.GetString("tracks_file", ""))

	tracks, warnings, err := converter.ListTracks(inputDir, tracksFile)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	payload := map[string]interface{}{
		"source": inputDir,
		"count":  len(tracks),
		"tracks": tracks,
	}
	if len(warnings) > 0 {
		payload["warnings"] = warnings
	}

	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to serialize track metadata: %v", err)), nil
	}

	return mcp.NewToolResultText(string(encoded)), nil
}
