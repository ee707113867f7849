// DTS Reader - Utility to display contents of DTS test exports
// This program lists per-track metadata for a DTS folder, or dumps the
// decoded header of a single .chn channel file.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"dts2uff/internal/converter"
	"dts2uff/internal/dts"
	"dts2uff/internal/version"

	"github.com/spf13/cobra"
)

var (
	tracksFile   string
	outputFormat string
	showVersion  bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "dts-reader [folder|file.chn]",
	Short: "Display contents of DTS test exports",
	Long: `DTS Reader displays the channel metadata of a DTS test folder, or the
decoded binary header of a single .chn file. Useful for verifying an export
before converting it to UFF.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion {
			fmt.Println(version.GetVersionInfo("DTS Reader"))
			return
		}

		if len(args) == 0 {
			fmt.Fprintf(os.Stderr, "Error: folder or .chn file path required\n")
			cmd.Usage()
			os.Exit(1)
		}

		if err := display(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.Flags().StringVarP(&tracksFile, "tracks", "t", "", "track name list applied positionally to the channels")
	rootCmd.Flags().StringVarP(&outputFormat, "format", "f", "table", "output format (table, json)")
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "show version information")
}

// display routes to the folder listing or the single-file header dump
func display(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access %s: %w", path, err)
	}
	if info.IsDir() {
		return displayFolder(path)
	}
	return displayHeader(path)
}

// displayFolder lists the joined track metadata of a DTS test folder
func displayFolder(dir string) error {
	tracks, warnings, err := converter.ListTracks(dir, tracksFile)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		payload := map[string]interface{}{
			"source": dir,
			"count":  len(tracks),
			"tracks": tracks,
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(payload)
	}

	fmt.Printf("DTS FOLDER %s: %d track(s)\n\n", dir, len(tracks))
	fmt.Printf("%-4s %-24s %-28s %12s %10s %-12s %-6s\n",
		"Ch", "Name", "Description", "Rate (Hz)", "Points", "Serial", "Unit")
	for _, track := range tracks {
		fmt.Printf("%-4d %-24.24s %-28.28s %12.1f %10d %-12.12s %-6.6s\n",
			track.Channel, track.Name, track.Description,
			track.SampleRate, track.PointCount, track.Serial, track.Unit)
	}

	for _, warning := range warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
	}
	return nil
}

// displayHeader dumps the decoded binary header of one .chn file
func displayHeader(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	hdr, err := dts.ReadChannelHeader(file)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(hdr)
	}

	fmt.Printf("CHANNEL FILE %s\n\n", path)
	fmt.Printf("Header version:        %d\n", hdr.HeaderVersion)
	fmt.Printf("Data start offset:     %d\n", hdr.DataStart)
	fmt.Printf("Point count:           %d\n", hdr.PointCount)
	fmt.Printf("Bit length:            %d (signed: %t)\n", hdr.BitLength, hdr.Signed)
	fmt.Printf("Sample rate:           %.3f Hz\n", hdr.SampleRate)
	fmt.Printf("Trigger count:         %d\n", hdr.TriggerCount)
	fmt.Printf("First trigger sample:  %d\n", hdr.FirstTriggerSample)
	fmt.Printf("Pre-test zero ADC:     %d\n", hdr.PreTestZeroLevelADC)
	fmt.Printf("Data zero ADC:         %d\n", hdr.DataZeroLevelADC)
	fmt.Printf("Scale factor (mV):     %g\n", hdr.ScaleFactorMv)
	fmt.Printf("Scale factor (EU):     %g\n", hdr.ScaleFactorEu)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
