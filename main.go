// dts2uff - DTS test export to UFF Type 58 converter
// This program reads a DTS data-acquisition export (one .dts XML descriptor
// plus one binary .chn file per channel), scales the raw samples to
// engineering units and writes them as UFF Type 58 datasets.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"dts2uff/internal/config"
	"dts2uff/internal/converter"
	"dts2uff/internal/dts"
	"dts2uff/internal/uff"
	"dts2uff/internal/version"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Command line flag variables
var (
	cfgFile     string // Configuration file path
	inputDir    string // DTS folder containing .dts and .chn files
	tracksFile  string // Track name list path
	output      string // Output UFF file path
	encoding    string // Sample encoding: ascii or binary
	appendFile  bool   // Append to an existing UFF file
	sampleSlice string // Optional start:end sample slice
	trackFilter string // Optional comma-separated track subset
	workers     int    // Concurrent track readers
	wideFields  bool   // 20-character ASCII ordinate fields
	verbose     bool   // Enable verbose output
	showVersion bool   // Show version information
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dts2uff",
	Short: "Convert DTS test exports to UFF Type 58 files",
	Long: `dts2uff converts a DTS test folder (.dts descriptor plus .chn channel
files) into a UFF Type 58 file, scaling raw ADC counts to engineering units
using the calibration metadata in the descriptor.`,
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion {
			fmt.Println(version.GetVersionInfo("dts2uff"))
			return
		}
		if err := runConvert(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

// init initializes the CLI flags and configuration
func init() {
	// Initialize configuration when cobra starts
	cobra.OnInitialize(initConfig)

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./dts2uff.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Command-specific flags
	rootCmd.Flags().StringVarP(&inputDir, "input-dir", "i", ".", "DTS folder containing .dts and .chn files")
	rootCmd.Flags().StringVarP(&tracksFile, "tracks", "t", "tracks.txt", "text file with track names (newline or comma separated)")
	rootCmd.Flags().StringVarP(&output, "output", "o", "output.uff", "output UFF file path")
	rootCmd.Flags().StringVarP(&encoding, "encoding", "e", "ascii", "sample encoding (ascii|binary)")
	rootCmd.Flags().BoolVar(&appendFile, "append", false, "append datasets to an existing UFF file")
	rootCmd.Flags().StringVar(&sampleSlice, "slice", "", "sample slice start:end (end exclusive, native sample units)")
	rootCmd.Flags().StringVar(&trackFilter, "track-list", "", "comma-separated subset of track names to write")
	rootCmd.Flags().IntVar(&workers, "workers", 4, "concurrent track readers")
	rootCmd.Flags().BoolVar(&wideFields, "wide-fields", false, "use 20-character ASCII ordinate fields")
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "show version information")

	// Bind command line flags to viper configuration keys
	viper.BindPFlag("input.dir", rootCmd.Flags().Lookup("input-dir"))
	viper.BindPFlag("input.tracks_file", rootCmd.Flags().Lookup("tracks"))
	viper.BindPFlag("output.path", rootCmd.Flags().Lookup("output"))
	viper.BindPFlag("output.encoding", rootCmd.Flags().Lookup("encoding"))
	viper.BindPFlag("output.append", rootCmd.Flags().Lookup("append"))
	viper.BindPFlag("output.slice", rootCmd.Flags().Lookup("slice"))
	viper.BindPFlag("output.workers", rootCmd.Flags().Lookup("workers"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for dts2uff.yaml in current directory
		viper.SetConfigName("dts2uff")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	// Read in environment variables that match
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// runConvert is the main application logic
func runConvert() error {
	// Load default configuration
	cfg := config.DefaultConfig()

	// Override with values from config file and command line flags
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// The track filter flag is comma-separated on the command line
	if trackFilter != "" {
		for _, name := range strings.Split(trackFilter, ",") {
			if name = strings.TrimSpace(name); name != "" {
				cfg.Output.Tracks = append(cfg.Output.Tracks, name)
			}
		}
	}

	enc, err := uff.ParseEncoding(cfg.Output.Encoding)
	if err != nil {
		return err
	}

	var slice *dts.SampleRange
	if cfg.Output.Slice != "" {
		slice, err = dts.ParseSampleRange(cfg.Output.Slice)
		if err != nil {
			return err
		}
	}

	// Display startup information
	fmt.Printf("dts2uff starting...\n")
	fmt.Printf("Input: %s\n", cfg.Input.Dir)
	fmt.Printf("Tracks: %s\n", cfg.Input.TracksFile)
	fmt.Printf("Output: %s (%s)\n", cfg.Output.Path, enc)
	if slice != nil {
		fmt.Printf("Slice: [%d:%d)\n", slice.Start, slice.End)
	}

	// Set up signal handling for graceful shutdown; cancellation is honored
	// at track boundaries so no half-written dataset is left behind
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintf(os.Stderr, "\nReceived interrupt signal, stopping after current track...\n")
		cancel()
	}()

	report, err := converter.Convert(ctx, converter.Options{
		InputDir:    cfg.Input.Dir,
		TracksFile:  cfg.Input.TracksFile,
		OutputPath:  cfg.Output.Path,
		Encoding:    enc,
		WideFields:  wideFields,
		Append:      cfg.Output.Append,
		Slice:       slice,
		TrackFilter: cfg.Output.Tracks,
		Workers:     cfg.Output.Workers,
		OnProgress: func(p converter.Progress) {
			if verbose {
				fmt.Printf("  [%d/%d] %s\n", p.Completed, p.Total, p.TrackName)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}

	fmt.Printf("Wrote %d dataset(s) from %d channel(s) to %s\n",
		len(report.ProcessedTracks), report.ChannelCount, cfg.Output.Path)
	for _, warning := range report.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
	}

	return nil
}

// main is the entry point of the application
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
