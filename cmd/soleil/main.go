package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/du-phan/apero-soleil/internal/config"
	"github.com/du-phan/apero-soleil/internal/engine"
	"github.com/du-phan/apero-soleil/internal/raster"
	"github.com/du-phan/apero-soleil/internal/server"
)

// Options defines all CLI flags and env vars for the API server.
// Flags: --host, --port, --artifact, --duckdb
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_ARTIFACT, SERVICE_DUCKDB
type Options struct {
	Host     string `doc:"Host to bind to" default:"0.0.0.0"`
	Port     int    `doc:"Port to listen on" short:"p" default:"8090"`
	Artifact string `doc:"Path to the published GeoJSON artifact" default:"terraces.geojson"`
	Duckdb   string `doc:"Path to the diagnostics DuckDB store (optional)" default:""`
}

func newServer(opts *Options) *server.Server {
	return server.New(server.Config{
		Host:         opts.Host,
		Port:         fmt.Sprintf("%d", opts.Port),
		ArtifactPath: opts.Artifact,
		DuckDBPath:   opts.Duckdb,
	})
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		srv := newServer(opts)

		hooks.OnStart(func() {
			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("apero-soleil API server starting...\n")
			fmt.Printf("  Server:   %s\n", baseURL)
			fmt.Printf("  Artifact: %s\n", opts.Artifact)
			fmt.Println()
			fmt.Printf("  Terraces: %s/api/v1/terraces\n", baseURL)
			fmt.Printf("  Docs:     %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI:  %s/openapi.json\n", baseURL)
			fmt.Println()

			if err := http.ListenAndServe(addr, srv); err != nil {
				log.Fatalf("Server error: %v", err)
			}
		})
	})

	cli.Root().Use = "soleil"
	cli.Root().Short = "Sunlight classification for Paris terraces"
	cli.Root().Version = "0.1.0"

	cli.Root().AddCommand(newComputeCmd())
	cli.Root().AddCommand(newPackCmd())
	cli.Root().AddCommand(newSpecCmd(cli))

	cli.Run()
}

// newComputeCmd builds the batch subcommand: one full run of the
// classification pipeline for a single date.
func newComputeCmd() *cobra.Command {
	var (
		configPath string
		dsmPath    string
		registry   string
		date       string
		output     string
		cloudFile  string
		duckdb     string
		workers    int
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Classify every terrace for every time slot of a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			// Flags override the config file.
			if dsmPath != "" {
				cfg.DSMPath = dsmPath
			}
			if registry != "" {
				cfg.RegistryPath = registry
			}
			if date != "" {
				cfg.Date = date
			}
			if output != "" {
				cfg.OutputPath = output
			}
			if cloudFile != "" {
				cfg.CloudFile = cloudFile
			}
			if duckdb != "" {
				cfg.DuckDBPath = duckdb
			}
			if workers > 0 {
				cfg.Workers = workers
			}
			if verbose {
				cfg.Verbose = true
			}
			if cfg.Date == "" {
				cfg.Date = time.Now().Format("2006-01-02")
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
			summary, err := engine.New(cfg, logger, nil).Run(cmd.Context())
			if err != nil {
				switch {
				case errors.Is(err, engine.ErrInputNotFound):
					return fmt.Errorf("missing input: %w", err)
				case errors.Is(err, engine.ErrSerialization):
					return fmt.Errorf("could not publish output: %w", err)
				}
				return err
			}

			fmt.Printf("%s: %d/%d terraces classified, %d sunlit slots, %s\n",
				summary.Date, summary.Processed, summary.Terraces,
				summary.SunlitSlots, summary.Duration.Round(time.Millisecond))
			if !summary.WeatherAdjusted {
				fmt.Println("warning: cloud cover unavailable, output is weather-unadjusted")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	cmd.Flags().StringVar(&dsmPath, "dsm", "", "Path to the DSM container")
	cmd.Flags().StringVar(&registry, "registry", "", "Path to the terrace registry (.csv or .geojson)")
	cmd.Flags().StringVarP(&date, "date", "d", "", "Target date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output GeoJSON path")
	cmd.Flags().StringVar(&cloudFile, "cloud-file", "", "Local hourly cloud cover JSON (skips the weather API)")
	cmd.Flags().StringVar(&duckdb, "duckdb", "", "DuckDB path for run diagnostics")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Worker count (default NumCPU)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Emit per-slot obstruction diagnostics")
	return cmd
}

// newPackCmd builds the DSM import subcommand: ESRI ASCII grid in,
// compressed container out.
func newPackCmd() *cobra.Command {
	var (
		output    string
		originLat float64
		originLon float64
		cellSize  float64
		label     string
	)

	cmd := &cobra.Command{
		Use:   "pack <grid.asc>",
		Short: "Pack an ESRI ASCII grid into the DSM container format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			grid, err := raster.ParseASCIIGrid(f, originLat, originLon, cellSize)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", args[0], err)
			}
			if label != "" {
				grid.SetLabel(label)
			}

			if err := raster.Write(output, grid); err != nil {
				return err
			}
			hdr := grid.Header()
			fmt.Printf("packed %dx%d cells at %gm into %s\n", hdr.Width, hdr.Height, hdr.CellSize, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "dsm.dsm", "Output container path")
	cmd.Flags().Float64Var(&originLat, "origin-lat", 0, "Latitude of the grid's north-west corner (first matrix row)")
	cmd.Flags().Float64Var(&originLon, "origin-lon", 0, "Longitude of the grid's north-west corner")
	cmd.Flags().Float64Var(&cellSize, "cell-size", 1, "Cell size in meters")
	cmd.Flags().StringVar(&label, "label", "", "Free-form label stored in the container header")
	cmd.MarkFlagRequired("origin-lat")
	cmd.MarkFlagRequired("origin-lon")
	return cmd
}

// newSpecCmd exports the OpenAPI description.
func newSpecCmd(cli humacli.CLI) *cobra.Command {
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv := newServer(opts)
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			var err error
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	return specCmd
}
