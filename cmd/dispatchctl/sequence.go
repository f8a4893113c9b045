package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"dispatch-service/internal/entity"
	"dispatch-service/internal/geo"
	"dispatch-service/internal/route"
)

// stopRecord is one line of a stops file.
type stopRecord struct {
	ID       uuid.UUID `json:"id"`
	Lat      float64   `json:"lat"`
	Lng      float64   `json:"lng"`
	Priority string    `json:"priority"`
}

func newSequenceCmd() *cobra.Command {
	var (
		file     string
		lat, lng float64
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "sequence",
		Short: "Print the visit order for a file of stops",
		Long: `Reads a JSON array of stops ({"id","lat","lng","priority"}) and prints the
order a technician starting at --lat/--lng would visit them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stops, err := readStops(file)
			if err != nil {
				return err
			}
			plan, err := route.Sequence(geo.LatLng{Lat: lat, Lng: lng}, stops)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(plan)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tSTOP\tLAT\tLNG\tMILES")
			for i, leg := range plan.Legs {
				fmt.Fprintf(tw, "%d\t%s\t%.5f\t%.5f\t%.2f\n", i+1, leg.StopID, leg.To.Lat, leg.To.Lng, leg.Miles)
			}
			fmt.Fprintf(tw, "\t\t\ttotal\t%.2f\n", plan.TotalMiles)
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to the stops JSON file")
	cmd.Flags().Float64Var(&lat, "lat", 0, "start latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "start longitude")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full plan as JSON")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readStops(path string) ([]entity.Stop, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read stops file")
	}
	var records []stopRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}

	stops := make([]entity.Stop, len(records))
	for i, r := range records {
		if r.ID == uuid.Nil {
			return nil, errors.Newf("stop %d: id is required", i)
		}
		p, ok := entity.ParsePriority(r.Priority)
		if !ok {
			return nil, errors.Newf("stop %d: unknown priority %q", i, r.Priority)
		}
		stops[i] = entity.Stop{ID: r.ID, Location: geo.LatLng{Lat: r.Lat, Lng: r.Lng}, Priority: p}
	}
	return stops, nil
}
