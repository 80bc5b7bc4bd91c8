package skeleton

import (
	"fmt"
	"io"
	"os"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mpapenbr/telemetry-replay/log"
	cmdutil "github.com/mpapenbr/telemetry-replay/pkg/cmd/util"
	"github.com/mpapenbr/telemetry-replay/pkg/config"
	"github.com/mpapenbr/telemetry-replay/pkg/model"
	"github.com/mpapenbr/telemetry-replay/pkg/processing"
)

type (
	corner struct {
		X          float64 `yaml:"x"`
		Y          float64 `yaml:"y"`
		Cumulative float64 `yaml:"cumulative"`
		Percent    float64 `yaml:"percent"`
	}
	lapSummary struct {
		Lap     int     `yaml:"lap"`
		Samples int     `yaml:"samples"`
		Seconds float64 `yaml:"seconds"`
	}
	report struct {
		Corners   int          `yaml:"corners"`
		Perimeter float64      `yaml:"perimeter"`
		Samples   int          `yaml:"samples"`
		Skeleton  []corner     `yaml:"skeleton"`
		Laps      []lapSummary `yaml:"laps"`
	}
)

func NewSkeletonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skeleton",
		Short: "prints the extracted track skeleton as yaml",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if config.InputFile == "" {
				return fmt.Errorf("--input is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return printSkeleton()
		},
	}
	cmd.Flags().StringVarP(&config.OutputFile, "output", "o", "",
		"output file (default stdout)")
	cmdutil.AddInputFlags(cmd)
	return cmd
}

func printSkeleton() error {
	res, _, err := cmdutil.ReadInput()
	if err != nil {
		log.Error("could not process input", log.ErrorField(err))
		return err
	}
	var w io.Writer = os.Stdout
	if config.OutputFile != "" {
		f, err := os.Create(config.OutputFile)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return writeReport(w, res)
}

func writeReport(w io.Writer, res *processing.Result) error {
	sk := res.Skeleton
	r := report{
		Corners:   sk.Len(),
		Perimeter: sk.Perimeter(),
		Samples:   len(res.Samples),
	}
	for i, p := range sk.Points() {
		r.Skeleton = append(r.Skeleton, corner{
			X:          p.X,
			Y:          p.Y,
			Cumulative: sk.CumulativeLength(i),
			Percent:    sk.CumulativeLength(i) / sk.Perimeter(),
		})
	}
	byLap := lo.GroupBy(res.Samples, func(s model.DerivedSample) int { return s.Lap })
	for _, l := range lo.Uniq(lo.Map(res.Samples,
		func(s model.DerivedSample, _ int) int { return s.Lap })) {
		samples := byLap[l]
		first, last := samples[0], samples[len(samples)-1]
		r.Laps = append(r.Laps, lapSummary{
			Lap:     l,
			Samples: len(samples),
			Seconds: last.Date.Sub(first.Date).Seconds(),
		})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(r)
}
