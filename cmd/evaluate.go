package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"alert_console/internal/config"
	"alert_console/internal/engine"
	"alert_console/internal/models"

	"github.com/spf13/cobra"
)

var errNoReading = errors.New("pass at least one of --gas, --ppm, --temp, --hum or --json")

// newEvaluateCmd classifies a single reading against the configured thresholds.
func newEvaluateCmd(cfgPath *string) *cobra.Command {
	var (
		gas, ppm, temp, hum float64
		raw                 string
	)
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Print the alert level and type for one reading",
		Example: `  alert-console evaluate --gas 2500
  alert-console evaluate --json '{"temp":"65"}'
  echo '{"ppm":1200}' | alert-console evaluate --json -`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}

			var r models.SensorReading
			switch {
			case raw != "":
				data := []byte(raw)
				if raw == "-" {
					if data, err = io.ReadAll(cmd.InOrStdin()); err != nil {
						return fmt.Errorf("read stdin: %w", err)
					}
				}
				if err := json.Unmarshal(data, &r); err != nil {
					return fmt.Errorf("decode reading: %w", err)
				}
			default:
				flags := cmd.Flags()
				if flags.Changed("gas") {
					r.Gas = models.Float(gas)
				}
				if flags.Changed("ppm") {
					r.PPM = models.Float(ppm)
				}
				if flags.Changed("temp") {
					r.Temp = models.Float(temp)
				}
				if flags.Changed("hum") {
					r.Hum = models.Float(hum)
				}
			}
			if r.IsEmpty() {
				return errNoReading
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(engine.Evaluate(r, cfg.Alerting.Thresholds))
		},
	}
	cmd.Flags().Float64Var(&gas, "gas", 0, "gas concentration")
	cmd.Flags().Float64Var(&ppm, "ppm", 0, "gas concentration, used when --gas is absent")
	cmd.Flags().Float64Var(&temp, "temp", 0, "temperature in °C")
	cmd.Flags().Float64Var(&hum, "hum", 0, "relative humidity in %")
	cmd.Flags().StringVar(&raw, "json", "", "reading as JSON, or - for stdin")
	return cmd
}
