package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/sweeney/charge-client/internal/hal"
	"github.com/sweeney/charge-client/internal/logic"
	"github.com/sweeney/charge-client/internal/node"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Probe both batteries once and print the readings",
	Long: `Probe runs the channel selection and one averaged OCV reading, prints the
result and exits. The charger stays off and nothing is sent to the master.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := openHAL()
		if err != nil {
			return err
		}
		defer func() {
			if err := h.Close(); err != nil {
				log.Printf("hal close: %v", err)
			}
		}()
		return executeProbe(h, nodeConfig())
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

// probeReport is what one probe learned.
type probeReport struct {
	Probe    logic.Probe
	Battery  int
	Interval int
	OCV      logic.Sample
	Err      error // classification of OCV, nil when valid
}

func (r probeReport) String() string {
	verdict := "VALID"
	if r.Err != nil {
		verdict = fmt.Sprintf("INVALID (%v)", r.Err)
	}
	return fmt.Sprintf("v0=%d float=%d v1=%d toggled=%v battery=%d interval=%d ocv=%d %s",
		r.Probe.V0, r.Probe.Float, r.Probe.V1, r.Probe.Toggled, r.Battery, r.Interval, r.OCV, verdict)
}

func runProbe(h hal.HAL, cfg node.Config) (probeReport, error) {
	cycle, err := node.NewCycle(h, cfg, nil, nil)
	if err != nil {
		return probeReport{}, err
	}
	if err := cycle.Start(); err != nil {
		return probeReport{}, err
	}

	p, err := cycle.Selector().ProbeAndSelect()
	if err != nil {
		return probeReport{}, fmt.Errorf("probe: %w", err)
	}
	ocv, err := cycle.Sampler().SampleAveraged()
	if err != nil {
		return probeReport{}, fmt.Errorf("ocv sample: %w", err)
	}

	return probeReport{
		Probe:    p,
		Battery:  cycle.Selector().Battery(),
		Interval: logic.ComputeInterval(p.V0, p.V1, cfg.RecheckSlow),
		OCV:      ocv,
		Err:      logic.Check(int(ocv)),
	}, nil
}

func executeProbe(h hal.HAL, cfg node.Config) error {
	r, err := runProbe(h, cfg)
	if err != nil {
		return err
	}
	fmt.Println(r)
	return nil
}
