package main

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/charge-client/internal/hal"
	"github.com/sweeney/charge-client/internal/logic"
	"github.com/sweeney/charge-client/internal/node"
)

var (
	emitCountFlag int
	emitGapFlag   time.Duration
)

var emitCmd = &cobra.Command{
	Use:   "emit <value>",
	Short: "Send a value frame on the report line",
	Long: `Emit sends one frame to the master and exits. Values from 1 to 231 go out
as pulse trains; anything else sends the error signal, which leaves the
line low until the next frame or exit.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("value must be an integer: %w", err)
		}
		h, err := openHAL()
		if err != nil {
			return err
		}
		defer func() {
			if err := h.Close(); err != nil {
				log.Printf("hal close: %v", err)
			}
		}()
		frames, err := runEmit(h, nodeConfig(), v, emitCountFlag, emitGapFlag)
		for _, f := range frames {
			fmt.Println(f)
		}
		return err
	},
}

func init() {
	emitCmd.Flags().IntVarP(&emitCountFlag, "count", "n", 1, "Number of frames to send")
	emitCmd.Flags().DurationVar(&emitGapFlag, "gap", time.Second, "Idle time between frames")
	rootCmd.AddCommand(emitCmd)
}

// runEmit sends count frames of v, returning the frames that went out.
func runEmit(h hal.HAL, cfg node.Config, v, count int, gap time.Duration) ([]logic.Frame, error) {
	if count < 1 {
		return nil, fmt.Errorf("count must be at least 1, got %d", count)
	}
	cycle, err := node.NewCycle(h, cfg, nil, nil)
	if err != nil {
		return nil, err
	}
	if err := cycle.Start(); err != nil {
		return nil, err
	}

	var frames []logic.Frame
	for i := 0; i < count; i++ {
		if i > 0 {
			if err := cycle.Encoder().Idle(); err != nil {
				return frames, err
			}
			h.Delay(gap)
		}
		f, err := cycle.Encoder().Emit(v)
		if err != nil {
			return frames, err
		}
		frames = append(frames, f)
	}
	return frames, nil
}
