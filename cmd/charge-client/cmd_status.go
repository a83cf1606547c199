package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sweeney/charge-client/internal/redis"
)

var (
	statusRedisFlag     string
	statusRedisPassFlag string
	statusRedisDBFlag   int
	statusEventsFlag    int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the status a running daemon mirrors to Redis",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := redis.New(statusRedisFlag, statusRedisPassFlag, statusRedisDBFlag)
		if err != nil {
			return err
		}
		defer func() {
			if err := c.Close(); err != nil {
				log.Printf("redis close: %v", err)
			}
		}()
		return printStatus(os.Stdout, c, statusEventsFlag)
	},
}

func init() {
	f := statusCmd.Flags()
	f.StringVar(&statusRedisFlag, "redis", "localhost:6379", "Redis address the daemon writes to")
	f.StringVar(&statusRedisPassFlag, "redis-password", "", "Redis password")
	f.IntVar(&statusRedisDBFlag, "redis-db", 0, "Redis database")
	f.IntVarP(&statusEventsFlag, "events", "e", 0, "Also print this many recent events")
	rootCmd.AddCommand(statusCmd)
}

// printStatus writes the status fields sorted by name, then the newest
// events one per line.
func printStatus(w io.Writer, r redis.Reader, events int) error {
	fields, err := r.Status()
	if err != nil {
		return err
	}

	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		fmt.Fprintf(w, "%-20s %s\n", k, fields[k])
	}

	recent, err := r.RecentEvents(events)
	if err != nil {
		return err
	}
	if len(recent) > 0 {
		fmt.Fprintln(w)
	}
	for _, e := range recent {
		fmt.Fprintf(w, "%s\n", e)
	}
	return nil
}
