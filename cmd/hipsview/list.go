package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gogpu/hips"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <hipslist-url>",
		Short: "List the surveys of a hipslist file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			client := newClient(cfg)
			defer client.Close()

			data, err := fetchSync(cmd.Context(), client, args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, entry := range hips.ParseHipsList(data) {
				date := "-"
				if entry.ReleaseDate > 0 {
					date = mjdTime(entry.ReleaseDate).Format(time.DateOnly)
				}
				fmt.Fprintf(w, "%s\t%s\n", date, entry.ServiceURL)
			}
			return nil
		},
	}
}

// mjdTime converts a modified Julian date to UTC.
func mjdTime(mjd float64) time.Time {
	epoch := time.Date(1858, time.November, 17, 0, 0, 0, 0, time.UTC)
	return epoch.Add(time.Duration(mjd * 24 * float64(time.Hour)))
}
