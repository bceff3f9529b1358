package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wagiedev/agentbridge/internal/transcript"
)

func newHistoryCommand(a *app) *cobra.Command {
	var (
		requestID string
		limit     int
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show events recorded in the transcript",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.transcriptPath == "" {
				return errors.New("no transcript configured: pass --transcript or set AGENTBRIDGE_TRANSCRIPT")
			}

			store, err := a.openTranscript(cmd.Context())
			if err != nil {
				return err
			}
			defer a.closeTranscript(store)

			var records []transcript.Record
			if requestID != "" {
				records, err = store.ByRequest(cmd.Context(), requestID)
			} else {
				records, err = store.Recent(cmd.Context(), limit)
			}

			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				for _, r := range records {
					if err := enc.Encode(r.Payload); err != nil {
						return err
					}
				}

				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SEQ\tTIME\tTYPE\tREQUEST\tPAYLOAD")

			for _, r := range records {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
					r.Seq,
					time.UnixMilli(r.Timestamp).UTC().Format(time.RFC3339),
					r.Type,
					r.RequestID,
					r.Payload,
				)
			}

			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&requestID, "request", "", "only events for this request id")
	cmd.Flags().IntVar(&limit, "limit", 50, "number of recent events to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print one JSON event per line")

	return cmd
}
