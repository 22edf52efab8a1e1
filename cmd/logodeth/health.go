package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/4ier/logodeth/internal/client"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check whether the API is ready to recognise logos",
	RunE: func(cmd *cobra.Command, args []string) error {
		h := newClient().Health(cmd.Context())

		if jsonOutput {
			if err := json.NewEncoder(cmd.OutOrStdout()).Encode(h); err != nil {
				return err
			}
		} else {
			printHealth(cmd.OutOrStdout(), h)
		}

		if !h.Healthy() {
			return userError(&client.UnhealthyError{Status: h.Status, Reason: h.Error})
		}
		return nil
	},
}
