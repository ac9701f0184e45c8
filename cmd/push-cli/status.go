package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the push worker's lifecycle state and tray contents",
	RunE: func(cmd *cobra.Command, args []string) error {
		workerURL := viper.GetString("worker_url")
		if workerURL == "" {
			workerURL = "http://localhost:8090"
		}

		client := &http.Client{Timeout: 10 * time.Second}
		resp, err := client.Get(workerURL + "/v1/debug/status")
		if err != nil {
			return fmt.Errorf("failed to reach worker at %s: %w", workerURL, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("worker returned %s", resp.Status)
		}

		var status map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			return fmt.Errorf("failed to decode status: %w", err)
		}

		pretty, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(pretty))
		return nil
	},
}

func init() {
	statusCmd.Flags().String("worker-url", "", "push worker base URL")
	viper.BindPFlag("worker_url", statusCmd.Flags().Lookup("worker-url"))
	rootCmd.AddCommand(statusCmd)
}
