package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/tieline-bridge/internal/codec"
	"github.com/nerrad567/tieline-bridge/internal/infrastructure/config"
	"github.com/nerrad567/tieline-bridge/internal/infrastructure/logging"
)

func newStatusCommand(configFlag *string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Connect once, run one poll cycle and print the codec state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(getConfigPath(*configFlag))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return runStatus(cmd.Context(), cfg, cmd.OutOrStdout(), asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the overlay export as JSON")
	return cmd
}

// runStatus performs a one-shot connect and poll against the configured codec.
// Source failures are reported in the output, not returned.
func runStatus(ctx context.Context, cfg *config.Config, out io.Writer, asJSON bool) error {
	client := codec.NewClient(codec.ClientOptions{
		RequestTimeout: cfg.GetRequestTimeout(),
		FalsyMerge:     cfg.Codec.FalsyMerge,
		Logger:         logging.Discard(),
	})
	defer client.Disconnect()

	info, err := client.Connect(ctx, codec.ConnectParams{
		Host:     cfg.Codec.Host,
		Port:     cfg.Codec.Port,
		Username: cfg.Codec.Username,
		Password: cfg.Codec.Password,
	})
	if err != nil {
		return err
	}

	result := client.Poll(ctx)
	now := time.Now()

	if asJSON {
		data, err := client.ExportJSON(now)
		if err != nil {
			return fmt.Errorf("encoding export: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	st := client.State()
	export := client.Export(now)

	rows := [][]string{
		{"Codec", cfg.Codec.ID},
		{"Model", st.CodecType},
		{"Firmware", info.Firmware},
		{"Connected", strconv.FormatBool(st.Connected)},
		{"Profile", st.Profile},
		{"Bitrate (tx/rx)", export.Network.Bitrate},
		{"Jitter", export.Network.Jitter},
		{"Packet loss", export.Network.PacketLoss},
		{"Quality", string(export.Network.Quality)},
		{"Muted", strconv.FormatBool(st.Muted)},
		{"Audio in/out", fmt.Sprintf("%.1f / %.1f dB", st.AudioLevelIn, st.AudioLevelOut)},
		{"Connected for", export.Duration},
	}
	fmt.Fprintln(out, renderTable("Codec", []string{"Field", "Value"}, rows))

	fmt.Fprintln(out, renderTable("Poll cycle", []string{"Source", "Result"}, sourceRows(result)))
	fmt.Fprintf(out, "cycle took %s\n", result.Duration.Round(time.Millisecond))
	return nil
}

// sourceRows lists each source's outcome, sorted by name.
func sourceRows(result codec.CycleResult) [][]string {
	names := make([]string, 0, len(result.Errors))
	for name := range result.Errors {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		outcome := "ok"
		if err := result.Errors[name]; err != nil {
			outcome = err.Error()
		}
		rows = append(rows, []string{name, outcome})
	}
	return rows
}
