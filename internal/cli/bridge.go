package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/sequencer/internal/mqtt"
	"github.com/opencode-ai/sequencer/internal/sequence"
)

var (
	bridgeBroker   string
	bridgeTopic    string
	bridgeClientID string
)

func init() {
	rootCmd.AddCommand(bridgeCmd)

	bridgeCmd.Flags().StringVar(&bridgeBroker, "broker", "", "MQTT broker URL (default from mqtt.broker)")
	bridgeCmd.Flags().StringVar(&bridgeTopic, "topic", "", "root topic (default from mqtt.topic)")
	bridgeCmd.Flags().StringVar(&bridgeClientID, "client-id", "", "MQTT client ID (default from mqtt.client_id)")
}

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Serve the demo scene over MQTT",
	Long: `Run a Director on the demo scene and connect it to an MQTT broker.

  <topic>/message  a message name (or {"name": "..."}) delivered to every sequence
  <topic>/play     {"cutscene": "...", "speaker": "...", "vars": {...}} plays a cutscene
  <topic>/out      every message sent on the scene's bus`,
	Example: `  sequencer bridge --broker tcp://localhost:1883
  mosquitto_pub -t sequencer/play -m '{"cutscene": "greeting", "speaker": "Alice", "listener": "Bob"}'
  mosquitto_pub -t sequencer/message -m DoorOpen`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		broker := firstNonEmpty(bridgeBroker, cfg.MQTT.Broker)
		if broker == "" {
			return &PreflightError{
				Message:  "no MQTT broker configured",
				Hint:     "Set mqtt.broker in the config file or pass --broker",
				NextStep: "sequencer bridge --broker tcp://localhost:1883",
			}
		}

		st, err := newStage(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		progress := startProgress("Connecting to " + broker)
		client := mqtt.NewClient(mqtt.Config{
			Broker:   broker,
			ClientID: firstNonEmpty(bridgeClientID, cfg.MQTT.ClientID),
		})
		if err := client.Connect(); err != nil {
			progress.Fail(err)
			return fmt.Errorf("failed to connect to broker: %w", err)
		}
		progress.Done()
		defer client.Disconnect()

		find := func(name string) (*sequence.Cutscene, error) {
			return sequence.FindCutscene(projectDir(), name)
		}
		bridge := mqtt.NewBridge(mqtt.BridgeConfig{
			ID:    "mqtt",
			Topic: firstNonEmpty(bridgeTopic, cfg.MQTT.Topic),
		}, client, st.director, find, st.events)
		if err := bridge.Start(); err != nil {
			return err
		}
		defer bridge.Stop()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if !IsJSONOutput() && !IsJSONLOutput() {
			fmt.Fprintf(cmd.OutOrStdout(), "Bridge listening on %s (Ctrl-C to stop)\n", bridge.Topic("#"))
		}
		return <-st.run(ctx)
	},
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
