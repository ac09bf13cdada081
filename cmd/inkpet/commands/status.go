package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/BeatGlow/inkpet/internal/inbox"
	"github.com/BeatGlow/inkpet/internal/printer"
	"github.com/BeatGlow/inkpet/internal/state"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the pet, messages and device statistics",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the documents as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := state.Open(cfg.Paths.DataDir, state.Defaults{
		PetName:    cfg.Device.PetName,
		PetType:    cfg.Device.PetType,
		TimeFormat: cfg.Device.TimeFormat,
	})
	if err != nil {
		return printer.Error("Cannot open the data directory", err.Error())
	}
	snap, err := store.Snapshot()
	if err != nil {
		return printer.Error("Cannot read the state documents", err.Error())
	}

	if statusJSON {
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return err
		}
		printer.Info("%s\n", data)
		return nil
	}

	incoming, err := inbox.Pending(cfg.Paths.FlagDir)
	if err != nil {
		printer.Warning("%v\n", err)
	}
	outgoing, err := inbox.Pending(cfg.Paths.OutboxDir)
	if err != nil {
		printer.Warning("%v\n", err)
	}
	printStatus(snap, incoming, outgoing, time.Now())
	return nil
}

func printStatus(snap state.Snapshot, incoming, outgoing int, now time.Time) {
	pet := snap.Pet
	printer.Section(fmt.Sprintf("%s the %s", pet.Name, pet.Type))
	printer.Field("Mood", pet.Mood())
	printer.Field("Health", printer.Bar(pet.Health, state.MaxHealth))
	printer.Field("Hunger", printer.Bar(pet.Hunger, state.MaxHunger))
	printer.Field("Happiness", printer.Bar(pet.Happiness, state.MaxHappiness))
	printer.Field("Age", fmt.Sprintf("%dd %dh", pet.AgeHours/24, pet.AgeHours%24))
	printer.Field("Feeds", pet.TotalFeeds)
	if !pet.LastFed.IsZero() {
		printer.Field("Last fed", pet.LastFed.Local().Format(time.DateTime))
	}

	printer.Info("\n")
	printer.Section(fmt.Sprintf("Messages (%d, %d unread)", len(snap.Messages.Messages), snap.Messages.Unread()))
	for _, m := range snap.Messages.Recent(5) {
		mark := " "
		if !m.Read {
			mark = "*"
		}
		printer.Info("  %s %-12s %s (%s ago)\n", mark, m.From, m.Message, now.Sub(m.Timestamp).Round(time.Minute))
	}
	if incoming > 0 {
		printer.Warning("%d flag(s) waiting to be applied\n", incoming)
	}
	if outgoing > 0 {
		printer.Info("  %d poke(s) waiting in the outbox\n", outgoing)
	}

	stats := snap.Stats
	printer.Info("\n")
	printer.Section("Device")
	printer.Field("Time format", fmt.Sprintf("%dh", snap.Settings.TimeFormat))
	printer.Field("Brightness", printer.Bar(snap.Settings.Brightness, 5))
	printer.Field("Refresh mode", snap.Settings.RefreshMode)
	printer.Field("Button presses", stats.TotalButtonPresses)
	printer.Field("Display updates", fmt.Sprintf("%d (%d full, %d partial)", stats.TotalDisplayUpdates, stats.TotalFullRefreshes, stats.TotalPartialRefreshes))
	printer.Field("Messages", fmt.Sprintf("%d received, %d sent", stats.TotalMessagesReceived, stats.TotalMessagesSent))
	printer.Field("Dropped actions", stats.DroppedActions)
	printer.Field("Malformed flags", stats.MalformedFlags)
	printer.Field("Hardware failures", stats.HardwareFailures)
	if stats.LastError != nil {
		printer.Warning("last error at %s: %s\n", stats.LastError.Timestamp.Local().Format(time.DateTime), stats.LastError.Message)
	}
}
