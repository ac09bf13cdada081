package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BeatGlow/inkpet/internal/inbox"
	"github.com/BeatGlow/inkpet/internal/printer"
	"github.com/BeatGlow/inkpet/internal/state"
)

var (
	sendFrom string
	sendDir  string
)

var sendCmd = &cobra.Command{
	Use:   "send feed|poke|message [text...]",
	Short: "Deposit a flag for the display process",
	Long: `Deposit a flag in paths.flag_dir, the way the network process does.

The display process applies it within one flag poll interval:
  inkpet send feed
  inkpet send poke --from bunny_2
  inkpet send message --from Ana "see you at 8"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVar(&sendFrom, "from", "inkpet", "sender name")
	sendCmd.Flags().StringVar(&sendDir, "dir", "", "flag directory (default paths.flag_dir)")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	flag, err := parseFlag(args, sendFrom)
	if err != nil {
		return printer.Error("Invalid flag", err.Error(),
			`Use "inkpet send feed", "inkpet send poke" or "inkpet send message <text>"`)
	}

	dir := sendDir
	if dir == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dir = cfg.Paths.FlagDir
	}

	flag, err = inbox.Post(dir, flag)
	if err != nil {
		return printer.Error("Cannot deposit the flag", err.Error(),
			fmt.Sprintf("Check that %s is writable", dir))
	}
	printer.Success("%s flag %d queued in %s\n", flag.Kind, flag.Seq, dir)
	return nil
}

// parseFlag builds a flag from the command arguments.
func parseFlag(args []string, from string) (inbox.Flag, error) {
	flag := inbox.Flag{
		Kind: state.Kind(strings.ToLower(args[0])),
		From: from,
	}
	if !flag.Kind.Valid() {
		return inbox.Flag{}, fmt.Errorf("unknown kind %q", args[0])
	}

	text := strings.TrimSpace(strings.Join(args[1:], " "))
	switch flag.Kind {
	case state.KindMessage:
		if text == "" {
			return inbox.Flag{}, fmt.Errorf("a message needs a text")
		}
		flag.Payload = text
	default:
		if text != "" {
			return inbox.Flag{}, fmt.Errorf("%s takes no text", flag.Kind)
		}
	}
	return flag, nil
}
