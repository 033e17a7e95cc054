package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/intents/internal/config"
)

// RulesOptions holds flags for the rules command.
type RulesOptions struct {
	*RootOptions
	RulesPath string
}

// rulesView renders effective rules as text.
type rulesView config.Rules

func (r rulesView) String() string {
	var b strings.Builder
	d := r.Dungeon
	fmt.Fprintln(&b, "dungeon:")
	fmt.Fprintf(&b, "  grid %dx%d, %d floor(s), up to %d players\n", d.Width, d.Height, d.Floors, d.MaxPlayers)
	fmt.Fprintf(&b, "  player hp %d attack %d, enemy hp %d attack %d, +%d enemies per floor\n",
		d.PlayerHP, d.PlayerAttack, d.EnemyHP, d.EnemyAttack, d.FloorBonus)
	fmt.Fprintf(&b, "  kill reward %d xp, %d gold\n", d.KillXP, d.KillGold)
	fmt.Fprintln(&b, "duel:")
	fmt.Fprintf(&b, "  timeout %ds, d%d + level, reward %d..%d gold\n",
		r.Duel.TimeoutSeconds, r.Duel.Sides, r.Duel.RewardMin, r.Duel.RewardMax)
	fmt.Fprintln(&b, "rumble:")
	fmt.Fprintf(&b, "  window %ds (%d..%d), reward %d..%d gold\n",
		r.Rumble.WindowSeconds, r.Rumble.MinWindow, r.Rumble.MaxWindow, r.Rumble.RewardMin, r.Rumble.RewardMax)
	fmt.Fprintln(&b, "items:")
	names := make([]string, 0, len(r.Items))
	for name := range r.Items {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "  %s heals %d\n", name, r.Items[name].Heal)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// NewRulesCommand creates the rules command.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RulesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Validate and print the effective game rules",
		Long: `Unify a CUE override file with the built-in rules schema, validate the
result and print the effective rules. Without --rules the defaults are
printed.

Examples:
  intents rules
  intents rules --rules ./hard.cue --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRules(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RulesPath, "rules", "", "CUE file overriding the default rules")

	return cmd
}

func runRules(opts *RulesOptions, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	rules, err := config.LoadRules(opts.RulesPath)
	if err != nil {
		_ = out.Error("E_RULES", "invalid rules", err.Error())
		return WrapExitError(ExitFailure, "invalid rules", err)
	}
	if opts.Format == "json" {
		return out.Success(rules)
	}
	return out.Success(rulesView(rules))
}
