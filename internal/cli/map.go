package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/intents/internal/store"
	"github.com/roach88/intents/internal/world"
)

// MapOptions holds flags for the map command.
type MapOptions struct {
	*RootOptions
	Database  string
	SessionID string
}

// MapView is the JSON form of a rendered dungeon.
type MapView struct {
	SessionID string          `json:"session_id"`
	Tick      int64           `json:"tick"`
	Floor     int             `json:"floor"`
	Status    world.Status    `json:"status"`
	Board     string          `json:"board"`
	Entities  []*world.Entity `json:"entities"`
}

// NewMapCommand creates the map command.
func NewMapCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MapOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "map",
		Short: "Render the saved dungeon grid of a session",
		Long: `Render the latest saved state of a dungeon session as text.

Legend:
  #  wall or obstacle
  .  empty
  P  living player
  x  downed player
  E  living enemy

Example:
  intents map --db ./intents.db --session s1`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMap(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "session id (required)")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

func runMap(opts *MapOptions, cmd *cobra.Command) error {
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	state, err := st.Load(context.Background(), opts.SessionID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load session", err)
	}
	board := state.Render()
	if board == "" {
		return NewExitError(ExitCommandError, fmt.Sprintf("session %s is a %s and has no grid", opts.SessionID, state.Kind))
	}

	ids := make([]string, 0, len(state.Entities))
	for id := range state.Entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	entities := make([]*world.Entity, 0, len(ids))
	for _, id := range ids {
		entities = append(entities, state.Entities[id])
	}

	out := newFormatter(opts.RootOptions, cmd)
	if out.JSON() {
		return out.Success(MapView{
			SessionID: state.SessionID,
			Tick:      state.Tick,
			Floor:     state.Floor,
			Status:    state.Status,
			Board:     board,
			Entities:  entities,
		})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Session %s, floor %d/%d, tick %d (%s)\n\n", state.SessionID, state.Floor, state.Floors, state.Tick, state.Status)
	fmt.Fprintln(w, board)
	fmt.Fprintln(w)
	for _, e := range entities {
		life := "alive"
		if !e.Alive {
			life = "down"
		}
		fmt.Fprintf(w, "%-12s %-6s (%d,%d) hp %d/%d %s\n", e.ID, e.Kind, e.Pos.X, e.Pos.Y, e.HP, e.MaxHP, life)
	}
	return nil
}
