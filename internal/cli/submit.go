package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/intents/internal/config"
	"github.com/roach88/intents/internal/engine"
	"github.com/roach88/intents/internal/intent"
	"github.com/roach88/intents/internal/notify"
	"github.com/roach88/intents/internal/settlement"
)

// SubmitOptions holds flags for the submit command.
type SubmitOptions struct {
	*RootOptions
	NATSURL    string
	Subject    string
	SessionID  string
	Actor      string
	As         string
	Kind       string
	Direction  string
	Target     string
	Item       string
	Level      int
	Items      map[string]int
	ConfigPath string
	Timeout    time.Duration
	Wait       time.Duration
}

// SubmitReceipt is the acknowledgement printed by submit.
type SubmitReceipt struct {
	SessionID string            `json:"session_id"`
	Seq       int64             `json:"seq"`
	Settled   *settlement.Entry `json:"settled,omitempty"`
}

func (r SubmitReceipt) String() string {
	return fmt.Sprintf("✓ queued as seq %d in session %s", r.Seq, r.SessionID)
}

// NewSubmitCommand creates the submit command.
func NewSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SubmitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit an intent to a running solver",
		Long: `Send one intent to a solver over NATS and print the assigned seq.

The principal defaults to the actor; --as submits on behalf of another
principal, which the solver refuses. A --config file (YAML session
config) implies --kind create. With --wait the command also waits for
the tick that settles the intent and prints its outcome.

Exit codes:
  0 - Intent queued
  1 - Intent refused by the solver
  2 - Command error (broker unreachable, bad flags, etc.)

Examples:
  intents submit --actor A --config ./dungeon.yaml
  intents submit --session s1 --actor A --kind dungeon.join --items potion=2
  intents submit --session s1 --actor A --kind move --direction right --wait 5s`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.NATSURL, "nats", "", "NATS server URL (default $INTENTS_NATS_URL or "+nats.DefaultURL+")")
	cmd.Flags().StringVar(&opts.Subject, "subject", "", "submit subject (default $INTENTS_SUBMIT_SUBJECT)")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "session id")
	cmd.Flags().StringVar(&opts.Actor, "actor", "", "acting player id (required)")
	_ = cmd.MarkFlagRequired("actor")
	cmd.Flags().StringVar(&opts.As, "as", "", "authenticated principal (default the actor)")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "intent kind")
	cmd.Flags().StringVar(&opts.Direction, "direction", "", "move direction (up|down|left|right or w|a|s|d)")
	cmd.Flags().StringVar(&opts.Target, "target", "", "target entity or duel invitee")
	cmd.Flags().StringVar(&opts.Item, "item", "", "item to use")
	cmd.Flags().IntVar(&opts.Level, "level", 0, "combatant level")
	cmd.Flags().StringToIntVar(&opts.Items, "items", nil, "loadout for join (name=count,...)")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "YAML session config for create")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 5*time.Second, "how long to wait for the receipt")
	cmd.Flags().DurationVar(&opts.Wait, "wait", 0, "wait this long for the intent to settle")

	return cmd
}

// loadSessionConfig reads a YAML session config. Unknown fields are
// rejected.
func loadSessionConfig(path string) (*intent.SessionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session config: %w", err)
	}
	var cfg intent.SessionConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse session config: %w", err)
	}
	return &cfg, nil
}

func (opts *SubmitOptions) submission() (engine.Submission, error) {
	sub := engine.Submission{
		SessionID: opts.SessionID,
		Principal: opts.As,
		ActorID:   opts.Actor,
		Kind:      intent.Kind(opts.Kind),
		Direction: opts.Direction,
		TargetID:  opts.Target,
		ItemRef:   opts.Item,
		Level:     opts.Level,
		Items:     opts.Items,
	}
	if sub.Principal == "" {
		sub.Principal = opts.Actor
	}
	if opts.ConfigPath != "" {
		cfg, err := loadSessionConfig(opts.ConfigPath)
		if err != nil {
			return sub, err
		}
		sub.Config = cfg
		if sub.Kind == "" {
			sub.Kind = intent.KindCreate
		}
	}
	switch {
	case sub.Kind == "":
		return sub, fmt.Errorf("--kind is required")
	case !sub.Kind.Valid():
		return sub, fmt.Errorf("unknown intent kind %q", sub.Kind)
	case sub.Kind == intent.KindCreate && sub.Config == nil:
		return sub, fmt.Errorf("create requires --config")
	case sub.Kind != intent.KindCreate && sub.SessionID == "":
		return sub, fmt.Errorf("--session is required for %s", sub.Kind)
	}
	return sub, nil
}

func runSubmit(opts *SubmitOptions, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	sub, err := opts.submission()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid submission", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	url := opts.NATSURL
	if url == "" {
		url = cfg.NATSURL
	}
	if url == "" {
		url = nats.DefaultURL
	}
	subject := opts.Subject
	if subject == "" {
		subject = cfg.SubmitSubject
	}

	out.VerboseLog("connecting to %s", url)
	conn, err := nats.Connect(url, nats.Name("intents-cli"), nats.Timeout(opts.Timeout))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to connect to nats", err)
	}
	defer conn.Close()
	client := notify.NewClient(conn, subject)

	// Subscribe before submitting so the settling tick cannot be missed.
	// A create does not know its session id yet and watches all sessions.
	var ticks chan settlement.Report
	if opts.Wait > 0 {
		watch := sub.SessionID
		if sub.Kind == intent.KindCreate {
			watch = "*"
		}
		ticks = make(chan settlement.Report, 16)
		unsubscribe, err := client.SubscribeTicks(watch, func(data []byte) {
			var report settlement.Report
			if err := json.Unmarshal(data, &report); err != nil {
				return
			}
			select {
			case ticks <- report:
			default:
			}
		})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to watch ticks", err)
		}
		defer unsubscribe()
		if err := conn.Flush(); err != nil {
			return WrapExitError(ExitCommandError, "failed to watch ticks", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()
	rcpt, err := client.Submit(ctx, sub)
	if errors.Is(err, notify.ErrRejected) {
		_ = out.Error(string(engine.ErrCodeInvalidIntent), err.Error(), nil)
		return WrapExitError(ExitFailure, "submission rejected", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to submit", err)
	}

	receipt := SubmitReceipt{SessionID: rcpt.SessionID, Seq: rcpt.Seq}
	if opts.Wait > 0 {
		receipt.Settled = waitForSettlement(ticks, rcpt, opts.Wait)
	}

	if err := out.Success(receipt); err != nil {
		return err
	}
	if opts.Format != "json" && opts.Wait > 0 {
		if receipt.Settled == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "  not settled within %s\n", opts.Wait)
		} else {
			printEntry(cmd.OutOrStdout(), *receipt.Settled, opts.Verbose)
		}
	}
	return nil
}

// waitForSettlement reads published ticks until one of rcpt's session
// carries rcpt.Seq. It returns nil when wait elapses first.
func waitForSettlement(ticks <-chan settlement.Report, rcpt engine.Receipt, wait time.Duration) *settlement.Entry {
	deadline := time.After(wait)
	for {
		select {
		case report := <-ticks:
			if report.SessionID != rcpt.SessionID {
				continue
			}
			for _, e := range report.Settlements {
				if e.Seq == rcpt.Seq {
					return &e
				}
			}
		case <-deadline:
			return nil
		}
	}
}
