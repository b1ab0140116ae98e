package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/glyph-labs/glyphflow/bus"
	"github.com/glyph-labs/glyphflow/runtime"
)

// NewListenCmd creates the "listen" subcommand.
func NewListenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listen <unique-name>",
		Short: "Arm a trigger-event node and print its trigger requests",
		Long: "Listen creates an instance of the named trigger-event node type, " +
			"arms it, and prints every trigger request it fires until --duration " +
			"elapses, --max-triggers is reached, or the process is interrupted.",
		Args: cobra.ExactArgs(1),
		RunE: runListen,
	}

	addSessionFlags(cmd)
	cmd.Flags().StringArrayP("prop", "p", nil, "Node property as key=value (repeatable)")
	cmd.Flags().DurationP("duration", "d", 0, "Stop listening after this long (0 = until interrupted)")
	cmd.Flags().Int("max-triggers", 0, "Stop after this many triggers (0 = unlimited)")
	cmd.Flags().String("events-db", "", "Persist engine events to this SQLite database")
	cmd.Flags().Bool("events", false, "Also print engine events (coalesced)")

	return cmd
}

func runListen(cmd *cobra.Command, args []string) error {
	props, err := parseProps(cmd)
	if err != nil {
		return err
	}

	var extra []runtime.EventHandler

	eventsDB, _ := cmd.Flags().GetString("events-db")
	if eventsDB != "" {
		store, err := bus.NewSQLiteEventStore(bus.SQLiteStoreConfig{DSN: eventsDB})
		if err != nil {
			return exitError(exitConfig, "opening event store: %v", err)
		}
		defer func() {
			_ = store.Close()
		}()
		sub := bus.NewStoreSubscriber(store, sessionLogger(cmd, "info"))
		extra = append(extra, sub.Handle)
	}

	var throttled *bus.ThrottledHandler
	if printEvents, _ := cmd.Flags().GetBool("events"); printEvents {
		throttled = bus.NewThrottledHandler(func(e runtime.Event) {
			fmt.Fprintf(cmd.OutOrStdout(), "event  %s  instance=%d  type=%s\n", e.Kind, e.Instance, e.Type)
		}, bus.ThrottleConfig{})
		defer throttled.Close()
		extra = append(extra, throttled.Handle)
	}

	s, err := openSession(cmd, sessionOptions{extraHandlers: extra})
	if err != nil {
		return err
	}
	defer s.Close()

	uniqueName := args[0]
	typeID, ok := s.reg.Lookup(uniqueName)
	if !ok {
		return exitError(exitUnknownNode, "unknown node type %q (try 'glyphflow nodes list')", uniqueName)
	}

	instID, err := s.engine.CreateInstance(typeID)
	if err != nil {
		return exitError(exitRuntime, "creating instance: %v", err)
	}
	defer func() {
		_ = s.engine.DestroyInstance(instID)
	}()

	if err := s.engine.StartListening(instID, props); err != nil {
		return exitError(exitRuntime, "arming %s: %v", uniqueName, err)
	}
	defer func() {
		_ = s.engine.StopListening(instID)
	}()

	duration, _ := cmd.Flags().GetDuration("duration")
	maxTriggers, _ := cmd.Flags().GetInt("max-triggers")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s (instance %d)\n", uniqueName, instID)

	count := 0
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(cmd.OutOrStdout(), "%d trigger(s)\n", count)
			return nil
		case req := <-s.engine.Triggers():
			count++
			fmt.Fprintf(cmd.OutOrStdout(), "trigger  pin=%s  type=%s  instance=%d  id=%s\n",
				req.Pin, req.Type, req.Instance, req.ID)
			if maxTriggers > 0 && count >= maxTriggers {
				fmt.Fprintf(cmd.OutOrStdout(), "%d trigger(s)\n", count)
				return nil
			}
		}
	}
}
