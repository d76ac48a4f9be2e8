// Package tail follows ticket events mirrored to Redis by running servers.
package tail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/orris-inc/triage/internal/infrastructure/config"
	"github.com/orris-inc/triage/internal/infrastructure/pubsub"
	proto "github.com/orris-inc/triage/internal/shared/hubprotocol/ticket"
	"github.com/orris-inc/triage/internal/shared/logger"
)

type options struct {
	env        string
	ticketID   string
	instanceID string
	raw        bool
}

func NewCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print ticket events mirrored to Redis",
		Long:  `Subscribe to the Redis ticket event channel and print every event as it is published. Requires redis to be configured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.env, "env", "e", "development", "Environment (development, test, production)")
	cmd.Flags().StringVar(&opts.ticketID, "ticket", "", "Only print events for this ticket ID")
	cmd.Flags().StringVar(&opts.instanceID, "instance", "", "Only print events published by this server instance")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "Print the raw JSON envelope")

	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
	cfg, err := config.Load(opts.env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(&cfg.Logger, false); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Redis.GetAddr(), err)
	}

	mirror := pubsub.NewRedisEventMirror(client, cfg.Redis.Channel, logger.NewLogger().Named("tail"))
	logger.Info("following ticket events", "channel", cfg.Redis.Channel, "redis", cfg.Redis.GetAddr())

	return follow(ctx, mirror, cmd.OutOrStdout(), opts)
}

// envelopeSource delivers mirrored envelopes until ctx is done.
type envelopeSource interface {
	Subscribe(ctx context.Context, handler func(env proto.MirrorEnvelope)) error
}

// follow prints matching envelopes to w. A cancelled ctx ends it cleanly.
func follow(ctx context.Context, src envelopeSource, w io.Writer, opts *options) error {
	err := src.Subscribe(ctx, func(env proto.MirrorEnvelope) {
		if !matches(env, opts) {
			return
		}
		line, ferr := formatEnvelope(env, opts.raw)
		if ferr != nil {
			logger.Error("failed to format ticket event", "ticket_id", env.TicketID, "error", ferr)
			return
		}
		fmt.Fprintln(w, line)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func matches(env proto.MirrorEnvelope, opts *options) bool {
	if opts.ticketID != "" && env.TicketID != opts.ticketID {
		return false
	}
	if opts.instanceID != "" && env.InstanceID != opts.instanceID {
		return false
	}
	return true
}

// formatEnvelope renders one event per line. Token events print the
// fragment quoted so whitespace stays visible.
func formatEnvelope(env proto.MirrorEnvelope, raw bool) (string, error) {
	if raw {
		data, err := json.Marshal(env)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	header, err := proto.DecodeHeader(env.Event)
	if err != nil {
		return "", err
	}

	ts := time.Unix(env.Timestamp, 0).UTC().Format(time.RFC3339)
	prefix := fmt.Sprintf("%s %s %-8s", ts, env.TicketID, header.Type)

	switch header.Type {
	case proto.MsgTypeToken:
		var ev proto.TokenEvent
		if err := json.Unmarshal(env.Event, &ev); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %q", prefix, ev.Token), nil
	case proto.MsgTypeStatus:
		var ev proto.StatusEvent
		if err := json.Unmarshal(env.Event, &ev); err != nil {
			return "", err
		}
		if ev.Error != nil {
			return fmt.Sprintf("%s %s error=%q", prefix, ev.Status, *ev.Error), nil
		}
		return fmt.Sprintf("%s %s", prefix, ev.Status), nil
	case proto.MsgTypeComplete:
		var ev proto.CompleteEvent
		if err := json.Unmarshal(env.Event, &ev); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s summary=%q suggested_reply=%q", prefix, ev.Summary, ev.SuggestedReply), nil
	default:
		return prefix, nil
	}
}
