package discover

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tinyland-inc/proxima/cmd/proxima/internal"
	"github.com/tinyland-inc/proxima/pkg/beacon"
)

func discoverCmd(ctx context.Context, opts options, out io.Writer) error {
	if opts.noAdvertise && opts.noScan {
		return errors.New("nothing to do: --no-advertise and --no-scan both set")
	}

	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	internal.SetupLogging(cfg, opts.debug)

	provider, _, err := internal.Session(cfg, opts.user)
	if err != nil {
		return err
	}
	userID, _ := provider.CurrentUserID()

	engine := beacon.NewEngine(
		beacon.NewTinyGoRadio(nil),
		beacon.WithScanBuffer(cfg.Beacon.ScanBuffer),
		beacon.WithManufacturerID(cfg.Beacon.ManufacturerID),
	)
	defer engine.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	return run(ctx, engine, cfg.ServiceUUID(), userID, opts, out)
}

// run advertises and scans until ctx ends.
func run(ctx context.Context, engine *beacon.Engine, service uuid.UUID, userID string, opts options, out io.Writer) error {
	if !opts.noAdvertise {
		if userID == "" {
			return errors.New("no user id to advertise: pass --user or set session.user_id")
		}
		if err := engine.StartAdvertising(userID, service); err != nil {
			return explain(err)
		}
		fmt.Fprintf(out, "%s Advertising as %q\n", internal.Logo, beacon.TruncateIdentifier(userID))
	}

	g, gctx := errgroup.WithContext(ctx)

	if !opts.noScan {
		sess, err := engine.StartScanning(service)
		if err != nil {
			_ = engine.StopAdvertising()
			return explain(err)
		}
		fmt.Fprintf(out, "%s Scanning for peers (Ctrl+C to stop)\n", internal.Logo)
		g.Go(func() error {
			return printPeers(gctx, out, sess)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		engine.StopScanning()
		return engine.StopAdvertising()
	})

	return g.Wait()
}

func printPeers(ctx context.Context, out io.Writer, sess *beacon.ScanSession) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case p, ok := <-sess.Peers():
			if !ok {
				return nil
			}
			fmt.Fprintln(out, formatPeer(p))
		}
	}
}

func formatPeer(p beacon.PeerBeacon) string {
	id := p.ShortUserID
	if !p.Identified {
		id = "(unidentified)"
	}
	return fmt.Sprintf("  • %-12s %s  rssi=%d", id, p.HardwareAddress, p.RSSI)
}

func explain(err error) error {
	if errors.Is(err, beacon.ErrCapabilityDenied) {
		return fmt.Errorf("bluetooth unavailable, enable the radio and grant permission: %w", err)
	}
	return err
}
