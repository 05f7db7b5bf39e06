package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jackdevtech455/youtube-analytics/internal/dashboard"
	"github.com/jackdevtech455/youtube-analytics/internal/models"
	"github.com/jackdevtech455/youtube-analytics/internal/trackerapi"
	"github.com/jackdevtech455/youtube-analytics/pkg/config"
	"github.com/jackdevtech455/youtube-analytics/pkg/logging"
)

func main() {
	var (
		trackerIDs []int64
		all        bool
		limit      int
		timeout    time.Duration
	)
	flags := pflag.NewFlagSet("ytatop", pflag.ExitOnError)
	flags.Int64SliceVarP(&trackerIDs, "tracker", "t", nil, "tracker ids to show (repeatable)")
	flags.BoolVarP(&all, "all", "a", false, "show the top list of every tracker")
	flags.IntVarP(&limit, "limit", "n", 10, "rows per tracker")
	flags.DurationVar(&timeout, "timeout", 30*time.Second, "overall deadline")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()
	logger := logging.GetLogger()

	client, err := trackerapi.New(&cfg.API)
	if err != nil {
		logger.Fatal("Failed to create tracker API client", zap.Error(err))
	}

	session := dashboard.NewSession(client, cfg)
	defer session.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := run(ctx, os.Stdout, session, trackerIDs, all, limit); err != nil {
		fmt.Fprintf(os.Stderr, "ytatop: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer, session *dashboard.Session, trackerIDs []int64, all bool, limit int) error {
	trackers := session.OpenTrackers()
	defer trackers.Close()
	go func() {
		<-ctx.Done()
		trackers.Close()
	}()

	if err := trackers.Refresh(); err != nil {
		return fmt.Errorf("failed to list trackers: %s", trackerapi.Message(err))
	}
	trackers.Wait()
	printTrackers(out, trackers.State())

	if all {
		trackerIDs = trackerIDs[:0]
		for _, row := range trackers.State().Rows {
			trackerIDs = append(trackerIDs, row.ID)
		}
	}
	if len(trackerIDs) == 0 {
		return nil
	}

	views := make([]*dashboard.TrackerView, len(trackerIDs))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range trackerIDs {
		v := session.OpenTracker(id)
		views[i] = v
		defer v.Close()

		g.Go(func() error {
			// a failed tracker is shown as an error row, not a fatal error
			_ = v.Refresh()
			waitOrDone(gctx, v.Wait)
			if rows := v.State().Rows; len(rows) > 0 {
				select {
				case <-session.EnsureSeries(rows[0].VideoID):
				case <-gctx.Done():
				}
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, v := range views {
		printTracker(out, v.State(), limit)
	}
	return nil
}

func waitOrDone(ctx context.Context, wait func()) {
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func printTrackers(out io.Writer, st dashboard.TrackersState) {
	if st.Error != "" {
		fmt.Fprintf(out, "error: %s\n", st.Error)
		return
	}
	if st.Phase == dashboard.PhaseEmpty {
		fmt.Fprintln(out, st.Message)
		return
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tSTATE\tTRACKER\tSETTINGS")
	for _, row := range st.Rows {
		state := "PAUSED"
		if row.Active {
			state = "ACTIVE"
		}
		title := row.Title
		if row.Subtitle != "" {
			title += " (" + row.Subtitle + ")"
		}
		fmt.Fprintf(w, "#%d\t%s\t%s\t%s\t%s\n", row.ID, row.Type, state, title, row.Summary)
	}
	w.Flush()
}

func printTracker(out io.Writer, st dashboard.TrackerState, limit int) {
	fmt.Fprintf(out, "\nTracker #%d\n", st.TrackerID)
	switch st.Phase {
	case dashboard.PhaseError:
		fmt.Fprintf(out, "error: %s\n", st.Error)
		return
	case dashboard.PhaseEmpty:
		fmt.Fprintln(out, st.Message)
		return
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tSCORE\tVIEWS\tLIKES\tCOMMENTS\tTITLE\tCHANNEL\tTREND")
	for i, row := range st.Rows {
		if limit > 0 && i >= limit {
			break
		}
		rank := fmt.Sprintf("#%d", row.Rank)
		if row.Top {
			rank += " TOP"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rank, row.Score, row.Views, row.Likes, row.Comments, row.Title, row.Channel, trend(row.Series))
	}
	w.Flush()
}

// trend summarises a loaded series as first → last observed value
func trend(s dashboard.SeriesView) string {
	if len(s.Points) == 0 {
		if s.Status == "loading" {
			return "…"
		}
		return ""
	}
	first, last := s.Points[0].Value, s.Points[len(s.Points)-1].Value
	return models.FormatCompact(*first) + " → " + models.FormatCompact(*last)
}
