package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sportsfeed/internal/domain"
	"sportsfeed/internal/scheduler"
	"sportsfeed/internal/storage/postgres"
	"sportsfeed/migrations"
)

func scrapeArticlesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scrape-articles",
		Short: "Run one NHL.com news ingestion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			ingester, err := a.articleIngester(db)
			if err != nil {
				return err
			}

			stats, err := ingester.Ingest(ctx, domain.IngestOptions{})
			if err != nil {
				return err
			}

			printIngest(cmd.OutOrStdout(), "articles", stats)
			return nil
		},
	}
}

func scrapeVideosCmd(a *app) *cobra.Command {
	var opts domain.IngestOptions

	cmd := &cobra.Command{
		Use:   "scrape-videos",
		Short: "Run one YouTube highlights ingestion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			ingester, err := a.videoIngester(db)
			if err != nil {
				return err
			}

			stats, err := ingester.Ingest(ctx, opts)
			if err != nil {
				return err
			}

			printIngest(cmd.OutOrStdout(), "videos", stats)
			return nil
		},
	}
	addIngestFlags(cmd, &opts)
	return cmd
}

func addIngestFlags(cmd *cobra.Command, opts *domain.IngestOptions) {
	cmd.Flags().StringVar(&opts.ChannelID, "channel-id", "", "YouTube channel to scrape (default from config)")
	cmd.Flags().IntVar(&opts.MaxResults, "max-results", 0, "maximum videos to list (default from config)")
	cmd.Flags().StringVar(&opts.Duration, "duration", "", "video duration filter: any, short, medium or long")
}

func publishCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Post every pending item to Bluesky",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			pub, closeFn, err := a.publisher(ctx, db)
			if err != nil {
				return err
			}
			defer closeFn()

			stats, err := pub.Publish(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Published %d of %d claimed items (%d failed)\n",
				stats.Published, stats.Claimed, stats.Failed)
			return nil
		},
	}
}

func migrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			steps, err := migrations.Up()
			if err != nil {
				return fmt.Errorf("load migrations: %w", err)
			}

			applied, err := postgres.Migrate(ctx, db, steps, a.logger)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migrations\n", applied)
			return nil
		},
	}
}

func runCmd(a *app) *cobra.Command {
	var enqueue bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run ingestion and publishing on their configured intervals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sched := a.cfg.Schedule

			var jobs []scheduler.Job
			if enqueue {
				q, err := a.taskQueue()
				if err != nil {
					return err
				}
				defer q.Close()

				send := func(name string) func(context.Context) error {
					return func(ctx context.Context) error {
						return q.Enqueue(ctx, domain.Task{Name: name})
					}
				}
				jobs = []scheduler.Job{
					{Name: domain.TaskScrapeArticles, Interval: sched.ArticlesInterval, Run: send(domain.TaskScrapeArticles)},
					{Name: domain.TaskScrapeVideos, Interval: sched.VideosInterval, Run: send(domain.TaskScrapeVideos)},
					{Name: domain.TaskPublish, Interval: sched.PublishInterval, Run: send(domain.TaskPublish)},
				}
			} else {
				db, err := a.openDB(ctx)
				if err != nil {
					return err
				}
				defer db.Close()

				d, closeFn, err := a.dispatcher(ctx, db)
				if err != nil {
					return err
				}
				defer closeFn()

				dispatch := func(name string) func(context.Context) error {
					return func(ctx context.Context) error {
						return d.Dispatch(ctx, domain.Task{Name: name, EnqueuedAt: time.Now().UTC()})
					}
				}
				jobs = []scheduler.Job{
					{Name: domain.TaskScrapeArticles, Interval: sched.ArticlesInterval, Run: dispatch(domain.TaskScrapeArticles)},
					{Name: domain.TaskScrapeVideos, Interval: sched.VideosInterval, Run: dispatch(domain.TaskScrapeVideos)},
					{Name: domain.TaskPublish, Interval: sched.PublishInterval, Run: dispatch(domain.TaskPublish)},
				}
			}

			a.logger.Info("starting scheduler",
				"enqueue", enqueue,
				"articles_interval", sched.ArticlesInterval,
				"videos_interval", sched.VideosInterval,
				"publish_interval", sched.PublishInterval,
			)

			err := scheduler.NewScheduler(jobs, sched.RunTimeout, a.logger).Start(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "send tasks to RabbitMQ instead of running them in-process")
	return cmd
}

func workerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume tasks from RabbitMQ",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			d, closeFn, err := a.dispatcher(ctx, db)
			if err != nil {
				return err
			}
			defer closeFn()

			q, err := a.taskQueue()
			if err != nil {
				return err
			}
			defer q.Close()

			host, _ := os.Hostname()
			err = q.Consume(ctx, fmt.Sprintf("sportsfeed-%s-%d", host, os.Getpid()), d)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func enqueueCmd(a *app) *cobra.Command {
	var opts domain.IngestOptions

	cmd := &cobra.Command{
		Use:       "enqueue <task>",
		Short:     "Send a single task to RabbitMQ",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{domain.TaskScrapeArticles, domain.TaskScrapeVideos, domain.TaskPublish},
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := a.taskQueue()
			if err != nil {
				return err
			}
			defer q.Close()

			task := domain.Task{Name: args[0]}
			if task.Name == domain.TaskScrapeVideos {
				task.Options = opts
			}

			if err := q.Enqueue(cmd.Context(), task); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Enqueued %s\n", task.Name)
			return nil
		},
	}
	addIngestFlags(cmd, &opts)
	return cmd
}

func printIngest(w io.Writer, what string, stats *domain.IngestStats) {
	fmt.Fprintf(w, "Added %d new %s (%d listed, %d skipped, %d errors)\n",
		stats.New, what, stats.Listed, stats.Skipped, stats.Errors)
	for _, line := range stats.Titles {
		fmt.Fprintf(w, "- %s\n", strings.TrimPrefix(line, "Added: "))
	}
}
