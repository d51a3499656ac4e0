// Package jobs runs background maintenance on cron schedules: expired token
// cleanup and connection pool sampling.
//
//	scheduler := jobs.NewScheduler(logger, metrics.JobRunsTotal)
//	scheduler.Add("token-cleanup", "@every 1h", jobs.TokenCleanup(tokens, metrics.TokensExpiredTotal, logger))
//	scheduler.Start()
//	defer scheduler.Stop(ctx)
package jobs
