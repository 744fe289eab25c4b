package db

import (
	"context"
	"time"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
)

// Tidy removes expired entries from the database
func (db *DB) Tidy(ctx context.Context) (int64, error) {
	query, args := deleteExpired(db.now())

	log.WithFields(log.Fields{
		"sql":  query,
		"args": args,
	}).Debug("Tidying database")

	result, err := db.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// RunTidy calls Tidy every interval until ctx is done
func (db *DB) RunTidy(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := db.Tidy(ctx)
			if err != nil {
				log.Errorf("Error tidying database: %v", err)
				continue
			}
			log.WithFields(log.Fields{
				"removed": removed,
			}).Info("Tidied database")
		}
	}
}

func deleteExpired(now time.Time) (string, []interface{}) {
	dlb := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	dlb.DeleteFrom(table).Where(dlb.LessEqualThan("expires_at", now))
	return dlb.Build()
}
