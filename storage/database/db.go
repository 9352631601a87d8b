// Package database opens, creates and migrates the postgres database of the portal.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/trezcool/hoaportal/core"
	appfs "github.com/trezcool/hoaportal/fs"
)

// maintenanceDB is the database every postgres server has. It is used before the app database exists.
const maintenanceDB = "postgres"

// connString returns the URL of database dbName. admin selects the admin role when one is configured.
func connString(c core.DatabaseConfig, dbName string, admin bool) string {
	role, pwd := c.User, c.Password
	if admin && c.AdminUser != "" {
		role, pwd = c.AdminUser, c.AdminPassword
	}
	q := url.Values{"timezone": {"utc"}, "sslmode": {"require"}}
	if c.DisableTLS {
		q.Set("sslmode", "disable")
	}
	return (&url.URL{
		Scheme:   c.Engine,
		User:     url.UserPassword(role, pwd),
		Host:     c.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}).String()
}

func open(c core.DatabaseConfig, dbName string, admin bool) (*sql.DB, error) {
	return sql.Open(c.Engine, connString(c, dbName, admin))
}

// Open connects to the application database and waits for it to answer.
func Open(conf *core.Config) (*sqlx.DB, error) {
	db, err := open(conf.Database, conf.Database.Name, false)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = waitReady(context.Background(), db, readyAttempts); err != nil {
		_ = db.Close()
		return nil, err
	}
	return sqlx.NewDb(db, conf.Database.Engine), nil
}

// StatusCheck reports whether the database answers a trivial query.
func StatusCheck(ctx context.Context, db core.DB) error {
	if err := db.PingContext(ctx); err != nil {
		return errors.Wrap(err, "pinging database")
	}
	var ok bool
	return db.GetContext(ctx, &ok, "SELECT true")
}

const readyAttempts = 30

// waitReady pings db until it answers, backing off 100ms more after each failed attempt.
func waitReady(ctx context.Context, db *sql.DB, attempts int) error {
	var err error
	for i := 1; i <= attempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "waiting for database")
		case <-time.After(time.Duration(i) * 100 * time.Millisecond):
		}
	}
	return errors.Wrapf(err, "database not ready after %d attempts", attempts)
}

// exists runs a "SELECT true ..." query and reports whether it returned a row.
func exists(db *sql.DB, q string, args ...interface{}) (bool, error) {
	var ok bool
	err := db.QueryRow(q, args...).Scan(&ok)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, err
	}
	return ok, nil
}

func createAppUser(db *sql.DB, conf *core.Config) error {
	if conf.Database.User == "" {
		return nil
	}

	found, err := exists(db, "SELECT true FROM pg_roles WHERE rolname = $1", conf.Database.User)
	if err != nil {
		return errors.Wrap(err, "checking app user")
	}
	if !found {
		q := fmt.Sprintf(
			"CREATE USER %s CREATEDB ENCRYPTED PASSWORD %s",
			pq.QuoteIdentifier(conf.Database.User), pq.QuoteLiteral(conf.Database.Password),
		)
		if _, err = db.Exec(q); err != nil {
			return errors.Wrap(err, "creating app user")
		}
	}
	return nil
}

func createDB(db *sql.DB, conf *core.Config) error {
	found, err := exists(db, "SELECT true FROM pg_database WHERE datname = $1", conf.Database.Name)
	if err != nil {
		return errors.Wrap(err, "checking DB")
	}
	if !found {
		if _, err = db.Exec("CREATE DATABASE " + pq.QuoteIdentifier(conf.Database.Name)); err != nil {
			return errors.Wrap(err, "creating database")
		}
	}
	return nil
}

// CreateIfNotExist creates the app user (as admin) and the app database (as the app user).
func CreateIfNotExist(conf *core.Config) error {
	adminDB, err := open(conf.Database, maintenanceDB, true)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = adminDB.Close() }()

	if err = waitReady(context.Background(), adminDB, readyAttempts); err != nil {
		return err
	}
	if err = createAppUser(adminDB, conf); err != nil {
		return errors.Wrap(err, "creating app user")
	}

	appDB, err := open(conf.Database, maintenanceDB, false)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = appDB.Close() }()

	if err = createDB(appDB, conf); err != nil {
		return errors.Wrap(err, "creating database")
	}
	return nil
}

// RunMigration runs the goose command (up, down, status, redo, version...) with the embedded migrations.
func RunMigration(db *sql.DB, command string, args ...string) error {
	goose.SetBaseFS(appfs.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "setting migration dialect")
	}
	if err := goose.Run(command, db, appfs.MigrationsDir, args...); err != nil {
		return errors.Wrapf(err, "running migration %q", command)
	}
	return nil
}

func Migrate(db *sql.DB) error {
	return RunMigration(db, "up")
}
