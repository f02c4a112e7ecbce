package commands

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alecthomas/kingpin/v2"
	_ "modernc.org/sqlite"

	"github.com/slok/taskd/internal/storage/sqlite/migrations"
)

type MigrateCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	down bool
}

// NewMigrateCommand returns the migrate command.
func NewMigrateCommand(rootCmd *RootCommand, app *kingpin.Application) *MigrateCommand {
	c := &MigrateCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("migrate", "Run the database schema migrations.")
	c.Cmd.Flag("down", "Revert all migrations instead of applying them.").BoolVar(&c.down)

	return c
}

func (c MigrateCommand) Name() string { return c.Cmd.FullCommand() }

func (c MigrateCommand) Run(ctx context.Context) error {
	db, err := sql.Open("sqlite", c.rootCmd.DBPath)
	if err != nil {
		return fmt.Errorf("could not open database: %w", err)
	}
	defer db.Close()

	migrator, err := migrations.NewMigrator(db, c.rootCmd.Logger)
	if err != nil {
		return fmt.Errorf("could not create migrator: %w", err)
	}

	if c.down {
		if err := migrator.Down(ctx); err != nil {
			return fmt.Errorf("could not revert migrations: %w", err)
		}
		fmt.Fprintf(c.rootCmd.Stdout, "Migrations reverted\n")
		return nil
	}

	if err := migrator.Up(ctx); err != nil {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	fmt.Fprintf(c.rootCmd.Stdout, "Migrations applied\n")

	return nil
}
