package db

import (
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ErrMigrateUsage is returned for a missing or unknown migrate action.
var ErrMigrateUsage = errors.New("invalid migrate usage")

// RunMigrateCommand handles the 'migrate' subcommand. Results go to out.
func RunMigrateCommand(args []string, dbPath string, out io.Writer) error {
	if len(args) < 1 {
		PrintMigrateHelp(out)
		return ErrMigrateUsage
	}
	action := args[0]
	if action == "help" {
		PrintMigrateHelp(out)
		return nil
	}

	// Open without migrating: the command manages the schema itself.
	database, err := OpenDB(dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	switch action {
	case "up":
		if err := database.MigrateUp(); err != nil {
			return err
		}
		fmt.Fprintln(out, "✓ all migrations applied")
	case "down":
		if err := database.MigrateDown(); err != nil {
			return err
		}
		fmt.Fprintln(out, "✓ rolled back one migration")
	case "status":
		// reported below
	case "to":
		v, err := versionArg(args, action)
		if err != nil {
			return err
		}
		if err := database.MigrateTo(uint(v)); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ migrated to version %d\n", v)
	case "force":
		v, err := versionArg(args, action)
		if err != nil {
			return err
		}
		if err := database.MigrateForce(v); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ forced version %d\n", v)
	default:
		fmt.Fprintf(out, "Unknown migrate action: %s\n\n", action)
		PrintMigrateHelp(out)
		return fmt.Errorf("%w: unknown action %q", ErrMigrateUsage, action)
	}

	version, dirty, err := database.MigrateVersion()
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	fmt.Fprintf(out, "Current version: %d (dirty: %v)\n", version, dirty)
	if dirty {
		fmt.Fprintln(out, "WARNING: a migration failed mid-way; inspect the database, then run: roadagent migrate force <version>")
	}
	return nil
}

func versionArg(args []string, action string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("%w: usage: roadagent migrate %s <version>", ErrMigrateUsage, action)
	}
	v, err := strconv.Atoi(args[1])
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: invalid version number %q", ErrMigrateUsage, args[1])
	}
	return v, nil
}

// PrintMigrateHelp writes usage for the migrate subcommand.
func PrintMigrateHelp(out io.Writer) {
	fmt.Fprint(out, `Usage: roadagent migrate <action> [args] [-db path]

Actions:
  up               apply all pending migrations
  down             roll back the latest migration
  status           show the current version
  to <version>     migrate up or down to a version
  force <version>  set the version without running migrations (recovery)
  help             show this message
`)
}
