package cli

import (
	"fmt"
	"io"
)

// Migrator applies schema migrations.
type Migrator interface {
	Up() error
	Down() error
	Close() error
}

// MigrateCommand runs migrations in direction ("up" or "down") and returns the exit code.
func MigrateCommand(m Migrator, direction string, stdout, stderr io.Writer) int {
	defer func() {
		if err := m.Close(); err != nil {
			fmt.Fprintf(stderr, "close migrator: %v\n", err)
		}
	}()
	var err error
	switch direction {
	case "", "up":
		direction = "up"
		err = m.Up()
	case "down":
		err = m.Down()
	default:
		fmt.Fprintf(stderr, "unknown migrate direction %q (want up or down)\n", direction)
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "migrate %s: %v\n", direction, err)
		return 1
	}
	fmt.Fprintf(stdout, "migrate %s: ok\n", direction)
	return 0
}
