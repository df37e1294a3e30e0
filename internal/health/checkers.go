package health

import (
	"context"
	"fmt"
	"os"
)

// Library returns a checker that verifies the document library directory
// exists and is readable.
func Library(dir string) Checker {
	return Checker{
		Name: "library",
		Check: func(_ context.Context) error {
			info, err := os.Stat(dir)
			if err != nil {
				return fmt.Errorf("library dir %q: %w", dir, err)
			}
			if !info.IsDir() {
				return fmt.Errorf("library path %q is not a directory", dir)
			}
			return nil
		},
	}
}

// Progress returns a checker that pings the bookmark store. The ping function
// is typically [progress.PostgresStore.Ping]; the in-memory store needs no
// readiness check and should not register one.
func Progress(ping func(ctx context.Context) error) Checker {
	return Checker{
		Name:  "progress",
		Check: ping,
	}
}

// Providers returns a checker that verifies the narration and speech
// providers are configured. Reachability is not probed; probing would spend
// paid API quota on every readiness poll.
func Providers(generatorName, speechName string) Checker {
	return Checker{
		Name: "providers",
		Check: func(_ context.Context) error {
			if generatorName == "" {
				return fmt.Errorf("no generation provider configured")
			}
			if speechName == "" {
				return fmt.Errorf("no speech provider configured")
			}
			return nil
		},
	}
}
