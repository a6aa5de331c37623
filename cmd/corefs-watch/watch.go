package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/prosoft-labs/corefs/cmd/cmdutil"
	"github.com/prosoft-labs/corefs/pkg/watching"
)

func watchMain(command *cobra.Command, arguments []string) error {
	if len(arguments) != 1 {
		return errors.New("exactly one path argument is required")
	}
	path := arguments[0]

	config := watching.DefaultChangeConfig()
	if watchConfiguration.latency > 0 {
		config.NotificationLatency = time.Duration(watchConfiguration.latency) * time.Millisecond
	}

	if watchConfiguration.resumeFile != "" {
		if data, err := os.ReadFile(watchConfiguration.resumeFile); err == nil {
			state, err := watching.Deserialize(string(data))
			if err != nil {
				return errors.Wrap(err, "unable to decode resume token")
			}
			config.Resume = state
			config.ReplayToCurrentEvent = watchConfiguration.replayToCurrent
		} else if !os.IsNotExist(err) {
			return errors.Wrap(err, "unable to read resume token file")
		}
	}

	options := watching.IncludeCreatedEvents | watching.IncludeModifiedEvents
	iterator, err := watching.NewChangedDirectoryIterator(path, options, config)
	if err != nil {
		return errors.Wrap(err, "unable to start watch")
	}
	registration := iterator.Registration()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})
	var doneOnce bool
	var tokenLock sync.Mutex
	var token string
	iterator.OnChange(func(r watching.Registration) {
		// Serialize here, while the registration is still in the table: it is
		// evicted once a terminal notification's callback returns.
		if t, err := watching.Serialize(r); err == nil && t != "" {
			tokenLock.Lock()
			token = t
			tokenLock.Unlock()
		}
		for _, changed := range iterator.Extract() {
			fmt.Println(changed)
		}
		if iterator.AtEnd() && !doneOnce {
			doneOnce = true
			close(done)
		}
	})

	select {
	case <-interrupt:
	case <-done:
		cmdutil.Warning("watch terminated by the platform (rescan or cancellation)")
	}

	t, err := watching.Serialize(registration)
	if err != nil {
		return errors.Wrap(err, "unable to encode resume token")
	}
	watching.Stop(registration)

	if watchConfiguration.resumeFile != "" {
		tokenLock.Lock()
		if t != "" {
			token = t
		}
		tokenLock.Unlock()
		if err := os.WriteFile(watchConfiguration.resumeFile, []byte(token), 0o600); err != nil {
			return errors.Wrap(err, "unable to write resume token file")
		}
	}

	return nil
}

var watchCommand = &cobra.Command{
	Use:   "watch <path>",
	Short: "Watches a directory tree for changes and prints changed paths",
	Run:   cmdutil.Mainify(watchMain),
}

var watchConfiguration struct {
	resumeFile      string
	replayToCurrent bool
	latency         int
}

func init() {
	flags := watchCommand.Flags()
	flags.SortFlags = false
	flags.StringVar(&watchConfiguration.resumeFile, "resume-file", "", "Path to a file used to load and save a resume token across runs")
	flags.BoolVar(&watchConfiguration.replayToCurrent, "replay-to-current", false, "When resuming, replay historical events up to the current point and then stop")
	flags.IntVar(&watchConfiguration.latency, "latency", 0, "Notification coalescing latency in milliseconds (0 uses the default)")
}
