package main

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/prosoft-labs/corefs/cmd/cmdutil"
	"github.com/prosoft-labs/corefs/pkg/traverse"
)

func listMain(command *cobra.Command, arguments []string) error {
	if len(arguments) != 1 {
		return errors.New("exactly one path argument is required")
	}
	path := arguments[0]

	options := traverse.DefaultDirectoryOptions
	if listConfiguration.postorder {
		options |= traverse.IncludePostorderDirectories
	}
	if listConfiguration.followSymlinks {
		options |= traverse.FollowDirectorySymlink
	}

	iterator, err := traverse.New(path, options)
	if err != nil {
		return errors.Wrap(err, "unable to start traversal")
	}
	defer iterator.Close()

	for iterator.Next() {
		entry := iterator.Entry()
		marker := ""
		if entry.Postorder {
			marker = " (postorder)"
		}
		fmt.Printf("%s%s [%s]%s\n", strings.Repeat("  ", iterator.Depth()), entry.Path, entry.Type, marker)
	}
	if err := iterator.Err(); err != nil {
		return errors.Wrap(err, "traversal error")
	}

	return nil
}

var listCommand = &cobra.Command{
	Use:   "list <path>",
	Short: "Recursively lists a directory tree using the traversal engine",
	Run:   cmdutil.Mainify(listMain),
}

var listConfiguration struct {
	postorder      bool
	followSymlinks bool
}

func init() {
	flags := listCommand.Flags()
	flags.SortFlags = false
	flags.BoolVar(&listConfiguration.postorder, "postorder", false, "Also yield each directory after its descendants")
	flags.BoolVar(&listConfiguration.followSymlinks, "follow-symlinks", false, "Follow symbolic links to directories")
}
