package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zjrosen/keysound/internal/library"
)

var libraryCmd = &cobra.Command{
	Use:     "library",
	Aliases: []string{"lib"},
	Short:   "Manage reusable sound assets",
}

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sound assets in the library",
	Args:  cobra.NoArgs,
	RunE: withLibrary(func(cmd *cobra.Command, lib *library.Library, args []string) error {
		files := lib.List()
		if len(files) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "Library %s is empty\n", lib.Dir())
			return nil
		}
		for _, f := range files {
			rel, err := filepath.Rel(lib.Dir(), f)
			if err != nil {
				rel = f
			}
			fmt.Fprintln(cmd.OutOrStdout(), rel)
		}
		return nil
	}),
}

var libraryAddCmd = &cobra.Command{
	Use:   "add <sound-file>...",
	Short: "Copy sound files into the library",
	Args:  cobra.MinimumNArgs(1),
	RunE: withLibrary(func(cmd *cobra.Command, lib *library.Library, args []string) error {
		for _, src := range args {
			dest, err := lib.Add(src)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", filepath.Base(dest))
		}
		return nil
	}),
}

var libraryRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Delete a sound from the library",
	Args:  cobra.ExactArgs(1),
	RunE: withLibrary(func(cmd *cobra.Command, lib *library.Library, args []string) error {
		if err := lib.Remove(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
		return nil
	}),
}

var libraryRenameCmd = &cobra.Command{
	Use:   "rename <name> <new-name>",
	Short: "Rename a sound in the library",
	Args:  cobra.ExactArgs(2),
	RunE: withLibrary(func(cmd *cobra.Command, lib *library.Library, args []string) error {
		dest, err := lib.Rename(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %s\n", args[0], filepath.Base(dest))
		return nil
	}),
}

var libraryAssignCmd = &cobra.Command{
	Use:   "assign <name> <key>",
	Short: "Assign a library sound to a key in the active profile",
	Args:  cobra.ExactArgs(2),
	RunE: withLibrary(func(cmd *cobra.Command, lib *library.Library, args []string) error {
		k, err := parseKey(args[1])
		if err != nil {
			return err
		}
		src := args[0]
		if !filepath.IsAbs(src) {
			src = filepath.Join(lib.Dir(), src)
		}
		if !lib.Exists(src) {
			return fmt.Errorf("%s is not in the library", args[0])
		}
		store, err := openStore()
		if err != nil {
			return err
		}
		if err := store.SetKeySound(k, src); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", k, filepath.Base(src))
		return nil
	}),
}

func init() {
	libraryCmd.AddCommand(libraryListCmd, libraryAddCmd, libraryRemoveCmd, libraryRenameCmd, libraryAssignCmd)
	rootCmd.AddCommand(libraryCmd)
}

func withLibrary(fn func(cmd *cobra.Command, lib *library.Library, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		lib, err := library.New(cfg.LibraryDir)
		if err != nil {
			return err
		}
		return fn(cmd, lib, args)
	}
}
