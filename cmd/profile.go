package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zjrosen/keysound/internal/keys"
	"github.com/zjrosen/keysound/internal/profile"
)

var profileCmd = &cobra.Command{
	Use:     "profile",
	Aliases: []string{"profiles"},
	Short:   "Manage sound profiles",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles; the active one is marked with *",
	Args:  cobra.NoArgs,
	RunE: withStore(func(cmd *cobra.Command, store *profile.Store, args []string) error {
		current := store.Current()
		for _, p := range store.List() {
			mark := " "
			if current != nil && p.Name == current.Name {
				mark = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%d keys)\n", mark, p.Name, p.Len())
		}
		return nil
	}),
}

var profileShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show a profile's key assignments",
	Args:  cobra.MaximumNArgs(1),
	RunE: withStore(func(cmd *cobra.Command, store *profile.Store, args []string) error {
		p := store.Current()
		if len(args) == 1 {
			var err error
			if p, err = store.Get(args[0]); err != nil {
				return err
			}
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Profile: %s\nDirectory: %s\n", p.Name, p.Dir)
		if p.DefaultSound != "" {
			fmt.Fprintf(out, "Default sound: %s\n", p.DefaultSound)
		}
		if p.Len() == 0 {
			fmt.Fprintln(out, "No keys assigned.")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KEY\tSOUND\tVOLUME")
		for _, a := range p.Assignments() {
			vol := "1.00"
			if a.Volume != nil {
				vol = strconv.FormatFloat(*a.Volume, 'f', 2, 64)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", a.Key, filepath.Base(a.Sound), vol)
		}
		return tw.Flush()
	}),
}

var profileCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Print the active profile",
	Args:  cobra.NoArgs,
	RunE: withStore(func(cmd *cobra.Command, store *profile.Store, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), store.Current().Name)
		return nil
	}),
}

var profileCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a profile copied from the active one",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(cmd *cobra.Command, store *profile.Store, args []string) error {
		p, err := store.Create(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created profile %q in %s\n", p.Name, p.Dir)
		return nil
	}),
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a profile and its sounds",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(cmd *cobra.Command, store *profile.Store, args []string) error {
		if err := store.Delete(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted profile %q\n", args[0])
		return nil
	}),
}

var profileUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Make a profile active and remember it in the config file",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(cmd *cobra.Command, store *profile.Store, args []string) error {
		if err := store.SetCurrent(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Active profile: %s\n", args[0])
		return nil
	}),
}

var profileExportCmd = &cobra.Command{
	Use:   "export <name> <archive.zip>",
	Short: "Export a profile to a zip archive",
	Args:  cobra.ExactArgs(2),
	RunE: withStore(func(cmd *cobra.Command, store *profile.Store, args []string) error {
		if err := store.ExportArchive(args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %q to %s\n", args[0], args[1])
		return nil
	}),
}

var profileImportCmd = &cobra.Command{
	Use:   "import <archive.zip>",
	Short: "Import a profile from a zip archive",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(cmd *cobra.Command, store *profile.Store, args []string) error {
		p, err := store.ImportArchive(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported profile %q (%d keys)\n", p.Name, p.Len())
		return nil
	}),
}

var profileAssignCmd = &cobra.Command{
	Use:   "assign <key> <sound-file>",
	Short: "Assign a sound to a key in the active profile",
	Args:  cobra.ExactArgs(2),
	RunE: withStore(func(cmd *cobra.Command, store *profile.Store, args []string) error {
		k, err := parseKey(args[0])
		if err != nil {
			return err
		}
		if err := store.SetKeySound(k, args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", k, filepath.Base(args[1]))
		return nil
	}),
}

var profileUnassignCmd = &cobra.Command{
	Use:   "unassign <key>",
	Short: "Remove a key's sound from the active profile",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(cmd *cobra.Command, store *profile.Store, args []string) error {
		k, err := parseKey(args[0])
		if err != nil {
			return err
		}
		return store.ClearKeySound(k)
	}),
}

var profileVolumeCmd = &cobra.Command{
	Use:   "volume <key> <0.0-1.0>",
	Short: "Set the volume of one key in the active profile",
	Args:  cobra.ExactArgs(2),
	RunE: withStore(func(cmd *cobra.Command, store *profile.Store, args []string) error {
		k, err := parseKey(args[0])
		if err != nil {
			return err
		}
		v, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid volume %q: %w", args[1], err)
		}
		return store.SetKeyVolume(k, v)
	}),
}

var profileDefaultCmd = &cobra.Command{
	Use:   "default <sound-file>",
	Short: "Set the active profile's fallback sound",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(cmd *cobra.Command, store *profile.Store, args []string) error {
		if err := store.SetDefaultSound(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Default sound: %s\n", store.Current().DefaultSound)
		return nil
	}),
}

var profileImportSoundCmd = &cobra.Command{
	Use:   "import-sound <sound-file>...",
	Short: "Copy sounds into the active profile, assigning those named after a key",
	Args:  cobra.MinimumNArgs(1),
	RunE: withStore(func(cmd *cobra.Command, store *profile.Store, args []string) error {
		for _, src := range args {
			k, err := store.ImportSound(src)
			if err != nil {
				return err
			}
			if k == keys.None {
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %s (no matching key)\n", filepath.Base(src))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s -> %s\n", filepath.Base(src), k)
		}
		return nil
	}),
}

func init() {
	profileCmd.AddCommand(
		profileListCmd,
		profileShowCmd,
		profileCurrentCmd,
		profileCreateCmd,
		profileDeleteCmd,
		profileUseCmd,
		profileExportCmd,
		profileImportCmd,
		profileAssignCmd,
		profileUnassignCmd,
		profileVolumeCmd,
		profileDefaultCmd,
		profileImportSoundCmd,
	)
	rootCmd.AddCommand(profileCmd)
}

// withStore opens the profile store before running fn.
func withStore(fn func(cmd *cobra.Command, store *profile.Store, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		return fn(cmd, store, args)
	}
}

func parseKey(name string) (keys.Key, error) {
	k, ok := keys.Parse(name)
	if !ok {
		return keys.None, fmt.Errorf("unknown key %q (see 'keysound keys')", name)
	}
	return k, nil
}
