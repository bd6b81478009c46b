package main

import (
	"fmt"

	"github.com/metalagman/ralph/internal/config"
	"github.com/spf13/cobra"
)

func configCmd() *cobra.Command {
	var getKey, setKey string
	cmd := &cobra.Command{
		Use:   "config [--get KEY | --set KEY VALUE]",
		Short: "Show or change ralph configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			u := newUI(cmd.OutOrStdout())
			switch {
			case getKey != "" && setKey != "":
				return fmt.Errorf("--get and --set are mutually exclusive")
			case setKey != "":
				if len(args) != 1 {
					return fmt.Errorf("--set requires a key and a value")
				}
				return configSet(u, path, setKey, args[0])
			case getKey != "":
				if len(args) != 0 {
					return fmt.Errorf("--get takes exactly one key")
				}
				return configGet(u, path, getKey)
			default:
				if len(args) != 0 {
					return fmt.Errorf("unexpected argument %q", args[0])
				}
				return configShow(u, path)
			}
		},
	}
	cmd.Flags().StringVar(&getKey, "get", "", "print the value of KEY")
	cmd.Flags().StringVar(&setKey, "set", "", "set KEY to the value given as the next argument")
	return cmd
}

func configShow(u *ui, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	u.Title("Ralph Configuration")
	u.Printf("Config file: %s\n\n", path)
	for _, k := range config.Keys() {
		value, err := cfg.Get(k.Key)
		if err != nil {
			return err
		}
		if value == "" {
			value = u.dim.Render("not set")
		}
		u.Printf("  %s = %s\n", u.keyName.Render(k.Key), value)
		u.Printf("    %s\n", u.dim.Render(k.Description))
	}
	u.Println()
	u.Println("Usage:")
	u.Println("  ralph config --get <key>")
	u.Println("  ralph config --set <key> <value>")
	return nil
}

func configGet(u *ui, path, key string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	value, err := cfg.Get(key)
	if err != nil {
		return err
	}
	if value == "" {
		u.Printf("%s is not set\n", key)
		return nil
	}
	u.Printf("%s = %s\n", key, value)
	return nil
}

// configSet edits the file alone so environment overrides never leak into it.
func configSet(u *ui, path, key, value string) error {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	if err := cfg.Set(key, value); err != nil {
		return err
	}
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	saved, err := cfg.Get(key)
	if err != nil {
		return err
	}
	u.Success("Set %s = %s", key, saved)
	return nil
}
